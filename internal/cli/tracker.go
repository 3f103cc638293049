package cli

import (
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/errors"
	"quadwire/pkg/util"
)

type PendingRequest struct {
	reqCtx       *RequestContext
	timeSent     time.Time
	timeToExpire time.Time
}

// PendingTracker pairs responses with requests for one connection. The
// wire carries no request identifiers; the peer answers strictly in
// request order, so the oldest pending request owns the next response.
type PendingTracker struct {
	pendingQueue   []*PendingRequest
	responseTimer  *util.TimerWrapper
	requestTimeout time.Duration
}

func newPendingTracker(requestTimeout time.Duration) *PendingTracker {
	return &PendingTracker{
		responseTimer:  util.NewTimerWrapper(requestTimeout),
		requestTimeout: requestTimeout,
	}
}

func (p *PendingTracker) GetTimeoutCh() <-chan time.Time {
	return p.responseTimer.GetTimeoutCh()
}

func (p *PendingTracker) NumPending() int {
	return len(p.pendingQueue)
}

func (p *PendingTracker) OnRequestSent(reqCtx *RequestContext) {
	now := time.Now()
	pending := &PendingRequest{reqCtx: reqCtx, timeSent: now, timeToExpire: now.Add(p.requestTimeout)}
	p.pendingQueue = append(p.pendingQueue, pending)
	if p.responseTimer.IsStopped() {
		p.responseTimer.Reset(p.requestTimeout)
	}
}

// OnTimeout fails every pending request whose deadline has passed and
// returns how many it failed. A non-zero count means responses still in
// flight would pair with the wrong requests from now on; the caller must
// drop the connection.
func (p *PendingTracker) OnTimeout(now time.Time) int {
	p.responseTimer.Stop()
	sz := len(p.pendingQueue)
	if sz == 0 {
		return 0
	}
	queue := p.pendingQueue
	var i int
	for i = 0; i < sz; i++ {
		pr := queue[i]
		if pr.timeToExpire.After(now) {
			p.responseTimer.Reset(pr.timeToExpire.Sub(now))
			break
		}
		glog.Warningf("Timeout <- server: elapsed=%s pending=%d", now.Sub(pr.timeSent), sz-i)
		pr.reqCtx.ReplyError(errors.ErrResponseTimeout)
		pr.reqCtx = nil
	}
	if i != 0 {
		p.pendingQueue = queue[i:sz]
	}
	return i
}

// OnResponseReceived completes the oldest pending request with the
// received payload. It reports false when nothing is pending, which on
// this wire means the stream is out of step.
func (p *PendingTracker) OnResponseReceived(readerResp *ReaderResponse) bool {
	if readerResp.err != nil {
		p.responseTimer.Stop()
		p.ClearOnError(readerResp.err)
		return true
	}
	if len(p.pendingQueue) == 0 {
		glog.Warningf("response with no pending request, %d byte(s)", len(readerResp.payload))
		return false
	}
	pending := p.pendingQueue[0]
	p.pendingQueue = p.pendingQueue[1:]
	pending.reqCtx.Reply(readerResp.payload)
	pending.reqCtx = nil
	return true
}

func (p *PendingTracker) ClearOnError(err error) {
	if glog.V(2) {
		glog.InfoDepth(1, err)
	}
	for _, pending := range p.pendingQueue {
		if pending.reqCtx != nil {
			pending.reqCtx.ReplyError(err)
			pending.reqCtx = nil
		}
	}
	p.pendingQueue = p.pendingQueue[:0]
}

func (p *PendingTracker) OnResponseReaderClosed() {
	p.responseTimer.Stop()
	p.ClearOnError(errors.ErrNoConnection)
}
