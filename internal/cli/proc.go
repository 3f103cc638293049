package cli

import (
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	qwio "quadwire/pkg/io"
	"quadwire/pkg/util"
)

func init() {
	rand.Seed(time.Now().UTC().UnixNano())
}

func StartRequestProcessor(
	server qwio.ServiceEndpoint,
	connectTimeout time.Duration,
	requestTimeout time.Duration,
	connRecycleTimeout time.Duration,
	chDone <-chan bool,
	chRequest <-chan *RequestContext) (chProcessorDone <-chan bool) {

	ch := make(chan bool)
	go doRequestProcess(server, connectTimeout, requestTimeout, connRecycleTimeout, chDone, ch, chRequest)
	return ch
}

// resetRecycleTimer schedules the next connection swap. The interval is
// reduced by a random 0 to 20% so a fleet of clients does not recycle in
// lockstep, and never drops below two request timeouts so a connection
// cannot be recycled with its first responses still due.
func resetRecycleTimer(
	requestTimeout time.Duration,
	connRecycleTimeout time.Duration,
	connRecycleTimer *util.TimerWrapper) {
	if connRecycleTimeout <= 0 {
		return
	}

	t := connRecycleTimeout
	t = t * time.Duration(1000-rand.Intn(200)) / 1000
	if t < 2*requestTimeout {
		t = 2 * requestTimeout
	}
	connRecycleTimer.Reset(t)
}

func doRequestProcess(
	server qwio.ServiceEndpoint,
	connectTimeout time.Duration,
	requestTimeout time.Duration,
	connRecycleTimeout time.Duration,
	chDone <-chan bool,
	chDoneNotify chan<- bool,
	chRequest <-chan *RequestContext) {

	connRecycleTimer := util.NewTimerWrapper(connRecycleTimeout)
	active := &Connection{}
	recycled := &Connection{}

	var wbuf util.PPBuffer

	// connect replaces active with a brand new Connection; the fresh
	// codec re-emits the stream marker on the new wire.
	connect := func() (err error) {
		var conn net.Conn
		conn, err = qwio.ConnectTo(&server, connectTimeout)
		if err != nil {
			return
		}
		active = &Connection{
			conn:             conn,
			tracker:          newPendingTracker(requestTimeout),
			chReaderResponse: startResponseReader(conn),
		}
		resetRecycleTimer(requestTimeout, connRecycleTimeout, connRecycleTimer)
		glog.V(2).Infof("Open connCount=%d", atomic.AddInt64(&connCount, 1))
		return
	}

	defer close(chDoneNotify)

	connect() // the first request retries when this fails

	for {
		select {
		case <-chDone:
			glog.V(1).Info("proc done channel got notified")
			recycled.Discard()
			active.Discard()
			return
		case _, ok := <-connRecycleTimer.GetTimeoutCh():
			connRecycleTimer.Stop()
			if !ok {
				glog.Errorf("connection recycle timer not ok")
				continue
			}
			glog.V(2).Info("connection recycle timer fired")
			recycled.Discard()
			recycled = active
			if err := connect(); err != nil {
				glog.Error(err)
				active = recycled // keep serving on the current one
				recycled = &Connection{}
				resetRecycleTimer(requestTimeout, connRecycleTimeout, connRecycleTimer)
			} else {
				recycled.beingRecycled = true
				if recycled.tracker != nil && recycled.tracker.NumPending() == 0 {
					recycled.Shutdown()
				}
			}
		case now, ok := <-active.GetReqTimeoutCh():
			if ok {
				if active.tracker.OnTimeout(now) > 0 {
					// late responses for the expired requests would pair
					// with the wrong pending ones
					active.Discard()
					active = &Connection{}
				}
			} else {
				glog.Error("error to get from active request timeout channel")
			}
		case now, ok := <-recycled.GetReqTimeoutCh():
			if ok {
				if recycled.tracker.OnTimeout(now) > 0 || recycled.tracker.NumPending() == 0 {
					recycled.Discard()
					recycled = &Connection{}
				}
			} else {
				glog.Error("error to read from recycled request timeout channel")
			}
		case r, ok := <-chRequest:
			if !ok { // shouldn't happen as it won't be closed
				continue
			}
			glog.V(1).Info("processor got request")
			var err error

			if active.conn == nil {
				err = connect()
			}
			if err == nil {
				wbuf.Reset()
				active.codec.Pack(r.GetPayload(), &wbuf)
				if _, err = wbuf.WriteTo(active.conn); err == nil {
					active.tracker.OnRequestSent(r)
				} else {
					r.ReplyError(err)
					active.Discard()
					active = &Connection{}
				}
			} else {
				r.ReplyError(err)
			}
		case readerResp, ok := <-active.chReaderResponse:
			if ok {
				if !active.tracker.OnResponseReceived(readerResp) {
					active.Discard()
					active = &Connection{}
				}
			} else {
				glog.V(2).Info("active reader response channel closed")
				active.tracker.OnResponseReaderClosed()
				active.Close()
				active = &Connection{}
			}
		case readerResp, ok := <-recycled.chReaderResponse:
			if ok {
				if !recycled.tracker.OnResponseReceived(readerResp) ||
					recycled.tracker.NumPending() == 0 {
					// drained; the swap already replaced it
					recycled.Shutdown()
				}
			} else {
				glog.V(2).Info("recycled reader response channel closed")
				recycled.tracker.OnResponseReaderClosed()
				recycled.Close()
				recycled = &Connection{}
			}
		}
	}
}
