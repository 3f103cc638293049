//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package io

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/errors"
	"quadwire/pkg/frame"
	"quadwire/pkg/io/ioutil"
	"quadwire/pkg/util"
)

type StateType int32

const (
	WAITING StateType = iota
	CONNECTING
	SERVING
	DRAINING
)

var stateNames = map[StateType]string{
	WAITING:    "waiting",
	CONNECTING: "connecting",
	SERVING:    "serving",
	DRAINING:   "draining",
}

func (s StateType) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// OutboundConnector drives one established outbound connection.
//
// The write loop frames requests in submission order and appends each to
// the pending ring; the peer answers strictly in that order, so the read
// loop completes the oldest pending request per received envelope. A
// pending request whose deadline passes, or a response that arrives with
// nothing pending, means the pairing can no longer be trusted and the
// connection is torn down.
type OutboundConnector struct {
	id          int
	conn        net.Conn
	reader      *bufio.Reader
	codec       frame.Codec
	reqCh       chan IRequestContext
	reqPending  *util.RingBuffer
	monitorCh   chan<- *OutboundConnector
	doneCh      chan struct{}
	chDead      chan struct{}
	wgWrite     sync.WaitGroup
	wgRead      sync.WaitGroup
	config      *OutboundConfig
	state       int32
	displayName string
	closeOnce   sync.Once
	doneOnce    sync.Once
}

func NewOutboundConnector(id int, conn net.Conn, reqCh chan IRequestContext,
	monitorCh chan<- *OutboundConnector, config *OutboundConfig) *OutboundConnector {
	c := &OutboundConnector{
		id:          id,
		conn:        conn,
		reader:      util.NewBufioReader(conn, config.IOBufSize),
		reqCh:       reqCh,
		monitorCh:   monitorCh,
		doneCh:      make(chan struct{}),
		chDead:      make(chan struct{}),
		config:      config,
		displayName: fmt.Sprintf("%s/%d", conn.RemoteAddr(), id),
	}
	c.reqPending = util.NewRingBufferWithExtra(
		uint32(config.MaxPendingQueSize-1), uint32(config.PendingQueExtra))
	return c
}

func (c *OutboundConnector) Start() {
	c.SetState(SERVING)
	c.wgWrite.Add(1)
	go c.writeLoop()
	c.wgRead.Add(1)
	go c.readLoop()
}

func (c *OutboundConnector) GetId() int {
	return c.id
}

func (c *OutboundConnector) SetState(s StateType) {
	atomic.StoreInt32(&c.state, int32(s))
}

func (c *OutboundConnector) GetState() StateType {
	return StateType(atomic.LoadInt32(&c.state))
}

func (c *OutboundConnector) IsActive() bool {
	return c.GetState() == SERVING
}

// Shutdown starts a graceful drain: the write loop stops taking requests
// and the read loop exits once the pending ring empties or the grace
// period passes.
func (c *OutboundConnector) Shutdown() {
	c.doneOnce.Do(func() {
		close(c.doneCh)
	})
}

func (c *OutboundConnector) WaitShutdown() {
	c.wgRead.Wait()
}

// Close releases the socket and wakes both loops.
func (c *OutboundConnector) Close() {
	c.closeOnce.Do(func() {
		close(c.chDead)
		c.conn.Close()
	})
}

func (c *OutboundConnector) GetNumPendingReqs() uint32 {
	return c.reqPending.GetSize()
}

func (c *OutboundConnector) WriteStats(w io.Writer) {
	fmt.Fprintf(w, "id: %d state: %s pending: %d\n", c.id, c.GetState(), c.reqPending.GetSize())
}

func (c *OutboundConnector) writeLoop() {
	defer c.wgWrite.Done()

	var wBuf util.PPBuffer
	wBuf.Grow(c.config.IOBufSize)

	reqCh := c.reqCh
	queCheckTimer := util.NewTimerWrapper(time.Millisecond)
	defer queCheckTimer.Stop()

	funFlush := func() bool {
		if wBuf.Len() == 0 {
			return true
		}
		if _, err := wBuf.WriteTo(c.conn); err != nil {
			if !c.isClosed() {
				ioutil.LogError(err)
			}
			return false
		}
		return true
	}

	funBufferForWrite := func(req IRequestContext) {
		if ctx := req.GetCtx(); ctx != nil {
			select {
			case <-ctx.Done():
				// the caller gave up before the request hit the wire
				ReplyError(req, errors.KErrResponseTimeout)
				req.OnComplete()
				return
			default:
			}
		}
		if req.GetQueTimeout() == 0 {
			req.SetQueTimeout(c.config.ResponseTimeout.Duration)
		}
		req.SetInUse(true)
		if _, err := c.reqPending.EnQueue(req); err != nil {
			req.SetInUse(false)
			ReplyError(req, errors.KErrBusy)
			req.OnComplete()
			return
		}
		c.codec.Pack(req.GetPayload(), &wBuf)
		if buf, pool := req.GiveUpBuffer(); buf != nil {
			pool.Put(buf)
		}
		req.SetInUse(false)
	}

	for {
		select {
		case <-c.chDead:
			return
		case <-c.doneCh:
			funFlush()
			return
		case req, ok := <-reqCh:
			if !ok {
				funFlush()
				return
			}
			funBufferForWrite(req)
		batched:
			for wBuf.Len() < c.config.MaxBufferedWriteSize && !c.reqPending.IsFull() {
				select {
				case req2, ok2 := <-reqCh:
					if !ok2 {
						break batched
					}
					funBufferForWrite(req2)
				default:
					break batched
				}
			}
			if !funFlush() {
				c.Close()
				return
			}
			if c.reqPending.IsFull() {
				// stop pulling until responses free a slot
				reqCh = nil
				queCheckTimer.Reset(time.Millisecond)
			}
		case <-queCheckTimer.GetTimeoutCh():
			if c.reqPending.IsFull() {
				queCheckTimer.Reset(time.Millisecond)
			} else {
				reqCh = c.reqCh
			}
		}
	}
}

func (c *OutboundConnector) readLoop() {
	defer c.wgRead.Done()
	defer func() {
		c.Close()
		// let the write loop stop appending before sweeping the ring
		c.wgWrite.Wait()
		c.reqPending.CleanAll()
		util.PutBufioReader(c.reader)
		if c.monitorCh != nil {
			c.monitorCh <- c
		}
	}()

	var markerStripped bool
	var drainTimeout <-chan time.Time
	doneCh := c.doneCh
	draining := false

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.chDead:
			return
		case <-doneCh:
			doneCh = nil
			draining = true
			c.SetState(DRAINING)
			drainTimeout = time.After(2 * c.config.GracefulShutdownTime.Duration)
			continue
		case <-drainTimeout:
			return
		case <-ticker.C:
			if c.reqPending.CleanUp() {
				// a pending response is overdue; anything read from now
				// on could pair with the wrong request
				glog.Warningf("%s: pending response timed out, closing", c.displayName)
				return
			}
			if draining && c.reqPending.IsEmpty() {
				return
			}
			continue
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		peeked, err := c.reader.Peek(frame.MaxHeaderSize)

		if !markerStripped && len(peeked) > 0 {
			n, merr := frame.StripMarker(peeked)
			if merr != nil {
				glog.Warningf("%s: bad stream marker: %s", c.displayName, merr)
				return
			}
			c.reader.Discard(n)
			markerStripped = true
			continue
		}

		headerLen, szPayload, herr := frame.EnvelopeLen(peeked)
		if herr != nil {
			// header incomplete; keep waiting unless the conn failed
			if err != nil {
				if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
					continue
				}
				if !draining && !c.isClosed() {
					ioutil.LogError(err)
				}
				return
			}
			continue
		}

		if szPayload > c.config.MaxEnvelopeSize {
			glog.Warningf("%s: envelope payload %d exceeds limit %d",
				c.displayName, szPayload, c.config.MaxEnvelopeSize)
			return
		}

		if _, err = c.reader.Discard(headerLen); err != nil {
			ioutil.LogError(err)
			return
		}

		resp := newOutboundResponseContext()
		if szPayload > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout.Duration))
			if _, err = resp.ReadEnvelope(c.reader, szPayload); err != nil {
				resp.OnComplete()
				ioutil.LogError(err)
				return
			}
		}
		if !c.deliverResponse(resp) {
			return
		}
		if draining && c.reqPending.IsEmpty() {
			return
		}
	}
}

// deliverResponse completes the oldest pending request with resp.
func (c *OutboundConnector) deliverResponse(resp IResponseContext) bool {
	item, err := c.reqPending.DeQueue()
	if err != nil || item == nil {
		// a response nothing asked for; the stream is out of step
		glog.Errorf("%s: response without a pending request", c.displayName)
		resp.OnComplete()
		return false
	}
	req := item.(IRequestContext)
	req.Reply(resp)
	req.OnComplete()
	return true
}

func (c *OutboundConnector) isClosed() bool {
	select {
	case <-c.chDead:
		return true
	default:
		return false
	}
}

// ReplyError answers req locally with a transport error status.
func ReplyError(req IRequestContext, errno uint32) {
	req.Reply(NewErrorResponseContext(errno))
}
