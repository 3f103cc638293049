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
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	uuid "github.com/satori/go.uuid"

	"quadwire/pkg/frame"
	"quadwire/pkg/io/ioutil"
	"quadwire/pkg/logging/otel"
	"quadwire/pkg/util"
)

// Connector serves one accepted connection with a read loop and a write
// loop.
//
// The envelope stream carries no request identifiers, so the peer matches
// responses to requests by order alone. The read loop assigns each
// request a sequence id from the pending ring; handlers run concurrently
// and finish in any order; the write loop holds early responses aside and
// frames them strictly in ring order. A response overdue at the front of
// the ring blocks everything behind it, so when its grace period passes
// the connection is closed rather than left to stall or, worse, answer
// out of order.
type Connector struct {
	conn       net.Conn
	connId     string
	reader     *bufio.Reader
	chResponse chan IResponseContext
	chStop     chan struct{}
	pendingReq int32
	codec      frame.Codec
	reqPending *util.RingBuffer
	config     *InboundConfig
	reqHandler IRequestHandler
	reqCounter *util.AtomicCounter
	connMgr    *InboundConnManager
	ctx        context.Context
	cancelCtx  context.CancelFunc
	stopOnce   sync.Once
	closeOnce  sync.Once
}

func NewConnector(conn net.Conn, reqHandler IRequestHandler,
	reqCounter *util.AtomicCounter, config *InboundConfig, connMgr *InboundConnManager) *Connector {
	c := &Connector{
		conn:       conn,
		connId:     uuid.NewV1().String(),
		reader:     util.NewBufioReader(conn, config.IOBufSize),
		chResponse: make(chan IResponseContext, config.RespChanSize),
		chStop:     make(chan struct{}),
		reqPending: util.NewRingBuffer(uint32(config.MaxPendingQueSize)),
		config:     config,
		reqHandler: reqHandler,
		reqCounter: reqCounter,
		connMgr:    connMgr,
	}
	c.ctx, c.cancelCtx = context.WithCancel(context.Background())
	return c
}

func (c *Connector) Start() {
	if c.connMgr != nil {
		c.connMgr.TrackConn(c, true)
	}
	go c.doRead()
	go c.doWrite()
}

// Stop makes the read loop exit; the write loop then drains in-flight
// responses and closes the connection.
func (c *Connector) Stop() {
	c.stopOnce.Do(func() {
		close(c.chStop)
	})
}

func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		c.cancelCtx()
		c.conn.Close()
		otel.RecordCount(otel.Close, nil)
		if glog.V(1) {
			glog.Infof("close conn cid=%s", c.connId)
		}
		if c.connMgr != nil {
			c.connMgr.TrackConn(c, false)
		}
	})
}

func (c *Connector) GetNumPendingReqs() int32 {
	return atomic.LoadInt32(&c.pendingReq)
}

func (c *Connector) doRead() {
	defer func() {
		util.PutBufioReader(c.reader)
		c.Stop()
	}()

	var markerStripped bool
	idleTimer := util.NewTimerWrapper(c.config.IdleTimeout.Duration)
	defer idleTimer.Stop()
	queCheckTimer := util.NewTimerWrapper(time.Millisecond)
	defer queCheckTimer.Stop()

	for {
		select {
		case <-c.chStop:
			return
		default:
		}

		idleTimer.Reset(c.config.IdleTimeout.Duration)

		var headerLen, szPayload int
	waitHeader:
		for {
			select {
			case <-idleTimer.GetTimeoutCh():
				glog.V(1).Infof("idle conn cid=%s", c.connId)
				return
			case <-c.chStop:
				return
			default:
			}

			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout.Duration))
			peeked, err := c.reader.Peek(frame.MaxHeaderSize)

			if !markerStripped && len(peeked) > 0 {
				n, merr := frame.StripMarker(peeked)
				if merr != nil {
					glog.Warningf("bad stream marker from %s: %s", c.conn.RemoteAddr(), merr)
					otel.RecordCount(otel.DecodeErr, nil)
					return
				}
				c.reader.Discard(n)
				markerStripped = true
				continue
			}

			var herr error
			headerLen, szPayload, herr = frame.EnvelopeLen(peeked)
			if herr == nil {
				break waitHeader
			}
			// header incomplete; keep waiting unless the conn failed
			if err != nil {
				if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
					continue
				}
				ioutil.LogError(err)
				return
			}
		}

		if szPayload > c.config.MaxEnvelopeSize {
			glog.Warningf("conn cid=%s: envelope payload %d exceeds limit %d",
				c.connId, szPayload, c.config.MaxEnvelopeSize)
			otel.RecordCount(otel.DecodeErr, nil)
			return
		}

		// cap in-flight requests; wait for the write loop to catch up
		for c.reqPending.IsFull() {
			queCheckTimer.Reset(time.Millisecond)
			select {
			case <-c.chStop:
				return
			case <-queCheckTimer.GetTimeoutCh():
			}
		}

		if _, err := c.reader.Discard(headerLen); err != nil {
			ioutil.LogError(err)
			return
		}

		reqCtx := NewRequestContext(c.ctx, c.chResponse)
		if szPayload > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout.Duration))
			if _, err := reqCtx.ReadEnvelope(c.reader, szPayload); err != nil {
				ioutil.LogError(err)
				return
			}
		}

		reqCtx.SetQueTimeout(2 * c.config.RequestTimeout.Duration)
		if _, err := c.reqPending.EnQueue(reqCtx); err != nil {
			// full despite the check above: the write loop has stalled
			glog.Errorf("conn cid=%s: pending queue full", c.connId)
			reqCtx.OnComplete()
			return
		}
		atomic.AddInt32(&c.pendingReq, 1)
		if c.reqCounter != nil {
			c.reqCounter.Add(1)
		}

		if szPayload == 0 {
			// an empty envelope is a keepalive probe; answer in order,
			// on this goroutine
			c.reqHandler.OnKeepAlive(c, reqCtx)
			continue
		}

		reqCtx.SetTimeout(c.ctx, c.config.RequestTimeout.Duration)
		go c.reqHandler.Process(reqCtx)
	}
}

type pendingWriteT struct {
	resp     IResponseContext
	nToWrite int64
}

func (c *Connector) doWrite() {
	var (
		wBuf          util.PPBuffer
		pendingWrites []pendingWriteT
		stash         = make(map[uint32]IResponseContext)
		chStop        <-chan struct{} = c.chStop
		chTimeout     <-chan time.Time
		beingShutdown bool
	)
	wBuf.Grow(c.config.IOBufSize)

	// a closed channel makes the flush case selectable whenever data is
	// buffered
	chClosedForNotifyingFlush := make(chan time.Time)
	close(chClosedForNotifyingFlush)
	var chHavingDataToWrite <-chan time.Time

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	defer func() {
		for _, resp := range stash {
			resp.OnComplete()
		}
		c.reqPending.CleanAll()
		for i := range pendingWrites {
			pendingWrites[i].resp.OnComplete()
		}
		c.Close()
	}()

	funOnWrite := func(szWritten int64) {
		for len(pendingWrites) != 0 {
			pw := &pendingWrites[0]
			if szWritten >= pw.nToWrite {
				szWritten -= pw.nToWrite
				pw.resp.OnComplete()
				pendingWrites = pendingWrites[1:]
			} else {
				pw.nToWrite -= szWritten
				break
			}
		}
	}

	funFlush := func() bool {
		if wBuf.Len() == 0 {
			chHavingDataToWrite = nil
			return true
		}
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout.Duration))
		n, err := wBuf.WriteTo(c.conn)
		funOnWrite(n)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				// partial write; retry on the next wakeup
				chHavingDataToWrite = chClosedForNotifyingFlush
				return true
			}
			ioutil.LogError(err)
			return false
		}
		if wBuf.Len() == 0 {
			chHavingDataToWrite = nil
		} else {
			chHavingDataToWrite = chClosedForNotifyingFlush
		}
		return true
	}

	funStageResponse := func(resp IResponseContext) {
		enc := resp.GetEncoded()
		n := c.codec.PackedLen(len(enc))
		c.codec.Pack(enc, &wBuf)
		pendingWrites = append(pendingWrites, pendingWriteT{resp: resp, nToWrite: int64(n)})
		atomic.AddInt32(&c.pendingReq, -1)
		if c.reqCounter != nil {
			c.reqCounter.Add(-1)
		}
	}

	// frame every stashed response that is next in arrival order
	funDrainReady := func() bool {
		for {
			head, err := c.reqPending.PeekFront()
			if err != nil {
				return true
			}
			resp, ok := stash[head.GetId()]
			if !ok {
				return true
			}
			delete(stash, head.GetId())
			c.reqPending.DeQueue()
			funStageResponse(resp)
			head.(IRequestContext).OnComplete()
			if wBuf.Len() >= c.config.MaxBufferedWriteSize {
				if !funFlush() {
					return false
				}
			}
		}
	}

	funDoneDraining := func() bool {
		return beingShutdown && atomic.LoadInt32(&c.pendingReq) <= 0 &&
			len(stash) == 0 && wBuf.Len() == 0
	}

	for {
		select {
		case <-chStop:
			chStop = nil
			beingShutdown = true
			chTimeout = time.After(2 * c.config.RequestTimeout.Duration)
			if funDoneDraining() {
				return
			}

		case v := <-c.chResponse:
			if old, dup := stash[v.GetReqId()]; dup {
				old.OnComplete()
			}
			stash[v.GetReqId()] = v
			// batch whatever else has arrived
		drained:
			for {
				select {
				case v2 := <-c.chResponse:
					if old, dup := stash[v2.GetReqId()]; dup {
						old.OnComplete()
					}
					stash[v2.GetReqId()] = v2
				default:
					break drained
				}
			}
			if !funDrainReady() {
				return
			}
			if wBuf.Len() > 0 {
				chHavingDataToWrite = chClosedForNotifyingFlush
			}
			if funDoneDraining() {
				return
			}

		case <-chHavingDataToWrite:
			if !funFlush() {
				return
			}
			if funDoneDraining() {
				return
			}

		case <-ticker.C:
			// watchdog: a response overdue at the front of the ring
			// stalls the whole connection
			if head, err := c.reqPending.PeekFront(); err == nil {
				if _, ok := stash[head.GetId()]; !ok && head.Deadline().Before(time.Now()) {
					glog.Warningf("conn cid=%s: response overdue at queue head, closing", c.connId)
					return
				}
			}
			if funDoneDraining() {
				return
			}

		case <-chTimeout:
			glog.V(1).Infof("conn cid=%s: shutdown drain timed out", c.connId)
			funFlush()
			return
		}
	}
}
