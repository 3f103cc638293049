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
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/errors"
	"quadwire/pkg/util"
)

// IResponseContext carries one envelope payload, already word aligned,
// from its producer to the write loop that frames it onto the wire.
type IResponseContext interface {
	GetStatus() uint32
	GetEncoded() []byte
	GetMsgSize() uint32
	SetReqId(id uint32)
	GetReqId() uint32
	OnComplete()
}

// IRequestContext is one request in flight. On the inbound side the
// connector creates it from a received envelope; on the outbound side the
// caller creates it around a payload to send.
type IRequestContext interface {
	util.QueItem
	GetPayload() []byte
	GiveUpBuffer() (*util.PPBuffer, util.BufferPool)
	GetCtx() context.Context
	Cancel()
	Reply(resp IResponseContext)
	OnComplete()
	GetReceiveTime() time.Time
	SetTimeout(parent context.Context, timeout time.Duration)
}

// RequestContext is the inbound implementation. The payload buffer comes
// from a size-tiered pool; a handler may steal it for the response with
// GiveUpBuffer, otherwise OnComplete returns it. After Reply the handler
// must not touch the context or its payload again.
type RequestContext struct {
	util.QueItemBase
	parentCtx    context.Context
	ctx          context.Context
	cancelCtx    context.CancelFunc
	chResponse   chan<- IResponseContext
	timeReceived time.Time
	buffer       *util.PPBuffer
	pool         util.BufferPool
}

func NewRequestContext(parent context.Context, chResponse chan<- IResponseContext) *RequestContext {
	return &RequestContext{
		parentCtx:    parent,
		chResponse:   chResponse,
		timeReceived: time.Now(),
	}
}

// ReadEnvelope fills the payload buffer from rd. The caller has already
// consumed the envelope header; szPayload is the word-aligned payload
// length it announced.
func (r *RequestContext) ReadEnvelope(rd io.Reader, szPayload int) (n int, err error) {
	if szPayload == 0 {
		return 0, nil
	}
	r.pool = util.GetBufferPool(szPayload)
	r.buffer = r.pool.Get()
	r.buffer.Resize(szPayload)
	n, err = io.ReadFull(rd, r.buffer.Bytes())
	if err != nil {
		r.pool.Put(r.buffer)
		r.buffer = nil
		r.pool = nil
	}
	return n, err
}

func (r *RequestContext) GetPayload() []byte {
	if r.buffer == nil {
		return nil
	}
	return r.buffer.Bytes()
}

// GiveUpBuffer transfers ownership of the payload buffer to the caller.
// Subsequent GetPayload calls return nil.
func (r *RequestContext) GiveUpBuffer() (*util.PPBuffer, util.BufferPool) {
	buf, pool := r.buffer, r.pool
	r.buffer, r.pool = nil, nil
	return buf, pool
}

func (r *RequestContext) GetCtx() context.Context {
	return r.ctx
}

func (r *RequestContext) Cancel() {
	if r.cancelCtx != nil {
		r.cancelCtx()
	}
}

func (r *RequestContext) SetTimeout(parent context.Context, timeout time.Duration) {
	if r.ctx == nil {
		r.ctx, r.cancelCtx = context.WithTimeout(parent, timeout)
	}
}

// Reply hands the response to the connection's write loop. It stamps the
// response with the request's sequence id so the write loop can restore
// arrival order. When the connection is gone the response is released.
func (r *RequestContext) Reply(resp IResponseContext) {
	resp.SetReqId(r.GetId())
	select {
	case <-r.parentCtx.Done():
		resp.OnComplete()
	case r.chResponse <- resp:
	}
}

func (r *RequestContext) OnComplete() {
	if r.cancelCtx != nil {
		r.cancelCtx()
		r.cancelCtx = nil
	}
	if r.buffer != nil {
		r.pool.Put(r.buffer)
		r.buffer = nil
		r.pool = nil
	}
}

// OnCleanup fires when the connection tears down with the request still
// pending. The handler goroutine may still hold the payload, so only the
// context is cancelled; the buffer is left to the collector.
func (r *RequestContext) OnCleanup() {
	r.Cancel()
}

func (r *RequestContext) OnExpiration() {
	r.Cancel()
}

func (r *RequestContext) GetReceiveTime() time.Time {
	return r.timeReceived
}

var inboundRespCtxPool = util.NewChanPool(10000, func() interface{} {
	return &ResponseContext{}
})

// ResponseContext is the inbound response implementation.
type ResponseContext struct {
	reqId  uint32
	buffer *util.PPBuffer
	pool   util.BufferPool
}

// NewEchoResponseContext builds a response that reuses the request's
// payload buffer instead of copying it. An empty request yields an empty
// response, which is also how keepalive probes are answered.
func NewEchoResponseContext(req IRequestContext) IResponseContext {
	r := inboundRespCtxPool.Get().(*ResponseContext)
	r.reqId = 0
	r.buffer, r.pool = req.GiveUpBuffer()
	if r.buffer == nil {
		if data := req.GetPayload(); len(data) > 0 {
			// not the buffer owner anymore; copy
			r.pool = util.GetBufferPool(len(data))
			r.buffer = r.pool.Get()
			r.buffer.Resize(len(data))
			copy(r.buffer.Bytes(), data)
		}
	}
	return r
}

// NewEmptyResponseContext builds a zero-payload response: the keepalive
// answer, and the acknowledgment for requests handled without output.
func NewEmptyResponseContext() IResponseContext {
	r := inboundRespCtxPool.Get().(*ResponseContext)
	r.reqId = 0
	r.buffer, r.pool = nil, nil
	return r
}

// NewResponseContext copies data, which must already be word aligned,
// into a pooled buffer.
func NewResponseContext(data []byte) IResponseContext {
	r := inboundRespCtxPool.Get().(*ResponseContext)
	r.reqId = 0
	r.buffer, r.pool = nil, nil
	if len(data) > 0 {
		r.pool = util.GetBufferPool(len(data))
		r.buffer = r.pool.Get()
		r.buffer.Resize(len(data))
		copy(r.buffer.Bytes(), data)
	}
	return r
}

func (r *ResponseContext) GetStatus() uint32 {
	return errors.KErrNoError
}

func (r *ResponseContext) GetEncoded() []byte {
	if r.buffer == nil {
		return nil
	}
	return r.buffer.Bytes()
}

func (r *ResponseContext) GetMsgSize() uint32 {
	return uint32(len(r.GetEncoded()))
}

func (r *ResponseContext) SetReqId(id uint32) {
	r.reqId = id
}

func (r *ResponseContext) GetReqId() uint32 {
	return r.reqId
}

func (r *ResponseContext) OnComplete() {
	if r.buffer != nil {
		r.pool.Put(r.buffer)
		r.buffer = nil
		r.pool = nil
	}
	inboundRespCtxPool.Put(r)
}

// OutboundRequestContext wraps a payload to be sent on an outbound
// connection. Its response channel has room for the single response, so
// Reply never blocks the connector's read loop.
type OutboundRequestContext struct {
	RequestContext
	respCh chan IResponseContext
}

// NewOutboundRequestContext copies payload, which must already be word
// aligned, into a pooled buffer. ctx bounds how long the caller is
// willing to wait; a request whose context is done before it reaches the
// wire is dropped without being sent.
func NewOutboundRequestContext(ctx context.Context, payload []byte) *OutboundRequestContext {
	var buf *util.PPBuffer
	var pool util.BufferPool
	if len(payload) > 0 {
		pool = util.GetBufferPool(len(payload))
		buf = pool.Get()
		buf.Resize(len(payload))
		copy(buf.Bytes(), payload)
	}
	return NewOutboundRequestContextWithBuffer(ctx, buf, pool)
}

// NewOutboundRequestContextWithBuffer takes ownership of buf; it is
// returned to pool once the payload has been framed for the wire.
func NewOutboundRequestContextWithBuffer(ctx context.Context, buf *util.PPBuffer, pool util.BufferPool) *OutboundRequestContext {
	r := &OutboundRequestContext{
		respCh: make(chan IResponseContext, 1),
	}
	r.ctx = ctx
	r.buffer = buf
	r.pool = pool
	r.timeReceived = time.Now()
	r.chResponse = r.respCh
	return r
}

func (r *OutboundRequestContext) GetResponseCh() <-chan IResponseContext {
	return r.respCh
}

// Reply delivers the response to the caller. It never blocks: if the
// caller already gave up and drained nothing, the response is dropped.
func (r *OutboundRequestContext) Reply(resp IResponseContext) {
	resp.SetReqId(r.GetId())
	select {
	case r.respCh <- resp:
	default:
		glog.V(2).Infof("response dropped, receiver gone")
		resp.OnComplete()
	}
}

func (r *OutboundRequestContext) OnCleanup() {
	r.Reply(NewErrorResponseContext(errors.KErrNoConnection))
}

func (r *OutboundRequestContext) OnExpiration() {
	r.Reply(NewErrorResponseContext(errors.KErrResponseTimeout))
}

var outboundRespCtxPool = util.NewChanPool(10000, func() interface{} {
	return &OutboundResponseContext{}
})

// OutboundResponseContext is one response envelope read off an outbound
// connection, or a locally generated error standing in for one.
type OutboundResponseContext struct {
	status uint32
	reqId  uint32
	buffer *util.PPBuffer
	pool   util.BufferPool
}

func newOutboundResponseContext() *OutboundResponseContext {
	r := outboundRespCtxPool.Get().(*OutboundResponseContext)
	r.status = errors.KErrNoError
	r.reqId = 0
	r.buffer, r.pool = nil, nil
	return r
}

// NewErrorResponseContext builds a response that reports a transport
// error to the caller. It carries no payload.
func NewErrorResponseContext(status uint32) IResponseContext {
	r := newOutboundResponseContext()
	r.status = status
	return r
}

func (r *OutboundResponseContext) ReadEnvelope(rd io.Reader, szPayload int) (n int, err error) {
	if szPayload == 0 {
		return 0, nil
	}
	r.pool = util.GetBufferPool(szPayload)
	r.buffer = r.pool.Get()
	r.buffer.Resize(szPayload)
	n, err = io.ReadFull(rd, r.buffer.Bytes())
	if err != nil {
		r.pool.Put(r.buffer)
		r.buffer = nil
		r.pool = nil
	}
	return n, err
}

func (r *OutboundResponseContext) GetStatus() uint32 {
	return r.status
}

func (r *OutboundResponseContext) GetEncoded() []byte {
	if r.buffer == nil {
		return nil
	}
	return r.buffer.Bytes()
}

func (r *OutboundResponseContext) GetMsgSize() uint32 {
	return uint32(len(r.GetEncoded()))
}

func (r *OutboundResponseContext) SetReqId(id uint32) {
	r.reqId = id
}

func (r *OutboundResponseContext) GetReqId() uint32 {
	return r.reqId
}

func (r *OutboundResponseContext) OnComplete() {
	if r.buffer != nil {
		r.pool.Put(r.buffer)
		r.buffer = nil
		r.pool = nil
	}
	outboundRespCtxPool.Put(r)
}
