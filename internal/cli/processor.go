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

package cli

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/errors"
	"quadwire/pkg/frame"
	qwio "quadwire/pkg/io"
)

type IOError struct {
	Err error
}

func (e *IOError) Retryable() bool { return true }

func (e *IOError) Error() string {
	return "IOError: " + e.Err.Error()
}

var (
	kMaxRequestChanBufferSize = 1024

	kDefaultConnectTimeout = time.Duration(2000 * time.Millisecond)
	kDefaultRequestTimeout = time.Duration(1000 * time.Millisecond)
	kMinConnRecycleTimeout = time.Duration(5 * time.Second)
	kMaxConnRecycleTimeout = time.Duration(90 * time.Second)
)

// Processor is the client-side request engine for one server endpoint: a
// single goroutine owning one active connection, writing requests in
// submission order and pairing responses by that same order. The
// connection is swapped out on a recycle interval and re-established on
// demand after failures.
type Processor struct {
	server             qwio.ServiceEndpoint
	connectTimeout     time.Duration
	requestTimeout     time.Duration
	connRecycleTimeout time.Duration

	chDone     chan bool
	chProcDone <-chan bool
	chRequest  chan *RequestContext
	startOnce  sync.Once
	closeOnce  sync.Once
}

func NewProcessor(
	server qwio.ServiceEndpoint,
	connectTimeout time.Duration,
	requestTimeout time.Duration,
	connRecycleTimeout time.Duration) *Processor {

	if connectTimeout <= 0 {
		connectTimeout = kDefaultConnectTimeout
	}
	if requestTimeout <= 0 {
		requestTimeout = kDefaultRequestTimeout
	}
	if connRecycleTimeout < 0 {
		connRecycleTimeout = 0
	} else if connRecycleTimeout > 0 {
		if connRecycleTimeout < kMinConnRecycleTimeout {
			connRecycleTimeout = kMinConnRecycleTimeout
		}
		if connRecycleTimeout > kMaxConnRecycleTimeout {
			connRecycleTimeout = kMaxConnRecycleTimeout
		}
	}
	glog.V(2).Infof("addr=%s connect_timeout=%dms request_timeout=%dms recycle_timeout=%s",
		server.Addr, connectTimeout.Nanoseconds()/int64(1e6),
		requestTimeout.Nanoseconds()/int64(1e6), connRecycleTimeout)

	return &Processor{
		server:             server,
		connectTimeout:     connectTimeout,
		requestTimeout:     requestTimeout,
		connRecycleTimeout: connRecycleTimeout,
		chDone:             make(chan bool),
		chRequest:          make(chan *RequestContext, kMaxRequestChanBufferSize),
	}
}

func (c *Processor) Start() {
	c.startOnce.Do(func() {
		c.chProcDone = StartRequestProcessor(
			c.server, c.connectTimeout, c.requestTimeout, c.connRecycleTimeout,
			c.chDone, c.chRequest)
	})
}

func (c *Processor) Close() {
	c.closeOnce.Do(func() {
		close(c.chDone)
		if c.chProcDone != nil {
			<-c.chProcDone
		}
	})
}

func (c *Processor) sendWithResponseChannel(chResponse chan IResponseContext, payload []byte) error {
	if len(payload)%frame.WordSize != 0 {
		return NewErrorWithString("payload not word aligned")
	}
	select {
	case c.chRequest <- NewRequestContext(payload, chResponse):
	default:
		glog.V(1).Infof("request queue full, qlen=%d", len(c.chRequest))
		return errors.ErrBusy
	}
	return nil
}

func (c *Processor) send(payload []byte) (<-chan IResponseContext, error) {
	// buffered so an abandoned response cannot wedge the engine
	ch := make(chan IResponseContext, 1)
	return ch, c.sendWithResponseChannel(ch, payload)
}

// ProcessRequest sends one word-aligned payload and waits for the paired
// response. An empty payload is the keepalive envelope.
func (c *Processor) ProcessRequest(payload []byte) ([]byte, error) {
	return c.ProcessRequestWithTimeout(payload, 0)
}

// ProcessRequestWithTimeout bounds the whole wait, queueing and connect
// time included. A zero guard leaves only the engine's own per-request
// timeout in force.
func (c *Processor) ProcessRequestWithTimeout(payload []byte, guard time.Duration) (resp []byte, err error) {
	ch, err := c.send(payload)
	if err != nil {
		return
	}

	var r IResponseContext
	var ok bool
	if guard > 0 {
		timer := time.NewTimer(guard)
		defer timer.Stop()
		select {
		case r, ok = <-ch:
		case <-timer.C:
			return nil, errors.ErrResponseTimeout
		}
	} else {
		r, ok = <-ch
	}
	if !ok {
		return nil, NewErrorWithString("response channel closed by request processor")
	}

	resp = r.GetPayload()
	err = r.GetError()
	if err != nil && !specialError(err) {
		err = &IOError{err}
	}
	return
}

// specialError reports whether err is one of the engine's own sentinels,
// which pass through to callers unwrapped.
func specialError(err error) bool {
	_, ok := err.(*errors.Error)
	return ok
}
