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
	"time"

	"quadwire/pkg/util"
)

var (
	DefaultInboundConfig = InboundConfig{
		IdleTimeout:          util.Duration{Duration: 120 * time.Second},
		ReadTimeout:          util.Duration{Duration: 500 * time.Millisecond},
		WriteTimeout:         util.Duration{Duration: 500 * time.Millisecond},
		RequestTimeout:       util.Duration{Duration: 600 * time.Millisecond},
		MaxPendingQueSize:    8092,
		MaxBufferedWriteSize: 64 * 1024,
		IOBufSize:            64 * 1024,
		RespChanSize:         10000,
		MaxEnvelopeSize:      4 * 1024 * 1024,
	}

	DefaultOutboundConfig = OutboundConfig{
		ConnectTimeout:        util.Duration{Duration: 1 * time.Second},
		ReadTimeout:           util.Duration{Duration: 500 * time.Millisecond},
		ResponseTimeout:       util.Duration{Duration: 1 * time.Second},
		ConnectRecycleT:       util.Duration{Duration: 30 * time.Second},
		GracefulShutdownTime:  util.Duration{Duration: 200 * time.Millisecond},
		EnableConnRecycle:     false,
		ReqChanBufSize:        8092,
		MaxPendingQueSize:     8092,
		PendingQueExtra:       50,
		MaxBufferedWriteSize:  64 * 1024,
		ReconnectIntervalBase: 100,
		ReconnectIntervalMax:  20000,
		NumConnsPerTarget:     1,
		IOBufSize:             64 * 1024,
		MaxEnvelopeSize:       4 * 1024 * 1024,
	}
)

// InboundConfigMap holds per-listener inbound settings, keyed by listener
// name.
type InboundConfigMap map[string]InboundConfig

func (m *InboundConfigMap) SetDefaultIfNotDefined() {
	for k, v := range *m {
		v.SetDefaultIfNotDefined()
		(*m)[k] = v
	}
}

// InboundConfig configures the server side of a connection.
//
// The wire carries no request identifiers, so responses must leave in the
// order their requests arrived. MaxPendingQueSize bounds how many requests
// may be in flight on one connection before the read loop stops pulling
// new envelopes off the socket.
type InboundConfig struct {
	IdleTimeout          util.Duration
	ReadTimeout          util.Duration
	WriteTimeout         util.Duration
	RequestTimeout       util.Duration
	MaxPendingQueSize    int
	MaxBufferedWriteSize int
	IOBufSize            int
	RespChanSize         int
	MaxEnvelopeSize      int
}

func (c *InboundConfig) SetDefaultIfNotDefined() {
	if c.IdleTimeout.Duration == 0 {
		c.IdleTimeout = DefaultInboundConfig.IdleTimeout
	}
	if c.ReadTimeout.Duration == 0 {
		c.ReadTimeout = DefaultInboundConfig.ReadTimeout
	}
	if c.WriteTimeout.Duration == 0 {
		c.WriteTimeout = DefaultInboundConfig.WriteTimeout
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = DefaultInboundConfig.RequestTimeout
	}
	if c.IdleTimeout.Duration < 2*c.RequestTimeout.Duration {
		c.IdleTimeout.Duration = 2 * c.RequestTimeout.Duration
	}
	if c.MaxPendingQueSize == 0 {
		c.MaxPendingQueSize = DefaultInboundConfig.MaxPendingQueSize
	}
	if c.MaxBufferedWriteSize == 0 {
		c.MaxBufferedWriteSize = DefaultInboundConfig.MaxBufferedWriteSize
	}
	if c.IOBufSize == 0 {
		c.IOBufSize = DefaultInboundConfig.IOBufSize
	}
	if c.RespChanSize == 0 {
		c.RespChanSize = DefaultInboundConfig.RespChanSize
	}
	if c.MaxEnvelopeSize == 0 {
		c.MaxEnvelopeSize = DefaultInboundConfig.MaxEnvelopeSize
	}
}

// OutboundConfig configures the client side of a connection.
// ResponseTimeout is the default time budget for a pending request; a
// request whose budget runs out tears the connection down, since a FIFO
// stream cannot skip one response and stay in step.
type OutboundConfig struct {
	ConnectTimeout       util.Duration
	ReadTimeout          util.Duration
	ResponseTimeout      util.Duration
	ConnectRecycleT      util.Duration
	GracefulShutdownTime util.Duration
	EnableConnRecycle    bool
	ReqChanBufSize       int
	MaxPendingQueSize    int
	PendingQueExtra      int
	MaxBufferedWriteSize int
	// reconnect backoff, in milliseconds
	ReconnectIntervalBase int
	ReconnectIntervalMax  int
	NumConnsPerTarget     int
	IOBufSize             int
	MaxEnvelopeSize       int
}

func (c *OutboundConfig) SetDefaultIfNotDefined() {
	if c.ConnectTimeout.Duration == 0 {
		c.ConnectTimeout = DefaultOutboundConfig.ConnectTimeout
	}
	if c.ReadTimeout.Duration == 0 {
		c.ReadTimeout = DefaultOutboundConfig.ReadTimeout
	}
	if c.ResponseTimeout.Duration == 0 {
		c.ResponseTimeout = DefaultOutboundConfig.ResponseTimeout
	}
	if c.ConnectRecycleT.Duration == 0 {
		c.ConnectRecycleT = DefaultOutboundConfig.ConnectRecycleT
	}
	if c.GracefulShutdownTime.Duration == 0 {
		c.GracefulShutdownTime = DefaultOutboundConfig.GracefulShutdownTime
	}
	if c.ReqChanBufSize == 0 {
		c.ReqChanBufSize = DefaultOutboundConfig.ReqChanBufSize
	}
	if c.MaxPendingQueSize == 0 {
		c.MaxPendingQueSize = DefaultOutboundConfig.MaxPendingQueSize
	}
	if c.PendingQueExtra == 0 {
		c.PendingQueExtra = DefaultOutboundConfig.PendingQueExtra
	}
	if c.MaxBufferedWriteSize == 0 {
		c.MaxBufferedWriteSize = DefaultOutboundConfig.MaxBufferedWriteSize
	}
	if c.ReconnectIntervalBase == 0 {
		c.ReconnectIntervalBase = DefaultOutboundConfig.ReconnectIntervalBase
	}
	if c.ReconnectIntervalMax == 0 {
		c.ReconnectIntervalMax = DefaultOutboundConfig.ReconnectIntervalMax
	}
	if c.NumConnsPerTarget == 0 {
		c.NumConnsPerTarget = DefaultOutboundConfig.NumConnsPerTarget
	}
	if c.IOBufSize == 0 {
		c.IOBufSize = DefaultOutboundConfig.IOBufSize
	}
	if c.MaxEnvelopeSize == 0 {
		c.MaxEnvelopeSize = DefaultOutboundConfig.MaxEnvelopeSize
	}
}
