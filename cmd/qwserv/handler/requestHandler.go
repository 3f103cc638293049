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

// Package handler implements the request handlers qwserv can run behind
// its listeners: echo, sink and relay.
package handler

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"quadwire/cmd/qwserv/config"
	"quadwire/cmd/qwserv/stats"
	"quadwire/pkg/io"
	"quadwire/pkg/logging/otel"
	pkgstats "quadwire/pkg/stats"
	"quadwire/pkg/service"
)

var (
	_ io.IRequestHandler = (*EchoHandler)(nil)
	_ io.IRequestHandler = (*SinkHandler)(nil)
)

// NewRequestHandler picks the handler named by conf.Handler.
func NewRequestHandler(conf *config.Config) (io.IRequestHandler, error) {
	switch conf.Handler {
	case "echo":
		return NewEchoHandler(), nil
	case "sink":
		return NewSinkHandler(), nil
	case "relay":
		return NewRelayHandler(&conf.Relay), nil
	}
	return nil, fmt.Errorf("unknown handler %q", conf.Handler)
}

// EchoHandler replies every envelope with its own payload. The payload
// buffer is handed over to the response, so nothing is copied.
type EchoHandler struct {
}

func NewEchoHandler() *EchoHandler {
	return &EchoHandler{}
}

func (rh *EchoHandler) Init() {
}

func (rh *EchoHandler) Process(reqCtx io.IRequestContext) error {
	reqLen := uint32(len(reqCtx.GetPayload()))
	reqCtx.Reply(io.NewEchoResponseContext(reqCtx))
	onRequestDone("echo", reqCtx.GetReceiveTime(), reqLen, reqLen, false)
	return nil
}

func (rh *EchoHandler) OnKeepAlive(connector *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

func (rh *EchoHandler) Finish() {
}

// SinkHandler consumes every envelope and acknowledges it with an empty
// one.
type SinkHandler struct {
}

func NewSinkHandler() *SinkHandler {
	return &SinkHandler{}
}

func (rh *SinkHandler) Init() {
}

func (rh *SinkHandler) Process(reqCtx io.IRequestContext) error {
	reqLen := uint32(len(reqCtx.GetPayload()))
	reqCtx.Reply(io.NewEmptyResponseContext())
	onRequestDone("sink", reqCtx.GetReceiveTime(), reqLen, 0, false)
	return nil
}

func (rh *SinkHandler) OnKeepAlive(connector *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

func (rh *SinkHandler) Finish() {
}

func onRequestDone(op string, timeReceived time.Time, reqLen uint32, respLen uint32, failed bool) {
	procTime := uint32(time.Since(timeReceived).Microseconds())
	if stats.Enabled() {
		var st pkgstats.ProcStat
		st.Init(reqLen)
		st.OnComplete(procTime, respLen, failed)
		stats.SendProcState(st)
	}
	status := otel.StatusSuccess
	if failed {
		status = otel.StatusError
		otel.RecordCount(otel.ProcErr, []otel.Tags{{TagName: otel.Operation, TagValue: op}})
	}
	otel.RecordCount(otel.ReqProc, []otel.Tags{{TagName: otel.Operation, TagValue: op}})
	otel.RecordOperation(op, status, int64(procTime))
}

// NewServerService builds the qwserv service from the loaded config.
func NewServerService(conf *config.Config) *service.Service {
	rh, err := NewRequestHandler(conf)
	if err != nil {
		glog.Fatalf("handler: %s", err)
	}
	s := service.NewService(conf.Config, rh)

	stats.SetListeners(s.GetListeners())
	return s
}
