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

// Package testutil provides the in-process server harness and payload
// helpers shared by the functional tests and the load driver.
package testutil

import (
	"time"

	"quadwire/pkg/io"
)

// EchoHandler answers every envelope with its own payload.
type EchoHandler struct{}

func (h *EchoHandler) Init()   {}
func (h *EchoHandler) Finish() {}

func (h *EchoHandler) Process(reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEchoResponseContext(reqCtx))
	return nil
}

func (h *EchoHandler) OnKeepAlive(c *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

// SinkHandler consumes every envelope and acknowledges with an empty one.
type SinkHandler struct{}

func (h *SinkHandler) Init()   {}
func (h *SinkHandler) Finish() {}

func (h *SinkHandler) Process(reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

func (h *SinkHandler) OnKeepAlive(c *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

// Server is an in-process framed-message server bound to a loopback
// port. It can be stopped and restarted on the same address to exercise
// client reconnect paths.
type Server struct {
	addr    string
	handler io.IRequestHandler
	lsnr    *io.Listener
}

// StartServer binds handler to an ephemeral loopback port and starts
// serving.
func StartServer(handler io.IRequestHandler) (*Server, error) {
	s := &Server{
		addr:    "127.0.0.1:0",
		handler: handler,
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	s.addr = s.lsnr.Addr().String()
	return s, nil
}

func (s *Server) start() error {
	ioConfig := &io.InboundConfig{}
	ioConfig.SetDefaultIfNotDefined()
	lsnrConfig := io.ListenerConfig{Name: "testutil"}
	lsnrConfig.Addr = s.addr

	lsnr, err := io.NewListener(lsnrConfig, ioConfig, s.handler)
	if err != nil {
		return err
	}
	s.lsnr = lsnr
	go func() {
		for {
			if err := lsnr.AcceptAndServe(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *Server) Addr() string {
	return s.addr
}

// Stop tears the server down, closing every accepted connection.
func (s *Server) Stop() {
	if s.lsnr != nil {
		s.lsnr.Close()
		s.lsnr.Shutdown()
		s.lsnr.WaitForShutdownToComplete(3 * time.Second)
		s.lsnr = nil
	}
}

// Restart binds a fresh listener on the same address after Stop. The
// port may still be in TIME_WAIT for a moment, so binding is retried
// briefly.
func (s *Server) Restart() (err error) {
	for i := 0; i < 50; i++ {
		if err = s.start(); err == nil {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return err
}
