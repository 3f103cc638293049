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

package service

import (
	"bytes"
	goio "io"
	"net"
	"testing"
	"time"

	"quadwire/pkg/io"
)

type echoHandler struct{}

func (h *echoHandler) Init()   {}
func (h *echoHandler) Finish() {}

func (h *echoHandler) Process(reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEchoResponseContext(reqCtx))
	return nil
}

func (h *echoHandler) OnKeepAlive(c *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

// reserveAddr grabs a free loopback port and releases it so the service
// under test can bind it.
func reserveAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %s", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServiceEchoRoundTrip(t *testing.T) {
	addr := reserveAddr(t)

	var cfg Config
	cfg.Listener = []io.ListenerConfig{{ServiceEndpoint: io.ServiceEndpoint{Addr: addr}, Name: DefaultListenerName}}

	svc := NewService(cfg, &echoHandler{})
	done := make(chan struct{})
	go func() {
		svc.Run()
		close(done)
	}()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	// Stream marker, one-word envelope carrying "ping".
	if _, err := conn.Write([]byte{0xEF, 0x01, 'p', 'i', 'n', 'g'}); err != nil {
		t.Fatalf("write: %s", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make([]byte, 6)
	if _, err := goio.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %s", err)
	}
	want := []byte{0xEF, 0x01, 'p', 'i', 'n', 'g'}
	if !bytes.Equal(got, want) {
		t.Errorf("response = %v, want %v", got, want)
	}

	svc.Shutdown()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("service did not stop after Shutdown")
	}
}

func TestConfigGetIoConfig(t *testing.T) {
	var cfg Config
	cfg.IO = io.InboundConfigMap{
		DefaultListenerName: io.DefaultInboundConfig,
		"admin":             {MaxPendingQueSize: 17},
	}

	lsnr := &io.ListenerConfig{Name: "admin"}
	if got := cfg.GetIoConfig(lsnr); got.MaxPendingQueSize != 17 {
		t.Errorf("MaxPendingQueSize = %d, want 17", got.MaxPendingQueSize)
	}
	lsnr = &io.ListenerConfig{Name: "data"}
	if got := cfg.GetIoConfig(lsnr); got.MaxPendingQueSize != io.DefaultInboundConfig.MaxPendingQueSize {
		t.Errorf("unnamed listener did not fall back to the default entry")
	}
	if got := cfg.GetIoConfig(nil); got.MaxPendingQueSize != io.DefaultInboundConfig.MaxPendingQueSize {
		t.Errorf("nil listener did not fall back to package defaults")
	}
}

func TestConfigSetListeners(t *testing.T) {
	var cfg Config
	cfg.SetListeners([]string{"5080", "127.0.0.1:5090"})
	if len(cfg.Listener) != 2 {
		t.Fatalf("len(Listener) = %d, want 2", len(cfg.Listener))
	}
	if cfg.Listener[0].Addr != ":5080" {
		t.Errorf("Listener[0].Addr = %q, want %q", cfg.Listener[0].Addr, ":5080")
	}
	if cfg.Listener[1].Addr != "127.0.0.1:5090" {
		t.Errorf("Listener[1].Addr = %q, want %q", cfg.Listener[1].Addr, "127.0.0.1:5090")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %s", err)
	}
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err == nil {
		t.Error("Validate passed with no listener")
	}
}
