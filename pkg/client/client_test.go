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

package client_test

import (
	"bytes"
	"testing"
	"time"

	"quadwire/pkg/client"
	"quadwire/pkg/io"
)

type echoHandler struct{}

func (h *echoHandler) Init()   {}
func (h *echoHandler) Finish() {}

func (h *echoHandler) OnKeepAlive(c *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

func (h *echoHandler) Process(reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEchoResponseContext(reqCtx))
	return nil
}

// muteHandler never replies; every call runs into its timeout.
type muteHandler struct{}

func (h *muteHandler) Init()   {}
func (h *muteHandler) Finish() {}

func (h *muteHandler) OnKeepAlive(c *io.Connector, reqCtx io.IRequestContext) error {
	return nil
}

func (h *muteHandler) Process(reqCtx io.IRequestContext) error {
	return nil
}

func startServer(t *testing.T, addr string, handler io.IRequestHandler) *io.Listener {
	t.Helper()
	ioConfig := &io.InboundConfig{}
	ioConfig.SetDefaultIfNotDefined()
	lsnrConfig := io.ListenerConfig{Name: "test"}
	lsnrConfig.Addr = addr
	lsnr, err := io.NewListener(lsnrConfig, ioConfig, handler)
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	go func() {
		for {
			if err := lsnr.AcceptAndServe(); err != nil {
				return
			}
		}
	}()
	return lsnr
}

func startServerWithCleanup(t *testing.T, handler io.IRequestHandler) string {
	t.Helper()
	lsnr := startServer(t, "127.0.0.1:0", handler)
	t.Cleanup(func() {
		lsnr.Close()
		lsnr.Shutdown()
		lsnr.WaitForShutdownToComplete(3 * time.Second)
	})
	return lsnr.Addr().String()
}

func newTestClient(t *testing.T, addr string, compress bool) client.IClient {
	t.Helper()
	var conf client.Config
	conf.SetDefault()
	conf.Server.Addr = addr
	conf.Compress = compress
	cli, err := client.New(conf)
	if err != nil {
		t.Fatalf("new client: %s", err)
	}
	t.Cleanup(cli.Close)
	return cli
}

func TestCallEchoRoundTrip(t *testing.T) {
	addr := startServerWithCleanup(t, &echoHandler{})
	cli := newTestClient(t, addr, false)

	payload := []byte("hello quadwire")
	value, err := cli.Call(payload)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Errorf("value = %q, want %q", value, payload)
	}

	// payloads of every pad width survive the word alignment
	for n := 1; n <= 5; n++ {
		payload = bytes.Repeat([]byte{byte(n)}, n)
		if value, err = cli.Call(payload); err != nil {
			t.Fatalf("call len %d: %s", n, err)
		}
		if !bytes.Equal(value, payload) {
			t.Errorf("value len %d = % x, want % x", n, value, payload)
		}
	}
}

func TestCallCompressed(t *testing.T) {
	addr := startServerWithCleanup(t, &echoHandler{})
	cli := newTestClient(t, addr, true)

	// repetitive, so the snappy path is actually taken
	payload := bytes.Repeat([]byte("quadwire "), 512)
	value, err := cli.Call(payload)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Error("compressed round trip corrupted the value")
	}

	// incompressible values fall back to the clear tag transparently
	payload = []byte{9, 111, 3, 77, 201, 8, 255, 0, 13, 42}
	if value, err = cli.Call(payload); err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Error("incompressible round trip corrupted the value")
	}
}

func TestCallEmptyValue(t *testing.T) {
	addr := startServerWithCleanup(t, &echoHandler{})
	cli := newTestClient(t, addr, false)

	value, err := cli.Call(nil)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if len(value) != 0 {
		t.Errorf("value = % x, want empty", value)
	}
}

func TestPing(t *testing.T) {
	addr := startServerWithCleanup(t, &echoHandler{})
	cli := newTestClient(t, addr, false)

	if err := cli.Ping(); err != nil {
		t.Fatalf("ping: %s", err)
	}
}

func TestCallAfterClose(t *testing.T) {
	addr := startServerWithCleanup(t, &echoHandler{})
	cli := newTestClient(t, addr, false)

	cli.Close()
	if _, err := cli.Call([]byte("late")); err != client.ErrClosed {
		t.Errorf("Call after Close = %v, want %v", err, client.ErrClosed)
	}
	if err := cli.Ping(); err != client.ErrClosed {
		t.Errorf("Ping after Close = %v, want %v", err, client.ErrClosed)
	}
}

func TestCallNoServer(t *testing.T) {
	cli, err := client.NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("new client: %s", err)
	}
	defer cli.Close()

	_, err = cli.Call([]byte("nobody listens"))
	if err == nil {
		t.Fatal("no error without a server")
	}
	if r, ok := err.(client.IRetryable); !ok || !r.Retryable() {
		t.Errorf("connect failure not retryable: %v", err)
	}
}

func TestCallResponseTimeout(t *testing.T) {
	addr := startServerWithCleanup(t, &muteHandler{})

	var conf client.Config
	conf.SetDefault()
	conf.Server.Addr = addr
	conf.ResponseTimeout.Duration = 200 * time.Millisecond
	conf.RequestTimeout.Duration = 2 * time.Second
	cli, err := client.New(conf)
	if err != nil {
		t.Fatalf("new client: %s", err)
	}
	defer cli.Close()

	start := time.Now()
	if _, err = cli.Call([]byte("mute")); err != client.ErrResponseTimeout {
		t.Fatalf("err = %v, want %v", err, client.ErrResponseTimeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestCallGuardTimeout(t *testing.T) {
	addr := startServerWithCleanup(t, &muteHandler{})

	var conf client.Config
	conf.SetDefault()
	conf.Server.Addr = addr
	conf.ResponseTimeout.Duration = 2 * time.Second
	cli, err := client.New(conf)
	if err != nil {
		t.Fatalf("new client: %s", err)
	}
	defer cli.Close()

	start := time.Now()
	if _, err = cli.CallWithTimeout([]byte("mute"), 100*time.Millisecond); err != client.ErrResponseTimeout {
		t.Fatalf("err = %v, want %v", err, client.ErrResponseTimeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("guard took %s", elapsed)
	}
}

// TestCallServerBounce restarts the server under a live client: the next
// calls must come back once a fresh connection, marker included, is up.
func TestCallServerBounce(t *testing.T) {
	lsnr := startServer(t, "127.0.0.1:0", &echoHandler{})
	addr := lsnr.Addr().String()
	cli := newTestClient(t, addr, false)

	payload := []byte("still there?")
	if _, err := cli.Call(payload); err != nil {
		t.Fatalf("call before bounce: %s", err)
	}

	lsnr.Close()
	lsnr.Shutdown()
	lsnr.WaitForShutdownToComplete(3 * time.Second)

	if _, err := cli.Call(payload); err == nil {
		t.Fatal("call succeeded with the server down")
	} else if r, ok := err.(client.IRetryable); !ok || !r.Retryable() {
		t.Fatalf("failure during bounce not retryable: %v", err)
	}

	lsnr = startServer(t, addr, &echoHandler{})
	defer func() {
		lsnr.Close()
		lsnr.Shutdown()
		lsnr.WaitForShutdownToComplete(3 * time.Second)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		value, err := cli.Call(payload)
		if err == nil {
			if !bytes.Equal(value, payload) {
				t.Fatalf("value after bounce = %q, want %q", value, payload)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("client did not recover: %s", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
