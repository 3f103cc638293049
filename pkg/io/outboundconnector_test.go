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
	"bytes"
	"context"
	"testing"
	"time"

	"quadwire/pkg/errors"
	"quadwire/pkg/util"
)

func startTestProcessor(t *testing.T, addr string, cfg *OutboundConfig) *OutboundProcessor {
	t.Helper()
	cfg.SetDefaultIfNotDefined()
	var endpoint ServiceEndpoint
	if err := endpoint.SetFromConnString(addr); err != nil {
		t.Fatalf("endpoint: %s", err)
	}
	proc := NewOutboundProcessor(endpoint, cfg)
	proc.Start()
	t.Cleanup(func() {
		proc.Shutdown()
		proc.WaitShutdown()
	})

	deadline := time.Now().Add(3 * time.Second)
	for !proc.GetIsConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("no connection to %s", addr)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return proc
}

func sendAndWait(t *testing.T, proc *OutboundProcessor, payload []byte, timeout time.Duration) IResponseContext {
	t.Helper()
	req := NewOutboundRequestContext(context.Background(), payload)
	if err := proc.SendRequest(req); err != nil {
		t.Fatalf("SendRequest: %s", err)
	}
	select {
	case resp := <-req.GetResponseCh():
		return resp
	case <-time.After(timeout):
		t.Fatalf("no response within %s", timeout)
		return nil
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	inCfg := InboundConfig{}
	_, addr := startTestListener(t, &inCfg, &echoTestHandler{})

	outCfg := OutboundConfig{}
	proc := startTestProcessor(t, addr, &outCfg)

	payload := []byte{0, 0xDE, 0xAD, 0xBE}
	resp := sendAndWait(t, proc, payload, 3*time.Second)
	defer resp.OnComplete()

	if resp.GetStatus() != errors.KErrNoError {
		t.Fatalf("status = %d, want %d", resp.GetStatus(), errors.KErrNoError)
	}
	if !bytes.Equal(resp.GetEncoded(), payload) {
		t.Errorf("payload = % x, want % x", resp.GetEncoded(), payload)
	}
}

func TestOutboundPipelinedOrder(t *testing.T) {
	inCfg := InboundConfig{}
	_, addr := startTestListener(t, &inCfg, &echoTestHandler{})

	outCfg := OutboundConfig{}
	proc := startTestProcessor(t, addr, &outCfg)

	// first the slowest, then progressively faster handlers
	reqs := make([]*OutboundRequestContext, 3)
	payloads := [][]byte{
		{12, 1, 0, 0},
		{6, 2, 0, 0},
		{0, 3, 0, 0},
	}
	for i, p := range payloads {
		reqs[i] = NewOutboundRequestContext(context.Background(), p)
		if err := proc.SendRequest(reqs[i]); err != nil {
			t.Fatalf("SendRequest %d: %s", i, err)
		}
	}
	for i, req := range reqs {
		select {
		case resp := <-req.GetResponseCh():
			if resp.GetStatus() != errors.KErrNoError {
				t.Fatalf("response %d status = %d", i, resp.GetStatus())
			}
			if !bytes.Equal(resp.GetEncoded(), payloads[i]) {
				t.Fatalf("response %d = % x, want % x", i, resp.GetEncoded(), payloads[i])
			}
			resp.OnComplete()
		case <-time.After(3 * time.Second):
			t.Fatalf("response %d missing", i)
		}
	}
}

func TestOutboundResponseTimeoutClosesConn(t *testing.T) {
	// the server never answers, so the pending request must expire and
	// the connection be replaced
	inCfg := InboundConfig{RequestTimeout: util.Duration{Duration: 5 * time.Second}}
	_, addr := startTestListener(t, &inCfg, &muteTestHandler{})

	outCfg := OutboundConfig{ResponseTimeout: util.Duration{Duration: 200 * time.Millisecond}}
	proc := startTestProcessor(t, addr, &outCfg)

	req := NewOutboundRequestContext(context.Background(), []byte{0, 0, 0, 0})
	if err := proc.SendRequest(req); err != nil {
		t.Fatalf("SendRequest: %s", err)
	}
	select {
	case resp := <-req.GetResponseCh():
		if resp.GetStatus() != errors.KErrResponseTimeout {
			t.Errorf("status = %d, want %d", resp.GetStatus(), errors.KErrResponseTimeout)
		}
		resp.OnComplete()
	case <-time.After(5 * time.Second):
		t.Fatal("expired request never answered")
	}
}

func TestOutboundNoConnection(t *testing.T) {
	outCfg := OutboundConfig{}
	outCfg.SetDefaultIfNotDefined()
	var endpoint ServiceEndpoint
	endpoint.SetFromConnString("127.0.0.1:1") // nothing listens here
	proc := NewOutboundProcessor(endpoint, &outCfg)
	proc.Start()
	defer func() {
		proc.Shutdown()
		proc.WaitShutdown()
	}()

	req := NewOutboundRequestContext(context.Background(), []byte{1, 2, 3, 4})
	if err := proc.SendRequest(req); err != errors.ErrNoConnection {
		t.Errorf("SendRequest = %v, want %v", err, errors.ErrNoConnection)
	}
	req.OnComplete()
}
