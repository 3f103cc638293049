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
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"quadwire/pkg/frame"
	"quadwire/pkg/util"
)

// echoTestHandler echoes every request. Payloads whose first byte is
// non-zero are delayed by that many tens of milliseconds, which lets a
// test force completions out of arrival order.
type echoTestHandler struct{}

func (h *echoTestHandler) Init()   {}
func (h *echoTestHandler) Finish() {}

func (h *echoTestHandler) OnKeepAlive(c *Connector, reqCtx IRequestContext) error {
	reqCtx.Reply(NewEmptyResponseContext())
	return nil
}

func (h *echoTestHandler) Process(reqCtx IRequestContext) error {
	payload := reqCtx.GetPayload()
	if len(payload) > 0 && payload[0] != 0 {
		time.Sleep(time.Duration(payload[0]) * 10 * time.Millisecond)
	}
	reqCtx.Reply(NewEchoResponseContext(reqCtx))
	return nil
}

// muteTestHandler never replies; requests pend until a timeout fires.
type muteTestHandler struct{}

func (h *muteTestHandler) Init()   {}
func (h *muteTestHandler) Finish() {}

func (h *muteTestHandler) OnKeepAlive(c *Connector, reqCtx IRequestContext) error {
	reqCtx.Reply(NewEmptyResponseContext())
	return nil
}

func (h *muteTestHandler) Process(reqCtx IRequestContext) error {
	return nil
}

func startTestListener(t *testing.T, cfg *InboundConfig, handler IRequestHandler) (*Listener, string) {
	t.Helper()
	cfg.SetDefaultIfNotDefined()
	lsnrCfg := ListenerConfig{Name: "test"}
	lsnrCfg.Addr = "127.0.0.1:0"
	lsnr, err := NewListener(lsnrCfg, cfg, handler)
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
	t.Cleanup(func() {
		lsnr.Close()
		lsnr.Shutdown()
		lsnr.WaitForShutdownToComplete(3 * time.Second)
	})
	return lsnr, lsnr.Addr().String()
}

func packEnvelope(codec *frame.Codec, payload []byte) []byte {
	var buf util.PPBuffer
	codec.Pack(payload, &buf)
	return append([]byte(nil), buf.Bytes()...)
}

// readEnvelope reads one envelope payload, stripping the stream marker
// the first time it is called on rd.
func readEnvelope(t *testing.T, rd *bufio.Reader, markerDone *bool) []byte {
	t.Helper()
	if !*markerDone {
		b, err := rd.ReadByte()
		if err != nil {
			t.Fatalf("read marker: %s", err)
		}
		if b != 0xEF {
			t.Fatalf("stream marker = %#x, want 0xEF", b)
		}
		*markerDone = true
	}
	hdr, err := rd.ReadByte()
	if err != nil {
		t.Fatalf("read header: %s", err)
	}
	wordCount := int(hdr)
	if hdr == 0x7F {
		var ext [3]byte
		if _, err = io.ReadFull(rd, ext[:]); err != nil {
			t.Fatalf("read long header: %s", err)
		}
		wordCount = int(ext[0]) | int(ext[1])<<8 | int(ext[2])<<16
	}
	payload := make([]byte, 4*wordCount)
	if _, err = io.ReadFull(rd, payload); err != nil {
		t.Fatalf("read payload: %s", err)
	}
	return payload
}

func TestInboundEchoRoundTrip(t *testing.T) {
	cfg := InboundConfig{}
	_, addr := startTestListener(t, &cfg, &echoTestHandler{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()
	rd := bufio.NewReader(conn)
	markerDone := false

	var codec frame.Codec
	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	if _, err = conn.Write(packEnvelope(&codec, payload)); err != nil {
		t.Fatalf("write: %s", err)
	}

	got := readEnvelope(t, rd, &markerDone)
	if !bytes.Equal(got, payload) {
		t.Errorf("echo = % x, want % x", got, payload)
	}
}

func TestInboundResponsesKeepArrivalOrder(t *testing.T) {
	cfg := InboundConfig{}
	_, addr := startTestListener(t, &cfg, &echoTestHandler{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()
	rd := bufio.NewReader(conn)
	markerDone := false

	// first request is the slowest, last the fastest
	var codec frame.Codec
	payloads := [][]byte{
		{15, 1, 0, 0},
		{8, 2, 0, 0},
		{0, 3, 0, 0},
	}
	var pipelined []byte
	for _, p := range payloads {
		pipelined = append(pipelined, packEnvelope(&codec, p)...)
	}
	if _, err = conn.Write(pipelined); err != nil {
		t.Fatalf("write: %s", err)
	}

	for i, want := range payloads {
		got := readEnvelope(t, rd, &markerDone)
		if !bytes.Equal(got, want) {
			t.Fatalf("response %d = % x, want % x", i, got, want)
		}
	}
}

func TestInboundKeepAlive(t *testing.T) {
	cfg := InboundConfig{}
	_, addr := startTestListener(t, &cfg, &echoTestHandler{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()
	rd := bufio.NewReader(conn)
	markerDone := false

	var codec frame.Codec
	if _, err = conn.Write(packEnvelope(&codec, nil)); err != nil {
		t.Fatalf("write: %s", err)
	}
	if got := readEnvelope(t, rd, &markerDone); len(got) != 0 {
		t.Errorf("keepalive answer carries %d payload bytes, want 0", len(got))
	}

	// the probe must not disturb request pairing
	payload := []byte{0, 9, 9, 9}
	if _, err = conn.Write(packEnvelope(&codec, payload)); err != nil {
		t.Fatalf("write: %s", err)
	}
	if got := readEnvelope(t, rd, &markerDone); !bytes.Equal(got, payload) {
		t.Errorf("echo after keepalive = % x, want % x", got, payload)
	}
}

func TestInboundClosesOnBadMarker(t *testing.T) {
	cfg := InboundConfig{}
	_, addr := startTestListener(t, &cfg, &echoTestHandler{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	if _, err = conn.Write([]byte{0x00, 0x01, 0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("write: %s", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var b [1]byte
	_, err = conn.Read(b[:])
	if nerr, ok := err.(net.Error); err == nil || (ok && nerr.Timeout()) {
		t.Errorf("connection not closed after bad marker (err=%v)", err)
	}
}

func TestInboundClosesOnOversizedEnvelope(t *testing.T) {
	cfg := InboundConfig{MaxEnvelopeSize: 64}
	_, addr := startTestListener(t, &cfg, &echoTestHandler{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	// announces 100 words (400 bytes), above the 64 byte cap
	if _, err = conn.Write([]byte{0xEF, 100}); err != nil {
		t.Fatalf("write: %s", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var b [1]byte
	_, err = conn.Read(b[:])
	if nerr, ok := err.(net.Error); err == nil || (ok && nerr.Timeout()) {
		t.Errorf("connection not closed after oversized announce (err=%v)", err)
	}
}
