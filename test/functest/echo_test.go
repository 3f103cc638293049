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

package functest

import (
	"bytes"
	"testing"

	"quadwire/test/testutil"
)

func TestEchoRoundTrip(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), false)

	payload := testutil.NewPayload(256)
	value, err := cli.Call(payload)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Fatalf("value differs from payload, len %d vs %d", len(value), len(payload))
	}
	if err := testutil.VerifyChecksum(value); err != nil {
		t.Fatal(err)
	}
}

// Sizes chosen so the encoded envelopes land on both sides of the
// 127-word boundary between the 1-byte and 4-byte header forms.
func TestEchoAcrossHeaderBoundary(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), false)

	for _, n := range []int{496, 500, 504, 508, 1024} {
		payload := testutil.NewPayload(n - 4) // trailer pads back to n
		value, err := cli.Call(payload)
		if err != nil {
			t.Fatalf("call len %d: %s", len(payload), err)
		}
		if !bytes.Equal(value, payload) {
			t.Errorf("value differs for len %d", len(payload))
		}
	}
}

func TestEchoLargePayload(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), false)

	payload := testutil.NewPayload(256 * 1024)
	value, err := cli.Call(payload)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Fatal("large value differs from payload")
	}
}

func TestEchoCompressed(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), true)

	// repetitive data so compression actually kicks in
	payload := testutil.WithChecksum(bytes.Repeat([]byte("quadwire "), 1024))
	value, err := cli.Call(payload)
	if err != nil {
		t.Fatalf("call: %s", err)
	}
	if !bytes.Equal(value, payload) {
		t.Fatal("compressed value differs from payload")
	}
	if err := testutil.VerifyChecksum(value); err != nil {
		t.Fatal(err)
	}
}

func TestEchoPipelined(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), false)

	payloads := make([][]byte, 32)
	for i := range payloads {
		payloads[i] = testutil.NewPayload(16 + 8*i)
	}
	// answers must come back in submission order
	for _, p := range payloads {
		value, err := cli.Call(p)
		if err != nil {
			t.Fatalf("call: %s", err)
		}
		if !bytes.Equal(value, p) {
			t.Fatal("value differs from payload")
		}
	}
}

func TestPingOverLiveConnection(t *testing.T) {
	cli := newClient(t, echoServer.Addr(), false)
	for i := 0; i < 5; i++ {
		if err := cli.Ping(); err != nil {
			t.Fatalf("ping %d: %s", i, err)
		}
	}
}
