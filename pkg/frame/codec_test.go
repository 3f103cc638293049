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

package frame

import (
	"bytes"
	"testing"

	"quadwire/pkg/util"
)

func newTestPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	return payload
}

func TestPackEmptyPayload(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer
	codec.Pack(nil, &out)
	if !bytes.Equal(out.Bytes(), []byte{0xEF, 0}) {
		t.Errorf("packed empty payload = % x, expect ef 00", out.Bytes())
	}
}

func TestPackShortForm(t *testing.T) {
	payload := newTestPayload(128)
	codec := NewCodec()
	var out util.PPBuffer
	codec.Pack(payload, &out)

	packed := out.Bytes()
	if len(packed) != 2+len(payload) {
		t.Fatalf("packed length = %d, expect %d", len(packed), 2+len(payload))
	}
	if packed[0] != 0xEF || packed[1] != 32 {
		t.Errorf("marker+header = % x, expect ef 20", packed[:2])
	}
	if !bytes.Equal(packed[2:], payload) {
		t.Errorf("payload bytes altered on the wire")
	}
}

func TestPackLongForm(t *testing.T) {
	payload := newTestPayload(1024)
	codec := NewCodec()
	var out util.PPBuffer
	codec.Pack(payload, &out)

	packed := out.Bytes()
	if len(packed) != 5+len(payload) {
		t.Fatalf("packed length = %d, expect %d", len(packed), 5+len(payload))
	}
	// 1024/4 = 256 = 0x000100 little-endian
	if !bytes.Equal(packed[:5], []byte{0xEF, 0x7F, 0x00, 0x01, 0x00}) {
		t.Errorf("marker+header = % x, expect ef 7f 00 01 00", packed[:5])
	}
	if !bytes.Equal(packed[5:], payload) {
		t.Errorf("payload bytes altered on the wire")
	}
}

// 126 words is the last payload the one-byte header can express; 127 words
// must switch to the long form.
func TestPackHeaderBoundary(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer

	codec.Pack(make([]byte, 126*4), &out)
	packed := out.Bytes()
	if packed[1] != 126 {
		t.Errorf("header byte for 504-byte payload = %d, expect 126", packed[1])
	}
	if len(packed) != 1+1+504 {
		t.Errorf("short form envelope length = %d, expect %d", len(packed), 506)
	}

	out.Reset()
	codec.Pack(make([]byte, 127*4), &out)
	packed = out.Bytes()
	if !bytes.Equal(packed[:4], []byte{0x7F, 127, 0, 0}) {
		t.Errorf("header for 508-byte payload = % x, expect 7f 7f 00 00", packed[:4])
	}
	if len(packed) != 4+508 {
		t.Errorf("long form envelope length = %d, expect %d", len(packed), 512)
	}
}

func TestMarkerEmittedOnce(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer
	payload := make([]byte, 16) // zeros, so 0xEF cannot occur in the body

	for i := 0; i < 5; i++ {
		codec.Pack(payload, &out)
	}
	packed := out.Bytes()
	if n := bytes.Count(packed, []byte{0xEF}); n != 1 {
		t.Errorf("marker count across 5 packs = %d, expect 1", n)
	}
	if packed[0] != 0xEF {
		t.Errorf("first byte = %#x, expect the marker", packed[0])
	}
	if len(packed) != 1+5*(1+16) {
		t.Errorf("total output = %d bytes, expect %d", len(packed), 1+5*17)
	}
	// each following envelope starts with its own count byte
	for i := 0; i < 5; i++ {
		if packed[1+i*17] != 4 {
			t.Errorf("envelope %d header = %d, expect 4", i, packed[1+i*17])
		}
	}
}

func TestResetRearmsMarker(t *testing.T) {
	codec := NewCodec()
	payload := make([]byte, 8)
	var out util.PPBuffer

	codec.Pack(payload, &out)
	out.Reset()
	codec.Pack(payload, &out)
	if out.Bytes()[0] == 0xEF {
		t.Fatalf("second pack re-emitted the marker without Reset")
	}

	codec.Reset()
	out.Reset()
	codec.Pack(payload, &out)
	if out.Bytes()[0] != 0xEF {
		t.Errorf("pack after Reset did not re-emit the marker")
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 4, 128, 504, 508, 1024, 100000}
	for _, size := range sizes {
		payload := newTestPayload(size)
		codec := NewCodec()
		var packed, unpacked util.PPBuffer
		codec.Pack(payload, &packed)

		envelope := packed.Bytes()[1:] // strip the marker
		consumed, err := codec.Unpack(envelope, &unpacked)
		if err != nil {
			t.Fatalf("size %d: unpack: %v", size, err)
		}
		if consumed != len(envelope) {
			t.Errorf("size %d: consumed = %d, expect %d", size, consumed, len(envelope))
		}
		if !bytes.Equal(unpacked.Bytes(), payload) {
			t.Errorf("size %d: round trip altered the payload", size)
		}
	}
}

func TestUnpackEmptyInput(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer
	consumed, err := codec.Unpack(nil, &out)
	if err != ErrMissingBytes {
		t.Errorf("err = %v, expect ErrMissingBytes", err)
	}
	if consumed != 0 || out.Len() != 0 {
		t.Errorf("empty input consumed %d bytes, wrote %d", consumed, out.Len())
	}
}

func TestUnpackPartialHeader(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer
	// long form headers need four bytes before the length is known
	for _, input := range [][]byte{{0x7F}, {0x7F, 0x00}, {0x7F, 0x00, 0x01}} {
		consumed, err := codec.Unpack(input, &out)
		if err != ErrMissingBytes {
			t.Errorf("input % x: err = %v, expect ErrMissingBytes", input, err)
		}
		if consumed != 0 {
			t.Errorf("input % x: consumed = %d, expect 0", input, consumed)
		}
	}
}

func TestUnpackTruncatedPayload(t *testing.T) {
	payload := newTestPayload(128)
	codec := NewCodec()
	var packed util.PPBuffer
	codec.Pack(payload, &packed)
	envelope := packed.Bytes()[1:]

	// every strict prefix must report MissingBytes and consume nothing
	for n := 0; n < len(envelope); n++ {
		var out util.PPBuffer
		consumed, err := codec.Unpack(envelope[:n], &out)
		if err != ErrMissingBytes {
			t.Fatalf("prefix of %d bytes: err = %v, expect ErrMissingBytes", n, err)
		}
		if consumed != 0 || out.Len() != 0 {
			t.Fatalf("prefix of %d bytes: consumed %d, wrote %d", n, consumed, out.Len())
		}
	}
}

func TestUnpackBackToBack(t *testing.T) {
	first := newTestPayload(128)
	second := newTestPayload(32)
	codec := NewCodec()

	var packed util.PPBuffer
	codec.Pack(first, &packed)
	firstEnvelopeLen := packed.Len() - 1
	codec.Pack(second, &packed)
	stream := packed.Bytes()[1:]

	var out util.PPBuffer
	consumed, err := codec.Unpack(stream, &out)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if consumed != firstEnvelopeLen {
		t.Errorf("consumed = %d, expect first envelope length %d", consumed, firstEnvelopeLen)
	}
	if !bytes.Equal(out.Bytes(), first) {
		t.Errorf("first decode returned wrong payload")
	}

	out.Reset()
	if consumed, err = codec.Unpack(stream[consumed:], &out); err != nil {
		t.Fatalf("unpack second: %v", err)
	}
	if consumed != len(stream)-firstEnvelopeLen {
		t.Errorf("second consumed = %d, expect %d", consumed, len(stream)-firstEnvelopeLen)
	}
	if !bytes.Equal(out.Bytes(), second) {
		t.Errorf("second decode returned wrong payload")
	}
}

// Unpack must not touch the marker state: decoding peer envelopes first
// does not suppress this side's own marker.
func TestUnpackIgnoresMarkerState(t *testing.T) {
	codec := NewCodec()
	var out util.PPBuffer
	if _, err := codec.Unpack([]byte{1, 0, 0, 0, 0}, &out); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	out.Reset()
	codec.Pack(make([]byte, 4), &out)
	if out.Bytes()[0] != 0xEF {
		t.Errorf("unpack consumed the pending marker")
	}
}

func TestPackMisalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("pack accepted a payload of 7 bytes")
		}
	}()
	codec := NewCodec()
	var out util.PPBuffer
	codec.Pack(make([]byte, 7), &out)
}

func TestPackedLen(t *testing.T) {
	codec := NewCodec()
	sizes := []int{0, 4, 504, 508, 1024}
	for _, size := range sizes {
		expected := codec.PackedLen(size)
		var out util.PPBuffer
		codec.Pack(make([]byte, size), &out)
		if out.Len() != expected {
			t.Errorf("size %d: PackedLen = %d, Pack appended %d", size, expected, out.Len())
		}
	}
	// marker no longer pending: one byte less than a fresh codec
	if fresh := NewCodec(); fresh.PackedLen(16) != codec.PackedLen(16)+1 {
		t.Errorf("PackedLen does not account for the pending marker")
	}
}

func TestEnvelopeLen(t *testing.T) {
	headerLen, szPayload, err := EnvelopeLen([]byte{0x7F, 0x02, 0x01, 0x00})
	if err != nil {
		t.Fatalf("EnvelopeLen: %v", err)
	}
	if headerLen != 4 || szPayload != 0x0102*4 {
		t.Errorf("headerLen=%d szPayload=%d, expect 4 and %d", headerLen, szPayload, 0x0102*4)
	}

	headerLen, szPayload, err = EnvelopeLen([]byte{5})
	if err != nil || headerLen != 1 || szPayload != 20 {
		t.Errorf("short header: headerLen=%d szPayload=%d err=%v", headerLen, szPayload, err)
	}

	if _, _, err = EnvelopeLen(nil); err != ErrMissingBytes {
		t.Errorf("empty input: err = %v, expect ErrMissingBytes", err)
	}
}

func TestStripMarker(t *testing.T) {
	if n, err := StripMarker([]byte{0xEF, 0x01}); err != nil || n != 1 {
		t.Errorf("valid marker: n=%d err=%v", n, err)
	}
	if _, err := StripMarker(nil); err != ErrMissingBytes {
		t.Errorf("empty input: err = %v, expect ErrMissingBytes", err)
	}
	if _, err := StripMarker([]byte{0x00}); err != ErrInvalidMarker {
		t.Errorf("wrong byte: err = %v, expect ErrInvalidMarker", err)
	}
}
