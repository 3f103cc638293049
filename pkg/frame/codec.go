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
	"fmt"

	"quadwire/pkg/util"
)

// Codec frames and deframes payloads for one direction of a connection.
// The only state carried across calls is whether the stream marker has been
// written; everything else is a pure function of the call's input. A Codec
// is not safe for concurrent use and must be owned by the single goroutine
// driving its direction.
type Codec struct {
	initialized bool
}

func NewCodec() *Codec {
	return &Codec{}
}

// Pack appends one envelope carrying payload to out. The first call after
// NewCodec or Reset also prepends the one-time stream marker. payload must
// be word-aligned; Pack panics otherwise, as a misaligned payload is a
// caller bug rather than a runtime condition (callers shape arbitrary data
// with Payload).
//
// Word counts at or above 1<<24 do not fit the long form length field and
// wrap silently. That is an accepted bound of the wire format and is not
// guarded here.
func (c *Codec) Pack(payload []byte, out *util.PPBuffer) {
	szPayload := len(payload)
	if szPayload%kWordSize != 0 {
		panic(fmt.Sprintf("frame: payload length %d is not a multiple of %d", szPayload, kWordSize))
	}
	if !c.initialized {
		out.WriteByte(kMarkerByte)
		c.initialized = true
	}

	wordCount := szPayload / kWordSize
	if wordCount < kLongFormTag {
		out.WriteByte(byte(wordCount))
	} else {
		var header [kLongHeaderSize]byte
		header[0] = kLongFormTag
		header[1] = byte(wordCount)
		header[2] = byte(wordCount >> 8)
		header[3] = byte(wordCount >> 16)
		out.Write(header[:])
	}
	out.Write(payload)
}

// PackedLen returns the exact number of bytes the next Pack call will
// append for a payload of szPayload bytes, the pending stream marker
// included. Callers use it to presize output buffers.
func (c *Codec) PackedLen(szPayload int) int {
	n := kShortHeaderSize + szPayload
	if szPayload/kWordSize >= kLongFormTag {
		n = kLongHeaderSize + szPayload
	}
	if !c.initialized {
		n += kMarkerSize
	}
	return n
}

// Unpack decodes the first complete envelope in input, appending its
// payload bytes unchanged to out. It returns the number of input bytes
// consumed; the caller advances its read cursor by exactly that amount and
// resubmits anything beyond it together with later reads. ErrMissingBytes
// means input does not yet hold a complete envelope; an envelope is never
// consumed partially.
//
// Unpack is a pure function of input and ignores the marker state. The
// peer's stream marker is not envelope framing and must be stripped before
// the first call (see StripMarker).
func (c *Codec) Unpack(input []byte, out *util.PPBuffer) (int, error) {
	headerLen, szPayload, err := EnvelopeLen(input)
	if err != nil {
		return 0, err
	}
	if len(input) < headerLen+szPayload {
		return 0, ErrMissingBytes
	}
	out.Write(input[headerLen : headerLen+szPayload])
	return headerLen + szPayload, nil
}

// Reset clears the marker state so the next Pack emits the stream marker
// again. The connection layer calls it when a new physical connection
// replaces a torn down one.
func (c *Codec) Reset() {
	c.initialized = false
}

// EnvelopeLen reads the header of the envelope starting at input[0] and
// returns the header length and the payload byte length, consuming
// nothing. ErrMissingBytes means the header itself is not complete yet.
// The connection layer peeks with it to enforce size limits before
// buffering a large envelope.
func EnvelopeLen(input []byte) (headerLen int, szPayload int, err error) {
	if len(input) == 0 {
		err = ErrMissingBytes
		return
	}
	if input[0] < kLongFormTag {
		headerLen = kShortHeaderSize
		szPayload = int(input[0]) * kWordSize
		return
	}
	if len(input) < kLongHeaderSize {
		err = ErrMissingBytes
		return
	}
	headerLen = kLongHeaderSize
	// 24-bit little-endian word count
	wordCount := int(input[1]) | int(input[2])<<8 | int(input[3])<<16
	szPayload = wordCount * kWordSize
	return
}

// StripMarker validates and consumes the peer's one-time stream marker at
// the head of input. The reading side calls it once per connection before
// envelope decode begins; the marker is not part of any envelope.
func StripMarker(input []byte) (int, error) {
	if len(input) == 0 {
		return 0, ErrMissingBytes
	}
	if input[0] != kMarkerByte {
		return 0, ErrInvalidMarker
	}
	return kMarkerSize, nil
}
