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

package testutil

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"quadwire/pkg/util"
)

const kChecksumLen = 4

// NewPayload returns n random bytes followed by a 4-byte checksum
// trailer, so an echoed copy can be verified without keeping the
// original around.
func NewPayload(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return WithChecksum(b)
}

// WithChecksum returns a copy of payload with the murmur3 sum appended
// as a big-endian trailer. payload is left alone; it may alias a shared
// pool.
func WithChecksum(payload []byte) []byte {
	out := make([]byte, len(payload)+kChecksumLen)
	copy(out, payload)
	binary.BigEndian.PutUint32(out[len(payload):], util.Murmur3Hash(payload))
	return out
}

// VerifyChecksum checks the trailer WithChecksum appended.
func VerifyChecksum(b []byte) error {
	if len(b) < kChecksumLen {
		return fmt.Errorf("payload too short for a checksum trailer: %d byte(s)", len(b))
	}
	body := b[:len(b)-kChecksumLen]
	want := binary.BigEndian.Uint32(b[len(b)-kChecksumLen:])
	if got := util.Murmur3Hash(body); got != want {
		return fmt.Errorf("payload checksum mismatch: got %08x want %08x", got, want)
	}
	return nil
}
