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

type ProtocolError struct {
	what string
}

const (
	kMarkerByte  = 0xEF
	kMarkerSize  = 1
	kLongFormTag = 0x7F // word counts below this use the short form

	kWordSize        = 4
	kShortHeaderSize = 1
	kLongHeaderSize  = 4

	kMaxWordCount = 1<<24 - 1 // long form length field is 24 bits
)

// Sizes the connection layer needs when peeking at buffered input.
const (
	MarkerSize    = kMarkerSize
	WordSize      = kWordSize
	MaxHeaderSize = kLongHeaderSize
)

var (
	// ErrMissingBytes is the backpressure signal from the decode path: the
	// input window does not yet hold a complete unit. Callers retain their
	// unconsumed bytes and retry once more arrive. It is not a failure and
	// read loops do not log it.
	ErrMissingBytes = &ProtocolError{"need more bytes"}

	// ErrInvalidMarker reports a stream whose first byte is not the
	// transport marker. The connection cannot be recovered.
	ErrInvalidMarker = &ProtocolError{"invalid stream marker"}

	// ErrFrameTooLarge reports an envelope whose payload exceeds the limit
	// the connection layer enforces.
	ErrFrameTooLarge = &ProtocolError{"envelope exceeds size limit"}
)

func NewProtocolError(err error) *ProtocolError {
	return &ProtocolError{
		what: err.Error(),
	}
}

func (e *ProtocolError) Error() string {
	return "ProtocolError: " + e.what
}
