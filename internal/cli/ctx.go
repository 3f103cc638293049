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

package cli

import (
	"github.com/golang/glog"
)

// GetPayload() and GetError() are mutually exclusive: a nil error means the
// payload is the peer's answer, possibly empty.
type IResponseContext interface {
	GetPayload() []byte
	GetError() error
}

type RequestContext struct {
	payload    []byte
	chResponse chan IResponseContext
}

type ResponseContext struct {
	payload []byte
}

type ErrResponseContext struct {
	err error
}

// ReaderResponse is what the response reader hands to the request
// processor: one decoded envelope payload, or the read error that ended
// the stream.
type ReaderResponse struct {
	payload []byte
	err     error
}

func NewReaderResponse(payload []byte) *ReaderResponse {
	return &ReaderResponse{payload: payload}
}

func NewErrorReaderResponse(err error) *ReaderResponse {
	return &ReaderResponse{err: err}
}

func NewRequestContext(payload []byte, chResponse chan IResponseContext) *RequestContext {
	return &RequestContext{
		payload:    payload,
		chResponse: chResponse,
	}
}

func (r *ResponseContext) GetPayload() []byte {
	return r.payload
}

func (r *ResponseContext) GetError() error {
	return nil
}

func (r *ErrResponseContext) GetPayload() []byte {
	return nil
}

func (r *ErrResponseContext) GetError() error {
	return r.err
}

func (r *RequestContext) GetPayload() []byte {
	return r.payload
}

func (r *RequestContext) Reply(payload []byte) {
	r.chResponse <- &ResponseContext{payload: payload}
}

func (r *RequestContext) ReplyError(err error) {
	if glog.V(2) {
		glog.InfoDepth(1, err)
	}
	r.chResponse <- &ErrResponseContext{err: err}
}
