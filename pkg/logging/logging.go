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

// Package logging assembles one-line key=value state and access records.
// The records are emitted through glog by their owners; this package only
// builds the text.
package logging

import (
	"bytes"
	"strconv"
	"time"

	"quadwire/pkg/util"
)

type KeyValueBuffer struct {
	bytes.Buffer
	delimiter     byte
	pairDelimiter byte
}

func NewKVBufferForLog() *KeyValueBuffer {
	b := &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: ',',
	}
	return b
}

func NewKVBuffer() *KeyValueBuffer {
	b := &KeyValueBuffer{
		pairDelimiter: '&',
		delimiter:     '=',
	}
	return b
}

var (
	logDataKeyConnId     []byte = []byte("cid")
	logDataKeyListener   []byte = []byte("lsnr")
	logDataKeyRemoteAddr []byte = []byte("raddr")
	logDataKeyLocalAddr  []byte = []byte("laddr")
	logDataKeyEndpoint   []byte = []byte("ep")
	logDataKeyStatus     []byte = []byte("st")
	logDataKeyError      []byte = []byte("err")
	logDataKeyElapsed    []byte = []byte("et")
	logDataKeyPayloadLen []byte = []byte("len")
	logDataKeyKey        []byte = []byte("key")

	logDataKeyTryNo []byte = []byte("try_no")
	logDropReason   []byte = []byte("drop")
)

func (b *KeyValueBuffer) AddBytes(key []byte, value []byte) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.Write(value)
	return b
}

func (b *KeyValueBuffer) Add(key []byte, value string) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.WriteString(value)
	return b
}

func (b *KeyValueBuffer) AddInt(key []byte, value int) *KeyValueBuffer {
	return b.Add(key, strconv.Itoa(value))
}

func (b *KeyValueBuffer) AddUInt64(key []byte, value uint64) *KeyValueBuffer {
	return b.Add(key, strconv.FormatUint(value, 10))
}

func (b *KeyValueBuffer) AddDuration(key []byte, value time.Duration) *KeyValueBuffer {
	return b.Add(key, value.String())
}

func (b *KeyValueBuffer) AddHexKey(key []byte) *KeyValueBuffer {
	return b.Add(logDataKeyKey, util.ToHexString(key))
}

func (b *KeyValueBuffer) AddConnId(id string) *KeyValueBuffer {
	return b.Add(logDataKeyConnId, id)
}

func (b *KeyValueBuffer) AddListener(name string) *KeyValueBuffer {
	if len(name) != 0 {
		b.Add(logDataKeyListener, name)
	}
	return b
}

func (b *KeyValueBuffer) AddRemoteAddr(addr string) *KeyValueBuffer {
	return b.Add(logDataKeyRemoteAddr, addr)
}

func (b *KeyValueBuffer) AddLocalAddr(addr string) *KeyValueBuffer {
	return b.Add(logDataKeyLocalAddr, addr)
}

func (b *KeyValueBuffer) AddEndpoint(ep string) *KeyValueBuffer {
	return b.Add(logDataKeyEndpoint, ep)
}

func (b *KeyValueBuffer) AddStatus(st string) *KeyValueBuffer {
	return b.Add(logDataKeyStatus, st)
}

func (b *KeyValueBuffer) AddError(err error) *KeyValueBuffer {
	if err != nil {
		b.Add(logDataKeyError, err.Error())
	}
	return b
}

func (b *KeyValueBuffer) AddElapsed(et time.Duration) *KeyValueBuffer {
	return b.AddDuration(logDataKeyElapsed, et)
}

// AddElapsedUs logs a handling time in microseconds, the unit the latency
// instruments use.
func (b *KeyValueBuffer) AddElapsedUs(etus int) *KeyValueBuffer {
	return b.AddInt(logDataKeyElapsed, etus)
}

func (b *KeyValueBuffer) AddPayloadLen(n int) *KeyValueBuffer {
	if n > 0 {
		b.AddInt(logDataKeyPayloadLen, n)
	}
	return b
}

func (b *KeyValueBuffer) AddDropReason(reason string) *KeyValueBuffer {
	return b.Add(logDropReason, reason)
}

func (b *KeyValueBuffer) AddDataTryNo(v int32) *KeyValueBuffer {
	b.AddInt(logDataKeyTryNo, int(v))
	return b
}
