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

package util

import (
	"sync"
)

// BytePool hands out fixed-capacity byte buffers. Buffers returned by Get
// are restored to full capacity on Put, so a caller may reslice freely
// while it holds one.
type BytePool interface {
	Get() []byte
	Put([]byte)
}

type SyncBytePool struct {
	pool sync.Pool
	size int
}

func NewSyncBytePool(size int) BytePool {
	p := &SyncBytePool{size: size}
	p.pool.New = func() interface{} { return make([]byte, size) }
	return p
}

func (p *SyncBytePool) Get() []byte {
	if buf, ok := p.pool.Get().([]byte); ok {
		return buf
	}
	return make([]byte, p.size)
}

func (p *SyncBytePool) Put(buf []byte) {
	p.pool.Put(buf[:cap(buf)])
}
