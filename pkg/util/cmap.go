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

	"github.com/golang/glog"
	"github.com/spaolacci/murmur3"
)

type MapPartition struct {
	sync.RWMutex
	data map[string]interface{}
}

// CMap is a string-keyed map sharded over partitionsCount partitions, each
// guarded by its own RWMutex, to keep lock contention low under concurrent
// readers and writers.
type CMap struct {
	partitions      []*MapPartition
	partitionsCount uint32
}

func NewCMap(partitionsCount uint32) *CMap {
	m := new(CMap)
	m.partitionsCount = partitionsCount
	m.partitions = make([]*MapPartition, partitionsCount)
	for i := 0; i < int(partitionsCount); i++ {
		m.partitions[i] = &MapPartition{data: make(map[string]interface{})}
	}
	return m
}

func (m *CMap) getPartition(key string) *MapPartition {
	partitionNo := murmur3.Sum32([]byte(key)) % uint32(m.partitionsCount)
	return m.partitions[partitionNo]
}

func (m *CMap) Put(key []byte, value interface{}) {
	keyStr := string(key)
	glog.V(2).Infof("CMAP Put >> key:%X", key)
	partition := m.getPartition(keyStr)
	partition.Lock()
	partition.data[keyStr] = value
	partition.Unlock()
}

func (m *CMap) Get(key []byte) (interface{}, bool) {
	keyStr := string(key)
	partition := m.getPartition(keyStr)
	partition.RLock()
	val, present := partition.data[keyStr]
	partition.RUnlock()
	return val, present
}

func (m *CMap) Delete(key []byte) {
	keyStr := string(key)
	partition := m.getPartition(keyStr)
	partition.Lock()
	delete(partition.data, keyStr)
	partition.Unlock()
}

func (m *CMap) PutIfAbsent(key []byte, value interface{}) (interface{}, bool) {
	keyStr := string(key)
	partition := m.getPartition(keyStr)
	partition.Lock() //can't use read lock and upgrade atomically
	curValue, present := partition.data[keyStr]
	if !present {
		partition.data[keyStr] = value
	}
	partition.Unlock()
	return curValue, !present
}

// Range calls f for every key/value pair until f returns false. Each
// partition is read-locked only while being walked.
func (m *CMap) Range(f func(key string, value interface{}) bool) {
	for i := 0; i < int(m.partitionsCount); i++ {
		p := m.partitions[i]
		p.RLock()
		for key, value := range p.data {
			if !f(key, value) {
				p.RUnlock()
				return
			}
		}
		p.RUnlock()
	}
}
