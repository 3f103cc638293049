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
	"sync"
	"time"

	"github.com/golang/glog"
)

// InboundConnManager tracks the live connectors of a listener so a
// shutdown can stop them and wait for their write loops to drain.
type InboundConnManager struct {
	mtx          sync.Mutex
	wg           sync.WaitGroup
	trackedConns map[*Connector]struct{}
}

func (m *InboundConnManager) TrackConn(c *Connector, add bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.trackedConns == nil {
		m.trackedConns = make(map[*Connector]struct{})
	}
	if add {
		m.trackedConns[c] = struct{}{}
		m.wg.Add(1)
	} else {
		if _, found := m.trackedConns[c]; found {
			delete(m.trackedConns, c)
			m.wg.Done()
		}
	}
}

func (m *InboundConnManager) GetNumConnections() uint32 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return uint32(len(m.trackedConns))
}

// Shutdown asks every tracked connector to stop accepting new requests.
func (m *InboundConnManager) Shutdown() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for c := range m.trackedConns {
		c.Stop()
	}
}

func (m *InboundConnManager) WaitForShutdownToComplete(timeout time.Duration) {
	ch := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
		glog.V(1).Infof("connection shutdown wait timed out after %s", timeout)
	}
}
