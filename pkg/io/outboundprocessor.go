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
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/errors"
	"quadwire/pkg/util"
)

// OutboundProcessor maintains a fixed set of connections to one target
// endpoint. Requests submitted through SendRequest go onto a shared
// channel that all serving connectors pull from; broken connections are
// replaced with exponential backoff, and optionally recycled on a
// randomized interval by connecting the replacement before draining the
// old one.
type OutboundProcessor struct {
	endpoint     ServiceEndpoint
	config       *OutboundConfig
	reqCh        chan IRequestContext
	connectors   []*OutboundConnector
	connCh       chan *OutboundConnector
	monitorCh    chan *OutboundConnector
	doneCh       chan struct{}
	wg           sync.WaitGroup
	numConns     int32
	nextRecycle  int
	shutdownOnce sync.Once
}

func NewOutboundProcessor(endpoint ServiceEndpoint, config *OutboundConfig) *OutboundProcessor {
	numConns := config.NumConnsPerTarget
	if numConns <= 0 {
		numConns = 1
	}
	p := &OutboundProcessor{
		endpoint:   endpoint,
		config:     config,
		reqCh:      make(chan IRequestContext, config.ReqChanBufSize),
		connectors: make([]*OutboundConnector, numConns),
		connCh:     make(chan *OutboundConnector, numConns),
		monitorCh:  make(chan *OutboundConnector, 2*numConns+2),
		doneCh:     make(chan struct{}),
	}
	return p
}

func (p *OutboundProcessor) Start() {
	for i := range p.connectors {
		p.wg.Add(1)
		go p.connect(i, 0)
	}
	p.wg.Add(1)
	go p.run()
}

func (p *OutboundProcessor) GetConnInfo() string {
	return p.endpoint.GetConnString()
}

func (p *OutboundProcessor) GetNumConnections() int {
	return int(atomic.LoadInt32(&p.numConns))
}

func (p *OutboundProcessor) GetIsConnected() bool {
	return atomic.LoadInt32(&p.numConns) > 0
}

func (p *OutboundProcessor) GetRequestSendingQueueSize() int {
	return len(p.reqCh)
}

// SendRequest submits req for transmission. The payload must be word
// aligned. It fails fast instead of queueing when no connection is up or
// the submission queue is full.
func (p *OutboundProcessor) SendRequest(req IRequestContext) error {
	if atomic.LoadInt32(&p.numConns) <= 0 {
		return errors.ErrNoConnection
	}
	select {
	case p.reqCh <- req:
		return nil
	default:
		return errors.ErrBusy
	}
}

func (p *OutboundProcessor) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.doneCh)
	})
}

func (p *OutboundProcessor) WaitShutdown() {
	p.wg.Wait()
	for _, c := range p.connectors {
		if c != nil {
			c.WaitShutdown()
		}
	}
}

func (p *OutboundProcessor) WriteStats(w io.Writer) {
	fmt.Fprintf(w, "endpoint: %s conns: %d queued: %d\n",
		p.endpoint.Addr, p.GetNumConnections(), len(p.reqCh))
	for _, c := range p.connectors {
		if c != nil {
			c.WriteStats(w)
		}
	}
}

func (p *OutboundProcessor) run() {
	defer p.wg.Done()

	var recycleTimer *util.TimerWrapper
	var recycleCh <-chan time.Time
	if p.config.EnableConnRecycle && p.config.ConnectRecycleT.Duration > 0 {
		recycleTimer = util.NewTimerWrapper(p.getRecycleDuration())
		recycleCh = recycleTimer.GetTimeoutCh()
		defer recycleTimer.Stop()
	}

	for {
		select {
		case <-p.doneCh:
			for _, c := range p.connectors {
				if c != nil {
					c.Shutdown()
				}
			}
			return

		case c := <-p.connCh:
			old := p.connectors[c.id]
			p.connectors[c.id] = c
			c.Start()
			atomic.AddInt32(&p.numConns, 1)
			if old != nil {
				// recycle swap: the replacement is serving, drain the rest
				old.Shutdown()
			}

		case dead := <-p.monitorCh:
			atomic.AddInt32(&p.numConns, -1)
			if p.connectors[dead.id] == dead {
				p.connectors[dead.id] = nil
				glog.V(1).Infof("connection %s down, reconnecting", dead.displayName)
				p.wg.Add(1)
				go p.connect(dead.id, p.config.ReconnectIntervalBase)
			}

		case <-recycleCh:
			id := p.nextRecycle
			p.nextRecycle = (p.nextRecycle + 1) % len(p.connectors)
			if c := p.connectors[id]; c != nil && c.IsActive() {
				glog.V(1).Infof("recycling connection %s", c.displayName)
				p.wg.Add(1)
				go p.connect(id, 0)
			}
			recycleTimer.Reset(p.getRecycleDuration())
		}
	}
}

// connect dials the endpoint until it succeeds, backing off
// exponentially, and hands the new connector to the run loop.
func (p *OutboundProcessor) connect(id int, initialDelayMs int) {
	defer p.wg.Done()

	interval := initialDelayMs
	for {
		if interval > 0 {
			select {
			case <-p.doneCh:
				return
			case <-time.After(time.Duration(interval) * time.Millisecond):
			}
		} else {
			select {
			case <-p.doneCh:
				return
			default:
			}
		}

		conn, err := ConnectTo(&p.endpoint, p.config.ConnectTimeout.Duration)
		if err == nil {
			c := NewOutboundConnector(id, conn, p.reqCh, p.monitorCh, p.config)
			select {
			case p.connCh <- c:
			case <-p.doneCh:
				conn.Close()
			}
			return
		}

		if interval == 0 {
			interval = p.config.ReconnectIntervalBase
		} else {
			interval *= 2
		}
		if interval > p.config.ReconnectIntervalMax {
			interval = p.config.ReconnectIntervalMax
		}
		glog.V(1).Infof("connect %s failed (%s), retry in %dms", p.endpoint.Addr, err, interval)
	}
}

// getRecycleDuration spreads recycle times so the connections of a fleet
// do not rotate in lockstep.
func (p *OutboundProcessor) getRecycleDuration() time.Duration {
	d := p.config.ConnectRecycleT.Duration
	return d*3/4 + time.Duration(rand.Int63n(int64(d/4)))
}
