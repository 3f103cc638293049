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
	"net"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/netutil"

	"quadwire/pkg/logging"
	"quadwire/pkg/logging/otel"
	"quadwire/pkg/util"
)

type IListener interface {
	GetName() string
	GetConnString() string
	GetNumActiveConnections() uint32
	AcceptAndServe() error
	Close()
	Shutdown()
	WaitForShutdownToComplete(time.Duration)
}

type Listener struct {
	config      ListenerConfig
	ioConfig    *InboundConfig
	netListener net.Listener
	connMgr     InboundConnManager
	reqCounter  util.AtomicCounter
	reqHandler  IRequestHandler
}

// NewListener opens the listening socket described by config. Connections
// accepted from it are served by reqHandler under ioConfig.
func NewListener(config ListenerConfig, ioConfig *InboundConfig, reqHandler IRequestHandler) (*Listener, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ln, err := net.Listen(config.GetNetwork(), config.Addr)
	if err != nil {
		return nil, err
	}
	if config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, config.MaxConnections)
	}
	l := &Listener{
		config:      config,
		ioConfig:    ioConfig,
		netListener: ln,
		reqHandler:  reqHandler,
	}
	glog.Infof("listener %s on %s", config.Name, config.Addr)
	return l, nil
}

func (l *Listener) GetName() string {
	return l.config.Name
}

func (l *Listener) GetConnString() string {
	return l.config.GetConnString()
}

// Addr reports the bound address, which differs from the configured one
// when the listener was opened on port 0.
func (l *Listener) Addr() net.Addr {
	return l.netListener.Addr()
}

func (l *Listener) GetNumActiveConnections() uint32 {
	return l.connMgr.GetNumConnections()
}

func (l *Listener) GetReqCounter() *util.AtomicCounter {
	return &l.reqCounter
}

// AcceptAndServe accepts one connection and starts its connector. The
// caller loops over it; an error from the closed listener ends the loop.
func (l *Listener) AcceptAndServe() error {
	conn, err := l.netListener.Accept()
	if err == nil {
		otel.RecordCount(otel.Accept, []otel.Tags{{TagName: otel.Endpoint, TagValue: l.config.Name}})
		l.startNewConnector(conn)
	}
	return err
}

func (l *Listener) startNewConnector(conn net.Conn) {
	c := NewConnector(conn, l.reqHandler, &l.reqCounter, l.ioConfig, &l.connMgr)
	if glog.V(1) {
		b := logging.NewKVBufferForLog()
		b.AddConnId(c.connId).AddListener(l.config.Name).AddRemoteAddr(conn.RemoteAddr().String())
		glog.Infof("accept %v", b)
	}
	c.Start()
}

// Close stops accepting. Established connections keep running.
func (l *Listener) Close() {
	l.netListener.Close()
}

// Shutdown stops every established connection after its in-flight
// requests drain.
func (l *Listener) Shutdown() {
	l.connMgr.Shutdown()
}

func (l *Listener) WaitForShutdownToComplete(timeout time.Duration) {
	l.connMgr.WaitForShutdownToComplete(timeout)
}
