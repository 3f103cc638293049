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

	"quadwire/pkg/logging/otel"
)

// Connect dials addr with the given timeout and records the attempt in
// the connect latency instrument.
func Connect(addr string, connectTimeout time.Duration) (conn net.Conn, err error) {
	timeStart := time.Now()
	conn, err = net.DialTimeout("tcp", addr, connectTimeout)
	elapsed := time.Since(timeStart)
	if err != nil {
		otel.RecordOutboundConnection(addr, otel.StatusError, elapsed.Microseconds())
		return nil, err
	}
	otel.RecordOutboundConnection(addr, otel.StatusSuccess, elapsed.Microseconds())
	glog.V(1).Infof("connected to %s in %s", addr, elapsed)
	return conn, nil
}

func ConnectTo(endpoint *ServiceEndpoint, connectTimeout time.Duration) (net.Conn, error) {
	timeStart := time.Now()
	conn, err := net.DialTimeout(endpoint.GetNetwork(), endpoint.Addr, connectTimeout)
	elapsed := time.Since(timeStart)
	if err != nil {
		otel.RecordOutboundConnection(endpoint.Addr, otel.StatusError, elapsed.Microseconds())
		return nil, err
	}
	otel.RecordOutboundConnection(endpoint.Addr, otel.StatusSuccess, elapsed.Microseconds())
	glog.V(1).Infof("connected to %s in %s", endpoint.Addr, elapsed)
	return conn, nil
}
