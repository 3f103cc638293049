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
)

// ServiceEndpoint identifies one network address a peer listens on or a
// client connects to.
type ServiceEndpoint struct {
	Addr    string
	Network string
}

func (e *ServiceEndpoint) Validate() error {
	if len(e.Addr) == 0 {
		return fmt.Errorf("endpoint address not specified")
	}
	return nil
}

func (e *ServiceEndpoint) GetNetwork() string {
	if len(e.Network) == 0 {
		return "tcp"
	}
	return e.Network
}

func (e *ServiceEndpoint) GetConnString() string {
	return e.Addr
}

func (e *ServiceEndpoint) SetFromConnString(connStr string) error {
	e.Addr = connStr
	return e.Validate()
}

// ListenerConfig configures one listening endpoint. MaxConnections, when
// positive, caps the number of concurrently served connections.
type ListenerConfig struct {
	ServiceEndpoint
	Name           string
	MaxConnections int
}
