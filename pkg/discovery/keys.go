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

package discovery

const (
	TagCompDelimiter = "_"
	TagEndpoint      = "ep"
)

// KeyEndpoint names one registered endpoint of a service. The service name
// must not contain the component delimiter.
func KeyEndpoint(name string, addr string) string {
	return TagEndpoint + TagCompDelimiter + name + TagCompDelimiter + addr
}

// KeyEndpointPrefix covers every endpoint registered under name.
func KeyEndpointPrefix(name string) string {
	return TagEndpoint + TagCompDelimiter + name + TagCompDelimiter
}
