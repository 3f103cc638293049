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

package main

import (
	"math/rand"
)

// RandomGen slices payloads out of a pregenerated random pool so the
// executors never spend request time on generating bytes.
type RandomGen struct {
	pool       []byte
	randNum    *rand.Rand
	payloadLen int
	tp         int
	isVariable bool
}

func (p *RandomGen) createPayload() []byte {
	start := rand.Intn(p.payloadLen)
	length := p.payloadLen
	if p.isVariable {
		// normal distribution with mean payloadLen and a standard
		// deviation of 30% of it, clamped to [0, 2*payloadLen]
		length = int(p.randNum.NormFloat64()*float64(p.payloadLen)*0.3 + float64(p.payloadLen))
		if length < 0 {
			length *= -1
		}
		if length > 2*p.payloadLen {
			length = 2 * p.payloadLen
		}
	}
	return p.pool[start : start+length]
}

func (p *RandomGen) getThroughPut() int {
	if p.isVariable {
		return int(p.randNum.NormFloat64()*float64(p.tp)*0.3 + float64(p.tp))
	}
	return p.tp
}
