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
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/client"
	"quadwire/test/testutil"
)

const (
	kRequestTypeCall RequestType = iota
	kRequestTypeVerify
	kRequestTypePing
	kNumRequestTypes
)

type (
	RequestType uint8

	TestEngine struct {
		rdgen           *RandomGen
		reqSequence     RequestSequence
		invokeFuncs     []InvokeFunc
		client          client.IClient
		stats           *Statistics
		movingStats     *Statistics
		numReqPerSecond int
	}
	InvokeFunc func() error
)

func (t RequestType) String() (str string) {
	switch t {
	case kRequestTypeCall:
		str = "Call"
	case kRequestTypeVerify:
		str = "Verify"
	case kRequestTypePing:
		str = "Ping"
	default:
		str = "Unsupported"
	}
	return
}

func (e *TestEngine) Init() {
	e.invokeFuncs = make([]InvokeFunc, kNumRequestTypes)
	e.invokeFuncs[kRequestTypeCall] = e.invokeCall
	e.invokeFuncs[kRequestTypeVerify] = e.invokeVerify
	e.invokeFuncs[kRequestTypePing] = e.invokePing
}

func (e *TestEngine) Run(wg *sync.WaitGroup, chDone <-chan bool) {
	defer wg.Done()
	startTime := time.Now()
	numreq := 0

	for {
		for _, item := range e.reqSequence.items {
			for i := 0; i < item.numRequests; i++ {
				select {
				case <-chDone:
					return
				default:
					now := time.Now()
					err := e.invoke(item.reqType)
					tm := time.Since(now)

					e.stats.Put(item.reqType, tm, err)
					e.movingStats.Put(item.reqType, tm, err)
					if err != nil {
						glog.Errorf("%s error: %s", item.reqType.String(), err)
					}
					if e.rdgen.isVariable && now.Sub(startTime) > 12*time.Second {
						e.numReqPerSecond = e.rdgen.getThroughPut()
						startTime = time.Now()
						numreq = 0
					}
					numreq++
					if e.rdgen.isVariable {
						e.checkSpeedForVariableTp(now, numreq, startTime)
					} else {
						e.checkSpeedDelayIfNeeded(now)
					}
				}
			}
		}
	}
}

func (e *TestEngine) checkSpeedDelayIfNeeded(now time.Time) {
	num := e.stats.GetNumRequests()
	if num < 10 {
		return
	}
	expectedDur := 1 * time.Second / time.Duration(e.numReqPerSecond)
	expectedDur *= time.Duration(num)

	dur := now.Sub(e.stats.tmStart)
	if delta := expectedDur - dur; delta > 0 {
		time.Sleep(delta)
	}
}

func (e *TestEngine) checkSpeedForVariableTp(now time.Time, numReq int, startTime time.Time) {
	if numReq < 10 {
		return
	}
	expectedDur := 1 * time.Second / time.Duration(e.numReqPerSecond)
	expectedDur *= time.Duration(numReq)

	dur := now.Sub(startTime)
	if delta := expectedDur - dur; delta > 0 {
		time.Sleep(delta)
	}
}

func (e *TestEngine) invokeCall() (err error) {
	_, err = e.client.Call(e.rdgen.createPayload())
	return
}

// invokeVerify sends a payload carrying a checksum trailer and verifies
// the echoed value against it, so a corrupted round trip shows up as a
// request error in the stats.
func (e *TestEngine) invokeVerify() (err error) {
	payload := testutil.WithChecksum(e.rdgen.createPayload())

	value, err := e.client.Call(payload)
	if err != nil {
		return
	}
	if len(value) != len(payload) {
		return fmt.Errorf("echoed value differs: sent %d byte(s), got %d", len(payload), len(value))
	}
	return testutil.VerifyChecksum(value)
}

func (e *TestEngine) invokePing() (err error) {
	return e.client.Ping()
}

func (e *TestEngine) invoke(t RequestType) (err error) {
	if t >= kNumRequestTypes {
		glog.Exitf("not supported request type : %d", t)
	}
	f := e.invokeFuncs[t]
	if f != nil {
		err = f()
	} else {
		glog.Errorf("test engine not properly initialized")
	}
	return
}
