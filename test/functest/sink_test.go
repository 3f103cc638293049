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

package functest

import (
	"testing"

	"quadwire/test/testutil"
)

func TestSinkAcknowledgesWithEmptyValue(t *testing.T) {
	cli := newClient(t, sinkServer.Addr(), false)

	for _, n := range []int{16, 512, 4096} {
		value, err := cli.Call(testutil.NewPayload(n))
		if err != nil {
			t.Fatalf("call len %d: %s", n, err)
		}
		if len(value) != 0 {
			t.Fatalf("sink answered %d byte(s), want none", len(value))
		}
	}
}
