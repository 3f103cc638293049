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
	"bytes"
	"testing"
	"time"

	"quadwire/pkg/client"
	"quadwire/test/testutil"
)

// A restart tears down the physical connection, so the replacement
// stream must carry a fresh lead marker for the server to accept it.
// The client hides all of that; calls just start succeeding again.
func TestCallsRecoverAcrossServerRestart(t *testing.T) {
	srv, err := testutil.StartServer(&testutil.EchoHandler{})
	if err != nil {
		t.Fatalf("start server: %s", err)
	}
	defer srv.Stop()

	cli := newClient(t, srv.Addr(), false)

	payload := testutil.NewPayload(128)
	if _, err := cli.Call(payload); err != nil {
		t.Fatalf("call before restart: %s", err)
	}

	srv.Stop()

	if _, err := cli.Call(payload); err == nil {
		t.Fatal("call succeeded with the server down")
	} else if r, ok := err.(client.IRetryable); !ok || !r.Retryable() {
		t.Fatalf("failure during restart not retryable: %v", err)
	}

	if err := srv.Restart(); err != nil {
		t.Fatalf("restart: %s", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		value, err := cli.Call(payload)
		if err == nil {
			if !bytes.Equal(value, payload) {
				t.Fatal("value differs after restart")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("client did not recover: %s", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
