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

package cli

import (
	"bytes"
	"testing"
	"time"

	"quadwire/pkg/errors"
)

func newTrackedRequest(payload []byte) (*RequestContext, chan IResponseContext) {
	ch := make(chan IResponseContext, 1)
	return NewRequestContext(payload, ch), ch
}

// recvNow drains one response without blocking; a request that was not
// replied to yields nil.
func recvNow(ch chan IResponseContext) IResponseContext {
	select {
	case r := <-ch:
		return r
	default:
		return nil
	}
}

func TestTrackerPairsResponsesInOrder(t *testing.T) {
	tracker := newPendingTracker(time.Second)

	req1, ch1 := newTrackedRequest([]byte{1, 0, 0, 0})
	req2, ch2 := newTrackedRequest([]byte{2, 0, 0, 0})
	tracker.OnRequestSent(req1)
	tracker.OnRequestSent(req2)
	if n := tracker.NumPending(); n != 2 {
		t.Fatalf("NumPending = %d, want 2", n)
	}

	if !tracker.OnResponseReceived(NewReaderResponse([]byte{0xA1})) {
		t.Fatal("first response rejected")
	}
	if !tracker.OnResponseReceived(NewReaderResponse([]byte{0xA2})) {
		t.Fatal("second response rejected")
	}
	if n := tracker.NumPending(); n != 0 {
		t.Fatalf("NumPending = %d, want 0", n)
	}

	r1, r2 := recvNow(ch1), recvNow(ch2)
	if r1 == nil || r2 == nil {
		t.Fatal("a pending request did not get its response")
	}
	if !bytes.Equal(r1.GetPayload(), []byte{0xA1}) {
		t.Errorf("first response = % x, want a1", r1.GetPayload())
	}
	if !bytes.Equal(r2.GetPayload(), []byte{0xA2}) {
		t.Errorf("second response = % x, want a2", r2.GetPayload())
	}
}

func TestTrackerResponseWithNoPending(t *testing.T) {
	tracker := newPendingTracker(time.Second)
	if tracker.OnResponseReceived(NewReaderResponse([]byte{1, 2, 3, 4})) {
		t.Error("unsolicited response accepted; the connection would keep mispairing")
	}
}

func TestTrackerErrorResponseClearsAll(t *testing.T) {
	tracker := newPendingTracker(time.Second)
	_, ch1 := trackOne(tracker, 1)
	_, ch2 := trackOne(tracker, 2)

	if !tracker.OnResponseReceived(NewErrorReaderResponse(errors.ErrNoConnection)) {
		t.Fatal("read error response rejected")
	}
	if n := tracker.NumPending(); n != 0 {
		t.Fatalf("NumPending = %d, want 0", n)
	}
	for i, ch := range []chan IResponseContext{ch1, ch2} {
		r := recvNow(ch)
		if r == nil {
			t.Fatalf("request %d not failed", i)
		}
		if r.GetError() != errors.ErrNoConnection {
			t.Errorf("request %d error = %v, want %v", i, r.GetError(), errors.ErrNoConnection)
		}
	}
}

func trackOne(tracker *PendingTracker, tag byte) (*RequestContext, chan IResponseContext) {
	req, ch := newTrackedRequest([]byte{tag, 0, 0, 0})
	tracker.OnRequestSent(req)
	return req, ch
}

func TestTrackerOnTimeoutBeforeExpiry(t *testing.T) {
	tracker := newPendingTracker(time.Minute)
	_, ch := trackOne(tracker, 1)

	if n := tracker.OnTimeout(time.Now()); n != 0 {
		t.Fatalf("OnTimeout expired %d requests, want 0", n)
	}
	if n := tracker.NumPending(); n != 1 {
		t.Fatalf("NumPending = %d, want 1", n)
	}
	if r := recvNow(ch); r != nil {
		t.Errorf("unexpired request got a reply: %v", r.GetError())
	}
	if tracker.GetTimeoutCh() == nil {
		t.Error("timer not re-armed while a request is still pending")
	}
}

func TestTrackerOnTimeoutExpiresOldestFirst(t *testing.T) {
	const timeout = 400 * time.Millisecond
	tracker := newPendingTracker(timeout)

	_, ch1 := trackOne(tracker, 1)
	time.Sleep(200 * time.Millisecond)
	_, ch2 := trackOne(tracker, 2)

	// past the first deadline, clear of the second
	n := tracker.OnTimeout(time.Now().Add(300 * time.Millisecond))
	if n != 1 {
		t.Fatalf("OnTimeout expired %d requests, want 1", n)
	}
	r1 := recvNow(ch1)
	if r1 == nil {
		t.Fatal("expired request not replied to")
	}
	if r1.GetError() != errors.ErrResponseTimeout {
		t.Errorf("expired request error = %v, want %v", r1.GetError(), errors.ErrResponseTimeout)
	}
	if r := recvNow(ch2); r != nil {
		t.Fatalf("second request expired early: %v", r.GetError())
	}
	if n := tracker.NumPending(); n != 1 {
		t.Fatalf("NumPending = %d, want 1", n)
	}

	if n = tracker.OnTimeout(time.Now().Add(2 * timeout)); n != 1 {
		t.Fatalf("second OnTimeout expired %d requests, want 1", n)
	}
	if r2 := recvNow(ch2); r2 == nil || r2.GetError() != errors.ErrResponseTimeout {
		t.Errorf("second request not timed out: %v", r2)
	}
	if tracker.GetTimeoutCh() != nil {
		t.Error("timer still armed with nothing pending")
	}
}

func TestTrackerReaderClosedFailsPending(t *testing.T) {
	tracker := newPendingTracker(time.Second)
	_, ch1 := trackOne(tracker, 1)
	_, ch2 := trackOne(tracker, 2)

	tracker.OnResponseReaderClosed()
	if n := tracker.NumPending(); n != 0 {
		t.Fatalf("NumPending = %d, want 0", n)
	}
	for i, ch := range []chan IResponseContext{ch1, ch2} {
		r := recvNow(ch)
		if r == nil {
			t.Fatalf("request %d left hanging", i)
		}
		if r.GetError() != errors.ErrNoConnection {
			t.Errorf("request %d error = %v, want %v", i, r.GetError(), errors.ErrNoConnection)
		}
	}
}
