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

package stats

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestUint32State(t *testing.T) {
	var v uint32 = 42
	st := NewUint32State(&v, "reqs", "requests per interval")
	if st.State() != "42" {
		t.Errorf("State() = %q, want %q", st.State(), "42")
	}
	atomic.StoreUint32(&v, 7)
	if st.State() != "7" {
		t.Errorf("State() = %q, want %q", st.State(), "7")
	}
	if st.Header() != "reqs" || st.FullHeader() != "requests per interval" {
		t.Errorf("headers = %q, %q", st.Header(), st.FullHeader())
	}
	if st.Width() != 8 {
		t.Errorf("Width() = %d, want 8", st.Width())
	}
}

func TestUint64DeltaState(t *testing.T) {
	var v uint64
	st := NewUint64DeltaState(&v, "n", "", 1)

	atomic.StoreUint64(&v, 10)
	if st.State() != "10" {
		t.Errorf("first delta = %q, want %q", st.State(), "10")
	}
	atomic.StoreUint64(&v, 25)
	if st.State() != "15" {
		t.Errorf("second delta = %q, want %q", st.State(), "15")
	}
	if st.State() != "0" {
		t.Errorf("idle delta = %q, want %q", st.State(), "0")
	}
}

func TestGenStateWidth(t *testing.T) {
	st := NewGenState("connections", "", func() string { return "3" }, 4)
	if st.State() != "3" {
		t.Errorf("State() = %q, want %q", st.State(), "3")
	}
	// header longer than the requested width wins
	if st.Width() != len("connections") {
		t.Errorf("Width() = %d, want %d", st.Width(), len("connections"))
	}
}

func TestFloat32State(t *testing.T) {
	var v float32 = 12.345
	st := NewFloat32State(&v, "pCPU", "", 1)
	if st.State() != "12.3" {
		t.Errorf("State() = %q, want %q", st.State(), "12.3")
	}
}

type recordingHandler struct {
	chStat  chan ProcStat
	nWrites int32
}

func (h *recordingHandler) ProcessStateChange(stat ProcStat) {
	h.chStat <- stat
}

func (h *recordingHandler) ProcessWrite(cnt int) {
	atomic.AddInt32(&h.nWrites, 1)
}

type countingWriter struct {
	nWrites int32
	nCloses int32
}

func (w *countingWriter) Write(now time.Time) error {
	atomic.AddInt32(&w.nWrites, 1)
	return nil
}

func (w *countingWriter) Close() error {
	atomic.AddInt32(&w.nCloses, 1)
	return nil
}

func TestStateLogRun(t *testing.T) {
	handler := &recordingHandler{chStat: make(chan ProcStat, 1)}
	writer := &countingWriter{}

	var log StateLog
	log.Init("0", t.TempDir(), true, handler, nil)
	log.AddStateWriter(writer)
	log.Run()
	defer log.Quit()

	var stat ProcStat
	stat.Init(64)
	stat.OnComplete(1500, 64, false)
	log.SendProcState(stat)

	select {
	case got := <-handler.chStat:
		if got.ProcTime != 1500 || got.RequestPayloadLen != 64 || got.Err {
			t.Errorf("handler got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never saw the proc stat")
	}

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&writer.nWrites) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("writer never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
