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

	"quadwire/pkg/stats"
)

func TestPerSecondRates(t *testing.T) {
	var l StateLog
	l.emaWindowSize = 39
	l.getPerSecondRates() // prime the snapshot at the current totals

	for i := 0; i < 5; i++ {
		var st stats.ProcStat
		st.Init(40)
		st.OnComplete(100, 20, i == 0)
		l.ProcessStateChange(st)
	}

	tps, eps, ibps, obps := l.getPerSecondRates()
	if tps != 5 || eps != 1 || ibps != 200 || obps != 100 {
		t.Errorf("rates = %d/%d/%d/%d, want 5/1/200/100", tps, eps, ibps, obps)
	}

	// nothing processed since the snapshot
	tps, eps, ibps, obps = l.getPerSecondRates()
	if tps != 0 || eps != 0 || ibps != 0 || obps != 0 {
		t.Errorf("idle rates = %d/%d/%d/%d, want zeros", tps, eps, ibps, obps)
	}
}

func TestProcTimeEMAConverges(t *testing.T) {
	var l StateLog
	l.emaWindowSize = 39

	for i := 0; i < 400; i++ {
		l.ProcessStateChange(stats.ProcStat{ProcTime: 1000})
	}
	ema := atomic.LoadInt32(&l.emaProcTime)
	if ema < 900 || ema > 1000 {
		t.Errorf("ema = %dus after constant 1000us samples", ema)
	}
}

func TestThroughputSnapshotZeroesEmaWhenIdle(t *testing.T) {
	atomic.StoreUint32(&statsTPS, 0)
	atomic.StoreUint32(&statsEMA, 123)
	atomic.StoreUint32(&statsEPS, 0)
	if tps, ema, _ := GetThroughputEmaErrorRate(); tps != 0 || ema != 0 {
		t.Errorf("idle snapshot = tps %d ema %d, want zeros", tps, ema)
	}

	atomic.StoreUint32(&statsTPS, 5)
	if tps, ema, _ := GetThroughputEmaErrorRate(); tps != 5 || ema != 123 {
		t.Errorf("snapshot = tps %d ema %d, want 5/123", tps, ema)
	}
}

func TestReadCPUUsage(t *testing.T) {
	if _, _, cpus := readCPUUsage(); cpus == 0 {
		t.Error("no cpus counted from /proc/stat")
	}
}

func TestProcMemUsage(t *testing.T) {
	if rss := ProcMemUsage(); rss <= 0 {
		t.Errorf("rss = %.1f MB, want > 0", rss)
	}
}

func TestSfxHeaderKeyMapCoversServerStates(t *testing.T) {
	headers := []string{"reqs", "lat", "eps", "ibps", "obps", "req", "pCPU", "mCPU", "pMem", "conns"}
	for _, h := range headers {
		if _, ok := sfxHeaderKeyMap[h]; !ok {
			t.Errorf("state header %q has no metric key", h)
		}
	}
}
