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
	"bytes"
	"fmt"
	goio "io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"quadwire/cmd/qwserv/config"
	"quadwire/pkg/logging/otel"
	"quadwire/pkg/logging/sfx"
	"quadwire/pkg/stats"
)

var (
	_ stats.IStatesWriter = (*statsFileWriterT)(nil)
	_ stats.IStatesWriter = (*statsSfxWriterT)(nil)
)

type (
	statsFileWriterT struct {
		cnt    int
		header string
		writer goio.WriteCloser
	}
	statsSfxWriterT struct {
		dimensions sfx.Dims
		count      uint32
	}
)

// RunCollector attaches the configured writers to the state log and starts
// it. Every state must be registered by then: the listener states go in
// when the service is built, so this runs after that.
func RunCollector() {
	if !enabled {
		return
	}
	cfg := &config.Conf

	if cfg.StateLogEnabled {
		if _, err := os.Stat(cfg.StateLogDir); os.IsNotExist(err) {
			os.Mkdir(cfg.StateLogDir, 0777)
		}

		statelogName := filepath.Join(cfg.StateLogDir, "state.log")
		if file, err := os.OpenFile(statelogName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			var buf bytes.Buffer
			for _, i := range statelog.GetStates() {
				format := fmt.Sprintf("%%%ds ", i.Width())
				fmt.Fprintf(&buf, format, i.Header())
			}

			statelog.AddStateWriter(&statsFileWriterT{
				writer: file,
				header: fmt.Sprintf("%3s %s", "id", string(buf.Bytes())),
			})
		}
	}

	if sfx.IsEnabled() {
		statelog.AddStateWriter(&statsSfxWriterT{
			dimensions: sfx.Dims{"application": cfg.ClusterName, "id": logId},
		})
	}

	if otel.IsEnabled() {
		otel.InitSystemMetrics([][]stats.IState{statelog.GetStates()})
	}

	statelog.Run()
}

func (w *statsFileWriterT) Write(now time.Time) error {
	var buf bytes.Buffer
	for _, i := range statelog.GetStates() {
		format := fmt.Sprintf("%%%ds ", i.Width())
		fmt.Fprintf(&buf, format, i.State())
	}
	if w.cnt%23 == 0 {
		fmt.Fprintf(w.writer, "%s %s\n", now.Format("01-02 15:04:05"), w.header)
	}
	fmt.Fprintf(w.writer, "%s %3s %s\n", now.Format("01-02 15:04:05"), logId, string(buf.Bytes()))
	w.cnt++
	return nil
}

func (w *statsFileWriterT) Close() error {
	if w.writer != nil {
		return w.writer.Close()
	}
	return nil
}

var sfxHeaderKeyMap = map[string]string{
	"conns": "conns_count",
	"reqs":  "requestCountPerSec",
	"eps":   "errorPerSec",
	"lat":   "latency_ema_us",
	"req":   "request_count",
	"ibps":  "inbound_bytes_per_sec",
	"obps":  "outbound_bytes_per_sec",
	"pCPU":  "cpu_usage",
	"mCPU":  "machine_cpu_usage",
	"pMem":  "mem_rss_mb",
}

func (w *statsSfxWriterT) Write(now time.Time) error {
	if sfx.IsEnabled() {
		if w.count%sfx.GetResolution() == 0 {
			for _, v := range statelog.GetStates() {
				if fl, err := strconv.ParseFloat(v.State(), 64); err == nil {
					w.sendMetricsData(v.Header(), fl, now)
				}
			}
		}
		w.count++
	}
	return nil
}

func (w *statsSfxWriterT) sendMetricsData(key string, value float64, now time.Time) {
	var data [1]sfx.MetricData
	headerKey, ok := sfxHeaderKeyMap[key]
	if !ok {
		headerKey = key
	}
	data[0].Name = headerKey
	data[0].Value = value
	data[0].MetricType = sfx.Gauge
	sfx.Client.SendMetric(w.dimensions, data[:1], now)
}

func (w *statsSfxWriterT) Close() error {
	return nil
}
