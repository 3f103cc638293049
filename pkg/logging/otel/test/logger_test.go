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

// These tests run an in-process mock OTLP collector and validate what the
// exporter actually sends. The meter provider is a process-wide singleton,
// so every test points its collector at the same port and the state log
// gauge test runs last.
package otel

import (
	"testing"
	"time"

	"quadwire/pkg/logging/otel"
	config "quadwire/pkg/logging/otel/config"
	"quadwire/pkg/stats"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

const collectorPort = 14318

var testConfig = config.Config{
	Host:       "localhost",
	Port:       collectorPort,
	AppName:    "qwtest",
	Enabled:    true,
	Resolution: 3,
	HistogramBuckets: config.HistBuckets{
		Inbound:            []float64{100, 1000, 10000, 100000},
		OutboundConnection: []float64{500, 5000, 50000},
	},
}

func waitForExport() {
	time.Sleep(time.Duration(testConfig.Resolution+1) * time.Second)
}

func attrValue(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

func findHistogramPoints(v1m []*metricpb.Metric, name string) []*metricpb.HistogramDataPoint {
	var dps []*metricpb.HistogramDataPoint
	for _, m := range v1m {
		if m.GetName() == name {
			dps = append(dps, m.GetHistogram().GetDataPoints()...)
		}
	}
	return dps
}

func findSumPoints(v1m []*metricpb.Metric, name string) []*metricpb.NumberDataPoint {
	var dps []*metricpb.NumberDataPoint
	for _, m := range v1m {
		if m.GetName() == name {
			dps = append(dps, m.GetSum().GetDataPoints()...)
		}
	}
	return dps
}

func findGaugePoints(v1m []*metricpb.Metric, name string) []*metricpb.NumberDataPoint {
	var dps []*metricpb.NumberDataPoint
	for _, m := range v1m {
		if m.GetName() == name {
			dps = append(dps, m.GetGauge().GetDataPoints()...)
		}
	}
	return dps
}

func TestRecordOperation(t *testing.T) {
	mc := runMockCollector(t, mockCollectorConfig{
		Port:    collectorPort,
		WithTLS: false,
	})
	defer mc.MustStop(t)

	otel.InitMetricProvider(&testConfig)

	time.Sleep(time.Duration(1) * time.Second)

	otel.RecordOperation("echo", otel.StatusSuccess, 2000)
	otel.RecordOperation("ping", otel.StatusSuccess, 1000)
	otel.RecordOperation("sink", otel.StatusSuccess, 3000)
	otel.RecordOperation("inspect", otel.StatusSuccess, 500)
	otel.RecordOperation("echo", otel.StatusError, 4000)

	waitForExport()

	dps := findHistogramPoints(mc.GetMetrics(), "qw.server.inbound")
	if len(dps) != 5 {
		t.Errorf("expected 5 data points, got %d", len(dps))
	}
	if len(dps) > 0 {
		if bounds := dps[0].GetExplicitBounds(); len(bounds) != len(testConfig.HistogramBuckets.Inbound) {
			t.Errorf("bucket boundaries not applied: got %d, want %d",
				len(bounds), len(testConfig.HistogramBuckets.Inbound))
		}
	}

	sums := make(map[string]float64)
	for _, dp := range dps {
		key := attrValue(dp.GetAttributes(), "operation") + "/" + attrValue(dp.GetAttributes(), "status")
		sums[key] = dp.GetSum()
	}
	expected := map[string]float64{
		"echo/SUCCESS":    2000,
		"ping/SUCCESS":    1000,
		"sink/SUCCESS":    3000,
		"inspect/SUCCESS": 500,
		"echo/ERROR":      4000,
	}
	for key, want := range expected {
		if got, ok := sums[key]; !ok || got != want {
			t.Errorf("sum for %s: got %v, want %v", key, got, want)
		}
	}
}

func TestRecordOutboundConnection(t *testing.T) {
	mc := runMockCollector(t, mockCollectorConfig{
		Port:    collectorPort,
		WithTLS: false,
	})
	defer mc.MustStop(t)

	otel.InitMetricProvider(&testConfig)

	time.Sleep(time.Duration(1) * time.Second)

	otel.RecordOutboundConnection("127.0.0.1:5080", otel.StatusSuccess, 2000)
	otel.RecordOutboundConnection("127.0.0.1:5080", otel.StatusSuccess, 1000)
	otel.RecordOutboundConnection("127.0.0.2:5080", otel.StatusSuccess, 3000)
	otel.RecordOutboundConnection("127.0.0.2:5080", otel.StatusSuccess, 500)
	otel.RecordOutboundConnection("127.0.0.2:5080", otel.StatusSuccess, 2500)

	waitForExport()

	dps := findHistogramPoints(mc.GetMetrics(), "qw.server.outbound_connection")
	// Two distinct endpoint dimensions.
	if len(dps) != 2 {
		t.Errorf("expected 2 data points, got %d", len(dps))
	}
	for _, dp := range dps {
		sum := dp.GetSum()
		switch ep := attrValue(dp.GetAttributes(), "endpoint"); ep {
		case "127.0.0.1:5080":
			if sum != 3000 {
				t.Errorf("sum for %s: got %v, want 3000", ep, sum)
			}
		case "127.0.0.2:5080":
			if sum != 6000 {
				t.Errorf("sum for %s: got %v, want 6000", ep, sum)
			}
		default:
			t.Errorf("unexpected endpoint %q", ep)
		}
	}
}

func TestRecordCount(t *testing.T) {
	mc := runMockCollector(t, mockCollectorConfig{
		Port:    collectorPort,
		WithTLS: false,
	})
	defer mc.MustStop(t)

	otel.InitMetricProvider(&testConfig)

	time.Sleep(time.Duration(1) * time.Second)

	for i := 0; i < 6; i++ {
		otel.RecordCount(otel.ProcErr, []otel.Tags{{otel.Status, otel.Error}})
	}
	for i := 0; i < 5; i++ {
		otel.RecordCount(otel.ProcErr, []otel.Tags{{otel.Status, otel.Success}})
	}
	for i := 0; i < 3; i++ {
		otel.RecordCount(otel.Accept, nil)
	}

	waitForExport()

	v1m := mc.GetMetrics()

	procErr := findSumPoints(v1m, "qw.server.proc_err")
	if len(procErr) != 2 {
		t.Errorf("expected 2 proc_err data points, got %d", len(procErr))
	}
	for _, dp := range procErr {
		switch status := attrValue(dp.GetAttributes(), "status"); status {
		case otel.Error:
			if dp.GetAsInt() != 6 {
				t.Errorf("proc_err{status=Error}: got %d, want 6", dp.GetAsInt())
			}
		case otel.Success:
			if dp.GetAsInt() != 5 {
				t.Errorf("proc_err{status=Success}: got %d, want 5", dp.GetAsInt())
			}
		default:
			t.Errorf("unexpected status %q", status)
		}
	}

	accept := findSumPoints(v1m, "qw.server.accept")
	if len(accept) != 1 {
		t.Errorf("expected 1 accept data point, got %d", len(accept))
	} else if accept[0].GetAsInt() != 3 {
		t.Errorf("accept: got %d, want 3", accept[0].GetAsInt())
	}
}

func TestStateLogGauges(t *testing.T) {
	mc := runMockCollector(t, mockCollectorConfig{
		Port:    collectorPort,
		WithTLS: false,
	})
	defer mc.MustStop(t)

	otel.InitMetricProvider(&testConfig)
	time.Sleep(time.Duration(1) * time.Second)

	var conns uint32 = 5
	var cpu float32 = 30

	groups := make([][]stats.IState, 2)
	for i := range groups {
		groups[i] = []stats.IState{
			stats.NewUint32State(&conns, "conns", "Active connections"),
			stats.NewFloat32State(&cpu, "pCPU", "Process CPU usage", 1),
		}
	}

	otel.InitSystemMetrics(groups)

	time.Sleep(time.Duration(testConfig.Resolution+2) * time.Second)

	v1m := mc.GetMetrics()

	connDps := findGaugePoints(v1m, "qw.server.conns_count")
	if len(connDps) == 0 {
		t.Fatalf("no conns_count data points")
	}
	ids := make(map[string]bool)
	for _, dp := range connDps {
		if dp.GetAsDouble() != 5 {
			t.Errorf("conns_count: got %v, want 5", dp.GetAsDouble())
		}
		ids[attrValue(dp.GetAttributes(), "id")] = true
	}
	if !ids["0"] || !ids["1"] {
		t.Errorf("expected conns_count from both groups, got ids %v", ids)
	}

	cpuDps := findGaugePoints(v1m, "qw.server.procCpuUsed")
	if len(cpuDps) == 0 {
		t.Fatalf("no procCpuUsed data points")
	}
	for _, dp := range cpuDps {
		if dp.GetAsDouble() != 30 {
			t.Errorf("procCpuUsed: got %v, want 30", dp.GetAsDouble())
		}
		if id := attrValue(dp.GetAttributes(), "id"); id != "0" {
			t.Errorf("process utilization should come from group 0 only, got id %q", id)
		}
	}
}
