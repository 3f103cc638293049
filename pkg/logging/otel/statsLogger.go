// Copyright 2023 PayPal Inc.
//
// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"quadwire/pkg/stats"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/asyncfloat64"
)

var (
	connCountOnce      sync.Once
	requestCountOnce   sync.Once
	requestLatencyOnce sync.Once
	processCpuUsedOnce sync.Once
	processMemUsedOnce sync.Once
)

type GaugeMetric struct {
	MetricName  string
	metricDesc  string
	gaugeMetric asyncfloat64.Gauge
	createGauge *sync.Once
}

// Keyed by the short state names emitted by the state log.
var GaugeMetricMap map[string]*GaugeMetric = map[string]*GaugeMetric{
	"conns": {"conns_count", "Active inbound connections", nil, &connCountOnce},
	"reqs":  {"req_count", "Requests processed in the last interval", nil, &requestCountOnce},
	"lat":   {"req_latency_us", "EMA of request latency in microseconds", nil, &requestLatencyOnce},
	"pCPU":  {"procCpuUsed", "CPU utilization of the server process", nil, &processCpuUsedOnce},
	"pMem":  {"procMemUsed", "Memory utilization of the server process", nil, &processMemUsedOnce},
}

// Stats emitted by one listener group.
type ListenerStats struct {
	StatData []StateData
}

type StateData struct {
	Name       string
	Value      float64
	Dimensions []attribute.KeyValue
}

func InitSystemMetrics(listenerStats [][]stats.IState) {
	meter := global.Meter(MeterName)
	stateLogGauge := make([]instrument.Asynchronous, 0, len(GaugeMetricMap))
	for _, element := range GaugeMetricMap {
		element.createGauge.Do(func() {
			element.gaugeMetric, _ = meter.AsyncFloat64().Gauge(
				PopulateMetricNamePrefix(element.MetricName),
				instrument.WithDescription(element.metricDesc),
			)
		})
		if element.gaugeMetric != nil {
			stateLogGauge = append(stateLogGauge, element.gaugeMetric)
		}
	}

	if err := meter.RegisterCallback(
		stateLogGauge,
		func(ctx context.Context) {
			groups := getMetricData(listenerStats)
			for _, group := range groups {
				for _, state := range group.StatData {
					gMetric, ok := GaugeMetricMap[state.Name]
					if ok && gMetric.gaugeMetric != nil {
						gMetric.gaugeMetric.Observe(ctx, state.Value, state.Dimensions...)
					}
				}
			}
		},
	); err != nil {
		glog.Error(err)
	}
}

func getMetricData(listenerStats [][]stats.IState) []ListenerStats {
	numGroups := len(listenerStats)
	lsd := make([]ListenerStats, numGroups)
	for li := 0; li < numGroups; li++ {
		sdata := make([]StateData, 0, len(listenerStats[li]))
		for _, v := range listenerStats[li] {
			if fl, err := strconv.ParseFloat(v.State(), 64); err == nil {
				if sd, err := writeMetricsData(li, v.Header(), fl); err == nil {
					sdata = append(sdata, sd)
				}
			}
		}
		lsd[li].StatData = sdata
	}

	return lsd
}

func writeMetricsData(lid int, key string, value float64) (StateData, error) {
	var data StateData
	if _, ok := GaugeMetricMap[key]; !ok {
		// Only record the metrics in the map
		return data, errors.New("metric not found in map")
	}

	if (key == "pCPU" || key == "pMem") && lid != 0 {
		// Process-wide metrics are reported by the first group only
		return data, errors.New("process utilization already reported")
	}

	data.Name = key
	data.Value = value
	data.Dimensions = []attribute.KeyValue{attribute.String("id", fmt.Sprintf("%d", lid))}

	return data, nil
}
