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
package otel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	otelCfg "quadwire/pkg/logging/otel/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
	"go.opentelemetry.io/otel/metric/unit"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	inboundHistogramOnce  sync.Once
	outboundHistogramOnce sync.Once
	acceptCounterOnce     sync.Once
	closeCounterOnce      sync.Once
	decodeErrCounterOnce  sync.Once
	reqProcCounterOnce    sync.Once
	procErrCounterOnce    sync.Once
)

var inboundHistogram syncint64.Histogram
var outboundHistogram syncint64.Histogram

type CMetric int

const (
	Accept CMetric = CMetric(iota)
	Close
	DecodeErr
	ReqProc
	ProcErr
)

type Tags struct {
	TagName  string
	TagValue string
}

const (
	Endpoint  = string("endpoint")
	Operation = string("operation")
	Status    = string("status")
	Reason    = string("reason")
	Error     = string("Error")
	Success   = string("Success")
)

type countMetric struct {
	metricName    string
	metricDesc    string
	counter       syncint64.Counter
	createCounter *sync.Once
}

var countMetricMap map[CMetric]*countMetric = map[CMetric]*countMetric{
	Accept:    {"accept", "Accepting incoming connections", nil, &acceptCounterOnce},
	Close:     {"close", "Closing incoming connections", nil, &closeCounterOnce},
	DecodeErr: {"decode_err", "Malformed envelopes or payloads on inbound connections", nil, &decodeErrCounterOnce},
	ReqProc:   {"req_proc", "Processing of framed requests", nil, &reqProcCounterOnce},
	ProcErr:   {"proc_err", "Failures while processing framed requests", nil, &procErrCounterOnce},
}

const MetricNamePrefix = "qw.server."
const MeterName = "quadwire-meter"

// Latency instruments record microseconds.
const unitMicroseconds = unit.Unit("us")

const (
	StatusSuccess string = "SUCCESS"
	StatusError   string = "ERROR"
	StatusTimeout string = "TIMEOUT"
	StatusUnknown string = "UNKNOWN"
)

var (
	meterProvider *metric.MeterProvider
)

func Initialize(args ...interface{}) (err error) {
	sz := len(args)
	if sz == 0 {
		err = fmt.Errorf("otel config argument not as expected")
		glog.Error(err)
		return
	}
	var c *otelCfg.Config
	var ok bool
	if c, ok = args[0].(*otelCfg.Config); !ok {
		err = fmt.Errorf("wrong argument type")
		glog.Error(err)
		return
	}
	c.Dump()
	if c.Enabled {
		InitMetricProvider(c)
	}
	return
}

// Finalize drains the periodic reader so the last interval is exported.
func Finalize() {
	if meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := meterProvider.Shutdown(ctx); err != nil {
		glog.Error(err)
	}
	meterProvider = nil
}

func InitMetricProvider(config *otelCfg.Config) {
	if meterProvider != nil {
		glog.Info("Returning as meter is already available")
		return
	}

	otelCfg.OtelConfig = config

	ctx := context.Background()

	// Views apply the configured bucket boundaries to the latency histograms.
	var views []metric.View
	if len(config.HistogramBuckets.Inbound) > 0 {
		views = append(views, metric.NewView(
			metric.Instrument{
				Name:  PopulateMetricNamePrefix("inbound"),
				Scope: instrumentation.Scope{Name: MeterName},
			},
			metric.Stream{
				Aggregation: aggregation.ExplicitBucketHistogram{
					Boundaries: config.HistogramBuckets.Inbound,
				},
			}))
	}
	if len(config.HistogramBuckets.OutboundConnection) > 0 {
		views = append(views, metric.NewView(
			metric.Instrument{
				Name:  PopulateMetricNamePrefix("outbound_connection"),
				Scope: instrumentation.Scope{Name: MeterName},
			},
			metric.Stream{
				Aggregation: aggregation.ExplicitBucketHistogram{
					Boundaries: config.HistogramBuckets.OutboundConnection,
				},
			}))
	}

	provider, err := NewMeterProvider(ctx, *config, views...)
	if err != nil {
		log.Fatal(err)
	}
	provider.Meter(MeterName)
	global.SetMeterProvider(provider)
}

func NewMeterProvider(ctx context.Context, cfg otelCfg.Config, vis ...metric.View) (*metric.MeterProvider, error) {
	exp, err := NewHTTPExporter(ctx)
	if err != nil {
		return nil, err
	}

	res := getResourceInfo(cfg.AppName, cfg.Environment)

	reader := metric.NewPeriodicReader(exp, metric.WithInterval(time.Duration(cfg.Resolution)*time.Second))
	meterProvider = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
		metric.WithView(vis...),
	)

	return meterProvider, nil
}

func NewHTTPExporter(ctx context.Context) (metric.Exporter, error) {
	var deltaTemporalitySelector = func(metric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	if otelCfg.OtelConfig.UseTls {
		return otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpoint(otelCfg.OtelConfig.Host+":"+fmt.Sprintf("%d", otelCfg.OtelConfig.Port)),
			otlpmetrichttp.WithURLPath(otelCfg.OtelConfig.UrlPath),
			// WithTimeout sets the max amount of time the Exporter will attempt an
			// export.
			otlpmetrichttp.WithTimeout(7*time.Second),
			otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
			otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
				// Enabled indicates whether to not retry sending batches in case
				// of export failure.
				Enabled: true,
				// InitialInterval the time to wait after the first failure before
				// retrying.
				InitialInterval: 1 * time.Second,
				// MaxInterval is the upper bound on backoff interval. Once this
				// value is reached the delay between consecutive retries will
				// always be `MaxInterval`.
				MaxInterval: 10 * time.Second,
				// MaxElapsedTime is the maximum amount of time (including retries)
				// spent trying to send a request/batch. Once this value is
				// reached, the data is discarded.
				MaxElapsedTime: 240 * time.Second,
			}),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpoint(otelCfg.OtelConfig.Host+":"+fmt.Sprintf("%d", otelCfg.OtelConfig.Port)),
		otlpmetrichttp.WithURLPath(otelCfg.OtelConfig.UrlPath),
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithTimeout(7*time.Second),
		otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	)
}

func IsEnabled() bool {
	return meterProvider != nil
}

func GetHistogramForOperation() (syncint64.Histogram, error) {
	var err error
	inboundHistogramOnce.Do(func() {
		meter := global.Meter(MeterName)
		inboundHistogram, err = meter.SyncInt64().Histogram(
			PopulateMetricNamePrefix("inbound"),
			instrument.WithDescription("Latency of framed requests"),
			instrument.WithUnit(unitMicroseconds),
		)

	})
	return inboundHistogram, err
}

func GetHistogramForOutboundConnect() (syncint64.Histogram, error) {
	var err error
	outboundHistogramOnce.Do(func() {
		meter := global.Meter(MeterName)
		outboundHistogram, err = meter.SyncInt64().Histogram(
			PopulateMetricNamePrefix("outbound_connection"),
			instrument.WithDescription("Latency of outbound connection attempts"),
			instrument.WithUnit(unitMicroseconds),
		)

	})
	return outboundHistogram, err
}

func GetCounter(counterName CMetric) (syncint64.Counter, error) {
	if counterMetric, ok := countMetricMap[counterName]; ok {
		counterMetric.createCounter.Do(func() {
			meter := global.Meter(MeterName)
			counterMetric.counter, _ = meter.SyncInt64().Counter(
				PopulateMetricNamePrefix(counterMetric.metricName),
				instrument.WithDescription(counterMetric.metricDesc),
			)
		})
		if counterMetric.counter != nil {
			return counterMetric.counter, nil
		}
		return nil, errors.New("Counter Object not Ready")
	}
	return nil, errors.New("No Such counter exists")
}

// RecordOperation feeds the qw.server.inbound histogram. latencyUs is in
// microseconds.
func RecordOperation(opType string, status string, latencyUs int64) {
	ctx := context.Background()
	if operation, err := GetHistogramForOperation(); err == nil {
		commonLabels := []attribute.KeyValue{
			attribute.String(Operation, opType),
			attribute.String(Status, status),
		}
		operation.Record(ctx, latencyUs, commonLabels...)
	}
}

// RecordOutboundConnection feeds the qw.server.outbound_connection histogram.
// latencyUs is in microseconds.
func RecordOutboundConnection(endpoint string, status string, latencyUs int64) {
	ctx := context.Background()
	if requestLatency, err := GetHistogramForOutboundConnect(); err == nil {
		commonLabels := []attribute.KeyValue{
			attribute.String(Endpoint, endpoint),
			attribute.String(Status, status),
		}
		requestLatency.Record(ctx, latencyUs, commonLabels...)
	}
}

func RecordCount(counterName CMetric, tags []Tags) {
	ctx := context.Background()
	if counter, err := GetCounter(counterName); err == nil {
		if len(tags) != 0 {
			commonLabels := convertTagsToOTELAttributes(tags)
			counter.Add(ctx, 1, commonLabels...)
		} else {
			counter.Add(ctx, 1)
		}
	} else {
		glog.Error(err)
	}
}

func convertTagsToOTELAttributes(tags []Tags) (attr []attribute.KeyValue) {
	attr = make([]attribute.KeyValue, len(tags))
	for i := 0; i < len(tags); i++ {
		attr[i] = attribute.String(tags[i].TagName, tags[i].TagValue)
	}
	return
}

func PopulateMetricNamePrefix(metricName string) string {
	return MetricNamePrefix + metricName
}

func getResourceInfo(appName string, environment string) *resource.Resource {
	hostname, _ := os.Hostname()

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.HostNameKey.String(hostname),
		semconv.ServiceNameKey.String(appName),
		attribute.String("application", appName),
		attribute.String("environment", environment),
	)
	return res
}
