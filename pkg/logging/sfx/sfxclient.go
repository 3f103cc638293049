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

package sfx

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/signalfx/golib/v3/datapoint"
	"github.com/signalfx/golib/v3/sfxclient"
)

type sfxClient struct {
	metrics chan sfxMessage
	// retryMetrics isolates SendMetric from the retry logic; a failed
	// send must not block new datapoints.
	retryMetrics chan retrySfxMessage
	// Number of times to retry a metric whose send failed.
	retryCount uint32
	finished   chan bool
	// Channel to send rmCount below, has to be length of 1.
	ignoreRetryCount chan uint32
	// If a send failed and the retry channel is full too, how many of the
	// oldest retry metrics to throw away to make room.
	rmCount     uint32
	client      *sfxclient.HTTPSink
	retryClient *sfxclient.HTTPSink
	// Base time to wait before each retry.
	backoff    int64
	maxBackoff time.Duration
	profile    string
}

type sfxMessage struct {
	msgs []*datapoint.Datapoint
	cb   metricCb
}

type retrySfxMessage struct {
	retryCount uint32
	msgs       []*datapoint.Datapoint
	cb         metricCb
}

func createHTTPSink(conf *Config) *sfxclient.HTTPSink {
	sink := sfxclient.NewHTTPSink()
	sink.DatapointEndpoint = conf.DatapointEndpoint
	sink.EventEndpoint = conf.EventEndpoint
	sink.AuthToken = conf.AuthToken
	sink.AdditionalHeaders = map[string]string{
		"Connection": "keep-alive",
	}
	sink.Client.Timeout = conf.Timeout.Duration
	return sink
}

func newSfxClient(conf *Config) *sfxClient {
	c := &sfxClient{
		metrics:          make(chan sfxMessage, conf.MainWriteQueueSize),
		retryMetrics:     make(chan retrySfxMessage, conf.RetryWriteQueueSize),
		retryCount:       conf.RetryCount,
		finished:         make(chan bool, 1),
		ignoreRetryCount: make(chan uint32, 1), // has to be 1
		rmCount:          conf.RmCount,
		client:           createHTTPSink(conf),
		retryClient:      createHTTPSink(conf),
		maxBackoff:       conf.MaxBackoff.Duration,
		profile:          conf.Profile,
	}
	rand.Seed(time.Now().UTC().UnixNano())
	go c.mainLoopWrite()
	go c.retryLoopWrite()
	return c
}

func (m *sfxClient) mainLoopWrite() {
	ctx := context.Background()
	for {
		select {
		case <-m.finished:
			glog.Infoln("sfx main write loop exiting")
			return
		case metric := <-m.metrics:
			m.addHostDim(metric.msgs)
			err := m.client.AddDatapoints(ctx, metric.msgs)
			if err != nil {
				glog.Errorln("could not send datapoints")
				m.mainEnRetryQueue(metric)
			} else {
				glog.V(2).Infoln("datapoint sent")
			}
		case <-time.After(time.Second * 60):
			glog.V(2).Infoln("no metric writes for 1 minute")
			continue
		}
	}
}

func (m *sfxClient) retryLoopWrite() {
	ctx := context.Background()
	var localIgnoreCount uint32 = 0
	for {
		select {
		case <-m.finished:
			glog.Infoln("sfx retry write loop exiting")
			return
		case ignoreCount := <-m.ignoreRetryCount:
			glog.Infoln("ignoreRetryCount received ", ignoreCount)
			if localIgnoreCount == 0 {
				localIgnoreCount = ignoreCount
			}
		case metric := <-m.retryMetrics:
			if localIgnoreCount > 0 {
				localIgnoreCount--
				continue
			}
			select {
			case <-time.After(m.getBackoff()):
			}
			metric.retryCount--
			err := m.retryClient.AddDatapoints(ctx, metric.msgs)
			if err != nil {
				m.retryEnRetryQueue(metric)
			} else {
				glog.V(2).Infoln("datapoint sent on retry")
				m.resetBackoff()
			}
		case <-time.After(time.Second * 300):
			glog.V(2).Infoln("no metric retries for 5 minutes")
			continue
		}
	}
}

func (m *sfxClient) addHostDim(msgs []*datapoint.Datapoint) {
	for i := range msgs {
		msgs[i].Dimensions["host"] = hostName
	}
}

func (m *sfxClient) resetBackoff() {
	m.backoff = 0
}

func (m *sfxClient) getBackoff() time.Duration {
	// The random part stays well below the exponential part, and the
	// exponential part must not grow too fast; neither needs to be
	// configurable. The http sink timeout counts toward the wait as well.
	b := time.Duration(m.backoff*100+rand.Int63n(30)) * time.Millisecond
	if m.backoff == 0 {
		m.backoff = 1
	}
	m.backoff = m.backoff << 1

	if b > m.maxBackoff {
		b = m.maxBackoff
	}
	return b
}

func (m *sfxClient) mainEnRetryQueue(metric sfxMessage) error {
	retry := retrySfxMessage{m.retryCount, metric.msgs, metric.cb}
	return m.enRetryQueue(retry, false)
}

func (m *sfxClient) retryEnRetryQueue(retry retrySfxMessage) error {
	return m.enRetryQueue(retry, true)
}

func (m *sfxClient) enRetryQueue(retry retrySfxMessage, byRetry bool) error {
	if retry.retryCount <= 0 {
		return m.logError("msg retried reaches the retry limit", retry.cb)
	}
	select {
	case m.retryMetrics <- retry:
		return nil
	default:
		// The retry channel holds metrics in arrival order, oldest at the
		// head. A metric coming from the main queue is newer than anything
		// queued, so ask the retry loop to skip the rmCount oldest entries
		// to make room. A metric bounced back by the retry loop is itself
		// the oldest, so it is simply dropped.
		if !byRetry {
			glog.Infoln("enRetryQueue try to make a room ", m.rmCount)
			select {
			case m.ignoreRetryCount <- m.rmCount:
			default:
				glog.Errorln("failed to make room in retry queue")
			}
		}
		return m.logError("retry msg in queue failed, channel", retry.cb)
	}
}

func (m *sfxClient) logError(msg string, cb metricCb) error {
	err := errors.New(msg)
	if cb != nil {
		cb(err)
	} else {
		glog.Errorln(err)
	}
	return err
}

func toSfxType(t MetricType) datapoint.MetricType {
	switch t {
	case Gauge:
		return datapoint.Gauge
	case Counter:
		return datapoint.Counter
	default:
		return datapoint.Gauge
	}
}

// SendWithCb enqueues data with dimensions dim at time when; it never
// blocks, and a non-nil error means the message was dropped. f, if given,
// is called once the message is acked or dropped.
func (m *sfxClient) SendWithCb(dim Dims, data []MetricData, when time.Time, f metricCb) error {
	mtcs := make([]*datapoint.Datapoint, 0, len(data))
	profile := m.profile
	if len(profile) != 0 {
		profile += "."
	}
	if dim == nil {
		dim = make(Dims)
	}
	for i := range data {
		dp := &datapoint.Datapoint{
			Metric:     profile + data[i].Name,
			Dimensions: dim,
			Value:      datapoint.NewFloatValue(data[i].Value),
			MetricType: toSfxType(data[i].MetricType),
			Timestamp:  when,
		}
		mtcs = append(mtcs, dp)
	}
	msg := sfxMessage{mtcs, f}
	select {
	case m.metrics <- msg:
	default:
		err := errors.New("sfx msg buffer full while calling API")
		if f != nil {
			f(err)
		} else {
			glog.V(2).Infoln(err, dim, data)
		}
		return err
	}
	return nil
}

// SendMetric enqueues data with dimensions dim at time when; it never
// blocks, and a non-nil error means the message was dropped.
func (m *sfxClient) SendMetric(dim Dims, data []MetricData, when time.Time) error {
	return m.SendWithCb(dim, data, when, nil)
}

func (m *sfxClient) Stop() {
	close(m.finished)
}
