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
package client

import (
	"fmt"
	"runtime"
	"time"

	"github.com/golang/glog"

	"quadwire/internal/cli"
	"quadwire/pkg/frame"
	"quadwire/pkg/util"
)

type clientImplT struct {
	config    Config
	processor *cli.Processor
}

func newProcessorWithConfig(conf *Config) *cli.Processor {
	if conf == nil {
		return nil
	}
	return cli.NewProcessor(
		conf.Server,
		conf.ConnectTimeout.Duration,
		conf.ResponseTimeout.Duration,
		conf.ConnRecycleTimeout.Duration)
}

// New creates a client from conf. Zero timeouts fall back to the engine
// defaults.
func New(conf Config) (IClient, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	glog.V(1).Infof("client cfg=%v", conf)
	client := &clientImplT{
		config:    conf,
		processor: newProcessorWithConfig(&conf),
	}
	client.processor.Start()
	runtime.SetFinalizer(client.processor, func(p *cli.Processor) {
		p.Close()
	})
	return client, nil
}

// NewClient creates a client for addr with the default configuration.
func NewClient(addr string) (IClient, error) {
	conf := defaultConfig
	if err := conf.Server.SetFromConnString(addr); err != nil {
		return nil, err
	}
	return New(conf)
}

func (c *clientImplT) Close() {
	if c.processor != nil {
		c.processor.Close()
		c.processor = nil
	}
}

func (c *clientImplT) Call(payload []byte) ([]byte, error) {
	return c.CallWithTimeout(payload, c.config.RequestTimeout.Duration)
}

func (c *clientImplT) CallWithTimeout(payload []byte, timeout time.Duration) (value []byte, err error) {
	if c.processor == nil {
		return nil, ErrClosed
	}
	if len(payload) > frame.MaxPayloadDataLen {
		return nil, ErrPayloadTooLarge
	}

	var request frame.Payload
	if c.config.Compress {
		request.SetWithCompressedValue(payload)
	} else {
		request.SetWithClearValue(payload)
	}
	var wire util.PPBuffer
	wire.Grow(request.EncodedLen())
	request.EncodeToBuffer(&wire)

	raw, err := c.processor.ProcessRequestWithTimeout(wire.Bytes(), timeout)
	if err != nil {
		err = mapError(err)
		c.logError("Call", err)
		return nil, err
	}
	if len(raw) == 0 {
		// the peer answered with a bare envelope
		return nil, nil
	}
	var response frame.Payload
	if err = response.Decode(raw, false); err != nil {
		c.logError("Call", err)
		return nil, ErrInternal
	}
	if value, err = response.GetClearValue(); err != nil {
		c.logError("Call", err)
		return nil, ErrInternal
	}
	return value, nil
}

func (c *clientImplT) Ping() error {
	if c.processor == nil {
		return ErrClosed
	}
	_, err := c.processor.ProcessRequestWithTimeout(nil, c.config.RequestTimeout.Duration)
	if err != nil {
		err = mapError(err)
		c.logError("Ping", err)
	}
	return err
}

func (c *clientImplT) logError(op string, err error) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf("[ERROR] op=%s addr=%s response_timeout=%dms. %s",
		op, c.config.Server.Addr,
		c.config.ResponseTimeout.Nanoseconds()/int64(1e6), err.Error())
	glog.Error(msg)
	if err == ErrBusy {
		time.Sleep(20 * time.Millisecond)
	}
}
