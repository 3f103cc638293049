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

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"quadwire/pkg/discovery"
	"quadwire/pkg/initmgr"
	"quadwire/pkg/io"
	otelCfg "quadwire/pkg/logging/otel/config"
	"quadwire/pkg/logging/sfx"
	"quadwire/pkg/service"
)

var (
	Initializer initmgr.IInitializer = initmgr.NewInitializer(initialize, finalize)

	Conf = Config{
		Config:  service.DefaultConfig,
		Handler: "echo",

		StateLogEnabled: true,

		StateLogDir: "./",
		PidFileName: "qwserv.pid",
		LogLevel:    "info",
		ClusterName: "quadwire",
		ServiceName: "qwserv",

		Relay: RelayConfig{
			Outbound: io.DefaultOutboundConfig,
		},
		Etcd: *discovery.NewConfig("127.0.0.1:2379"),
		OTEL: otelCfg.Config{
			AppName: "qwserv",
		},
	}
)

// RelayConfig points the relay handler at its downstream peer. Target is
// ignored when EtcdEnabled is set and TargetName resolves through the
// registry instead.
type RelayConfig struct {
	Target     io.ServiceEndpoint
	TargetName string
	Outbound   io.OutboundConfig
}

type Config struct {
	service.Config

	RootDir     string
	StateLogDir string

	HttpMonAddr string
	PidFileName string

	// Handler selects what the server does with received envelopes:
	// "echo", "sink" or "relay".
	Handler string

	StateLogEnabled bool
	EtcdEnabled     bool

	LogLevel    string
	ClusterName string

	// ServiceName is the name this server registers its listener addresses
	// under when EtcdEnabled is set.
	ServiceName string

	Relay RelayConfig
	Etcd  discovery.Config
	OTEL  otelCfg.Config
	Sfx   sfx.Config
}

func (c *Config) Dump() {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.Encode(c)
	glog.Info(buf.String())
}

// set path to be under Config.RootDir if path is empty or not specified as absolute path
func (c *Config) validatePath(path *string) {
	if path != nil {
		if len(*path) == 0 {
			*path = filepath.Clean(c.RootDir + "/")
		} else if !filepath.IsAbs(*path) {
			*path = filepath.Clean(c.RootDir + "/" + *path)
		}
	}
}

func (c *Config) validatePathAndFileNames() (err error) {
	if len(c.RootDir) == 0 {
		c.RootDir = filepath.Dir(os.Args[0])
	}
	c.validatePath(&c.StateLogDir)
	c.validatePath(&c.PidFileName)
	return
}

func (c *Config) Validate() (err error) {
	c.Config.SetDefaultIfNotDefined()
	switch c.Handler {
	case "echo", "sink":
	case "relay":
		if len(c.Relay.Target.Addr) == 0 &&
			!(c.EtcdEnabled && len(c.Relay.TargetName) != 0) {
			err = fmt.Errorf("relay handler needs Relay.Target or Relay.TargetName with EtcdEnabled")
		}
	default:
		err = fmt.Errorf("unknown handler %q", c.Handler)
	}
	if err == nil && c.EtcdEnabled && len(c.ServiceName) == 0 {
		err = fmt.Errorf("ServiceName required when EtcdEnabled is set")
	}
	if err == nil {
		err = c.Config.Validate()
	}
	if err != nil {
		glog.Errorf("config error: %s", err)
	}
	return
}

func LoadConfig(file string) (err error) {
	if _, err = toml.DecodeFile(file, &Conf); err != nil {
		glog.Exitf("config error : %s", err)
		return
	}
	if err = Conf.validatePathAndFileNames(); err != nil {
		return
	}
	err = Conf.Validate()
	return
}

func initialize(args ...interface{}) (err error) {
	sz := len(args)
	if sz < 1 {
		err = fmt.Errorf("a string config file name argument expected")
		return
	}
	filename, ok := args[0].(string)

	if ok == false {
		err = fmt.Errorf("wrong argument type. a string config file name expected")
		return
	}
	err = LoadConfig(filename)
	return
}

func finalize() {
}
