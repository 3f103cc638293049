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
	"os"
	"path/filepath"
	"testing"
)

func defaultsWithListener() Config {
	c := Conf
	c.SetListeners([]string{"127.0.0.1:5080"})
	return c
}

func TestValidateHandlerSelection(t *testing.T) {
	c := defaultsWithListener()
	if err := c.Validate(); err != nil {
		t.Errorf("default config rejected: %s", err)
	}

	c = defaultsWithListener()
	c.Handler = "sink"
	if err := c.Validate(); err != nil {
		t.Errorf("sink rejected: %s", err)
	}

	c = defaultsWithListener()
	c.Handler = "teapot"
	if err := c.Validate(); err == nil {
		t.Error("unknown handler accepted")
	}
}

func TestValidateRelayNeedsTarget(t *testing.T) {
	c := defaultsWithListener()
	c.Handler = "relay"
	if err := c.Validate(); err == nil {
		t.Error("relay without target accepted")
	}

	c = defaultsWithListener()
	c.Handler = "relay"
	c.Relay.Target.Addr = "127.0.0.1:6080"
	if err := c.Validate(); err != nil {
		t.Errorf("relay with static target rejected: %s", err)
	}

	c = defaultsWithListener()
	c.Handler = "relay"
	c.EtcdEnabled = true
	c.Relay.TargetName = "downstream"
	if err := c.Validate(); err != nil {
		t.Errorf("relay with registry target rejected: %s", err)
	}
}

func TestValidateEtcdNeedsServiceName(t *testing.T) {
	c := defaultsWithListener()
	c.EtcdEnabled = true
	c.ServiceName = ""
	if err := c.Validate(); err == nil {
		t.Error("etcd registration without a service name accepted")
	}
}

func TestValidatePathsRootedUnderRootDir(t *testing.T) {
	c := Conf
	c.RootDir = "/opt/qwserv"
	c.StateLogDir = "logs"
	c.PidFileName = "run/qwserv.pid"
	if err := c.validatePathAndFileNames(); err != nil {
		t.Fatalf("validate paths: %s", err)
	}
	if c.StateLogDir != "/opt/qwserv/logs" {
		t.Errorf("StateLogDir = %q", c.StateLogDir)
	}
	if c.PidFileName != "/opt/qwserv/run/qwserv.pid" {
		t.Errorf("PidFileName = %q", c.PidFileName)
	}

	c.StateLogDir = "/var/log/qwserv"
	c.validatePathAndFileNames()
	if c.StateLogDir != "/var/log/qwserv" {
		t.Errorf("absolute StateLogDir rewritten to %q", c.StateLogDir)
	}
}

func TestLoadConfig(t *testing.T) {
	defer func(saved Config) { Conf = saved }(Conf)

	file := filepath.Join(t.TempDir(), "qwserv.toml")
	content := `
Handler = "relay"
HttpMonAddr = "127.0.0.1:8088"

[[Listener]]
Addr = "127.0.0.1:5080"

[Relay.Target]
Addr = "127.0.0.1:6080"
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %s", err)
	}
	if err := LoadConfig(file); err != nil {
		t.Fatalf("LoadConfig: %s", err)
	}
	if Conf.Handler != "relay" {
		t.Errorf("Handler = %q, want relay", Conf.Handler)
	}
	if Conf.Relay.Target.Addr != "127.0.0.1:6080" {
		t.Errorf("Relay.Target.Addr = %q", Conf.Relay.Target.Addr)
	}
	if len(Conf.Listener) != 1 || Conf.Listener[0].Addr != "127.0.0.1:5080" {
		t.Errorf("Listener = %+v", Conf.Listener)
	}
	// values the file does not mention keep their defaults
	if Conf.ServiceName != "qwserv" {
		t.Errorf("ServiceName = %q, want qwserv", Conf.ServiceName)
	}
	if !Conf.StateLogEnabled {
		t.Error("StateLogEnabled default lost")
	}
}
