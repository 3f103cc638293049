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

package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/glog"

	"quadwire/cmd/qwserv/config"
	"quadwire/cmd/qwserv/handler"
	"quadwire/cmd/qwserv/stats"
	"quadwire/pkg/cmd"
	"quadwire/pkg/discovery"
	"quadwire/pkg/initmgr"
	"quadwire/pkg/logging"
	"quadwire/pkg/logging/otel"
	"quadwire/pkg/logging/sfx"
	"quadwire/pkg/util"
)

var (
	kDefaultLogLevel = "info"
)

type Serve struct {
	cmd.Command
	optConfigFile      string
	optLogLevel        string
	optListenAddresses util.StringListFlags
	optHttpMonAddr     string
}

func (c *Serve) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optConfigFile, "c|config", "", "specify toml config file")
	c.StringOption(&c.optLogLevel, "log-level", kDefaultLogLevel, "specify log level")
	c.ValueOption(&c.optListenAddresses, "listen", "specify listening address. Override Listener in config file")
	c.StringOption(&c.optHttpMonAddr, "mon-addr|monitoring-address", "", "specify the http monitoring address. \n\toverride HttpMonAddr in config file")
}

func (c *Serve) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	if len(c.optConfigFile) == 0 {
		fmt.Fprintf(os.Stderr, "\n\n*** missing config option ***\n\n")
		c.FlagSet.Usage()
		os.Exit(-1)
	}
	if _, serr := os.Stat(c.optConfigFile); errors.Is(serr, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "\n\n***  config file \"%s\" not found ***\n\n", c.optConfigFile)
		os.Exit(-1)
	}
	return
}

func (c *Serve) Exec() {
	initmgr.Register(config.Initializer, c.optConfigFile)
	initmgr.Init() //initalize config first as others depend on it

	cfg := &config.Conf

	pidFile := cfg.PidFileName

	if data, err := os.ReadFile(pidFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					glog.Exitf("process pid: %d in %s is still running\n", pid, pidFile)
				}
			}
		}
	}
	os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
	defer os.Remove(pidFile)

	if len(cfg.LogLevel) == 0 || c.optLogLevel != kDefaultLogLevel {
		cfg.LogLevel = c.optLogLevel
	}
	if len(c.optListenAddresses) != 0 {
		cfg.SetListeners(c.optListenAddresses)
	}
	if len(c.optHttpMonAddr) != 0 {
		cfg.HttpMonAddr = c.optHttpMonAddr
	}
	if _, err := strconv.Atoi(cfg.HttpMonAddr); err == nil {
		cfg.HttpMonAddr = ":" + cfg.HttpMonAddr
	}

	initmgr.RegisterWithFuncs(logging.Initialize, logging.Finalize, cfg.LogLevel)
	initmgr.RegisterWithFuncs(otel.Initialize, otel.Finalize, &cfg.OTEL)
	initmgr.RegisterWithFuncs(sfx.Initialize, nil, &cfg.Sfx)
	initmgr.RegisterWithFuncs(stats.Initialize, stats.Finalize, "0", cfg.StateLogDir)
	if cfg.EtcdEnabled {
		initmgr.RegisterWithFuncs(discovery.Initialize, discovery.Finalize, &cfg.Etcd, cfg.ClusterName)
	}

	initmgr.Init()

	service := handler.NewServerService(cfg)

	// The listener gauges go into the state log when the service is built,
	// so the writers may only be attached now.
	stats.RunCollector()

	if len(cfg.HttpMonAddr) != 0 {
		stats.InitHttpMonitor()
		go func() {
			glog.Infof("to serve HTTP on %s", cfg.HttpMonAddr)
			if err := http.ListenAndServe(cfg.HttpMonAddr, &stats.HttpServerMux); err != nil {
				glog.Warningf("fail to serve HTTP on %s, err: %s", cfg.HttpMonAddr, err)
			}
		}()
	}

	if cfg.EtcdEnabled {
		registerEndpoints(cfg)
		defer deregisterEndpoints(cfg)
	}

	glog.Infof("qwserv started. handler: %s", cfg.Handler)
	service.Run()
}

func registerEndpoints(cfg *config.Config) {
	registry := discovery.GetRegistry()
	for i := range cfg.Listener {
		if err := registry.Register(cfg.ServiceName, cfg.Listener[i].ServiceEndpoint); err != nil {
			glog.Warningf("register %s %s: %s", cfg.ServiceName, cfg.Listener[i].Addr, err)
		}
	}
}

func deregisterEndpoints(cfg *config.Config) {
	registry := discovery.GetRegistry()
	for i := range cfg.Listener {
		if err := registry.Deregister(cfg.ServiceName, cfg.Listener[i].ServiceEndpoint); err != nil {
			glog.Warningf("deregister %s %s: %s", cfg.ServiceName, cfg.Listener[i].Addr, err)
		}
	}
}
