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

// qwload drives a synthetic request load against a qwserv instance and
// reports latency percentiles per request type.
package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"quadwire/pkg/client"
	"quadwire/pkg/cmd"
	"quadwire/pkg/logging"
	"quadwire/pkg/version"
)

type (
	SyncTestDriver struct {
		cmd.Command

		cmdOpts CmdOptions
		config  Config

		reqSequence RequestSequence
		stats       Statistics
		movingStats Statistics
		tmStart     time.Time

		randgen *RandomGen
	}
	CmdOptions struct {
		cfgFile string

		server          string
		requestPattern  string
		compress        bool
		numExecutor     int
		payloadLen      int
		numReqPerSecond int
		runningTime     int
		statOutputRate  int
		httpMonAddr     string
		version         bool
		logLevel        string
		isVariable      bool
	}
)

var (
	td                     = SyncTestDriver{}
	kDefaultServerAddr     = "127.0.0.1:5080"
	kDefaultRequestPattern = "C:3,V:1,P:1"
)

const (
	kDefaultPayloadLength   = 2048
	kDefaultNumReqPerSecond = 1000
	kDefaultNumExecutor     = 1
	kDefaultRunningTime     = 100
	kDefaultStatOutputRate  = 10
)

func (d *SyncTestDriver) setDefaultConfig() {
	d.config.SetDefault()
	d.config.Server.Addr = kDefaultServerAddr
	d.config.RequestPattern = kDefaultRequestPattern
	d.config.NumExecutor = kDefaultNumExecutor
	d.config.PayloadLen = kDefaultPayloadLength
	d.config.NumReqPerSecond = kDefaultNumReqPerSecond
	d.config.RunningTime = kDefaultRunningTime
	d.config.StatOutputRate = kDefaultStatOutputRate
	d.config.isVariable = false
}

func (d *SyncTestDriver) Init(name string, desc string) {
	d.Command.Init(name, desc)
	d.StringOption(&d.cmdOpts.server, "s|server", kDefaultServerAddr, "specify server address")
	d.StringOption(&d.cmdOpts.cfgFile, "c|config", "", "specify toml configuration file name")
	d.StringOption(&d.cmdOpts.requestPattern, "p|request-pattern", kDefaultRequestPattern, `specify request pattern, a sequence of requests to be
	invoked in format
	  <Req>:<num>[{,<Req>:<num>}]
	Supported type of Requests:
	  C    CALL
	  V    CALL with payload verification
	  P    PING
	`)
	d.BoolOption(&d.cmdOpts.isVariable, "var-load|variable-load", false, "specify if you want to vary the payload length and throughput throughout the test")
	d.BoolOption(&d.cmdOpts.compress, "compress", false, "specify if compressing the payload")
	d.IntOption(&d.cmdOpts.numExecutor, "n|num-executor", kDefaultNumExecutor, "specify the number of executors to be running in parallel")
	d.IntOption(&d.cmdOpts.payloadLen, "l|payload-length", kDefaultPayloadLength, "specify payload length")
	d.IntOption(&d.cmdOpts.numReqPerSecond, "f|num-req-per-second", kDefaultNumReqPerSecond, "specify expected throughput (number of requests per second)")
	d.IntOption(&d.cmdOpts.runningTime, "t|running-time", kDefaultRunningTime, "specify driver's running time in second")
	d.IntOption(&d.cmdOpts.statOutputRate, "o|stat-output-rate", kDefaultStatOutputRate, "specify how often to output statistic information in second\n\tfor the period of time.")
	d.StringOption(&d.cmdOpts.httpMonAddr, "mon-addr|monitoring-address", "", "specify the http monitoring address. \n\toverride HttpMonAddr in config file")
	d.BoolOption(&d.cmdOpts.version, "version", false, "display version information.")
	d.StringOption(&d.cmdOpts.logLevel, "log-level", "info", "specify log level")

	t := &SyncTestDriver{}
	t.setDefaultConfig()

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.Encode(&t.config)
	d.AddDetails("\tConfig properties and default values if not defined:\n" +
		"\t\t" + strings.Replace(buf.String(), "\n", "\n\t\t", -1))

	d.AddExample(name+" -s 127.0.0.1:5080",
		"\trun the driver against server listening on 127.0.0.1:5080 with default \n\toptions")
	d.AddExample(name+" -c config.toml", "\trun the driver with options specified in config.toml")
}

func (d *SyncTestDriver) Parse(args []string) (err error) {
	if err = d.FlagSet.Parse(args); err != nil {
		return
	}
	d.setDefaultConfig()

	if len(d.cmdOpts.cfgFile) != 0 {
		if _, err := toml.DecodeFile(d.cmdOpts.cfgFile, &d.config); err != nil {
			glog.Exitf("failed to load config file %s. %s", d.cmdOpts.cfgFile, err)
		}
	}

	if d.cmdOpts.server != kDefaultServerAddr {
		d.config.Server.Addr = d.cmdOpts.server
	}
	if d.cmdOpts.compress {
		d.config.Compress = true
	}
	if d.cmdOpts.isVariable {
		d.config.isVariable = true
	}
	if d.cmdOpts.requestPattern != kDefaultRequestPattern {
		d.config.RequestPattern = d.cmdOpts.requestPattern
	}
	if d.cmdOpts.numExecutor != kDefaultNumExecutor {
		d.config.NumExecutor = d.cmdOpts.numExecutor
	}
	if d.cmdOpts.payloadLen != kDefaultPayloadLength {
		d.config.PayloadLen = d.cmdOpts.payloadLen
	}
	if d.cmdOpts.numReqPerSecond != kDefaultNumReqPerSecond {
		d.config.NumReqPerSecond = d.cmdOpts.numReqPerSecond
	}
	if d.cmdOpts.runningTime != kDefaultRunningTime {
		d.config.RunningTime = d.cmdOpts.runningTime
	}
	if d.cmdOpts.statOutputRate != kDefaultStatOutputRate {
		d.config.StatOutputRate = d.cmdOpts.statOutputRate
	}
	if d.cmdOpts.httpMonAddr != "" {
		d.config.HttpMonAddr = d.cmdOpts.httpMonAddr
	}
	if d.config.HttpMonAddr != "" && !strings.Contains(d.config.HttpMonAddr, ":") {
		d.config.HttpMonAddr = ":" + d.config.HttpMonAddr
	}

	err = logging.Initialize(d.cmdOpts.logLevel)
	return
}

func (d *SyncTestDriver) PrintTestSetup() {
	fmt.Println(`
Test Configuration:
--------------------------------------------------------------------`)
	fmt.Printf("To invoke the following request(s) in sequence repeatedly with %d test executor(s)\n", d.config.NumExecutor)
	d.reqSequence.PrettyPrint(os.Stdout)

	if d.config.isVariable {
		fmt.Printf("at variable rate of requests with mean of (%d) request(s) per second for one test executor\n", d.config.NumReqPerSecond)
		fmt.Printf("for about (%d) second(s).\n\n", d.config.RunningTime)
		fmt.Printf("The payload length is also variable with mean size of (%d) byte(s). \n\n", d.config.PayloadLen)
	} else {
		fmt.Printf("at the rate of no more than (%d) request(s) per second for one test executor\n", d.config.NumReqPerSecond)
		fmt.Printf("for about (%d) second(s).\n\n", d.config.RunningTime)
		fmt.Printf("The payload length is fixed at (%d) byte(s). \n\n", d.config.PayloadLen)
	}
	fmt.Printf("Statistic information will be printed for every (%d) second(s).\n\n\n\n", d.config.StatOutputRate)
}

func (d *SyncTestDriver) Prepare() bool {
	// the pool is three times the requested length so variable-length
	// payloads can start anywhere in the first third
	pool := make([]byte, d.config.PayloadLen*3)
	rand.Read(pool)

	seed := rand.NewSource(time.Now().UnixNano())
	d.randgen = &RandomGen{
		pool:       pool,
		randNum:    rand.New(seed),
		payloadLen: d.config.PayloadLen,
		tp:         d.config.NumReqPerSecond,
		isVariable: d.config.isVariable,
	}

	d.Validate()
	d.reqSequence.initFromPattern(d.config.RequestPattern)
	d.PrintTestSetup()
	return true
}

func (d *SyncTestDriver) Exec() {
	var wg sync.WaitGroup
	chDone := make(chan bool)

	if d.config.NumExecutor <= 0 {
		glog.Errorf("number of executor specified is zero")
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer := time.NewTimer(time.Duration(d.config.RunningTime) * time.Second)
		ticker := time.NewTicker(time.Duration(d.config.StatOutputRate) * time.Second)
	loop:
		for {
			select {
			case <-timer.C:
				timer.Stop()
				ticker.Stop()
				close(chDone)
				break loop
			case <-chDone:
				break loop
			case <-ticker.C:
				d.movingStats.PrettyPrint(os.Stdout)
				d.movingStats.Reset()
			}
		}
	}()

	d.tmStart = time.Now()
	d.stats.Init()
	d.movingStats.Init()
	for i := 0; i < d.config.NumExecutor; i++ {
		cli, err := client.New(d.config.Config)
		if err != nil {
			glog.Error(err)
			return
		}
		eng := &TestEngine{
			rdgen:           d.randgen,
			reqSequence:     d.reqSequence,
			client:          cli,
			stats:           &d.stats,
			movingStats:     &d.movingStats,
			numReqPerSecond: d.config.NumReqPerSecond,
		}
		eng.Init()
		wg.Add(1)
		go eng.Run(&wg, chDone)
	}
	if d.config.HttpMonAddr != "" {
		go func() {
			if err := http.ListenAndServe(d.config.HttpMonAddr, nil); err != nil {
				glog.Warningf("fail to serve HTTP on %s, err: %s", d.config.HttpMonAddr, err)
			}
		}()
	}
	wg.Wait()
}

func main() {
	td.Init("qwload", "test driver")
	if err := td.Parse(os.Args[1:]); err != nil {
		glog.Exitf("failed with %s", err.Error())
	}

	if td.cmdOpts.version {
		version.PrintVersionInfo()
		return
	}

	if td.Prepare() && td.config.RunningTime > 0 {
		td.Exec()
		fmt.Println("\n\nFINAL")
		td.stats.PrettyPrint(os.Stdout)
	}
}
