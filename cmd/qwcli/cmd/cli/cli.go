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

// Package cli implements the qwcli client subcommands.
package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"quadwire/pkg/client"
	"quadwire/pkg/cmd"
	"quadwire/pkg/logging"
	"quadwire/pkg/util"
)

const (
	kDefaultServerAddress = "127.0.0.1:5080"
	kDefaultLogLevel      = "warning"

	kPayloadTypeString    = 0
	kPayloadTypeHexString = 1
	kPayloadTypeGenerated = 2
	kPayloadTypeFile      = 3
)

type clientCommandT struct {
	cmd.Command
	client.Config
	optServerAddr string
	optLogLevel   string
	optCfgFile    string
	optCompress   bool
}

func (c *clientCommandT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.Config.SetDefault()
	c.StringOption(&c.optServerAddr, "s|server", kDefaultServerAddress, "specify server address")
	c.StringOption(&c.optLogLevel, "log-level", kDefaultLogLevel, "specify log level")
	c.StringOption(&c.optCfgFile, "c|config", "", "specify toml configuration file name")
	c.BoolOption(&c.optCompress, "compress", false, "compress the payload when it makes it smaller")
}

func (c *clientCommandT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	if err = logging.Initialize(c.optLogLevel); err != nil {
		return
	}
	if len(c.optCfgFile) != 0 {
		tmp := &struct {
			Config *client.Config
		}{Config: &c.Config}
		if _, err = toml.DecodeFile(c.optCfgFile, tmp); err != nil {
			glog.Exitf("failed to load config file %s. %s", c.optCfgFile, err)
		}
	}
	// flags given on the command line win over the config file
	if c.Server.Addr == "" || c.optServerAddr != kDefaultServerAddress {
		c.Server.Addr = c.optServerAddr
	}
	if c.optCompress {
		c.Compress = true
	}
	return
}

func (c *clientCommandT) newClient() (client.IClient, error) {
	return client.New(c.Config)
}

func (c *clientCommandT) isOk(err error) bool {
	if err == nil {
		fmt.Printf("* command '%s' successful\n", c.GetName())
		return true
	}
	fmt.Printf("* command '%s' failed: %s\n", c.GetName(), err)
	return false
}

type cmdEchoT struct {
	clientCommandT
	optPayloadType uint
	optPayloadLen  uint
	payload        []byte
}

func (c *cmdEchoT) Init(name string, desc string) {
	c.clientCommandT.Init(name, desc)
	c.UintOption(&c.optPayloadType, "pt|payload-type", kPayloadTypeString,
		"specify the type of the payload. \n   \t0: string\n   \t1: hex string\n   \t2: generated\n   \t3: file")
	c.UintOption(&c.optPayloadLen, "pl|payload-len", 1024, "specify the length of the generated payload")
	c.SetSynopsis("[option] <payload>")
}

func (c *cmdEchoT) Parse(args []string) (err error) {
	if err = c.clientCommandT.Parse(args); err != nil {
		return
	}
	switch c.optPayloadType {
	case kPayloadTypeString:
		if c.NArg() < 1 {
			return fmt.Errorf("payload not specified")
		}
		c.payload = []byte(c.Arg(0))
	case kPayloadTypeHexString:
		if c.NArg() < 1 {
			return fmt.Errorf("payload not specified")
		}
		if c.payload, err = hex.DecodeString(c.Arg(0)); err != nil {
			return
		}
	case kPayloadTypeGenerated:
		rand.Seed(time.Now().Unix())
		c.payload = make([]byte, c.optPayloadLen)
		for i := uint(0); i < c.optPayloadLen; i++ {
			c.payload[i] = byte(rand.Intn(255))
		}
	case kPayloadTypeFile:
		if c.NArg() < 1 {
			return fmt.Errorf("payload file not specified")
		}
		if c.payload, err = os.ReadFile(c.Arg(0)); err != nil {
			return
		}
	default:
		err = fmt.Errorf("payload type %d not supported", c.optPayloadType)
	}
	return
}

func (c *cmdEchoT) Exec() {
	c.Validate()

	cli, err := c.newClient()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cli.Close()

	start := time.Now()
	value, err := cli.Call(c.payload)
	elapsed := time.Since(start)
	if !c.isOk(err) {
		return
	}
	fmt.Printf("  round trip  : %s\n", elapsed)
	if bytes.Equal(value, c.payload) {
		fmt.Printf("  echoed back : %d byte(s), intact\n", len(value))
	} else {
		fmt.Printf("  echoed back : %d byte(s)\n", len(value))
		fmt.Printf("  Value: [ %s ]\n", util.ToPrintableAndHexString(value))
	}
}

type cmdPingT struct {
	clientCommandT
	optNumPings uint
	optInterval uint
}

func (c *cmdPingT) Init(name string, desc string) {
	c.clientCommandT.Init(name, desc)
	c.UintOption(&c.optNumPings, "n|num-pings", 10, "specify the number of pings")
	c.UintOption(&c.optInterval, "i|interval", 0, "specify the milliseconds to wait between pings")
	c.SetSynopsis("[option]")
}

func (c *cmdPingT) Exec() {
	c.Validate()

	cli, err := c.newClient()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cli.Close()

	var numOk, numFailed uint
	var sum, min, max time.Duration
	for i := uint(0); i < c.optNumPings; i++ {
		start := time.Now()
		err := cli.Ping()
		elapsed := time.Since(start)
		if err != nil {
			numFailed++
			fmt.Printf("  ping %-3d: %s\n", i, err)
		} else {
			numOk++
			sum += elapsed
			if min == 0 || elapsed < min {
				min = elapsed
			}
			if elapsed > max {
				max = elapsed
			}
			fmt.Printf("  ping %-3d: %s\n", i, elapsed)
		}
		if c.optInterval != 0 && i+1 < c.optNumPings {
			time.Sleep(time.Duration(c.optInterval) * time.Millisecond)
		}
	}
	fmt.Printf("  %d ok, %d failed\n", numOk, numFailed)
	if numOk != 0 {
		fmt.Printf("  latency min/avg/max = %s/%s/%s\n", min, sum/time.Duration(numOk), max)
	}
}

func init() {
	echo := &cmdEchoT{}
	echo.Init("echo", "send a payload and read it back")

	ping := &cmdPingT{}
	ping.Init("ping", "measure round-trip latency with bare envelopes")

	cmd.RegisterNewGroup("client commands", echo, ping)
}
