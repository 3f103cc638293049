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

// Package cfg implements the qwcli subcommand for generating server
// configuration files.
package cfg

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"quadwire/cmd/qwserv/config"
	pkgcfg "quadwire/pkg/cfg"
	"quadwire/pkg/cmd"
)

type cmdCfgGenT struct {
	cmd.Command
	optOutFileName  string
	optOverrideFile string
}

func (c *cmdCfgGenT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optOutFileName, "f|file-name", "config.toml", "specify the output file name. - writes to stdout")
	c.StringOption(&c.optOverrideFile, "m|merge", "", "specify a toml file whose properties override the defaults")
	c.SetSynopsis("[option]")
}

func (c *cmdCfgGenT) Exec() {
	c.Validate()

	var conf pkgcfg.Config
	if err := conf.ReadFrom(&config.Conf); err != nil {
		fmt.Printf("fail to load the default settings. %s\n", err)
		return
	}
	if c.optOverrideFile != "" {
		var overrides pkgcfg.Config
		if err := overrides.ReadFromTomlFile(c.optOverrideFile); err != nil {
			fmt.Printf("fail to read %s. %s\n", c.optOverrideFile, err)
			return
		}
		if err := conf.Merge(&overrides); err != nil {
			fmt.Printf("fail to merge %s. %s\n", c.optOverrideFile, err)
			return
		}
	}

	var w io.Writer = os.Stdout
	if c.optOutFileName != "-" {
		file, err := os.Create(c.optOutFileName)
		if err != nil {
			fmt.Printf("fail to create file %s. %s\n", c.optOutFileName, err)
			return
		}
		defer file.Close()
		w = file
	}
	writer := bufio.NewWriter(w)
	if err := conf.WriteToToml(writer); err != nil {
		fmt.Println(err)
		return
	}
	writer.Flush()
}

func init() {
	c := &cmdCfgGenT{}
	c.Init("config", "generate a qwserv configuration file with the default settings")
	cmd.Register(c)
}
