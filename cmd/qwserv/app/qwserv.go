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

/*
Quadwire framing server
*/
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"quadwire/pkg/cmd"
	"quadwire/pkg/initmgr"
	"quadwire/pkg/version"
)

func Main() {
	defer initmgr.Finalize()

	var cmdServe Serve
	cmdServe.Init("serve", "run the framing server")
	cmd.Register(&cmdServe)

	if command, args := cmd.ParseCommandLine(); command != nil {
		if err := command.Parse(args); err == nil {
			command.Exec()
		} else {
			fmt.Printf("* command '%s' failed. %s\n", command.GetName(), err)
		}
	} else {
		execDefault()
	}
}

func execDefault() {
	progName := filepath.Base(os.Args[0])
	var option cmd.Option
	var displayVersion bool
	var configFilename string
	option.BoolOption(&displayVersion, "version", false, "display version info")
	option.StringOption(&configFilename, "c|config", "", "specify toml config file")

	option.Usage = func() {
		fmt.Printf(`
NAME
  %s - Quadwire framing server

USAGE
  %s <-version>
  %s <-c|-config=<config file>
  %s <options> <command>
  %s <command> <options>
`, progName, progName, progName, progName, progName)
		cmd.WriteCommand(os.Stdout)
	}
	if err := option.Parse(os.Args[1:]); err == nil {
		if displayVersion {
			version.PrintVersionInfo()
			if configFilename == "" {
				return
			}
		}
		if configFilename == "" {
			option.Usage()
			return
		}
		// qwserv runs as a single process; with just a config file given,
		// serve in place instead of handing off to a manager.
		var serve Serve
		serve.Init("serve", "run the framing server")
		if err := serve.Parse([]string{fmt.Sprintf("-config=%s", configFilename)}); err == nil {
			serve.Exec()
		}
	}
}
