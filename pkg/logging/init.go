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

package logging

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Config-file level names mapped onto glog -v verbosity.
var kLogLevels = map[string]string{
	"error":   "0",
	"warning": "0",
	"info":    "0",
	"verbose": "1",
	"debug":   "2",
}

// Initialize configures glog from a level name (or a bare verbosity
// number). A level given on the command line with -v wins over the config
// file. glog writes to files unless told otherwise; server processes want
// stderr.
func Initialize(args ...interface{}) (err error) {
	level := "info"
	if len(args) > 0 {
		var ok bool
		if level, ok = args[0].(string); !ok {
			return fmt.Errorf("a string log level argument expected")
		}
	}
	v, ok := kLogLevels[strings.ToLower(level)]
	if !ok {
		if _, aerr := strconv.Atoi(level); aerr != nil {
			return fmt.Errorf("unknown log level %q", level)
		}
		v = level
	}
	flag.Set("logtostderr", "true")
	if f := flag.Lookup("v"); f != nil && f.Value.String() == "0" {
		flag.Set("v", v)
	}
	return
}

func Finalize() {
	glog.Flush()
}
