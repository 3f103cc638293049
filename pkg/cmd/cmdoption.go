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

package cmd

import (
	"flag"
	"fmt"
	"strings"
)

// Option wraps a flag.FlagSet so one option can be registered under
// several names at once ("s|server"), with a usage block formatted the
// way PrintUsage expects.
type Option struct {
	flag.FlagSet
	optsDesc string
}

// register binds each |-separated alias of name through bind and records
// one usage entry covering all of them.
func (o *Option) register(name string, typeSuffix string, defDesc string, usage string, bind func(alias string)) {
	if name == "" {
		return
	}
	var aliases []string
	for _, n := range strings.Split(name, "|") {
		if n != "" {
			bind(n)
			aliases = append(aliases, "-"+n)
		}
	}
	opt := strings.Join(aliases, ", ")
	if typeSuffix != "" {
		opt += " " + typeSuffix
	}
	if defDesc != "" {
		o.optsDesc += fmt.Sprintf("  %s\n    \t%s\n    \t%s\n\n", opt, defDesc, usage)
	} else {
		o.optsDesc += fmt.Sprintf("  %s\n    \t%s \n\n", opt, usage)
	}
}

func (o *Option) ValueOption(value flag.Value, name string, usage string) {
	o.register(name, "value", "", usage, func(alias string) {
		o.Var(value, alias, "")
	})
}

func (o *Option) StringOption(p *string, name string, value string, usage string) {
	o.register(name, "string", fmt.Sprintf("(default %q)", value), usage, func(alias string) {
		o.StringVar(p, alias, value, "")
	})
}

func (o *Option) BoolOption(p *bool, name string, value bool, usage string) {
	o.register(name, "", fmt.Sprintf("(default %v)", value), usage, func(alias string) {
		o.BoolVar(p, alias, value, "")
	})
}

func (o *Option) IntOption(p *int, name string, value int, usage string) {
	o.register(name, "int", fmt.Sprintf("(default %v)", value), usage, func(alias string) {
		o.IntVar(p, alias, value, "")
	})
}

func (o *Option) UintOption(p *uint, name string, value uint, usage string) {
	o.register(name, "uint", fmt.Sprintf("(default %v)", value), usage, func(alias string) {
		o.UintVar(p, alias, value, "")
	})
}

func (o *Option) GetOptionDesc() string {
	return o.optsDesc
}
