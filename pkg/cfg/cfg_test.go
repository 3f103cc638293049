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

package cfg

import (
	"testing"
)

func TestReadFromTomlBytes(t *testing.T) {
	var conf Config
	raw := `
LogLevel = "info"

[Listener]
Addr = ":8080"
`
	if err := conf.ReadFromTomlBytes([]byte(raw)); err != nil {
		t.Fatal(err)
	}
	if v := conf.GetValue("LogLevel"); v != "info" {
		t.Errorf("LogLevel: got %v", v)
	}
	if v := conf.GetValue("Listener.Addr"); v != ":8080" {
		t.Errorf("Listener.Addr: got %v", v)
	}
	if v := conf.GetValue("Listener.NotAKey"); v != nil {
		t.Errorf("expected nil for undefined key, got %v", v)
	}
}

func TestKeyLookupCaseInsensitive(t *testing.T) {
	var conf Config
	if err := conf.ReadFromTomlBytes([]byte("[Listener]\nAddr=\":9090\"\n")); err != nil {
		t.Fatal(err)
	}
	if v := conf.GetValue("listener.addr"); v != ":9090" {
		t.Errorf("lowercase lookup: got %v", v)
	}
	if v := conf.GetValue("LISTENER.ADDR"); v != ":9090" {
		t.Errorf("uppercase lookup: got %v", v)
	}
}

func TestSetKeyValue(t *testing.T) {
	var conf Config
	conf.SetKeyValue("Outbound.ReconnectInterval", int64(100))
	if v := conf.GetValue("Outbound.ReconnectInterval"); v != int64(100) {
		t.Errorf("got %v", v)
	}
	conf.SetKeyValue("Outbound.ReconnectInterval", int64(250))
	if v := conf.GetValue("Outbound.ReconnectInterval"); v != int64(250) {
		t.Errorf("expected override, got %v", v)
	}
}

func TestMerge(t *testing.T) {
	var base, overrides Config
	if err := base.ReadFromTomlBytes([]byte("LogLevel=\"info\"\n[Listener]\nAddr=\":8080\"\n")); err != nil {
		t.Fatal(err)
	}
	if err := overrides.ReadFromTomlBytes([]byte("[Listener]\nAddr=\":6060\"\n")); err != nil {
		t.Fatal(err)
	}
	if err := base.Merge(&overrides); err != nil {
		t.Fatal(err)
	}
	if v := base.GetValue("Listener.Addr"); v != ":6060" {
		t.Errorf("merged value: got %v", v)
	}
	if v := base.GetValue("LogLevel"); v != "info" {
		t.Errorf("untouched value: got %v", v)
	}
}

func TestWriteTo(t *testing.T) {
	type listenerT struct {
		Addr string
	}
	type confT struct {
		LogLevel string
		Listener listenerT
	}
	var conf Config
	if err := conf.ReadFrom(&confT{LogLevel: "verbose", Listener: listenerT{Addr: ":5050"}}); err != nil {
		t.Fatal(err)
	}
	var out confT
	if err := conf.WriteTo(&out); err != nil {
		t.Fatal(err)
	}
	if out.LogLevel != "verbose" || out.Listener.Addr != ":5050" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
