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

package ioutil

import (
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/golang/glog"
)

// LogError logs a connection error at a severity matching how unusual it
// is. Resets and EOFs are everyday events on long-lived connections and
// only show up at high verbosity.
func LogError(err error) {
	if err == nil {
		return
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		glog.WarningDepth(1, err.Error())
		return
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || isConnClosed(err) {
		if glog.V(2) {
			glog.InfoDepth(1, err.Error())
		}
		return
	}
	glog.WarningDepth(1, err.Error())
}

func isConnClosed(err error) bool {
	opErr, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	if syscallErr, ok := opErr.Err.(*os.SyscallError); ok {
		return syscallErr.Err == syscall.ECONNRESET || syscallErr.Err == syscall.EPIPE
	}
	return strings.Contains(opErr.Err.Error(), "use of closed network connection")
}
