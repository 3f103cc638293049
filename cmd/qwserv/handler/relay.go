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

package handler

import (
	"github.com/golang/glog"

	"quadwire/cmd/qwserv/config"
	"quadwire/pkg/discovery"
	"quadwire/pkg/errors"
	"quadwire/pkg/io"
)

var _ io.IRequestHandler = (*RelayHandler)(nil)

// RelayHandler forwards every envelope to a downstream peer and replies
// with whatever the peer sent back. The wire carries no status, so a
// downstream failure is answered with an empty envelope; the error shows
// up in the stats instead.
type RelayHandler struct {
	conf *config.RelayConfig
	proc *io.OutboundProcessor
}

func NewRelayHandler(conf *config.RelayConfig) *RelayHandler {
	return &RelayHandler{conf: conf}
}

func (rh *RelayHandler) Init() {
	rh.conf.Outbound.SetDefaultIfNotDefined()
	target := rh.conf.Target
	if len(rh.conf.TargetName) != 0 {
		if r := discovery.GetRegistry(); r != nil {
			eps, err := r.Resolve(rh.conf.TargetName)
			if err != nil || len(eps) == 0 {
				glog.Fatalf("relay: cannot resolve '%s': %v", rh.conf.TargetName, err)
			}
			target = eps[0]
		} else if len(target.Addr) == 0 {
			glog.Fatal("relay: TargetName set but registry not connected")
		}
	}
	glog.Infof("relay target %s", target.GetConnString())
	rh.proc = io.NewOutboundProcessor(target, &rh.conf.Outbound)
	rh.proc.Start()
}

func (rh *RelayHandler) Process(reqCtx io.IRequestContext) error {
	reqLen := uint32(len(reqCtx.GetPayload()))

	buf, pool := reqCtx.GiveUpBuffer()
	outReq := io.NewOutboundRequestContextWithBuffer(reqCtx.GetCtx(), buf, pool)
	if err := rh.proc.SendRequest(outReq); err != nil {
		outReq.OnComplete()
		reqCtx.Reply(io.NewEmptyResponseContext())
		onRequestDone("relay", reqCtx.GetReceiveTime(), reqLen, 0, true)
		return err
	}

	select {
	case <-reqCtx.GetCtx().Done():
		reqCtx.Reply(io.NewEmptyResponseContext())
		onRequestDone("relay", reqCtx.GetReceiveTime(), reqLen, 0, true)
		return reqCtx.GetCtx().Err()

	case resp := <-outReq.GetResponseCh():
		failed := resp.GetStatus() != errors.KErrNoError
		var reply io.IResponseContext
		if failed {
			reply = io.NewEmptyResponseContext()
		} else {
			reply = io.NewResponseContext(resp.GetEncoded())
		}
		respLen := reply.GetMsgSize()
		resp.OnComplete()
		reqCtx.Reply(reply)
		onRequestDone("relay", reqCtx.GetReceiveTime(), reqLen, respLen, failed)
	}
	return nil
}

func (rh *RelayHandler) OnKeepAlive(connector *io.Connector, reqCtx io.IRequestContext) error {
	reqCtx.Reply(io.NewEmptyResponseContext())
	return nil
}

func (rh *RelayHandler) Finish() {
	if rh.proc != nil {
		rh.proc.Shutdown()
		rh.proc.WaitShutdown()
	}
}
