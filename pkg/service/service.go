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

// Package service runs one or more framed-message listeners behind a
// request handler and owns their lifecycle: accept loops, signal-driven
// shutdown, and the drain wait for in-flight requests.
package service

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/golang/glog"

	"quadwire/pkg/io"
)

type Service struct {
	listeners      []io.IListener
	wg             sync.WaitGroup
	chDone         chan bool
	config         Config
	requestHandler io.IRequestHandler
	inShutdown     int32
}

func New(config Config, reqHandler io.IRequestHandler, listeners ...io.IListener) (service *Service) {
	service = &Service{
		listeners:      listeners,
		chDone:         make(chan bool),
		config:         config,
		requestHandler: reqHandler,
	}
	return
}

// NewService creates the listeners named in cfg and a Service over them.
// A listener that cannot bind is logged and skipped; having none at all is
// fatal.
func NewService(cfg Config, reqHandler io.IRequestHandler) *Service {
	cfg.SetDefaultIfNotDefined()

	var listeners []io.IListener
	for _, lsnrCfg := range cfg.Listener {
		ioCfg := cfg.GetIoConfig(&lsnrCfg)
		ln, err := io.NewListener(lsnrCfg, &ioCfg, reqHandler)
		if err == nil {
			listeners = append(listeners, ln)
		} else {
			glog.Warningf("Cannot Listen on %s, err=%s", lsnrCfg.Addr, err.Error())
		}
	}
	if len(listeners) == 0 {
		glog.Fatal("No listener created")
	}

	return New(cfg, reqHandler, listeners...)
}

func (s *Service) serve(l io.IListener) {
	s.wg.Add(1)
	go func() {
		defer func() {
			if s.shuttingDown() {
				l.WaitForShutdownToComplete(s.config.ShutdownWaitTime.Duration)
			}
			s.wg.Done()
			glog.V(2).Info("Listener stopped")
		}()

		for {
			err := l.AcceptAndServe()
			if err != nil {
				if nerr, ok := err.(net.Error); ok && nerr.Temporary() {
					glog.V(2).Info("Temporary accept error: ", err)
					continue
				}
				if !s.shuttingDown() {
					glog.Warningf("%s accept error: %s", l.GetConnString(), err.Error())
				}
				return
			}
		}
	}()
}

// Run serves until Shutdown is called or a termination signal arrives. It
// returns after every listener has stopped and the handler has finished.
func (s *Service) Run() {
	s.initSignalHandler()
	s.requestHandler.Init()
	for _, ln := range s.listeners {
		s.serve(ln)
	}

	<-s.chDone
	for _, lsnr := range s.listeners {
		lsnr.Shutdown()
	}

	s.wg.Wait()
	s.requestHandler.Finish()
}

func (s *Service) shuttingDown() bool {
	return atomic.LoadInt32(&s.inShutdown) != 0
}

func (s *Service) Shutdown() {
	if atomic.CompareAndSwapInt32(&s.inShutdown, 0, 1) {
		close(s.chDone)
	}
}

func (s *Service) initSignalHandler() {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGURG)
	sigs := make(chan os.Signal, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func(sigCh chan os.Signal) {
		sig := <-sigCh
		glog.Infof("signal %d (%s) received", sig, sig)
		s.Shutdown()
	}(sigs)
}

func (s *Service) GetListeners() []io.IListener {
	return s.listeners
}
