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

package discovery

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/golang/glog"

	"quadwire/pkg/io"
	"quadwire/pkg/util"
)

// Watch reports changes to the endpoint set registered under name. The
// returned channel carries the full endpoint list after each change, nil
// when the set became empty. A broken watch is re-established after a
// pause. The channel is closed when ctx is done or the registry closes.
func (r *Registry) Watch(ctx context.Context, name string) (<-chan []io.ServiceEndpoint, error) {
	if r.client == nil {
		return nil, errNotInitialized
	}
	out := make(chan []io.ServiceEndpoint, 1)
	prefix := KeyEndpointPrefix(name)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		glog.V(1).Infof("start watcher for '%s'", name)

		wch := r.client.Watch(ctx, prefix, clientv3.WithPrefix())

		var retryTimer *util.TimerWrapper
		var chRetry <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.doneCh:
				return
			case resp, ok := <-wch:
				if !ok || resp.Canceled {
					glog.Infof("watch channel for '%s' closed, watch again", name)
					wch = nil
					if retryTimer == nil {
						retryTimer = util.NewTimerWrapper(kWatchRetryInterval)
						defer retryTimer.Stop()
					}
					retryTimer.Reset(kWatchRetryInterval)
					chRetry = retryTimer.GetTimeoutCh()
					continue
				}
				if len(resp.Events) == 0 {
					continue
				}
				r.notify(name, out)
			case <-chRetry:
				wch = r.client.Watch(ctx, prefix, clientv3.WithPrefix())
				chRetry = nil
				r.notify(name, out)
			}
		}
	}()
	return out, nil
}

// notify pushes the current endpoint set, replacing a pending stale one.
// The watch goroutine is the only sender, so the drain-then-send below
// cannot block.
func (r *Registry) notify(name string, out chan []io.ServiceEndpoint) {
	eps, err := r.Resolve(name)
	if err != nil {
		glog.V(1).Infof("resolve '%s': %v", name, err)
		eps = nil
	}
	select {
	case out <- eps:
	default:
		select {
		case <-out:
		default:
		}
		out <- eps
	}
}
