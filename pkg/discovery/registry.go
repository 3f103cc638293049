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
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	"github.com/golang/glog"

	"quadwire/pkg/io"
	"quadwire/pkg/util"
)

var (
	errNotInitialized = errors.New("registry client not initialized")
)

const (
	kCachePartitions       = 8
	kRegisterRetryInterval = 5 * time.Second
	kWatchRetryInterval    = 10 * time.Second
)

// Registry keeps service endpoints in etcd under the key prefix
// "<KeyPrefix><cluster><delimiter>". Registered endpoints are leased and
// kept alive; resolution falls back to the last known good set when etcd
// is unreachable.
type Registry struct {
	config    Config
	keyPrefix string
	client    *clientv3.Client
	cache     *util.CMap
	mtx       sync.Mutex
	regs      map[string]*registration
	doneCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type registration struct {
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
}

var (
	shuffleDone = false
	setOnce     sync.Once
)

func NewRegistry(cfg *Config, clusterName string) *Registry {

	var client *clientv3.Client
	var err error

	now := time.Now()
	m := now.Second() % len(cfg.Endpoints)

	// Shuffle to balance load
	if m > 0 && !shuffleDone {
		endp := make([]string, len(cfg.Endpoints))
		copy(endp[0:], cfg.Endpoints[0:])
		copy(cfg.Endpoints[0:], endp[m:])
		copy(cfg.Endpoints[len(cfg.Endpoints)-m:], endp[0:m])
	}
	shuffleDone = true

	setOnce.Do(func() { // Bypass http_proxy for connecting to etcd.
		val := strings.Join(cfg.Endpoints, ",")
		curr := os.Getenv("NO_PROXY")
		if strings.Contains(curr, val) {
			return
		}
		if len(curr) > 0 {
			val += "," + curr
		}
		os.Setenv("NO_PROXY", val)
		os.Setenv("no_proxy", val)
	})

	for i := 0; i < cfg.MaxConnectAttempts; i++ {
		client, err = clientv3.New((*cfg).Config)

		if err == nil {
			break
		}

		if client != nil {
			client.Close()
		}

		if i >= cfg.MaxConnectAttempts-1 {
			glog.Warningf("registry: %v.", err)
			return nil
		}

		glog.Warningf("registry: %v. Retry ...", err)
		backoff := (i + 1) * 2
		if backoff > cfg.MaxConnectBackoff {
			backoff = cfg.MaxConnectBackoff
		}
		time.Sleep(time.Duration(backoff) * time.Second)
	}

	r := &Registry{
		client: client,
		config: *cfg,
		cache:  util.NewCMap(kCachePartitions),
		regs:   make(map[string]*registration),
		doneCh: make(chan struct{}),
	}

	r.keyPrefix = cfg.KeyPrefix + clusterName + TagCompDelimiter
	r.client.KV = namespace.NewKV(client.KV, r.keyPrefix)
	r.client.Watcher = namespace.NewWatcher(client.Watcher, r.keyPrefix)
	return r
}

func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.doneCh)

		r.mtx.Lock()
		for _, reg := range r.regs {
			reg.cancel()
		}
		r.regs = nil
		r.mtx.Unlock()

		if r.client != nil {
			r.client.Close()
		}
		r.wg.Wait()
	})
}

func (r *Registry) GetDoneCh() chan struct{} {
	return r.doneCh
}

// Register puts the endpoint under a lease and keeps the lease alive until
// Deregister or Close. A lost lease is re-registered in the background.
func (r *Registry) Register(name string, ep io.ServiceEndpoint) (err error) {
	if r.client == nil {
		return errNotInitialized
	}
	key := KeyEndpoint(name, ep.GetConnString())

	ctx, cancel := context.WithTimeout(context.Background(), r.config.RequestTimeout.Duration)
	lease, err := r.client.Grant(ctx, r.config.LeaseTTL)
	cancel()
	if err != nil {
		glog.Errorf("[ERROR]: lease grant: %v", err)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), r.config.RequestTimeout.Duration)
	_, err = r.client.Put(ctx, key, ep.GetConnString(), clientv3.WithLease(lease.ID))
	cancel()
	if err != nil {
		glog.Errorf("[ERROR]: register put: key=%s%s err=%v", r.keyPrefix, key, err)
		return
	}

	kaCtx, kaCancel := context.WithCancel(context.Background())
	kaCh, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		glog.Errorf("[ERROR]: lease keepalive: %v", err)
		return
	}

	r.mtx.Lock()
	if old := r.regs[key]; old != nil {
		old.cancel()
	}
	r.regs[key] = &registration{leaseID: lease.ID, cancel: kaCancel}
	r.mtx.Unlock()

	glog.Infof("registered: key=%s%s ttl=%ds", r.keyPrefix, key, r.config.LeaseTTL)

	r.wg.Add(1)
	go r.keepRegistered(kaCtx, kaCh, name, ep)
	return nil
}

// Deregister revokes the lease and removes the endpoint key.
func (r *Registry) Deregister(name string, ep io.ServiceEndpoint) (err error) {
	if r.client == nil {
		return errNotInitialized
	}
	key := KeyEndpoint(name, ep.GetConnString())

	r.mtx.Lock()
	reg := r.regs[key]
	delete(r.regs, key)
	r.mtx.Unlock()
	if reg == nil {
		return fmt.Errorf("'%s' not registered", key)
	}
	reg.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), r.config.RequestTimeout.Duration)
	_, err = r.client.Revoke(ctx, reg.leaseID)
	cancel()
	if err != nil {
		glog.Warningf("lease revoke: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), r.config.RequestTimeout.Duration)
	_, err = r.client.Delete(ctx, key)
	cancel()
	if err != nil {
		glog.Errorf("[ERROR]: deregister delete: key=%s%s err=%v", r.keyPrefix, key, err)
	}

	glog.Infof("deregistered: key=%s%s", r.keyPrefix, key)
	return
}

// Resolve returns the endpoints currently registered under name. When etcd
// cannot be reached it serves the last set it saw, if any.
func (r *Registry) Resolve(name string) (eps []io.ServiceEndpoint, err error) {
	resp, err := r.getWithPrefix(KeyEndpointPrefix(name))
	if err != nil {
		if v, ok := r.cache.Get([]byte(name)); ok {
			glog.Warningf("resolve '%s' served from cache: %v", name, err)
			return v.([]io.ServiceEndpoint), nil
		}
		return nil, err
	}

	for _, kv := range resp.Kvs {
		var ep io.ServiceEndpoint
		if e := ep.SetFromConnString(string(kv.Value)); e != nil {
			glog.Warningf("bad endpoint value %q: %v", string(kv.Value), e)
			continue
		}
		eps = append(eps, ep)
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("no endpoint registered for '%s'", name)
	}
	r.cache.Put([]byte(name), eps)
	return eps, nil
}

func (r *Registry) keepRegistered(ctx context.Context, kaCh <-chan *clientv3.LeaseKeepAliveResponse, name string, ep io.ServiceEndpoint) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.doneCh:
			return
		case _, ok := <-kaCh:
			if ok {
				continue
			}
			glog.Warningf("keepalive lost: name=%s addr=%s", name, ep.GetConnString())
			retryTimer := util.NewTimerWrapper(kRegisterRetryInterval)
			defer retryTimer.Stop()
			retryTimer.Reset(kRegisterRetryInterval)
			for {
				select {
				case <-ctx.Done():
					return
				case <-r.doneCh:
					return
				case <-retryTimer.GetTimeoutCh():
					if err := r.Register(name, ep); err == nil {
						glog.Infof("re-registered: name=%s addr=%s", name, ep.GetConnString())
						return
					}
					retryTimer.Reset(kRegisterRetryInterval)
				}
			}
		}
	}
}

// keys come back sorted in ascending order
func (r *Registry) getWithPrefix(key string, params ...int) (resp *clientv3.GetResponse, err error) {
	if r.client == nil {
		err = errNotInitialized
		return
	}

	//optional params: maxtries and backoff sleep time
	maxTries := 2
	backoff := 1 * time.Second
	if len(params) > 0 {
		maxTries = params[0]
	}
	if len(params) > 1 {
		backoff = time.Duration(params[1]) * time.Second
	}

	for i := 0; i < maxTries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.RequestTimeout.Duration)
		resp, err = r.client.KV.Get(ctx, key, clientv3.WithPrefix(),
			clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
		cancel()

		if err == nil {
			return
		}

		glog.Warningf("registry get: %v. Retry ...", err)
		time.Sleep(backoff)
	}

	if err != nil {
		glog.Errorf("[ERROR]: registry get: key=%s%s err=%v", r.keyPrefix, key, err)
	}
	return
}
