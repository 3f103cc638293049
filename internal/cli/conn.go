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

package cli

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/frame"
	"quadwire/pkg/io/ioutil"
	"quadwire/pkg/util"
)

const kReaderBufSize = 16 * 1024

// readerBufPool feeds the response readers' retained buffers.
var readerBufPool = util.NewSyncBytePool(kReaderBufSize)

var connCount int64

type (
	// Connection is one established wire to the server: the socket, the
	// codec packing requests onto it, and the tracker pairing responses
	// read off it. The zero value stands in for "no connection"; its
	// channels are nil and never fire.
	Connection struct {
		tracker          *PendingTracker
		conn             net.Conn
		codec            frame.Codec
		chReaderResponse <-chan *ReaderResponse
		beingRecycled    bool
	}
)

func (c *Connection) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		glog.V(2).Infof("Close connCount=%d", atomic.AddInt64(&connCount, -1))
	}
}

// Shutdown nudges the response reader awake; the reader owns the socket
// and closes it on exit.
func (c *Connection) Shutdown() {
	if c.conn != nil {
		if i, ok := c.conn.(interface {
			CloseRead() error
		}); ok {
			i.CloseRead()
		} else {
			c.conn.Close()
		}
		c.conn = nil
		c.beingRecycled = false
		glog.V(2).Infof("Close connCount=%d", atomic.AddInt64(&connCount, -1))
	}
}

// Discard tears the connection down and fails whatever is still pending
// on it. The caller stops selecting on the reader channel after this, so
// the channel is drained off to the side to let the reader exit.
func (c *Connection) Discard() {
	c.Close()
	if c.tracker != nil {
		c.tracker.OnResponseReaderClosed()
	}
	if c.chReaderResponse != nil {
		ch := c.chReaderResponse
		go func() {
			for range ch {
			}
		}()
	}
}

func (c *Connection) GetReqTimeoutCh() <-chan time.Time {
	if c.tracker == nil {
		return nil
	}
	return c.tracker.GetTimeoutCh()
}

// startResponseReader owns the read side of one connection. It strips the
// peer's one-time stream marker, then drains complete envelopes out of a
// retained buffer: whatever a read leaves short of a full envelope stays
// in the buffer and is resubmitted together with later reads.
func startResponseReader(r io.ReadCloser) <-chan *ReaderResponse {
	chReaderResponse := make(chan *ReaderResponse, 2)
	go func() {
		defer func() {
			close(chReaderResponse)
			glog.V(1).Info("reader exits")
			r.Close()
		}()

		var codec frame.Codec
		var out util.PPBuffer
		buf := readerBufPool.Get()[:0]
		defer func() { readerBufPool.Put(buf) }()

		marked := false
		for {
			if len(buf) == cap(buf) {
				grown := make([]byte, len(buf), 2*cap(buf))
				copy(grown, buf)
				buf = grown
			}
			n, err := r.Read(buf[len(buf):cap(buf)])
			buf = buf[:len(buf)+n]

			if !marked && len(buf) > 0 {
				if _, merr := frame.StripMarker(buf); merr != nil {
					glog.Warningln(merr)
					chReaderResponse <- NewErrorReaderResponse(merr)
					return
				}
				buf = append(buf[:0], buf[frame.MarkerSize:]...)
				marked = true
			}

			rd := 0
			for marked {
				out.Reset()
				consumed, uerr := codec.Unpack(buf[rd:], &out)
				if uerr != nil {
					// the rest of the envelope is still in flight
					break
				}
				rd += consumed
				payload := make([]byte, out.Len())
				copy(payload, out.Bytes())
				chReaderResponse <- NewReaderResponse(payload)
			}
			if rd > 0 {
				buf = append(buf[:0], buf[rd:]...)
			}

			if err != nil {
				chReaderResponse <- NewErrorReaderResponse(err)
				ioutil.LogError(err)
				return
			}
		}
	}()
	return chReaderResponse
}
