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

// Package insp implements the qwcli subcommand for decoding captured
// stream bytes.
package insp

import (
	"encoding/hex"
	"fmt"
	"os"

	"quadwire/pkg/cmd"
	"quadwire/pkg/frame"
)

type cmdInspectT struct {
	cmd.Command
	optFileName string
	raw         []byte
}

func (c *cmdInspectT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optFileName, "f|file-name", "", "read the bytes from a file instead of a hex string argument")
	c.SetSynopsis("[option] [<hex string>]")
}

func (c *cmdInspectT) Parse(args []string) (err error) {
	if err = c.FlagSet.Parse(args); err != nil {
		return
	}
	if len(c.optFileName) != 0 {
		c.raw, err = os.ReadFile(c.optFileName)
		return
	}
	if c.NArg() < 1 {
		return fmt.Errorf("hex string not specified")
	}
	c.raw, err = hex.DecodeString(c.Arg(0))
	return
}

// Exec walks the captured window envelope by envelope. A window captured
// from the start of a connection opens with the stream marker; one cut
// from the middle does not, so a bad marker only demotes the first byte
// to mid-stream interpretation instead of failing the run.
func (c *cmdInspectT) Exec() {
	c.Validate()

	buf := c.raw
	offset := 0
	if n, err := frame.StripMarker(buf); err == nil {
		fmt.Printf("marker  : 0x%02X stream start\n", buf[0])
		buf = buf[n:]
		offset += n
	} else if err == frame.ErrInvalidMarker {
		fmt.Printf("marker  : none, assuming a mid-stream window\n")
	} else {
		fmt.Println(err)
		return
	}

	for i := 0; len(buf) != 0; i++ {
		fmt.Printf("[%d] at offset %d\n", i, offset)
		consumed, err := frame.PrettyPrint(os.Stdout, buf)
		if err != nil {
			fmt.Printf("  %d byte(s) held back: %s\n", len(buf), err)
			return
		}
		buf = buf[consumed:]
		offset += consumed
	}
}

func init() {
	c := &cmdInspectT{}
	c.Init("inspect", "decode a captured byte window envelope by envelope")
	cmd.Register(c)
}
