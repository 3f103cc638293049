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

package frame

import (
	"fmt"
	"io"

	"quadwire/pkg/util"
)

// PrettyPrint renders the envelope at the head of raw in human readable
// form: the header fields followed by a hex dump of the payload bytes. It
// returns the number of bytes the envelope occupies so callers can walk a
// window holding several envelopes back to back. A partial envelope is
// described as far as its bytes allow and reported as ErrMissingBytes.
func PrettyPrint(w io.Writer, raw []byte) (consumed int, err error) {
	headerLen, szPayload, err := EnvelopeLen(raw)
	if err != nil {
		fmt.Fprintf(w, "(incomplete header, %d byte(s) present)\n", len(raw))
		return 0, err
	}
	form := "short"
	if headerLen == kLongHeaderSize {
		form = "long"
	}
	fmt.Fprintf(w, "envelope: %s form, %d word(s), %d payload byte(s)\n",
		form, szPayload/kWordSize, szPayload)

	if len(raw) < headerLen+szPayload {
		fmt.Fprintf(w, "  (incomplete payload, %d of %d byte(s) present)\n",
			len(raw)-headerLen, szPayload)
		return 0, ErrMissingBytes
	}
	if szPayload > 0 {
		util.HexDump(w, raw[headerLen:headerLen+szPayload])
	}
	return headerLen + szPayload, nil
}
