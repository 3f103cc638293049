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

package stats

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sync/atomic"
	"time"

	"quadwire/cmd/qwserv/config"
	"quadwire/pkg/stats"
)

var serverStartTime = time.Now()

type (
	htmlSectServerInfoT   struct{}
	htmlSectReqProcStatsT struct{}
)

func (s *htmlSectServerInfoT) Title() template.HTML {
	return template.HTML("Server Info")
}

func (s *htmlSectServerInfoT) Body() template.HTML {
	var buf bytes.Buffer
	buf.WriteString(
		`<div id="id-server-info"><table title="server-info">
<tr><th>Start Time</th><th>PID</th><th>Handler</th></tr>`)
	fmt.Fprintf(&buf, "<tr><td>%s</td><td>%d</td><td>%s</td></tr></table></div>",
		serverStartTime.Format("2006-01-02 15:04:05"), os.Getpid(), config.Conf.Handler)

	return template.HTML(buf.String())
}

func (s *htmlSectReqProcStatsT) Title() template.HTML {
	return "Request Processing"
}

func (s *htmlSectReqProcStatsT) Body() template.HTML {
	var buf bytes.Buffer
	buf.WriteString(`<div id="id-req-proc">`)

	buf.WriteString(`<table title="Inbound Request"><tr><th>Listener</th><th>Connections</th><th>Requests</th><th>Throughput</th><th>Average Request Process Time</th><th>Errors/s</th></tr>`)

	numListeners := len(listeners)
	var td string
	if numListeners > 1 {
		td = fmt.Sprintf("<td rowspan=\"%d\">", numListeners)
	} else {
		td = "<td>"
	}

	tps, ema, eps := GetThroughputEmaErrorRate()
	numReqs := atomic.LoadUint64(&statsNumReqProcessed)
	for i, lsnr := range listeners {
		if i == 0 {
			var avgStr string
			if ema != 0 {
				avgStr = stats.HtmlDurationEscapeString(time.Duration(ema) * time.Microsecond)
			}
			fmt.Fprintf(&buf, "<tr><td>%s</td><td>%d</td>%s%d</td>%s%d</td>%s%s</td>%s%d</td></tr>",
				lsnr.GetConnString(), lsnr.GetNumActiveConnections(), td, numReqs, td, tps,
				td, avgStr, td, eps)
		} else {
			fmt.Fprintf(&buf, "<tr><td>%s</td><td>%d</td></tr>",
				lsnr.GetConnString(), lsnr.GetNumActiveConnections())
		}
	}

	buf.WriteString("</table></div>")

	return template.HTML(buf.String())
}
