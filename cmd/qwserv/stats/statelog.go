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
	"bufio"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"quadwire/pkg/io"
	"quadwire/pkg/stats"
)

var (
	statelog StateLog = StateLog{}
	initOnce sync.Once
	enabled  bool = false
	logId    string
)

var (
	// states
	statsTPS            uint32
	statsEPS            uint32
	statsEMA            uint32
	statsInBytesPerSec  uint32
	statsOutBytesPerSec uint32
	statsProcCpuUsage   float32
	statsMachCpuUsage   float32
	statsProcMemUsage   float32

	statsNumReqProcessed uint64
	statsNumErrors       uint64
	statsInBytesTotal    uint64
	statsOutBytesTotal   uint64

	listeners []io.IListener

	rusage     *syscall.Rusage
	rusageTime time.Time

	machTime    time.Time
	machCpuTick uint16
	machUser    uint64
	machSystem  uint64
)

type (
	StateLog struct {
		stats.StateLog

		curNumReq   uint64 // snapshot
		curNumErr   uint64 // snapshot
		curInBytes  uint64
		curOutBytes uint64

		// for calculating moving average processing time
		emaProcTime   int32
		emaWindowSize uint32
	}
)

func Enabled() bool {
	return enabled
}

/*
	Arguments
	arg 0: id string
	arg 1: state log directory string
*/
func Initialize(args ...interface{}) (err error) {
	id := "0"
	logdir := ""
	if len(args) > 0 {
		id, _ = args[0].(string)
	}
	if len(args) > 1 {
		logdir, _ = args[1].(string)
	}
	Init(id, logdir)
	return
}

func Finalize() {
	Quit()
}

func Init(id string, logfilepath string) {
	initOnce.Do(func() {
		enabled = true
		logId = id
		statelog.Init(id, logfilepath, (id == "0"), &statelog, []stats.IState{})
		statelog.emaWindowSize = 39 // multipler = 2/(39+1) => 0.2
		InitProcCpuUsage()
		InitMachCpuUsage()
		addServerStates()
	})
}

func Quit() {
	statelog.Quit()
}

func addServerStates() {
	statelog.AddState(stats.NewUint32State(&statsTPS, "reqs", "requests processed per second"))
	statelog.AddState(stats.NewUint32State(&statsEMA, "lat", "moving average of request process time (us)"))
	statelog.AddState(stats.NewUint32State(&statsEPS, "eps", "errors per second"))
	statelog.AddState(stats.NewUint32State(&statsInBytesPerSec, "ibps", "inbound payload bytes per second"))
	statelog.AddState(stats.NewUint32State(&statsOutBytesPerSec, "obps", "outbound payload bytes per second"))
	statelog.AddState(stats.NewUint64State(&statsNumReqProcessed, "req", "number of requests processed"))
	statelog.AddState(stats.NewFloat32State(&statsProcCpuUsage, "pCPU", "Process CPU usage percentage", 1))
	statelog.AddState(stats.NewFloat32State(&statsMachCpuUsage, "mCPU", "Machine CPU usage percentage", 1))
	statelog.AddState(stats.NewFloat32State(&statsProcMemUsage, "pMem", "Process RSS (mbytes)", 1))
}

func SendProcState(st stats.ProcStat) {
	statelog.SendProcState(st)
}

func GetStates() []stats.IState {
	return statelog.GetStates()
}

// http://stockcharts.com/school/doku.php?id=chart_school:technical_indicators:moving_averages

// collect stats
func (l *StateLog) ProcessStateChange(stat stats.ProcStat) {
	atomic.AddUint64(&statsNumReqProcessed, 1)
	atomic.AddUint64(&statsInBytesTotal, uint64(stat.RequestPayloadLen))
	atomic.AddUint64(&statsOutBytesTotal, uint64(stat.ResponsePayloadLen))
	if stat.Err {
		atomic.AddUint64(&statsNumErrors, 1)
	}

	//EMA: {Close - EMA(previous day)} x multiplier + EMA(previous day).
	// Multipler = 2/(window_size + 1)
	prevEMA := atomic.LoadInt32(&l.emaProcTime)
	curEMA := (int32(stat.ProcTime)-prevEMA)*2.0/(int32(l.emaWindowSize)+1) + prevEMA
	atomic.StoreInt32(&l.emaProcTime, curEMA)
}

// called before write to the state log file
func (l *StateLog) ProcessWrite(cnt int) {
	tps, eps, ibps, obps := l.getPerSecondRates()
	atomic.StoreUint32(&statsTPS, tps)
	atomic.StoreUint32(&statsEPS, eps)
	atomic.StoreUint32(&statsInBytesPerSec, ibps)
	atomic.StoreUint32(&statsOutBytesPerSec, obps)

	ema := uint32(atomic.LoadInt32(&l.emaProcTime))
	if tps <= 0 {
		ema = 0
	}
	atomic.StoreUint32(&statsEMA, ema)

	// get process's/machine's cpu and memory usage every 10 seconds
	if cnt%10 == 0 {
		statsProcCpuUsage = ProcCpuUsage()
		statsMachCpuUsage = MachCpuUsage()
		statsProcMemUsage = ProcMemUsage()
	}
}

func (l *StateLog) getPerSecondRates() (tps, eps, ibps, obps uint32) {
	// take a snap shot of the running totals
	numReqs := atomic.LoadUint64(&statsNumReqProcessed)
	numErrs := atomic.LoadUint64(&statsNumErrors)
	inBytes := atomic.LoadUint64(&statsInBytesTotal)
	outBytes := atomic.LoadUint64(&statsOutBytesTotal)

	tps = uint32(numReqs - l.curNumReq)
	if tps > 0 {
		eps = uint32(numErrs - l.curNumErr)
	}
	ibps = uint32(inBytes - l.curInBytes)
	obps = uint32(outBytes - l.curOutBytes)

	l.curNumReq = numReqs
	l.curNumErr = numErrs
	l.curInBytes = inBytes
	l.curOutBytes = outBytes

	return
}

func SetListeners(lsnrs []io.IListener) {
	listeners = lsnrs
	var tmp []stats.IState

	for _, lsnr := range lsnrs {
		l := lsnr
		st := stats.NewGenState("conns", "active connections on "+l.GetName(),
			func() string {
				return strconv.Itoa(int(l.GetNumActiveConnections()))
			},
			8)
		tmp = append(tmp, st)
	}
	sz := len(tmp)
	for i := sz - 1; i >= 0; i-- {
		AddState(tmp[i], false)
	}
}

func AddState(st stats.IState, append bool) {
	if append {
		statelog.AddState(st)
	} else {
		statelog.AddStatePrepend(st)
	}
}

func GetThroughputEmaErrorRate() (tps uint32, ema uint32, eps uint32) {
	tps = atomic.LoadUint32(&statsTPS)
	ema = atomic.LoadUint32(&statsEMA)
	eps = atomic.LoadUint32(&statsEPS)
	if int32(tps) <= 0 {
		tps = 0
		ema = 0
	}
	return
}

func InitProcCpuUsage() {
	rusage = new(syscall.Rusage)
	rusageTime = time.Now()
	syscall.Getrusage(syscall.RUSAGE_SELF, rusage)
}

func ProcCpuUsage() (usage float32) {
	nextRusage := new(syscall.Rusage)
	nextTime := time.Now()
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, nextRusage); err == nil {
		secs := nextRusage.Stime.Sec + nextRusage.Utime.Sec - rusage.Stime.Sec - rusage.Utime.Sec
		usecs := nextRusage.Stime.Usec + nextRusage.Utime.Usec - rusage.Stime.Usec - rusage.Utime.Usec
		duration := float64(secs) + float64(usecs)*1.0e-6

		elapsed := nextTime.Sub(rusageTime)
		usage = float32((duration / elapsed.Seconds()) * 100)

		rusageTime = nextTime
		rusage = nextRusage
	}

	return
}

func readCPUUsage() (user, system uint64, cpus uint16) {
	file, err := os.Open("/proc/stat")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if fields[0] == "cpu" {
			// cpu user nice system idle iowait irq softirq steal guest guest_nice
			user, _ = strconv.ParseUint(fields[1], 10, 64)
			system, _ = strconv.ParseUint(fields[3], 10, 64)
		} else if strings.HasPrefix(fields[0], "cpu") {
			cpus++
		}
	}

	return
}

func InitMachCpuUsage() {
	machTime = time.Now()
	machUser, machSystem, _ = readCPUUsage()

	machCpuTick = 100
	out, err := exec.Command("getconf", "CLK_TCK").Output()
	if err == nil {
		val, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 16)
		if err == nil && val > 0 {
			machCpuTick = uint16(val)
		}
	}
}

func MachCpuUsage() (usage float32) {
	nextTime := time.Now()
	nextUser, nextSystem, cpus := readCPUUsage()
	elapsed := nextTime.Sub(machTime)

	if cpus > 0 && elapsed.Seconds() > 0.0 {
		ticks := elapsed.Seconds() * float64(machCpuTick) * float64(cpus)
		usage = float32(float64((nextUser-machUser)+(nextSystem-machSystem))/ticks) * 100
	}

	machTime = nextTime
	machUser = nextUser
	machSystem = nextSystem

	return
}

// ProcMemUsage reads the resident set size, in megabytes.
func ProcMemUsage() (rssMb float32) {
	file, err := os.Open("/proc/self/status")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "VmRSS:" {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				rssMb = float32(kb) / 1024
			}
			return
		}
	}

	return
}
