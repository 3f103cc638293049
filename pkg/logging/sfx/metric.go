// Package sfx ships server metrics to a SignalFx ingest endpoint. Sends
// never block the caller; datapoints that cannot be delivered are retried
// with back-off and dropped oldest-first when the retry queue overflows.
package sfx

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
)

// MetricType selects how the receiving end rolls up a datapoint.
type MetricType int

const (
	Gauge MetricType = iota
	Counter
)

// Dims is a map of string dimensions used for aggregation.
type Dims map[string]string

// MetricData carries one name/type/value to the sender.
type MetricData struct {
	Name       string
	MetricType MetricType
	Value      float64
}

// MetricSender API
type MetricSender interface {
	SendMetric(dim Dims, data []MetricData, when time.Time) error
	Stop()
}

type metricCb func(err error)

var hostName string

func init() {
	var err error
	hostName, err = os.Hostname()
	if err != nil {
		hostName = "unknown"
	}
}

// Client is the metric sender to be used by other components. It is set by
// InitWithConfig according to the given configuration.
var Client MetricSender

func Initialize(args ...interface{}) (err error) {
	if len(args) == 0 {
		err = fmt.Errorf("config argument expected")
		glog.Error(err)
		return
	}
	c, ok := args[0].(*Config)
	if !ok {
		err = fmt.Errorf("wrong argument type")
		glog.Error(err)
		return
	}
	InitWithConfig(c)
	return
}

// InitWithConfig is the top level initializer for the metric client.
func InitWithConfig(conf *Config) {
	if conf == nil {
		return
	}
	sfxConfig = conf
	sfxConfig.Default()
	sfxConfig.Validate()
	if !sfxConfig.Enabled {
		return
	}
	Client = newSfxClient(conf)
}

func IsEnabled() bool {
	return sfxConfig != nil && sfxConfig.Enabled && Client != nil
}

func GetResolution() uint32 {
	if sfxConfig != nil {
		return sfxConfig.Resolution
	}
	return 60
}
