package sfx

import (
	"time"

	"github.com/golang/glog"

	"quadwire/pkg/util"
)

var sfxConfig *Config

type Config struct {
	Enabled bool
	// Profile is prepended to every metric name, separated with a dot.
	Profile string

	DatapointEndpoint string
	EventEndpoint     string
	AuthToken         string

	Resolution          uint32
	MainWriteQueueSize  uint32
	RetryWriteQueueSize uint32
	RetryCount          uint32
	RmCount             uint32
	MaxBackoff          util.Duration
	Timeout             util.Duration
}

func (c *Config) Validate() {
	if c.Enabled && len(c.DatapointEndpoint) == 0 {
		c.Enabled = false
		glog.Error("Error: sfx DatapointEndpoint is required.")
	}
}

func (c *Config) Default() {
	if c.Resolution == 0 {
		c.Resolution = 60
	}
	if c.MainWriteQueueSize == 0 {
		c.MainWriteQueueSize = 20000
	}
	if c.RetryWriteQueueSize == 0 {
		c.RetryWriteQueueSize = 20000
	}
	if c.RetryCount == 0 {
		c.RetryCount = 1
	}
	if c.RmCount == 0 {
		c.RmCount = 1000
	}
	if c.MaxBackoff.Duration == 0 {
		c.MaxBackoff.Duration = 1 * time.Second
	}
	if c.Timeout.Duration == 0 {
		c.Timeout.Duration = 1 * time.Second
	}
}

func (c *Config) Dump() {
	glog.Infof("Sfx Profile: %s\n", c.Profile)
	glog.Infof("Sfx Enabled: %v\n", c.Enabled)
	glog.Infof("Sfx Resolution: %v\n", c.Resolution)
}
