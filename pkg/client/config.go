package client

import (
	"time"

	"quadwire/pkg/io"
	"quadwire/pkg/util"
)

type Duration = util.Duration

// Config drives one client. RequestTimeout bounds a whole Call;
// ResponseTimeout is how long a request already on the wire may wait for
// its answer before the connection is considered poisoned.
type Config struct {
	Server             io.ServiceEndpoint
	ConnectTimeout     Duration
	RequestTimeout     Duration
	ResponseTimeout    Duration
	ConnRecycleTimeout Duration
	Compress           bool
}

var defaultConfig = Config{
	ConnectTimeout:     Duration{100 * time.Millisecond},
	RequestTimeout:     Duration{1000 * time.Millisecond},
	ResponseTimeout:    Duration{500 * time.Millisecond},
	ConnRecycleTimeout: Duration{9 * time.Second},
}

func SetDefaultTimeout(connect, request, response, connRecycle time.Duration) {
	defaultConfig.ConnectTimeout.Duration = connect
	defaultConfig.RequestTimeout.Duration = request
	defaultConfig.ResponseTimeout.Duration = response
	defaultConfig.ConnRecycleTimeout.Duration = connRecycle
}

func (c *Config) SetDefault() {
	*c = defaultConfig
}

func (c *Config) validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return nil
}
