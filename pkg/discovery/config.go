package discovery

import (
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"quadwire/pkg/util"
)

var (
	defaultConfig = Config{
		Config: clientv3.Config{
			DialTimeout: 1000 * time.Millisecond,
		},
		RequestTimeout:     util.Duration{1 * time.Second},
		MaxConnectAttempts: 5,
		MaxConnectBackoff:  10,
		KeyPrefix:          "qw.",
		LeaseTTL:           10,
	}
)

type Config struct {
	clientv3.Config
	RequestTimeout     util.Duration
	MaxConnectAttempts int
	MaxConnectBackoff  int
	KeyPrefix          string
	// LeaseTTL is the registration lease time-to-live in seconds. A
	// registration whose keepalive stops is dropped after this long.
	LeaseTTL int64
}

func DefaultConfig() Config {
	return defaultConfig
}

func NewConfig(addrs ...string) (cfg *Config) {
	cfg = &Config{}
	*cfg = defaultConfig
	for _, addr := range addrs {
		cfg.Config.Endpoints = append(cfg.Config.Endpoints, addr)
	}
	return cfg
}
