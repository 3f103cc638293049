// Package discovery keeps service endpoints registered in etcd so that
// clients can resolve and watch server addresses by service name.
package discovery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

var (
	theRegistry *Registry
	once        sync.Once
)

// Connect establishes the process-wide registry.
func Connect(cfg *Config, clusterName string) (err error) {
	glog.Infof("Setting up endpoint registry.")
	once.Do(func() {
		theRegistry = NewRegistry(cfg, clusterName)
	})

	if theRegistry == nil {
		return errors.New("failed to initialize endpoint registry")
	}
	return nil
}

func GetRegistry() *Registry {
	return theRegistry
}

func Initialize(args ...interface{}) (err error) {
	if len(args) < 2 {
		err = fmt.Errorf("config and cluster name arguments expected")
		glog.Error(err)
		return
	}
	cfg, ok := args[0].(*Config)
	if !ok {
		err = fmt.Errorf("wrong config argument type")
		glog.Error(err)
		return
	}
	clusterName, ok := args[1].(string)
	if !ok {
		err = fmt.Errorf("wrong cluster name argument type")
		glog.Error(err)
		return
	}
	return Connect(cfg, clusterName)
}

func Finalize() {
	if theRegistry != nil {
		glog.Infof("Closing endpoint registry.")
		theRegistry.Close()
	}
}
