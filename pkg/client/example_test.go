package client_test

import (
	"fmt"

	"quadwire/pkg/client"
)

func Example_config() {
	var conf client.Config
	conf.SetDefault()
	conf.Server.Addr = "127.0.0.1:5080"
	conf.Compress = true
	if cli, err := client.New(conf); err == nil {
		defer cli.Close()
		cli.Call([]byte("a request"))
	} else {
		fmt.Println(err)
	}
}

func Example_newClient() {
	// create a quadwire client talking to 127.0.0.1:5080
	if cli, err := client.NewClient("127.0.0.1:5080"); err == nil {
		defer cli.Close()
		cli.Call([]byte("a request"))
	} else {
		fmt.Println(err)
	}
}
