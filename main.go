package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/esm-dev/esmd/server"
)

func main() {
	configFile := flag.String("config", "", "path of the config file")
	flag.Parse()

	var config *server.Config
	if *configFile != "" {
		var err error
		config, err = server.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		config = server.DefaultConfig()
	}
	if err := server.Serve(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
