package main

import (
	"github.com/esm-dev/esmd/cli"
)

func main() {
	cli.Run()
}
