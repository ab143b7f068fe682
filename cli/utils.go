package cli

import (
	"flag"
	"fmt"
)

// parseCommandFlag parses the flags of a command and returns the first
// positional argument, flags may appear before or after it.
func parseCommandFlag(args []string) (arg string, err error) {
	if err = flag.CommandLine.Parse(args); err != nil {
		return
	}
	if flag.NArg() == 0 {
		return
	}
	arg = flag.Arg(0)
	rest := flag.Args()[1:]
	if err = flag.CommandLine.Parse(rest); err != nil {
		return
	}
	if flag.NArg() > 0 {
		err = fmt.Errorf("unexpected argument '%s'", flag.Arg(0))
	}
	return
}
