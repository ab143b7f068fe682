package cli

import (
	"fmt"
	"os"
)

const VERSION = "v0.1.0"

const helpMessage = "\033[30mesmd - A no-bundle dev server for ES modules.\033[0m" + `

Usage: esmd [command] [options]

Commands:
  dev [dir]             Serve the web app in "development" mode
  version               Show the version

Options:
  --port <port>         Port to serve on, default is 3000
  --config <file>       Load options from a JSON config file
  --version, -v         Show the version
  --help, -h            Display this help message
`

// Run parses the command line and runs the matched command.
func Run() {
	if len(os.Args) < 2 {
		fmt.Print(helpMessage)
		return
	}
	switch command := os.Args[1]; command {
	case "dev":
		Dev()
	case "version":
		fmt.Println("esmd " + VERSION)
	default:
		for _, arg := range os.Args[1:] {
			if arg == "--version" {
				fmt.Println("esmd " + VERSION)
				return
			}
			if arg == "-v" {
				fmt.Println(VERSION)
				return
			}
		}
		fmt.Print(helpMessage)
	}
}
