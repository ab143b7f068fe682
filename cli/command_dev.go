package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esm-dev/esmd/server"
	"github.com/ije/gox/term"
)

// Dev serves a web app in development mode.
func Dev() {
	port := flag.Int("port", 0, "port to serve on")
	configFile := flag.String("config", "", "path of the config file")
	rootDir, err := parseCommandFlag(os.Args[2:])
	if err != nil {
		os.Stderr.WriteString(term.Red(err.Error()) + "\n")
		os.Exit(1)
	}

	config, err := loadDevConfig(*configFile, rootDir, *port)
	if err != nil {
		os.Stderr.WriteString(term.Red(err.Error()) + "\n")
		os.Exit(1)
	}

	fmt.Printf(term.Green("Server is ready on http://localhost:%d\n"), config.Port)
	fmt.Println(term.Dim("root: " + config.RootDir))
	if err = server.Serve(config); err != nil {
		os.Stderr.WriteString(term.Red(err.Error()) + "\n")
		os.Exit(1)
	}
}

func loadDevConfig(configFile string, rootDir string, port int) (config *server.Config, err error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	if rootDir != "" {
		rootDir, err = filepath.Abs(rootDir)
		if err != nil {
			return
		}
		var fi os.FileInfo
		fi, err = os.Stat(rootDir)
		if err != nil {
			return
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("stat %s: not a directory", rootDir)
		}
	}
	if configFile == "" && rootDir != "" {
		// pick up `esmd.json` in the root directory
		if fi, e := os.Stat(filepath.Join(rootDir, "esmd.json")); e == nil && !fi.IsDir() {
			configFile = filepath.Join(rootDir, "esmd.json")
		}
	}
	if configFile == "" {
		config = &server.Config{RootDir: rootDir, Port: uint16(port)}
		server.NormalizeConfig(config)
		return config, nil
	}
	config, err = server.LoadConfig(configFile)
	if err != nil {
		return
	}
	// flags take precedence over the config file
	if rootDir != "" {
		config.RootDir = rootDir
		config.NodeModulesDir = filepath.Join(rootDir, "node_modules")
	}
	if port > 0 {
		config.Port = uint16(port)
	}
	return config, nil
}
