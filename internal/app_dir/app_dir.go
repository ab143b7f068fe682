package app_dir

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetAppDir returns the default work directory of esmd, where the worker
// scripts and the deno binary are stored.
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	appDir := filepath.Join(homeDir, ".esmd")
	if runtime.GOOS == "windows" {
		appDir = filepath.Join(homeDir, "AppData\\Local\\esmd")
	}

	return appDir, nil
}
