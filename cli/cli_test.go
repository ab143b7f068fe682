package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDevConfig(t *testing.T) {
	t.Setenv("ESMD_PORT", "")
	root := t.TempDir()

	config, err := loadDevConfig("", root, 8080)
	if err != nil {
		t.Fatal(err)
	}
	if config.RootDir != root || config.Port != 8080 {
		t.Fatalf("invalid config: %+v", config)
	}
	if config.NodeModulesDir != filepath.Join(root, "node_modules") {
		t.Fatalf("invalid node_modules dir: %s", config.NodeModulesDir)
	}

	err = os.WriteFile(filepath.Join(root, "esmd.json"), []byte(`{"port": 4000, "jsxImportSource": "preact"}`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	config, err = loadDevConfig("", root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if config.Port != 4000 || config.JSXImportSource != "preact" {
		t.Fatalf("esmd.json in the root dir should be loaded: %+v", config)
	}

	config, err = loadDevConfig("", root, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if config.Port != 5000 {
		t.Fatalf("port flag should override the config file, got %d", config.Port)
	}

	if _, err = loadDevConfig("", filepath.Join(root, "esmd.json"), 0); err == nil {
		t.Fatal("root dir must be a directory")
	}
	if _, err = loadDevConfig("", root, 70000); err == nil {
		t.Fatal("port should be validated")
	}
}
