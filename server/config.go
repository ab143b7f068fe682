package server

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/esm-dev/esmd/internal/app_dir"
	"github.com/esm-dev/esmd/internal/npm"
	"github.com/goccy/go-json"
)

// Config represents the configuration of the esmd dev server.
type Config struct {
	Port             uint16            `json:"port"`
	RootDir          string            `json:"rootDir"`
	NodeModulesDir   string            `json:"nodeModulesDir"`
	WorkDir          string            `json:"workDir"`
	LogDir           string            `json:"logDir"`
	LogLevel         string            `json:"logLevel"`
	AccessLog        bool              `json:"accessLog"`
	Compress         bool              `json:"compress"`
	CorsAllowOrigins []string          `json:"corsAllowOrigins"`
	BuildConcurrency uint16            `json:"buildConcurrency"`
	BuildTarget      string            `json:"buildTarget"`
	Define           map[string]string `json:"define"`
	JSXImportSource  string            `json:"jsxImportSource"`
	Warmup           []string          `json:"warmup"`
	DenoPath         string            `json:"denoPath"`
}

// LoadConfig loads config from the given file.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("fail to read config file: %w", err)
	}
	defer file.Close()

	var config Config
	err = json.NewDecoder(file).Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("fail to parse config: %w", err)
	}

	// relative paths in the config file are relative to the config file
	baseDir := filepath.Dir(filename)
	for _, p := range []*string{&config.RootDir, &config.NodeModulesDir, &config.WorkDir, &config.LogDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p, err = filepath.Abs(filepath.Join(baseDir, *p))
			if err != nil {
				return nil, fmt.Errorf("fail to get absolute path of %s: %w", *p, err)
			}
		}
	}
	NormalizeConfig(&config)
	return &config, nil
}

// DefaultConfig returns the config with default values.
func DefaultConfig() *Config {
	config := &Config{}
	NormalizeConfig(config)
	return config
}

// NormalizeConfig fills the unset fields of the config with environment
// variables and default values.
func NormalizeConfig(config *Config) {
	if config.Port == 0 {
		config.Port = 3000
		if v := os.Getenv("ESMD_PORT"); v != "" {
			if p, e := strconv.Atoi(v); e == nil && p > 0 && p < 65536 {
				config.Port = uint16(p)
			}
		}
	}
	if config.RootDir == "" {
		if v := os.Getenv("ESMD_ROOT"); v != "" && existsDir(v) {
			config.RootDir, _ = filepath.Abs(v)
		} else {
			config.RootDir, _ = os.Getwd()
		}
	}
	if config.NodeModulesDir == "" {
		config.NodeModulesDir = filepath.Join(config.RootDir, "node_modules")
	}
	if config.WorkDir == "" {
		if v := os.Getenv("ESMD_DIR"); v != "" && existsDir(v) {
			config.WorkDir = v
		} else if appDir, err := app_dir.GetAppDir(); err == nil {
			config.WorkDir = appDir
		} else {
			config.WorkDir = filepath.Join(os.TempDir(), ".esmd")
		}
	}
	if config.LogDir == "" {
		config.LogDir = filepath.Join(config.WorkDir, "log")
	}
	if config.LogLevel == "" {
		config.LogLevel = os.Getenv("LOG_LEVEL")
		if config.LogLevel == "" {
			config.LogLevel = "info"
		}
	}
	if !config.AccessLog {
		config.AccessLog = os.Getenv("ACCESS_LOG") == "true"
	}
	if !config.Compress {
		config.Compress = os.Getenv("COMPRESS") == "true"
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		config.CorsAllowOrigins = append(config.CorsAllowOrigins, strings.Split(v, ",")...)
	}
	if len(config.CorsAllowOrigins) > 0 {
		origins := make([]string, 0, len(config.CorsAllowOrigins))
		for _, p := range config.CorsAllowOrigins {
			orig := strings.TrimSpace(p)
			if orig == "" {
				continue
			}
			u, e := url.Parse(orig)
			if e == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
				origins = append(origins, u.Scheme+"://"+u.Host)
			}
		}
		config.CorsAllowOrigins = origins
	}
	if config.BuildConcurrency == 0 {
		config.BuildConcurrency = uint16(runtime.NumCPU())
	}
	config.BuildTarget = strings.ToLower(config.BuildTarget)
	if _, ok := buildTargets[config.BuildTarget]; !ok {
		config.BuildTarget = "es2020"
	}
	if config.Define == nil {
		config.Define = map[string]string{}
	}
	if _, ok := config.Define["process.env.NODE_ENV"]; !ok {
		config.Define["process.env.NODE_ENV"] = `"development"`
	}
	if config.JSXImportSource == "" {
		config.JSXImportSource = "react"
	}
	if len(config.Warmup) > 0 {
		warmup := make([]string, 0, len(config.Warmup))
		for _, name := range config.Warmup {
			if pkgName, _ := npm.SplitSpecifier(name); npm.ValidatePackageName(pkgName) {
				warmup = append(warmup, name)
			}
		}
		config.Warmup = warmup
	}
	if config.DenoPath == "" {
		config.DenoPath = os.Getenv("DENO_PATH")
	}
}

func existsDir(filepath string) bool {
	fi, err := os.Lstat(filepath)
	return err == nil && fi.IsDir()
}

func existsFile(filepath string) bool {
	fi, err := os.Lstat(filepath)
	return err == nil && !fi.IsDir()
}
