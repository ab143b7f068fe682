package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/esm-dev/esmd/internal/loader"
	"github.com/esm-dev/esmd/internal/npm"
	"github.com/esm-dev/esmd/internal/prebundle"
	"github.com/esm-dev/esmd/internal/sfc"
	"github.com/esm-dev/esmd/web"
	"github.com/ije/gox/log"
	"github.com/ije/rex"
	"github.com/spf13/afero"
)

// Serve starts the dev server and blocks until it's terminated by a signal.
func Serve(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	logger, err := log.New(fmt.Sprintf("file:%s?buffer=32k&fileDateFormat=20060102", filepath.Join(config.LogDir, "server.log")))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetLevelByName(config.LogLevel)

	accessLogger, err := log.New(fmt.Sprintf("file:%s?buffer=32k&fileDateFormat=20060102", filepath.Join(config.LogDir, "access.log")))
	if err != nil {
		return fmt.Errorf("failed to initialize access logger: %w", err)
	}
	accessLogger.SetQuite(true)

	fs := afero.NewOsFs()

	// the app package.json is optional, it's used to check installed versions
	var appPkgJson *npm.PackageJSON
	if p, err := npm.LoadPackageJSON(fs, filepath.Join(config.RootDir, "package.json")); err == nil {
		appPkgJson = p
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("failed to load package.json: %v", err)
	}

	resolver := npm.NewResolver(fs, config.NodeModulesDir, appPkgJson, logger)
	bundler := &prebundle.EsbuildBundler{
		Target: getBuildTarget(config.BuildTarget),
		Define: config.Define,
	}
	cache := prebundle.New(resolver, bundler, prebundle.Options{
		Concurrency: int(config.BuildConcurrency),
		Logger:      logger,
	})

	compiler := loader.NewTemplateCompiler(config.WorkDir, config.DenoPath, logger)
	go func() {
		if err := compiler.Start(); err != nil {
			logger.Errorf("failed to start the template compiler: %v", err)
		}
	}()

	dispatcher := web.NewDispatcher(web.Options{
		RootDir: config.RootDir,
		Fs:      fs,
		Cache:   cache,
		Splitter: &sfc.Splitter{
			Parser:   sfc.HTMLParser{},
			Compiler: compiler,
			Prelude:  loader.RuntimeImport,
		},
		Target:          getBuildTarget(config.BuildTarget),
		JSXImportSource: config.JSXImportSource,
		Logger:          logger,
	})

	if len(config.Warmup) > 0 {
		go func() {
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := cache.Warmup(ctx, config.Warmup); err != nil {
				logger.Warnf("warmup: %v", err)
				return
			}
			logger.Infof("warmed up %d modules in %v", len(config.Warmup), time.Since(start))
		}()
	}

	// add middlewares
	rex.Use(
		rex.Header("Server", "esmd"),
		cors(config.CorsAllowOrigins),
		rex.Logger(logger),
		rex.Optional(rex.AccessLogger(accessLogger), config.AccessLog),
		rex.Optional(rex.Compress(), config.Compress),
		router(dispatcher),
	)

	// start server
	C := rex.Serve(rex.ServerConfig{
		Port: config.Port,
	})
	logger.Infof("Server is ready on http://localhost:%d (root: %s)", config.Port, config.RootDir)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)
	select {
	case <-c:
	case err = <-C:
		logger.Error(err)
	}

	// release resources
	compiler.Stop()
	logger.FlushBuffer()
	accessLogger.FlushBuffer()
	return err
}
