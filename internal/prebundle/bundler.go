package prebundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/esm-dev/esmd/internal/npm"
	"github.com/esm-dev/esmd/internal/specifier"
	"github.com/evanw/esbuild/pkg/api"
)

// BundleEntry is the resolved entry of a module to pre-bundle.
type BundleEntry struct {
	Specifier   string
	PackageName string
	PackageDir  string
	EntryPath   string
}

// Bundler bundles a module with its internal module graph into a single ESM file.
type Bundler interface {
	Bundle(entry BundleEntry) ([]byte, error)
}

// EsbuildBundler bundles modules with esbuild.
type EsbuildBundler struct {
	Target api.Target
	Define map[string]string
}

func (b *EsbuildBundler) Bundle(entry BundleEntry) ([]byte, error) {
	target := b.Target
	if target == 0 {
		target = api.ES2020
	}
	define := map[string]string{
		"process.env.NODE_ENV": `"development"`,
	}
	for k, v := range b.Define {
		define[k] = v
	}
	ret := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry.EntryPath},
		AbsWorkingDir:     entry.PackageDir,
		Bundle:            true,
		Write:             false,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            target,
		TreeShaking:       api.TreeShakingTrue,
		MinifySyntax:      true,
		Sourcemap:         api.SourceMapNone,
		LogLevel:          api.LogLevelSilent,
		Define:            define,
		Charset:           api.CharsetUTF8,
		LegalComments:     api.LegalCommentsNone,
		MainFields:        []string{"browser", "module", "main"},
		ResolveExtensions: []string{".mjs", ".js", ".cjs", ".jsx", ".json"},
		Loader: map[string]api.Loader{
			".js":   api.LoaderJS,
			".mjs":  api.LoaderJS,
			".cjs":  api.LoaderJS,
			".json": api.LoaderJSON,
			".css":  api.LoaderEmpty,
		},
		Plugins: []api.Plugin{externalPlugin(entry)},
	})
	if len(ret.Errors) > 0 {
		msg := ret.Errors[0]
		if msg.Location != nil {
			return nil, fmt.Errorf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return nil, errors.New(msg.Text)
	}
	if len(ret.OutputFiles) == 0 {
		return nil, errors.New("esbuild: no output files")
	}
	return ret.OutputFiles[0].Contents, nil
}

// externalPlugin marks other packages imported by the bundled package as
// external modules served from the modules namespace, so each package is
// bundled once and shared. `require()` calls of other packages can't be
// imported by the browser and are inlined instead, as well as dependencies
// installed in the package's own node_modules directory.
func externalPlugin(entry BundleEntry) api.Plugin {
	return api.Plugin{
		Name: "esmd-external",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveJSImportStatement && args.Kind != api.ResolveJSDynamicImport {
					return api.OnResolveResult{}, nil
				}
				if specifier.Classify(args.Path, false) != specifier.Bare {
					return api.OnResolveResult{}, nil
				}
				pkgName, _ := npm.SplitSpecifier(args.Path)
				if pkgName == entry.PackageName || strings.HasPrefix(args.Path, "#") {
					return api.OnResolveResult{}, nil
				}
				if entry.PackageDir != "" {
					if _, err := os.Stat(filepath.Join(entry.PackageDir, "node_modules", pkgName)); err == nil {
						return api.OnResolveResult{}, nil
					}
				}
				return api.OnResolveResult{Path: specifier.ModulesPrefix + args.Path, External: true}, nil
			})
		},
	}
}
