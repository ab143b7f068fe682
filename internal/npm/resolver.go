package npm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/esm-dev/esmd/internal/logx"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// ModuleNotFoundError is returned when a bare specifier can't be resolved to
// an entry file under node_modules.
type ModuleNotFoundError struct {
	Specifier string
	Err       error
}

func (e *ModuleNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("module '%s' not found: %v", e.Specifier, e.Err)
	}
	return fmt.Sprintf("module '%s' not found", e.Specifier)
}

func (e *ModuleNotFoundError) Unwrap() error {
	return e.Err
}

// ResolvedModule is the result of resolving a bare specifier.
type ResolvedModule struct {
	Specifier   string
	PackageName string
	Subpath     string
	PackageDir  string
	EntryPath   string
	Version     string
}

// Resolver maps bare specifiers to entry files in a node_modules directory.
type Resolver struct {
	fs             afero.Fs
	nodeModulesDir string
	app            *PackageJSON
	logger         logx.Logger
}

// NewResolver creates a resolver reading packages from nodeModulesDir.
// The app package.json is optional, when given the installed versions are
// checked against its declared ranges.
func NewResolver(fs afero.Fs, nodeModulesDir string, app *PackageJSON, logger logx.Logger) *Resolver {
	if logger == nil {
		logger = logx.Discard
	}
	return &Resolver{
		fs:             fs,
		nodeModulesDir: nodeModulesDir,
		app:            app,
		logger:         logger,
	}
}

// NodeModulesDir returns the node_modules directory of the resolver.
func (r *Resolver) NodeModulesDir() string {
	return r.nodeModulesDir
}

// Resolve resolves the bare specifier to an absolute entry path.
func (r *Resolver) Resolve(specifier string) (*ResolvedModule, error) {
	pkgName, subpath := SplitSpecifier(specifier)
	if !ValidatePackageName(pkgName) {
		return nil, &ModuleNotFoundError{Specifier: specifier, Err: errors.New("invalid package name")}
	}

	pkgDir := filepath.Join(r.nodeModulesDir, filepath.FromSlash(pkgName))
	pkgJson, err := LoadPackageJSON(r.fs, filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return nil, &ModuleNotFoundError{Specifier: specifier, Err: err}
	}

	entry := pkgJson.Entry()
	if subpath != "" {
		entry = subpath
	}
	filename := filepath.Join(pkgDir, filepath.FromSlash(entry))
	if filename != pkgDir && !strings.HasPrefix(filename, pkgDir+string(filepath.Separator)) {
		return nil, &ModuleNotFoundError{Specifier: specifier, Err: errors.New("entry is outside of the package")}
	}
	entryPath, err := r.resolveFile(filename)
	if err != nil {
		return nil, &ModuleNotFoundError{Specifier: specifier, Err: err}
	}

	r.checkVersion(pkgName, pkgJson.Version)

	return &ResolvedModule{
		Specifier:   specifier,
		PackageName: pkgName,
		Subpath:     subpath,
		PackageDir:  pkgDir,
		EntryPath:   entryPath,
		Version:     pkgJson.Version,
	}, nil
}

// resolveFile returns the given filename if it's a file, otherwise tries the
// conventional extensions and the directory index.
func (r *Resolver) resolveFile(filename string) (string, error) {
	if r.isFile(filename) {
		return filename, nil
	}
	if !isModule(filename) {
		for _, candidate := range []string{filename + ".js", filename + ".mjs", filepath.Join(filename, "index.js")} {
			if r.isFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("entry file %s does not exist", filename)
}

func (r *Resolver) isFile(filename string) bool {
	fi, err := r.fs.Stat(filename)
	return err == nil && !fi.IsDir()
}

func (r *Resolver) checkVersion(pkgName string, version string) {
	if r.app == nil || version == "" {
		return
	}
	if declared, ok := r.app.DeclaredRange(pkgName); ok && !SatisfiesRange(version, declared) {
		r.logger.Warnf("installed %s@%s does not satisfy the declared range %q", pkgName, version, declared)
	}
}

// LoadPackageJSON reads and parses the package.json file.
func LoadPackageJSON(fs afero.Fs, filename string) (*PackageJSON, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("package.json not found: %w", os.ErrNotExist)
		}
		return nil, err
	}
	var p PackageJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}
	return &p, nil
}
