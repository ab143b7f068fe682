package npm

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ije/gox/utils"
	"github.com/ije/gox/valid"
)

var (
	Naming = valid.Validator{valid.Range{'a', 'z'}, valid.Range{'A', 'Z'}, valid.Range{'0', '9'}, valid.Eq('_'), valid.Eq('.'), valid.Eq('-'), valid.Eq('+'), valid.Eq('$'), valid.Eq('!')}
)

// ValidatePackageName validates the package name.
// based on https://github.com/npm/validate-npm-package-name
func ValidatePackageName(pkgName string) bool {
	if l := len(pkgName); l == 0 || l > 214 {
		return false
	}
	if strings.HasPrefix(pkgName, "@") {
		scope, name := utils.SplitByFirstByte(pkgName, '/')
		return len(scope) > 1 && name != "" && Naming.Match(scope[1:]) && Naming.Match(name)
	}
	if strings.HasPrefix(pkgName, ".") || strings.HasPrefix(pkgName, "_") {
		return false
	}
	return Naming.Match(pkgName)
}

// SplitSpecifier splits a bare specifier into the package name and the subpath.
// e.g. "react" -> ("react", "")
// e.g. "react/jsx-runtime" -> ("react", "jsx-runtime")
// e.g. "@vue/shared/dist/shared.esm-bundler.js" -> ("@vue/shared", "dist/shared.esm-bundler.js")
func SplitSpecifier(specifier string) (pkgName string, subpath string) {
	specifier, _ = utils.SplitByFirstByte(specifier, '?')
	if strings.HasPrefix(specifier, "@") {
		scope, rest := utils.SplitByFirstByte(specifier, '/')
		name, subpath := utils.SplitByFirstByte(rest, '/')
		if name == "" {
			return scope, ""
		}
		return scope + "/" + name, subpath
	}
	return utils.SplitByFirstByte(specifier, '/')
}

// SatisfiesRange reports whether the version satisfies the semver range.
// Ranges that are not semver (e.g. "latest", "workspace:*", "npm:foo@1") are
// reported as satisfied since they can't be checked.
func SatisfiesRange(version string, versionRange string) bool {
	c, err := semver.NewConstraint(versionRange)
	if err != nil {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return c.Check(v)
}
