package npm

import (
	"path"
	"strings"

	"github.com/goccy/go-json"
)

// PackageJSONRaw defines the raw package.json of a package installed in node_modules
type PackageJSONRaw struct {
	Name            string  `json:"name"`
	Version         string  `json:"version"`
	Type            string  `json:"type"`
	Main            JSONAny `json:"main"`
	Module          JSONAny `json:"module"`
	ES2015          JSONAny `json:"es2015"`
	JsNextMain      JSONAny `json:"jsnext:main"`
	Dependencies    any     `json:"dependencies"`
	DevDependencies any     `json:"devDependencies"`
}

// PackageJSON defines the normalized package.json of a package
type PackageJSON struct {
	Name            string
	Version         string
	Type            string
	Main            string
	Module          string
	Dependencies    map[string]string
	DevDependencies map[string]string
}

// ToPackageJSON converts PackageJSONRaw to PackageJSON
func (a *PackageJSONRaw) ToPackageJSON() *PackageJSON {
	p := &PackageJSON{
		Name:            a.Name,
		Version:         a.Version,
		Type:            a.Type,
		Main:            a.Main.MainString(),
		Module:          a.Module.MainString(),
		Dependencies:    toStringMap(a.Dependencies),
		DevDependencies: toStringMap(a.DevDependencies),
	}

	// normalize package module field
	if p.Module == "" {
		if es2015 := a.ES2015.MainString(); es2015 != "" {
			p.Module = es2015
		} else if jsNextMain := a.JsNextMain.MainString(); jsNextMain != "" {
			p.Module = jsNextMain
		} else if p.Main != "" && (p.Type == "module" || strings.HasSuffix(p.Main, ".mjs")) {
			p.Module = p.Main
			p.Main = ""
		}
	}

	return p
}

// Entry returns the entry path of the package relative to the package directory,
// preferring the ES module entry.
func (p *PackageJSON) Entry() string {
	if p.Module != "" {
		return p.Module
	}
	if p.Main != "" {
		return p.Main
	}
	return "index.js"
}

// DeclaredRange returns the version range the package declares for the given dependency.
func (p *PackageJSON) DeclaredRange(name string) (string, bool) {
	if v, ok := p.Dependencies[name]; ok {
		return v, true
	}
	v, ok := p.DevDependencies[name]
	return v, ok
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (p *PackageJSON) UnmarshalJSON(b []byte) error {
	var raw PackageJSONRaw
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = *raw.ToPackageJSON()
	return nil
}

// JSONAny holds a package.json field that may be a string or an object.
type JSONAny struct {
	Str string
	Map map[string]any
	Any any
}

func (a *JSONAny) MarshalJSON() ([]byte, error) {
	if a.Str != "" {
		return json.Marshal(a.Str)
	}
	if a.Map != nil {
		return json.Marshal(a.Map)
	}
	return json.Marshal(a.Any)
}

func (a *JSONAny) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		a.Str = s
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) == nil {
		a.Map = m
		return nil
	}
	return json.Unmarshal(b, &a.Any)
}

func (a *JSONAny) MainString() string {
	if a.Str != "" {
		return a.Str
	}
	if a.Map != nil {
		if v, ok := a.Map["."]; ok {
			if s, isStr := v.(string); isStr {
				return s
			}
		}
	}
	return ""
}

// isModule checks if the given string is a module file
func isModule(s string) bool {
	switch path.Ext(s) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return true
	default:
		return false
	}
}

// toStringMap converts a dependencies field to a `map[string]string`
func toStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	deps := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok && k != "" && s != "" {
			deps[k] = s
		}
	}
	return deps
}
