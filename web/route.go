package web

import (
	"path"
	"strings"

	"github.com/esm-dev/esmd/internal/specifier"
)

// RouteKind is the kind of a request path.
type RouteKind uint8

const (
	// static file served as is
	RouteRaw RouteKind = iota
	// html page, inline module scripts are rewritten
	RouteHTML
	// javascript/typescript module, transformed and rewritten
	RouteJS
	// stylesheet
	RouteCSS
	// single-file component, split into one module
	RouteVueComponent
	// pre-bundled bare module under `/@modules/`
	RouteVirtualModule
)

func (k RouteKind) String() string {
	switch k {
	case RouteRaw:
		return "raw"
	case RouteHTML:
		return "html"
	case RouteJS:
		return "js"
	case RouteCSS:
		return "css"
	case RouteVueComponent:
		return "vue-component"
	case RouteVirtualModule:
		return "virtual-module"
	default:
		return "unknown"
	}
}

// ClassifyPath returns the route kind of the request path.
func ClassifyPath(pathname string) RouteKind {
	if strings.HasPrefix(pathname, specifier.ModulesPrefix) {
		return RouteVirtualModule
	}
	if pathname == "" || strings.HasSuffix(pathname, "/") {
		return RouteHTML
	}
	switch strings.ToLower(path.Ext(pathname)) {
	case ".html", ".htm":
		return RouteHTML
	case ".js", ".mjs", ".jsx", ".ts", ".mts", ".tsx":
		return RouteJS
	case ".css":
		return RouteCSS
	case ".vue":
		return RouteVueComponent
	default:
		return RouteRaw
	}
}
