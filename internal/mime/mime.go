package mime

import (
	"path"
	"strings"
)

// content types of the served kinds
const (
	HTML       = "text/html; charset=utf-8"
	JavaScript = "application/javascript; charset=utf-8"
	CSS        = "text/css; charset=utf-8"
	Binary     = "application/octet-stream"
)

// types of raw files, a trailing ";" marks a text type
var typeExts = map[string][]string{
	"application/javascript;": {"js", "mjs", "cjs"},
	"application/json;":       {"json", "map"},
	"application/wasm":        {"wasm"},
	"application/xml;":        {"xml"},
	"application/pdf":         {"pdf"},
	"application/zip":         {"zip"},
	"audio/mpeg":              {"mp3"},
	"audio/ogg":               {"ogg", "oga"},
	"audio/wav":               {"wav"},
	"font/otf":                {"otf"},
	"font/ttf":                {"ttf"},
	"font/woff":               {"woff"},
	"font/woff2":              {"woff2"},
	"image/avif":              {"avif"},
	"image/gif":               {"gif"},
	"image/jpeg":              {"jpg", "jpeg"},
	"image/png":               {"png"},
	"image/svg+xml;":          {"svg"},
	"image/webp":              {"webp"},
	"image/x-icon":            {"ico"},
	"text/css":                {"css"},
	"text/csv":                {"csv"},
	"text/html":               {"html", "htm"},
	"text/markdown":           {"md", "markdown"},
	"text/plain":              {"txt"},
	"text/yaml":               {"yaml", "yml"},
	"video/mp4":               {"mp4", "m4v"},
	"video/webm":              {"webm"},
}

var extTypes = map[string]string{}

func init() {
	for t, exts := range typeExts {
		if strings.HasSuffix(t, ";") || strings.HasPrefix(t, "text/") {
			t = strings.TrimSuffix(t, ";") + "; charset=utf-8"
		}
		for _, ext := range exts {
			extTypes["."+ext] = t
		}
	}
}

// GetContentType returns the MIME type of the file, or an empty string for
// an unknown extension.
func GetContentType(filename string) string {
	return extTypes[strings.ToLower(path.Ext(filename))]
}
