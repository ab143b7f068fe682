package specifier

import (
	"path/filepath"
	"strings"
)

// ModulesPrefix is the virtual path prefix of bare modules.
const ModulesPrefix = "/@modules/"

// Kind is the classification of an import specifier.
type Kind uint8

const (
	// root-relative path or URL, resolvable by the browser as is
	Absolute Kind = iota
	// "./" or "../" path, resolved against the importer
	Relative
	// package name, served from the modules namespace
	Bare
	// import() expression, never rewritten
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	case Bare:
		return "bare"
	case Dynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Classify classifies the specifier text.
func Classify(text string, dynamic bool) Kind {
	switch {
	case dynamic:
		return Dynamic
	case strings.HasPrefix(text, "/") || isURL(text):
		return Absolute
	case text == "." || text == ".." || strings.HasPrefix(text, "./") || strings.HasPrefix(text, "../"):
		return Relative
	default:
		return Bare
	}
}

// isURL reports whether the specifier has a URL scheme the browser loads directly.
func isURL(text string) bool {
	for _, scheme := range []string{"http://", "https://", "data:", "blob:", "file://"} {
		if strings.HasPrefix(text, scheme) {
			return true
		}
	}
	return false
}

// Rewriter rewrites import specifiers of modules in the app root directory
// into URLs the browser can load.
type Rewriter struct {
	RootDir string
}

// RewriteModule scans the source and rewrites its import specifiers.
func (rw *Rewriter) RewriteModule(filename string, source string) (string, error) {
	occurrences, err := Scan(filename, source)
	if err != nil {
		return "", err
	}
	return rw.Rewrite(source, occurrences, filepath.Dir(filename)), nil
}

// Rewrite replaces the specifiers of the occurrences in the source. The edits
// are applied against the original offsets, bytes outside of the rewritten
// spans are copied as is. The source is returned unchanged when nothing is
// rewritten.
func (rw *Rewriter) Rewrite(source string, occurrences []Occurrence, importerDir string) string {
	var buf strings.Builder
	last := 0
	edited := false
	for _, o := range occurrences {
		if o.Start < last || o.End > len(source) {
			continue
		}
		replacement, ok := rw.rewriteSpecifier(o, importerDir)
		if !ok || replacement == o.Text {
			continue
		}
		if !edited {
			buf.Grow(len(source) + 64)
			edited = true
		}
		buf.WriteString(source[last:o.Start])
		buf.WriteString(replacement)
		last = o.End
	}
	if !edited {
		return source
	}
	buf.WriteString(source[last:])
	return buf.String()
}

func (rw *Rewriter) rewriteSpecifier(o Occurrence, importerDir string) (string, bool) {
	switch Classify(o.Text, o.Dynamic) {
	case Relative:
		return rw.resolveRelative(o.Text, importerDir)
	case Bare:
		return ModulesPrefix + o.Text, true
	default:
		return "", false
	}
}

// resolveRelative resolves the relative specifier to a root-relative URL, the
// query and hash of the specifier are kept.
func (rw *Rewriter) resolveRelative(specifier string, importerDir string) (string, bool) {
	pathname, suffix := specifier, ""
	if i := strings.IndexAny(specifier, "?#"); i >= 0 {
		pathname, suffix = specifier[:i], specifier[i:]
	}
	filename := filepath.Join(importerDir, filepath.FromSlash(pathname))
	rel, err := filepath.Rel(rw.RootDir, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	url := "/"
	if rel != "." {
		url += filepath.ToSlash(rel)
		if strings.HasSuffix(pathname, "/") {
			url += "/"
		}
	}
	return url + suffix, true
}
