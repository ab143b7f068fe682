package web

import (
	"io"
	"strings"

	"github.com/esm-dev/esmd/internal/specifier"
	"golang.org/x/net/html"
)

type span struct {
	start int
	end   int
}

// rewriteHTML rewrites the import specifiers of inline module scripts
// (`<script type="module">` without `src`) in the html page.
func rewriteHTML(rw *specifier.Rewriter, filename string, source string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(source))
	offset := 0
	inModuleScript := false
	var scripts []span
	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return "", z.Err()
			}
			return spliceScripts(rw, filename, source, scripts)
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			var isModule, hasSrc bool
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "type":
					isModule = string(val) == "module"
				case "src":
					hasSrc = true
				}
			}
			inModuleScript = isModule && !hasSrc
		case html.TextToken:
			if inModuleScript {
				scripts = append(scripts, span{start, offset})
			}
		case html.EndTagToken:
			inModuleScript = false
		}
	}
}

func spliceScripts(rw *specifier.Rewriter, filename string, source string, scripts []span) (string, error) {
	if len(scripts) == 0 {
		return source, nil
	}
	var buf strings.Builder
	last := 0
	for _, s := range scripts {
		code, err := rw.RewriteModule(filename, source[s.start:s.end])
		if err != nil {
			return "", err
		}
		buf.WriteString(source[last:s.start])
		buf.WriteString(code)
		last = s.end
	}
	buf.WriteString(source[last:])
	return buf.String(), nil
}
