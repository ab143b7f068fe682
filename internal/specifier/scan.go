package specifier

import (
	"fmt"
	"sort"

	"github.com/ije/esbuild-internal/ast"
	"github.com/ije/esbuild-internal/config"
	"github.com/ije/esbuild-internal/js_parser"
	"github.com/ije/esbuild-internal/logger"
)

// Occurrence is an import specifier found in a module.
// Start and End are byte offsets of the specifier text in the source, the
// quotes are not included.
type Occurrence struct {
	Start   int
	End     int
	Text    string
	Dynamic bool
}

// SyntaxError is returned when the module can't be parsed.
type SyntaxError struct {
	Filename string
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Message)
}

// Scan returns the import specifiers of `import`, `export ... from` and
// `import()` expressions in the source, ordered by offset.
// The source must be plain javascript, typescript and jsx need to be
// transformed first.
func Scan(filename string, source string) ([]Occurrence, error) {
	log := logger.NewDeferLog(logger.DeferLogNoVerboseOrDebug, nil)
	parserOpts := js_parser.OptionsFromConfig(&config.Options{})
	tree, pass := js_parser.Parse(log, logger.Source{
		Index:          0,
		KeyPath:        logger.Path{Text: filename},
		PrettyPath:     filename,
		Contents:       source,
		IdentifierName: "module",
	}, parserOpts)
	if !pass {
		message := "invalid javascript syntax"
		for _, msg := range log.Done() {
			if msg.Kind == logger.Error {
				message = msg.Data.Text
				break
			}
		}
		return nil, &SyntaxError{Filename: filename, Message: message}
	}

	occurrences := make([]Occurrence, 0, len(tree.ImportRecords))
	for _, record := range tree.ImportRecords {
		var dynamic bool
		switch record.Kind {
		case ast.ImportStmt:
		case ast.ImportDynamic:
			dynamic = true
		default:
			// require() calls etc.
			continue
		}
		// the range covers the string literal including the quotes
		start := int(record.Range.Loc.Start)
		end := start + int(record.Range.Len)
		if start < 0 || end > len(source) || end-start < 2 {
			continue
		}
		quote := source[start]
		if (quote != '"' && quote != '\'' && quote != '`') || source[end-1] != quote {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			Start:   start + 1,
			End:     end - 1,
			Text:    source[start+1 : end-1],
			Dynamic: dynamic,
		})
	}
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start < occurrences[j].Start
	})

	// drop duplicated records of the same literal
	n := 0
	for i, o := range occurrences {
		if i > 0 && o.Start <= occurrences[n-1].End {
			continue
		}
		occurrences[n] = o
		n++
	}
	return occurrences[:n], nil
}
