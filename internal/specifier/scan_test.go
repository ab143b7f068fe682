package specifier

import (
	"errors"
	"strings"
	"testing"
)

func TestScan(t *testing.T) {
	source := strings.Join([]string{
		`import React from "react"`,
		`import './style.css'`,
		`import * as utils from '../utils/index.js'`,
		`export { a, b } from "./ab.js"`,
		`export * from 'lodash'`,
		`const s = "import x from 'not-an-import'"`,
		`// import y from "commented"`,
		`/* import z from "block-commented" */`,
		"const t = `import('./template.js')`",
		`const lazy = () => import('./lazy.js')`,
		`export default function App() { return React.createElement(utils.Root) }`,
	}, "\n")

	occurrences, err := Scan("/app/main.js", source)
	if err != nil {
		t.Fatal(err)
	}

	expected := []struct {
		text    string
		dynamic bool
	}{
		{"react", false},
		{"./style.css", false},
		{"../utils/index.js", false},
		{"./ab.js", false},
		{"lodash", false},
		{"./lazy.js", true},
	}
	if len(occurrences) != len(expected) {
		t.Fatalf("expected %d occurrences, got %d: %+v", len(expected), len(occurrences), occurrences)
	}
	for i, o := range occurrences {
		if o.Text != expected[i].text || o.Dynamic != expected[i].dynamic {
			t.Fatalf("occurrence %d: expected %+v, got %+v", i, expected[i], o)
		}
		if source[o.Start:o.End] != o.Text {
			t.Fatalf("occurrence %d: span [%d,%d) is %q, expected %q", i, o.Start, o.End, source[o.Start:o.End], o.Text)
		}
		if i > 0 && o.Start <= occurrences[i-1].End {
			t.Fatalf("occurrence %d overlaps or is out of order", i)
		}
	}
}

func TestScanNoImports(t *testing.T) {
	for _, source := range []string{
		``,
		`const a = 1`,
		"const s = 'import a from \"b\"'\r\n\texport const x = s\n",
	} {
		occurrences, err := Scan("/app/a.js", source)
		if err != nil {
			t.Fatal(err)
		}
		if len(occurrences) != 0 {
			t.Fatalf("expected no occurrences in %q, got %+v", source, occurrences)
		}
	}
}

func TestScanSyntaxError(t *testing.T) {
	_, err := Scan("/app/broken.js", `import { from "x"`)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected SyntaxError, got %T", err)
	}
	if syntaxErr.Filename != "/app/broken.js" || syntaxErr.Message == "" {
		t.Fatalf("unexpected error: %v", err)
	}
}
