package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/esm-dev/esmd/internal/npm"
	"github.com/esm-dev/esmd/internal/prebundle"
	"github.com/esm-dev/esmd/internal/sfc"
	"github.com/spf13/afero"
)

const testRootDir = "/app"

type testBundler struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *testBundler) Bundle(entry prebundle.BundleEntry) ([]byte, error) {
	b.calls.Add(1)
	if b.release != nil {
		<-b.release
	}
	if entry.PackageName == "broken" {
		return nil, errors.New("Unexpected end of file")
	}
	return []byte("export default " + `"` + entry.Specifier + `"` + "\n"), nil
}

type testCompiler struct{}

func (testCompiler) Compile(template string, filename string) (string, error) {
	if strings.Contains(template, "<broken") {
		return "", errors.New("Element is missing end tag.")
	}
	return "return __vue__.h(\"div\", " + "`" + strings.TrimSpace(template) + "`" + ")", nil
}

func newTestDispatcher(t *testing.T, bundler prebundle.Bundler) *Dispatcher {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"index.html": strings.Join([]string{
			`<!DOCTYPE html>`,
			`<html>`,
			`<head><link rel="stylesheet" href="./style.css"></head>`,
			`<body>`,
			`<div id="app"></div>`,
			`<script type="module">import { createApp } from "vue"; import App from "./src/App.vue"; createApp(App).mount("#app")</script>`,
			`<script type="module" src="./src/main.js"></script>`,
			`<script>const s = "import x from 'y'"</script>`,
			`</body>`,
			`</html>`,
		}, "\n"),
		"style.css":            `body { margin: 0 }`,
		"logo.png":             "\x89PNG",
		"docs/index.html":      `<h1>docs</h1>`,
		"src/main.js":          "import { createApp } from 'vue'\nimport App from './App.vue'\nimport { debounce } from '../lib/utils.js'\nconst lazy = () => import('./lazy.js')\ncreateApp(App).mount('#app')\n",
		"src/broken.js":        `import { from "vue"`,
		"src/App.tsx":          "import { useState } from 'react'\nexport default function App(props: { name: string }) {\n  const [n] = useState<number>(0)\n  return <h1>{props.name} {n}</h1>\n}\n",
		"src/util.ts":          "export const double = (n: number): number => n * 2\n",
		"src/App.vue":          "<script setup>\nimport { ref } from 'vue'\nimport Child from './Child.vue'\nconst msg = ref('hi')\n</script>\n<template><div>{{ msg }}</div></template>\n",
		"src/Typed.vue":        "<script lang=\"ts\">\nexport default { name: 'Typed' as string }\n</script>\n<template><p>typed</p></template>\n",
		"src/Both.vue":         "<script>export default {}</script><script setup>const a = 1</script>",
		"src/Broken.vue":       "<template><broken></template>",
		"lib/utils.js":         "export function debounce() {}",
		"node_modules/vue/package.json":    `{"name":"vue","version":"3.4.21","module":"dist/vue.esm.js"}`,
		"node_modules/vue/dist/vue.esm.js": `export const ref = (v) => ({ value: v })`,
		"node_modules/broken/package.json": `{"name":"broken","main":"index.js"}`,
		"node_modules/broken/index.js":     `export const = 1`,
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, filepath.Join(testRootDir, filepath.FromSlash(name)), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	resolver := npm.NewResolver(fs, filepath.Join(testRootDir, "node_modules"), nil, nil)
	return NewDispatcher(Options{
		RootDir:  testRootDir,
		Fs:       fs,
		Cache:    prebundle.New(resolver, bundler, prebundle.Options{}),
		Splitter: &sfc.Splitter{Compiler: testCompiler{}, Prelude: `import * as __vue__ from "vue"`},
	})
}

func TestClassifyPath(t *testing.T) {
	for pathname, kind := range map[string]RouteKind{
		"/":                       RouteHTML,
		"/docs/":                  RouteHTML,
		"/index.html":             RouteHTML,
		"/src/main.js":            RouteJS,
		"/src/main.mjs":           RouteJS,
		"/src/App.tsx":            RouteJS,
		"/src/util.ts":            RouteJS,
		"/src/App.jsx":            RouteJS,
		"/style.css":              RouteCSS,
		"/src/App.vue":            RouteVueComponent,
		"/@modules/vue":           RouteVirtualModule,
		"/@modules/@vue/shared":   RouteVirtualModule,
		"/@modules/lodash/map.js": RouteVirtualModule,
		"/logo.png":               RouteRaw,
		"/docs":                   RouteRaw,
	} {
		if k := ClassifyPath(pathname); k != kind {
			t.Fatalf("ClassifyPath(%q): expected %s, got %s", pathname, kind, k)
		}
	}
}

func dispatch(t *testing.T, d *Dispatcher, pathname string, status int) *Response {
	res := d.Dispatch(context.Background(), pathname)
	if res.Status != status {
		t.Fatalf("%s: expected status %d, got %d: %s", pathname, status, res.Status, res.Body)
	}
	return res
}

func TestDispatchHTML(t *testing.T) {
	d := newTestDispatcher(t, &testBundler{})

	res := dispatch(t, d, "/", http.StatusOK)
	if res.Kind != KindHTML || res.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("unexpected response: %s %s", res.Kind, res.ContentType)
	}
	page := string(res.Body)
	if !strings.Contains(page, `import { createApp } from "/@modules/vue"; import App from "/src/App.vue";`) {
		t.Fatalf("expected inline module scripts to be rewritten:\n%s", page)
	}
	if !strings.Contains(page, `<script type="module" src="./src/main.js"></script>`) || !strings.Contains(page, `const s = "import x from 'y'"`) {
		t.Fatalf("expected other scripts to be untouched:\n%s", page)
	}

	res = dispatch(t, d, "/docs", http.StatusOK)
	if res.Kind != KindHTML || string(res.Body) != "<h1>docs</h1>" {
		t.Fatalf("expected the index page of the directory, got %s %q", res.Kind, res.Body)
	}
}

func TestDispatchModule(t *testing.T) {
	d := newTestDispatcher(t, &testBundler{})

	res := dispatch(t, d, "/src/main.js", http.StatusOK)
	if res.Kind != KindJS || res.ContentType != "application/javascript; charset=utf-8" {
		t.Fatalf("unexpected response: %s %s", res.Kind, res.ContentType)
	}
	expected := "import { createApp } from '/@modules/vue'\nimport App from '/src/App.vue'\nimport { debounce } from '/lib/utils.js'\nconst lazy = () => import('./lazy.js')\ncreateApp(App).mount('#app')\n"
	if string(res.Body) != expected {
		t.Fatalf("unexpected module:\n%s", res.Body)
	}
	if res.ETag == "" || dispatch(t, d, "/src/main.js", http.StatusOK).ETag != res.ETag {
		t.Fatal("expected a stable etag")
	}

	res = dispatch(t, d, "/src/App.tsx", http.StatusOK)
	code := string(res.Body)
	if !strings.Contains(code, `"/@modules/react/jsx-runtime"`) || !strings.Contains(code, `"/@modules/react"`) {
		t.Fatalf("expected jsx to be compiled and imports rewritten:\n%s", code)
	}
	if strings.Contains(code, "<h1>") || strings.Contains(code, "name: string") {
		t.Fatalf("expected types and jsx to be stripped:\n%s", code)
	}

	res = dispatch(t, d, "/src/util.ts", http.StatusOK)
	if strings.Contains(string(res.Body), ": number") {
		t.Fatalf("expected types to be stripped:\n%s", res.Body)
	}

	res = dispatch(t, d, "/src/broken.js", http.StatusInternalServerError)
	if res.Kind != KindError || !strings.Contains(string(res.Body), "/app/src/broken.js") {
		t.Fatalf("expected the syntax error message, got %q", res.Body)
	}
}

func TestDispatchComponent(t *testing.T) {
	d := newTestDispatcher(t, &testBundler{})

	res := dispatch(t, d, "/src/App.vue", http.StatusOK)
	if res.Kind != KindJS {
		t.Fatalf("unexpected kind: %s", res.Kind)
	}
	code := string(res.Body)
	for _, s := range []string{
		"import { ref } from '/@modules/vue'",
		"import Child from '/src/Child.vue'",
		"const msg = ref('hi')",
		"export function render(renderContext, cache, props, setupState, data, options) {",
		"import * as __vue__ from \"/@modules/vue\"",
	} {
		if !strings.Contains(code, s) {
			t.Fatalf("expected %q in the component module:\n%s", s, code)
		}
	}

	res = dispatch(t, d, "/src/Typed.vue", http.StatusOK)
	if strings.Contains(string(res.Body), "as string") || !strings.Contains(string(res.Body), "export function render(") {
		t.Fatalf("expected the typescript component to be transformed:\n%s", res.Body)
	}

	res = dispatch(t, d, "/src/Both.vue", http.StatusInternalServerError)
	if !strings.Contains(string(res.Body), "unsupported combination") {
		t.Fatalf("unexpected error: %s", res.Body)
	}
	res = dispatch(t, d, "/src/Broken.vue", http.StatusInternalServerError)
	if !strings.Contains(string(res.Body), "missing end tag") {
		t.Fatalf("unexpected error: %s", res.Body)
	}
}

func TestDispatchBareModule(t *testing.T) {
	bundler := &testBundler{}
	d := newTestDispatcher(t, bundler)

	res := dispatch(t, d, "/@modules/vue", http.StatusOK)
	if res.Kind != KindJS || string(res.Body) != "export default \"vue\"\n" {
		t.Fatalf("unexpected response: %s %q", res.Kind, res.Body)
	}
	dispatch(t, d, "/@modules/vue", http.StatusOK)
	if n := bundler.calls.Load(); n != 1 {
		t.Fatalf("expected the bundler to be called once, got %d", n)
	}

	res = dispatch(t, d, "/@modules/does-not-exist", http.StatusNotFound)
	if res.Kind != KindNotFound || !strings.Contains(string(res.Body), "does-not-exist") {
		t.Fatalf("expected a not found response naming the module, got %s %q", res.Kind, res.Body)
	}

	res = dispatch(t, d, "/@modules/broken", http.StatusInternalServerError)
	if !strings.Contains(string(res.Body), "broken") {
		t.Fatalf("expected the error to name the module, got %q", res.Body)
	}

	dispatch(t, d, "/@modules/", http.StatusNotFound)
}

func TestDispatchCanceled(t *testing.T) {
	bundler := &testBundler{release: make(chan struct{})}
	defer close(bundler.release)
	d := newTestDispatcher(t, bundler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Dispatch(ctx, "/@modules/vue")
	if res.Status != StatusClientClosedRequest {
		t.Fatalf("expected status %d, got %d", StatusClientClosedRequest, res.Status)
	}
}

func TestDispatchFile(t *testing.T) {
	d := newTestDispatcher(t, &testBundler{})

	res := dispatch(t, d, "/style.css", http.StatusOK)
	if res.Kind != KindCSS || res.ContentType != "text/css; charset=utf-8" || res.File == nil {
		t.Fatalf("unexpected response: %+v", res)
	}
	data, err := io.ReadAll(res.File)
	res.File.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "body { margin: 0 }" {
		t.Fatalf("unexpected content: %q", data)
	}

	res = dispatch(t, d, "/logo.png", http.StatusOK)
	res.File.Close()
	if res.Kind != KindRaw || res.ContentType != "image/png" || res.Size != 4 || res.ETag == "" {
		t.Fatalf("unexpected response: %+v", res)
	}

	for _, pathname := range []string{"/missing.js", "/missing.css", "/missing.vue", "/src/", "/../etc/passwd"} {
		res = dispatch(t, d, pathname, http.StatusNotFound)
		if res.Kind != KindNotFound {
			t.Fatalf("%s: unexpected kind %s", pathname, res.Kind)
		}
	}
}
