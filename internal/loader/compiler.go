package loader

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/esm-dev/esmd/internal/logx"
)

//go:embed compiler.js
var compilerJS []byte

// RuntimeBinding is the namespace the compiled render functions take the
// runtime helpers from.
const RuntimeBinding = "__vue__"

// RuntimeImport imports the runtime helpers of compiled render functions.
const RuntimeImport = `import * as ` + RuntimeBinding + ` from "vue"`

// TemplateCompiler compiles component templates with the vue compiler
// running in a deno worker.
type TemplateCompiler struct {
	worker *Worker
}

// NewTemplateCompiler creates a template compiler, the worker is not started
// until Start is called.
func NewTemplateCompiler(workDir string, denoPath string, logger logx.Logger) *TemplateCompiler {
	return &TemplateCompiler{
		worker: &Worker{
			WorkDir:  workDir,
			DenoPath: denoPath,
			Name:     fmt.Sprintf("compiler@%d.js", len(compilerJS)),
			Script:   compilerJS,
			Logger:   logger,
		},
	}
}

func (c *TemplateCompiler) Start() error {
	return c.worker.Start()
}

func (c *TemplateCompiler) Stop() {
	c.worker.Stop()
}

// Compile compiles the template into the body of a render function taking
// `(renderContext, cache, ...)`.
func (c *TemplateCompiler) Compile(template string, filename string) (string, error) {
	flag, code, err := c.worker.Call("compileTemplate", template, filename)
	if err != nil {
		return "", err
	}
	if flag != "js" {
		return "", fmt.Errorf("unexpected output type %q", flag)
	}
	return unwrapRenderFunction(code)
}

// unwrapRenderFunction turns the function-mode output of the compiler
//
//	const { toDisplayString: _toDisplayString } = __vue__
//	return function render(_ctx, _cache) {
//	  return _toDisplayString(_ctx.msg)
//	}
//
// into a function body: the preamble is kept, `_ctx` and `_cache` are bound
// to the render parameters.
func unwrapRenderFunction(code string) (string, error) {
	const head = "return function render(_ctx, _cache"
	i := strings.Index(code, head)
	if i == -1 {
		return "", fmt.Errorf("invalid compiler output: missing render function")
	}
	open := strings.IndexByte(code[i:], '{')
	end := strings.LastIndexByte(code, '}')
	if open == -1 || i+open >= end {
		return "", fmt.Errorf("invalid compiler output: missing render function body")
	}
	preamble := strings.TrimSpace(code[:i])
	body := strings.Trim(code[i+open+1:end], "\n")

	var buf strings.Builder
	if preamble != "" {
		buf.WriteString(preamble)
		buf.WriteByte('\n')
	}
	buf.WriteString("const _ctx = renderContext, _cache = cache\n")
	buf.WriteString(body)
	return buf.String(), nil
}
