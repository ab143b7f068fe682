package sfc

import (
	"strings"
)

// RenderParams is the parameter list of the exported render function.
const RenderParams = "renderContext, cache, props, setupState, data, options"

// TemplateCompiler compiles a template into the body of a render function.
type TemplateCompiler interface {
	Compile(template string, filename string) (string, error)
}

// Splitter splits a component into one ES module.
type Splitter struct {
	Parser   Parser
	Compiler TemplateCompiler
	// Prelude is appended to modules with a render function, e.g. the import
	// of the runtime helpers the compiled templates reference.
	Prelude string
}

// Split returns the synthesized module of the component: the script (or
// script setup) content followed by the render function compiled from the
// template. It's recomputed on every call.
func (s *Splitter) Split(filename string, source string) (string, error) {
	desc, err := s.Parse(filename, source)
	if err != nil {
		return "", err
	}
	return s.Synthesize(desc)
}

// Parse parses the component into a descriptor.
func (s *Splitter) Parse(filename string, source string) (*Descriptor, error) {
	parser := s.Parser
	if parser == nil {
		parser = HTMLParser{}
	}
	desc, err := parser.Parse(filename, source)
	if err != nil {
		return nil, err
	}
	if desc.Script != nil && desc.ScriptSetup != nil && strings.TrimSpace(desc.Script.Content) != "" && strings.TrimSpace(desc.ScriptSetup.Content) != "" {
		return nil, &ParseError{Filename: filename, Message: "unsupported combination of <script> and <script setup>"}
	}
	return desc, nil
}

// ScriptBlock returns the script setup block if it has content, otherwise
// the script block. It may be nil.
func (desc *Descriptor) ScriptBlock() *Block {
	if desc.ScriptSetup != nil && strings.TrimSpace(desc.ScriptSetup.Content) != "" {
		return desc.ScriptSetup
	}
	if desc.Script != nil {
		return desc.Script
	}
	return desc.ScriptSetup
}

// Synthesize composes the module of a parsed component.
func (s *Splitter) Synthesize(desc *Descriptor) (string, error) {
	var script string
	if block := desc.ScriptBlock(); block != nil {
		script = block.Content
	}
	if desc.Template == nil {
		return script, nil
	}
	if s.Compiler == nil {
		return "", &ParseError{Filename: desc.Filename, Message: "no template compiler"}
	}
	fragment, err := s.Compiler.Compile(desc.Template.Content, desc.Filename)
	if err != nil {
		return "", &ParseError{Filename: desc.Filename, Message: "failed to compile template", Err: err}
	}
	var buf strings.Builder
	buf.WriteString(script)
	buf.WriteByte('\n')
	buf.WriteString(RenderFunction(fragment))
	if s.Prelude != "" {
		buf.WriteString(s.Prelude)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

// RenderFunction wraps the compiled template fragment as an exported render
// function.
func RenderFunction(fragment string) string {
	return "export function render(" + RenderParams + ") {\n" + fragment + "\n}\n"
}
