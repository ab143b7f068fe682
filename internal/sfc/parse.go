package sfc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Block is a top-level block of a component file.
// Start and End are byte offsets of the block content in the source.
type Block struct {
	Type    string
	Content string
	Lang    string
	Attrs   map[string]string
	Start   int
	End     int
}

// Descriptor describes the blocks of a component file.
type Descriptor struct {
	Filename    string
	Script      *Block
	ScriptSetup *Block
	Template    *Block
	Styles      []*Block
}

// ParseError is returned when a component can't be parsed or compiled.
type ParseError struct {
	Filename string
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Filename, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser parses a component file into its blocks.
type Parser interface {
	Parse(filename string, source string) (*Descriptor, error)
}

// HTMLParser parses the top-level `<template>`, `<script>` and `<style>`
// blocks of a component with the html tokenizer.
type HTMLParser struct{}

type openBlock struct {
	tag          string
	attrs        map[string]string
	contentStart int
	depth        int
}

func (HTMLParser) Parse(filename string, source string) (*Descriptor, error) {
	desc := &Descriptor{Filename: filename}
	z := html.NewTokenizer(strings.NewReader(source))
	offset := 0
	var current *openBlock
	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return nil, &ParseError{Filename: filename, Message: "invalid component", Err: z.Err()}
			}
			if current != nil {
				return nil, &ParseError{Filename: filename, Message: fmt.Sprintf("element <%s> is missing end tag", current.tag)}
			}
			return desc, nil

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if current != nil {
				// nested templates, e.g. `<template v-if="ok">`
				if tag == current.tag && tag == "template" {
					current.depth++
				}
				continue
			}
			if tag != "template" && tag != "script" && tag != "style" {
				continue
			}
			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}
			current = &openBlock{tag: tag, attrs: attrs, contentStart: offset}

		case html.EndTagToken:
			if current == nil {
				continue
			}
			name, _ := z.TagName()
			if string(name) != current.tag {
				continue
			}
			if current.depth > 0 {
				current.depth--
				continue
			}
			block := &Block{
				Type:    current.tag,
				Content: source[current.contentStart:start],
				Lang:    current.attrs["lang"],
				Attrs:   current.attrs,
				Start:   current.contentStart,
				End:     start,
			}
			current = nil
			if err := desc.add(block); err != nil {
				return nil, &ParseError{Filename: filename, Message: err.Error()}
			}
		}
	}
}

func (desc *Descriptor) add(block *Block) error {
	switch block.Type {
	case "template":
		if desc.Template != nil {
			return fmt.Errorf("a component can contain only one <template> element")
		}
		desc.Template = block
	case "script":
		if _, ok := block.Attrs["setup"]; ok {
			if desc.ScriptSetup != nil {
				return fmt.Errorf("a component can contain only one <script setup> element")
			}
			desc.ScriptSetup = block
		} else {
			if desc.Script != nil {
				return fmt.Errorf("a component can contain only one <script> element")
			}
			desc.Script = block
		}
	case "style":
		desc.Styles = append(desc.Styles, block)
	}
	return nil
}
