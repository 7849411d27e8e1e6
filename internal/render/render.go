// Package render converts document markdown to HTML.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

// Renderer renders GitHub-flavoured markdown. Raw HTML in the source is
// omitted from the output. A Renderer is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with tables, strikethrough, task lists, autolinks
// and generated heading ids.
func New() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)}
}

// HTML renders src and returns the HTML with the document outline.
func (r *Renderer) HTML(src []byte) (string, []Heading, error) {
	doc := r.md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return "", nil, fmt.Errorf("render: %w", err)
	}
	return buf.String(), outline(doc, src), nil
}

func outline(doc ast.Node, src []byte) []Heading {
	out := []Heading{}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		entry := Heading{Level: h.Level, Text: string(h.Text(src))}
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				entry.ID = string(b)
			}
		}
		out = append(out, entry)
	}
	return out
}
