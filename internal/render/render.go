// Package render turns stored Markdown into HTML that is safe to embed in a
// page. Markdown is converted first and the resulting HTML is sanitised
// afterwards; sanitising the source would mangle syntax such as block quotes.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to sanitised HTML. It is safe for concurrent use.
type Renderer struct {
	md      goldmark.Markdown
	content *bluemonday.Policy
	text    *bluemonday.Policy
}

// New builds a Renderer with the extended profile: GFM tables, strikethrough,
// task lists and autolinks, footnotes, definition lists, and soft line
// breaks rendered as hard breaks.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
			extension.Footnote,
			extension.DefinitionList,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(), // raw HTML is passed through and removed by the sanitiser
		),
	)

	content := bluemonday.UGCPolicy()
	content.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
	content.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	content.AllowAttrs("checked", "disabled").OnElements("input")

	return &Renderer{
		md:      md,
		content: content,
		text:    bluemonday.StrictPolicy(),
	}
}

// Render converts markdown to HTML and sanitises the result.
func (r *Renderer) Render(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return template.HTML(r.content.SanitizeBytes(buf.Bytes())), nil
}

// SanitizeText strips every HTML element from s.
func (r *Renderer) SanitizeText(s string) string {
	return r.text.Sanitize(s)
}
