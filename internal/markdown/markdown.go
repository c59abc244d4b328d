// Package markdown renders AI output written in Markdown into post HTML.
package markdown

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/valpere/polytran/internal/detector"
)

// ToHTML converts Markdown to HTML. Links open in a new tab.
func ToHTML(md string) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse([]byte(md))
	return strings.TrimSpace(string(markdown.Render(doc, renderer)))
}

// ToPlainText renders md and drops the markup.
func ToPlainText(md string) string {
	return detector.PlainText(ToHTML(md))
}
