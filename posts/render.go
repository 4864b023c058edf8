package posts

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"quill/cache"
	"quill/models"
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// On error, fall back to the raw content rather than failing
		// the whole request.
		return content
	}
	return buf.String()
}

// renderedHTML returns the Goldmark rendering of a post's content,
// served from the file cache when the post hasn't changed since the
// last rendering.
func renderedHTML(post *models.Post) string {
	if html, ok := cache.Read(post.Slug, post.UpdatedAt); ok {
		return html
	}

	html := renderMarkdown(post.Content)
	cache.Write(post.Slug, post.UpdatedAt, html)
	return html
}
