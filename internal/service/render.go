package service

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// RenderContent converts stored post markup into sanitized HTML for the
// public read path. The editor that produced the markup is a black box;
// whatever HTML survives rendering is passed through the UGC policy.
func RenderContent(markup string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(markup), &buf); err != nil {
		return sanitizer.Sanitize(markup)
	}
	return sanitizer.Sanitize(buf.String())
}
