package utils

import (
	"bytes"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()

	// 评论只允许基础排版，不允许图片和标题
	commentPolicy = bluemonday.NewPolicy()
)

func init() {
	policy.AllowImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)

	commentPolicy.AllowElements("p", "br", "strong", "em", "del", "code", "pre", "blockquote", "ul", "ol", "li")
	commentPolicy.AllowStandardURLs()
	commentPolicy.AllowAttrs("href").OnElements("a")
	commentPolicy.RequireNoFollowOnLinks(true)
	commentPolicy.AddTargetBlankToFullyQualifiedLinks(true)
}

func markdownToHTML(source string) ([]byte, bool) {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// RenderMarkdown renders article markdown into sanitized HTML.
func RenderMarkdown(source string) template.HTML {
	out, ok := markdownToHTML(source)
	if !ok {
		return template.HTML(template.HTMLEscapeString(source))
	}
	sanitized := policy.SanitizeBytes(out)
	return EnhanceHTMLContent(string(sanitized))
}

// RenderComment renders comment markdown with the restricted policy.
func RenderComment(source string) template.HTML {
	out, ok := markdownToHTML(source)
	if !ok {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(commentPolicy.SanitizeBytes(out))
}

// PlainText renders markdown and returns at most limit runes of its text.
func PlainText(source string, limit int) string {
	out, ok := markdownToHTML(source)
	text := source
	if ok {
		text = ExtractText(string(policy.SanitizeBytes(out)))
	}
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		return strings.TrimSpace(string(runes[:limit])) + "..."
	}
	return text
}
