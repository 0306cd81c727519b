package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(RenderMarkdown("# Title\n\n<script>alert(1)</script>\n\n![x](/a.png)"))
	assert.Contains(t, out, "<h1")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `loading="lazy"`)
}

func TestRenderCommentDropsImages(t *testing.T) {
	out := string(RenderComment("**hi** ![x](/a.png)"))
	assert.Contains(t, out, "<strong>hi</strong>")
	assert.NotContains(t, out, "<img")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello world", PlainText("# Hello\n\n*world*", 0))
	assert.Equal(t, "aaa...", PlainText(strings.Repeat("a", 3)+strings.Repeat("b", 10), 3))
	assert.Equal(t, "一二三...", PlainText("一二三四五", 3))
}

func TestEnhanceHTMLContentEmbedsYouTube(t *testing.T) {
	out := string(EnhanceHTMLContent(`<p>https://youtu.be/abc123</p>`))
	assert.Contains(t, out, "youtube.com/embed/abc123")
}

func TestFirstImage(t *testing.T) {
	assert.Equal(t, "/b.png", FirstImage(`<p>x</p><img src="/b.png"><img src="/c.png">`))
	assert.Equal(t, "", FirstImage(`<p>none</p>`))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!", "article"))
	assert.Equal(t, "article", Slugify("!!!", "article"))
	assert.NotEmpty(t, Slugify("你好世界", "article"))
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	_, ok = ParseID("0")
	assert.False(t, ok)
	_, ok = ParseID("-3")
	assert.False(t, ok)
	assert.Equal(t, 10, PositiveInt("x", 10))
	assert.Equal(t, 3, PositiveInt("3", 10))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestGenerateRandomCode(t *testing.T) {
	code := GenerateRandomCode(4)
	assert.Len(t, code, 4)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
