package handlers

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	feedSize        = 20
	sitemapArticles = 500
)

var (
	blockPattern = regexp.MustCompile(`(?s)(<(?:p|div|h[1-6]|ul|ol|blockquote|pre)[^>]*>.*?</(?:p|div|h[1-6]|ul|ol|blockquote|pre)>)`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
)

type SEOHandler struct {
	articles *services.ArticleService
	now      func() time.Time
}

func NewSEOHandler(articles *services.ArticleService) *SEOHandler {
	return &SEOHandler{articles: articles, now: time.Now}
}

// RobotsTxt 返回robots.txt内容
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止爬取用户后台和管理后台
Disallow: /accounts/
Disallow: /admin/
Disallow: /drafts
Disallow: /bookmarks
Disallow: /notifications

# 禁止爬取API端点
Disallow: /api/
Disallow: /comment/
Disallow: /upload/

# Sitemap位置
Sitemap: %s/sitemap.xml

Crawl-delay: 1
`, site.URL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

func sitemapURL(loc, lastmod, changefreq string, priority float64) string {
	return fmt.Sprintf(`  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, escapeXML(loc), lastmod, changefreq, priority)
}

// SitemapXML 动态生成sitemap.xml
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()
	today := now.Format("2006-01-02")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	b.WriteString(sitemapURL(site.URL+"/", today, "daily", 1.0))
	b.WriteString(sitemapURL(site.URL+"/search", today, "weekly", 0.5))

	categories, err := h.articles.Categories(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	for _, cat := range categories {
		b.WriteString(sitemapURL(site.URL+"/category/"+cat.Slug, today, "daily", 0.7))
	}

	// 最近的文章(限制500篇,避免sitemap过大)
	articles, err := h.articles.Sitemap(ctx, sitemapArticles)
	if err != nil {
		fail(c, err)
		return
	}
	for _, a := range articles {
		// 根据文章新旧程度调整优先级
		days := now.Sub(a.DisplayTime()).Hours() / 24
		priority, changefreq := 0.6, "weekly"
		if days < 7 {
			priority, changefreq = 0.8, "daily"
		} else if days < 30 {
			priority = 0.7
		}
		b.WriteString(sitemapURL(site.URL+"/article/"+a.Slug, a.UpdatedAt.Format("2006-01-02"), changefreq, priority))
	}
	b.WriteString(`</urlset>`)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed 生成RSS 2.0 feed
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	articles, _, err := h.articles.List(c.Request.Context(), services.ArticleFilter{Limit: feedSize})
	if err != nil {
		fail(c, err)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>` + escapeXML(site.Name) + `</title>
    <link>` + escapeXML(site.URL) + `</link>
    <description>` + escapeXML(site.Name) + ` 最新文章</description>
    <language>zh-CN</language>
    <lastBuildDate>` + h.now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + escapeXML(site.URL) + `/feed.xml" rel="self" type="application/rss+xml"/>
`)

	for _, a := range articles {
		link := site.URL + "/article/" + a.Slug

		// 按段落截取正文（前3个块级元素）
		content := truncateByParagraph(string(utils.RenderMarkdown(a.Content)), 3)
		content += fmt.Sprintf(`<p><a href="%s">阅读全文 →</a></p>`, link)

		b.WriteString(`    <item>
      <title>` + escapeXML(a.Title) + `</title>
      <link>` + escapeXML(link) + `</link>
      <description><![CDATA[` + strings.ReplaceAll(content, "]]>", "]]&gt;") + `]]></description>
      <author>` + escapeXML(a.Author.Username) + `</author>
`)
		if a.Category != nil {
			b.WriteString(`      <category>` + escapeXML(a.Category.Name) + `</category>
`)
		}
		b.WriteString(`      <pubDate>` + a.DisplayTime().Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + escapeXML(link) + `</guid>
    </item>
`)
	}
	b.WriteString(`  </channel>
</rss>`)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// escapeXML 转义XML特殊字符
func escapeXML(s string) string {
	return html.EscapeString(s)
}

// truncateByParagraph 按段落截取HTML，保留前几个完整块级元素
func truncateByParagraph(content string, maxBlocks int) string {
	matches := blockPattern.FindAllString(content, maxBlocks)
	if len(matches) == 0 {
		// 没有块级元素，回退到纯文本截取
		runes := []rune(tagPattern.ReplaceAllString(content, ""))
		if len(runes) > 300 {
			return string(runes[:300]) + "..."
		}
		return content
	}
	return strings.Join(matches, "\n")
}
