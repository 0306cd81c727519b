package handlers

import (
	"net/http"
	"strings"
	"time"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	searchTagLimit         = 20
	searchCategoryLimit    = 5
	advancedSearchPageSize = 15
)

type SearchHandler struct {
	articles *services.ArticleService
}

func NewSearchHandler(articles *services.ArticleService) *SearchHandler {
	return &SearchHandler{articles: articles}
}

// Search 全站搜索 /search?q=&type=articles|tags|all
func (h *SearchHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	query := strings.TrimSpace(c.Query("q"))
	typ := c.DefaultQuery("type", "articles")
	if typ != "articles" && typ != "tags" {
		typ = "all"
	}

	data := gin.H{"Title": "搜索", "Query": query, "Type": typ}
	if query == "" {
		Render(c, http.StatusOK, "search/results.html", data)
		return
	}
	data["Title"] = "搜索：" + query
	var found int64

	if typ != "tags" {
		page := pageParam(c)
		articles, total, err := h.articles.List(ctx, services.ArticleFilter{
			Query:  query,
			Offset: (page - 1) * listPageSize,
			Limit:  listPageSize,
		})
		if err != nil {
			fail(c, err)
			return
		}
		data["Articles"] = articles
		data["Pagination"] = newPagination(page, listPageSize, total)
		found += total
	}
	if typ != "articles" {
		tags, err := h.articles.SearchTags(ctx, query, searchTagLimit)
		if err != nil {
			fail(c, err)
			return
		}
		data["Tags"] = tags
		found += int64(len(tags))
	}
	if typ == "all" {
		categories, err := h.articles.SearchCategories(ctx, query, searchCategoryLimit)
		if err != nil {
			fail(c, err)
			return
		}
		data["Categories"] = categories
		found += int64(len(categories))
	}
	data["TotalResults"] = found
	Render(c, http.StatusOK, "search/results.html", data)
}

// parseDay accepts YYYY-MM-DD; anything else is ignored.
func parseDay(raw string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.Local)
	if err != nil {
		return nil
	}
	return &t
}

// Advanced 高级搜索
func (h *SearchHandler) Advanced(c *gin.Context) {
	ctx := c.Request.Context()
	categories, err := h.articles.Categories(ctx)
	if err != nil {
		logger.WithContext("search", "advanced").WithError(err).Warn("Failed to load categories")
	}

	form := gin.H{
		"Q":         c.Query("q"),
		"Category":  c.Query("category"),
		"Tag":       c.Query("tag"),
		"Author":    c.Query("author"),
		"StartDate": c.Query("start_date"),
		"EndDate":   c.Query("end_date"),
		"Sort":      c.DefaultQuery("sort", "newest"),
	}
	data := gin.H{"Title": "高级搜索", "Form": form, "Categories": categories}

	filter := services.ArticleFilter{
		Query:        strings.TrimSpace(c.Query("q")),
		CategorySlug: c.Query("category"),
		TagName:      strings.TrimSpace(c.Query("tag")),
		AuthorName:   strings.TrimSpace(c.Query("author")),
		Since:        parseDay(c.Query("start_date")),
		Ordering:     services.SortOrdering(c.Query("sort")),
	}
	if until := parseDay(c.Query("end_date")); until != nil {
		// 包含结束当天
		end := until.AddDate(0, 0, 1)
		filter.Until = &end
	}

	searched := filter.Query != "" || filter.CategorySlug != "" || filter.TagName != "" ||
		filter.AuthorName != "" || filter.Since != nil || filter.Until != nil
	if searched {
		page := pageParam(c)
		filter.Offset = (page - 1) * advancedSearchPageSize
		filter.Limit = advancedSearchPageSize
		articles, total, err := h.articles.List(ctx, filter)
		if err != nil {
			fail(c, err)
			return
		}
		data["Articles"] = articles
		data["Pagination"] = newPagination(page, advancedSearchPageSize, total)
	} else {
		data["Articles"] = []models.Article{}
	}
	data["Searched"] = searched
	Render(c, http.StatusOK, "search/advanced.html", data)
}
