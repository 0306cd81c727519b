package api

import (
	"net/http"
	"strconv"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

var apiOrderings = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"view_count":    true,
	"like_count":    true,
	"comment_count": true,
}

const defaultOrdering = "-created_at"

// ordering validates ?ordering=, falling back to newest first.
func ordering(raw string) string {
	raw = strings.TrimSpace(raw)
	if apiOrderings[strings.TrimPrefix(raw, "-")] {
		return raw
	}
	return defaultOrdering
}

// articlePayload is the write shape of an article. Absent fields keep their
// current value on PATCH.
type articlePayload struct {
	Title           *string   `json:"title" binding:"omitempty,max=200"`
	Content         *string   `json:"content"`
	Excerpt         *string   `json:"excerpt" binding:"omitempty,max=500"`
	Category        *uint     `json:"category"`
	Tags            *[]string `json:"tags"`
	FeaturedImage   *string   `json:"featured_image" binding:"omitempty,max=300"`
	IsFeatured      *bool     `json:"is_featured"`
	Status          *string   `json:"status" binding:"omitempty,oneof=draft published archived"`
	MetaTitle       *string   `json:"meta_title" binding:"omitempty,max=200"`
	MetaDescription *string   `json:"meta_description" binding:"omitempty,max=300"`
	MetaKeywords    *string   `json:"meta_keywords" binding:"omitempty,max=200"`
	AllowComments   *bool     `json:"allow_comments"`
	AllowSharing    *bool     `json:"allow_sharing"`
}

func (p articlePayload) merge(in services.ArticleInput) services.ArticleInput {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&in.Title, p.Title)
	set(&in.Content, p.Content)
	set(&in.Excerpt, p.Excerpt)
	set(&in.FeaturedImage, p.FeaturedImage)
	set(&in.MetaTitle, p.MetaTitle)
	set(&in.MetaDescription, p.MetaDescription)
	set(&in.MetaKeywords, p.MetaKeywords)
	if p.Category != nil {
		in.CategoryID = p.Category
	}
	if p.Tags != nil {
		in.Tags = *p.Tags
	}
	if p.IsFeatured != nil {
		in.IsFeatured = *p.IsFeatured
	}
	if p.Status != nil {
		in.Status = models.ArticleStatus(*p.Status)
	}
	if p.AllowComments != nil {
		in.AllowComments = *p.AllowComments
	}
	if p.AllowSharing != nil {
		in.AllowSharing = *p.AllowSharing
	}
	return in
}

func inputFromArticle(a *models.Article) services.ArticleInput {
	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		tags = append(tags, t.Name)
	}
	return services.ArticleInput{
		Title:           a.Title,
		Content:         a.Content,
		Excerpt:         a.Excerpt,
		CategoryID:      a.CategoryID,
		Tags:            tags,
		FeaturedImage:   a.FeaturedImage,
		Status:          a.Status,
		IsFeatured:      a.IsFeatured,
		MetaTitle:       a.MetaTitle,
		MetaDescription: a.MetaDescription,
		MetaKeywords:    a.MetaKeywords,
		AllowComments:   a.AllowComments,
		AllowSharing:    a.AllowSharing,
	}
}

func (h *Handler) listArticles(c *gin.Context, f services.ArticleFilter) {
	p := pageFrom(c)
	f.Offset, f.Limit = p.Offset(), p.Size
	if f.Ordering == "" {
		f.Ordering = ordering(c.Query("ordering"))
	}
	list, total, err := h.articles.List(c.Request.Context(), f)
	if err != nil {
		abort(c, err)
		return
	}
	paginated(c, p, total, newArticles(list))
}

// ListArticles GET /api/articles
func (h *Handler) ListArticles(c *gin.Context) {
	f := services.ArticleFilter{Query: c.Query("search")}
	if id, err := strconv.ParseUint(c.Query("category"), 10, 64); err == nil {
		f.CategoryID = uint(id)
	}
	if id, err := strconv.ParseUint(c.Query("author"), 10, 64); err == nil {
		f.AuthorID = uint(id)
	}
	if v, err := strconv.ParseBool(c.Query("is_featured")); err == nil {
		f.Featured = &v
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		f.TagSlug = utils.Slugify(tag, tag)
	}
	h.listArticles(c, f)
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newArticle(article, true))
}

func (h *Handler) CreateArticle(c *gin.Context) {
	var p articlePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, bindError(err))
		return
	}
	if p.Title == nil || p.Content == nil {
		badRequest(c, "标题和内容是必填项。")
		return
	}

	in := p.merge(services.ArticleInput{
		Status:        models.StatusDraft,
		AllowComments: true,
		AllowSharing:  true,
	})
	article, err := h.articles.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		abort(c, err)
		return
	}
	h.respondArticle(c, http.StatusCreated, article.Slug)
}

// respondArticle reloads the article so relations are filled in.
func (h *Handler) respondArticle(c *gin.Context, code int, slug string) {
	article, err := h.articles.GetBySlug(c.Request.Context(), slug, middleware.CurrentUser(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(code, newArticle(article, true))
}

func (h *Handler) update(c *gin.Context, partial bool) {
	user := middleware.CurrentUser(c)
	var p articlePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, bindError(err))
		return
	}
	if !partial && (p.Title == nil || p.Content == nil) {
		badRequest(c, "标题和内容是必填项。")
		return
	}

	current, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), user)
	if err != nil {
		abort(c, err)
		return
	}
	base := inputFromArticle(current)
	if !partial {
		// PUT 覆盖所有可写字段
		base = services.ArticleInput{
			Status:        current.Status,
			AllowComments: true,
			AllowSharing:  true,
		}
	}

	article, err := h.articles.Update(c.Request.Context(), current.Slug, user, p.merge(base))
	if err != nil {
		abort(c, err)
		return
	}
	h.respondArticle(c, http.StatusOK, article.Slug)
}

func (h *Handler) UpdateArticle(c *gin.Context) { h.update(c, false) }

func (h *Handler) PatchArticle(c *gin.Context) { h.update(c, true) }

func (h *Handler) DeleteArticle(c *gin.Context) {
	if err := h.articles.Delete(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c)); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LikeArticle(c *gin.Context) {
	user := middleware.CurrentUser(c)
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), user)
	if err != nil {
		abort(c, err)
		return
	}
	res, err := h.articles.ToggleLike(c.Request.Context(), article.ID, user.ID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": res.Liked, "likes_count": res.LikeCount})
}

func (h *Handler) BookmarkArticle(c *gin.Context) {
	user := middleware.CurrentUser(c)
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), user)
	if err != nil {
		abort(c, err)
		return
	}
	bookmarked, err := h.articles.ToggleBookmark(c.Request.Context(), article.ID, user.ID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

// ArticleComments returns the approved comment tree, paginated by thread.
func (h *Handler) ArticleComments(c *gin.Context) {
	viewer := middleware.CurrentUser(c)
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), viewer)
	if err != nil {
		abort(c, err)
		return
	}
	roots, err := h.comments.Thread(c.Request.Context(), article.ID)
	if err != nil {
		abort(c, err)
		return
	}

	p := pageFrom(c)
	results := make([]CommentJSON, 0, p.Size)
	for _, root := range window(roots, p) {
		results = append(results, newComment(root, viewer))
	}
	paginated(c, p, int64(len(roots)), results)
}
