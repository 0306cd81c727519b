package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

const listPageSize = 10

type ArticleHandler struct {
	articles *services.ArticleService
	comments *services.CommentService
}

func NewArticleHandler(articles *services.ArticleService, comments *services.CommentService) *ArticleHandler {
	return &ArticleHandler{articles: articles, comments: comments}
}

// sidebar 首页和列表页共用的侧边栏数据
func (h *ArticleHandler) sidebar(ctx context.Context, data gin.H) {
	if popular, err := h.articles.Popular(ctx, 5); err == nil {
		data["PopularArticles"] = popular
	}
	if featured, err := h.articles.Featured(ctx, 3); err == nil {
		data["FeaturedArticles"] = featured
	}
	if recent, err := h.comments.Recent(ctx, 5); err == nil {
		data["RecentComments"] = recent
	}
	if categories, err := h.articles.Categories(ctx); err == nil {
		data["Categories"] = categories
	}
	if tags, err := h.articles.Tags(ctx, 20); err == nil {
		data["Tags"] = tags
	}
}

func (h *ArticleHandler) renderList(c *gin.Context, filter services.ArticleFilter, data gin.H) {
	page := pageParam(c)
	filter.Offset = (page - 1) * listPageSize
	filter.Limit = listPageSize

	articles, total, err := h.articles.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	data["Articles"] = articles
	data["Pagination"] = newPagination(page, listPageSize, total)
	h.sidebar(c.Request.Context(), data)
	Render(c, http.StatusOK, "blog/list.html", data)
}

// Home 首页，支持分类、标签、年月与排序筛选
func (h *ArticleHandler) Home(c *gin.Context) {
	filter := services.ArticleFilter{
		CategorySlug: c.Query("category"),
		TagSlug:      c.Query("tag"),
		Year:         utils.StringToInt(c.Query("year")),
		Month:        utils.StringToInt(c.Query("month")),
		Ordering:     services.SortOrdering(c.Query("sort")),
	}
	h.renderList(c, filter, gin.H{
		"Title":    "首页",
		"Sort":     c.DefaultQuery("sort", "newest"),
		"Category": filter.CategorySlug,
		"Tag":      filter.TagSlug,
	})
}

func (h *ArticleHandler) ByCategory(c *gin.Context) {
	category, err := h.articles.CategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	h.renderList(c, services.ArticleFilter{CategoryID: category.ID}, gin.H{
		"Title":           "分类：" + category.Name,
		"CurrentCategory": category,
	})
}

func (h *ArticleHandler) ByTag(c *gin.Context) {
	tag, err := h.articles.TagBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	h.renderList(c, services.ArticleFilter{TagSlug: tag.Slug}, gin.H{
		"Title":      "标签：" + tag.Name,
		"CurrentTag": tag,
	})
}

func (h *ArticleHandler) Archive(c *gin.Context) {
	year := utils.StringToInt(c.Param("year"))
	month := utils.StringToInt(c.Param("month"))
	if year < 1970 || year > 9999 || month < 0 || month > 12 {
		RenderError(c, http.StatusNotFound, "未找到。")
		return
	}
	title := fmt.Sprintf("%d 年归档", year)
	if month > 0 {
		title = fmt.Sprintf("%d 年 %d 月归档", year, month)
	}
	h.renderList(c, services.ArticleFilter{Year: year, Month: month}, gin.H{"Title": title})
}

// Detail 文章详情页
func (h *ArticleHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	article, err := h.articles.GetBySlug(ctx, c.Param("slug"), user)
	if err != nil {
		fail(c, err)
		return
	}
	h.articles.RecordView(ctx, article, user)

	thread, err := h.comments.Thread(ctx, article.ID)
	if err != nil {
		fail(c, err)
		return
	}
	related, _ := h.articles.Related(ctx, article, 3)
	prev, next, _ := h.articles.Adjacent(ctx, article)

	data := gin.H{
		"Title":           article.Title,
		"Article":         article,
		"Content":         utils.RenderMarkdown(article.Content),
		"Comments":        thread,
		"RelatedArticles": related,
		"PrevArticle":     prev,
		"NextArticle":     next,
		"CanEdit":         user.CanModify(article.AuthorID),
		"CanPin":          user.CanModify(article.AuthorID),
	}
	if user != nil {
		data["HasLiked"] = h.articles.HasLiked(ctx, article.ID, user.ID)
		data["HasBookmarked"] = h.articles.HasBookmarked(ctx, article.ID, user.ID)
	}
	Render(c, http.StatusOK, "blog/detail.html", data)
}

func articleInputFromForm(c *gin.Context) services.ArticleInput {
	in := services.ArticleInput{
		Title:           c.PostForm("title"),
		Content:         c.PostForm("content"),
		Excerpt:         c.PostForm("excerpt"),
		Tags:            services.ParseTags(c.PostForm("tags")),
		FeaturedImage:   c.PostForm("featured_image"),
		Status:          models.ArticleStatus(c.DefaultPostForm("status", string(models.StatusDraft))),
		IsFeatured:      c.PostForm("is_featured") != "",
		MetaTitle:       c.PostForm("meta_title"),
		MetaDescription: c.PostForm("meta_description"),
		MetaKeywords:    c.PostForm("meta_keywords"),
		AllowComments:   c.PostForm("allow_comments") != "",
		AllowSharing:    c.PostForm("allow_sharing") != "",
	}
	if id, ok := utils.ParseID(c.PostForm("category")); ok {
		in.CategoryID = &id
	}
	return in
}

func (h *ArticleHandler) renderForm(c *gin.Context, code int, data gin.H) {
	categories, _ := h.articles.Categories(c.Request.Context())
	data["Categories"] = categories
	Render(c, code, "blog/form.html", data)
}

func (h *ArticleHandler) ShowCreate(c *gin.Context) {
	h.renderForm(c, http.StatusOK, gin.H{
		"Title": "写文章",
		"Form": gin.H{
			"AllowComments": true,
			"AllowSharing":  true,
			"Status":        string(models.StatusDraft),
		},
	})
}

func (h *ArticleHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in := articleInputFromForm(c)

	article, err := h.articles.Create(c.Request.Context(), user, in)
	if err != nil {
		if httpStatus(err) == http.StatusBadRequest {
			h.renderForm(c, http.StatusBadRequest, gin.H{"Title": "写文章", "Error": err.Error(), "Form": formData(in, c.PostForm("tags"))})
			return
		}
		fail(c, err)
		return
	}

	if article.IsPublished() {
		flash(c, "文章发布成功！")
	} else {
		flash(c, "草稿已保存。")
	}
	c.Redirect(http.StatusFound, "/article/"+article.Slug)
}

func formData(in services.ArticleInput, tags string) gin.H {
	form := gin.H{
		"Title":           in.Title,
		"Content":         in.Content,
		"Excerpt":         in.Excerpt,
		"Tags":            tags,
		"FeaturedImage":   in.FeaturedImage,
		"Status":          string(in.Status),
		"IsFeatured":      in.IsFeatured,
		"MetaTitle":       in.MetaTitle,
		"MetaDescription": in.MetaDescription,
		"MetaKeywords":    in.MetaKeywords,
		"AllowComments":   in.AllowComments,
		"AllowSharing":    in.AllowSharing,
	}
	if in.CategoryID != nil {
		form["CategoryID"] = *in.CategoryID
	}
	return form
}

func (h *ArticleHandler) ShowEdit(c *gin.Context) {
	user := middleware.CurrentUser(c)
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), user)
	if err != nil {
		fail(c, err)
		return
	}
	if !user.CanModify(article.AuthorID) {
		RenderError(c, http.StatusForbidden, services.ErrForbidden.Error())
		return
	}

	names := make([]string, 0, len(article.Tags))
	for _, t := range article.Tags {
		names = append(names, t.Name)
	}
	in := services.ArticleInput{
		Title:           article.Title,
		Content:         article.Content,
		Excerpt:         article.Excerpt,
		CategoryID:      article.CategoryID,
		FeaturedImage:   article.FeaturedImage,
		Status:          article.Status,
		IsFeatured:      article.IsFeatured,
		MetaTitle:       article.MetaTitle,
		MetaDescription: article.MetaDescription,
		MetaKeywords:    article.MetaKeywords,
		AllowComments:   article.AllowComments,
		AllowSharing:    article.AllowSharing,
	}
	h.renderForm(c, http.StatusOK, gin.H{
		"Title":   "编辑文章",
		"Article": article,
		"Form":    formData(in, strings.Join(names, ", ")),
	})
}

func (h *ArticleHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in := articleInputFromForm(c)

	article, err := h.articles.Update(c.Request.Context(), c.Param("slug"), user, in)
	if err != nil {
		if httpStatus(err) == http.StatusBadRequest {
			h.renderForm(c, http.StatusBadRequest, gin.H{
				"Title":   "编辑文章",
				"Error":   err.Error(),
				"Article": gin.H{"Slug": c.Param("slug")},
				"Form":    formData(in, c.PostForm("tags")),
			})
			return
		}
		fail(c, err)
		return
	}
	flash(c, "文章已更新。")
	c.Redirect(http.StatusFound, "/article/"+article.Slug)
}

func (h *ArticleHandler) Delete(c *gin.Context) {
	if err := h.articles.Delete(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	flash(c, "文章已删除。")
	c.Redirect(http.StatusFound, "/")
}

func (h *ArticleHandler) Publish(c *gin.Context) {
	article, err := h.articles.Publish(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "slug": article.Slug})
		return
	}
	flash(c, "文章已发布。")
	c.Redirect(http.StatusFound, "/article/"+article.Slug)
}

// loadVisible resolves the :slug param to an article the requester can see.
func (h *ArticleHandler) loadVisible(c *gin.Context) (*models.Article, bool) {
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"), middleware.CurrentUser(c))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return nil, false
	}
	return article, true
}

// Like 点赞 / 取消点赞
func (h *ArticleHandler) Like(c *gin.Context) {
	article, ok := h.loadVisible(c)
	if !ok {
		return
	}
	res, err := h.articles.ToggleLike(c.Request.Context(), article.ID, middleware.CurrentUser(c).ID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": res.Liked, "likes_count": res.LikeCount})
}

// Bookmark 收藏 / 取消收藏
func (h *ArticleHandler) Bookmark(c *gin.Context) {
	article, ok := h.loadVisible(c)
	if !ok {
		return
	}
	bookmarked, err := h.articles.ToggleBookmark(c.Request.Context(), article.ID, middleware.CurrentUser(c).ID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	message := "已取消收藏"
	if bookmarked {
		message = "收藏成功"
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked, "message": message})
}

func (h *ArticleHandler) Drafts(c *gin.Context) {
	drafts, err := h.articles.Drafts(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	Render(c, http.StatusOK, "blog/drafts.html", gin.H{"Title": "我的草稿", "Drafts": drafts})
}

type idsRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

func (h *ArticleHandler) batch(c *gin.Context, run func(ctx context.Context, userID uint, ids []uint) (int, error), done string) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请选择要操作的项目。"})
		return
	}
	n, err := run(c.Request.Context(), middleware.CurrentUser(c).ID, req.IDs)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"success": false, "error": userMessage(c, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n, "message": fmt.Sprintf(done, n)})
}

func (h *ArticleHandler) BatchPublish(c *gin.Context) {
	h.batch(c, h.articles.BatchPublish, "已发布 %d 篇草稿")
}

func (h *ArticleHandler) BatchDelete(c *gin.Context) {
	h.batch(c, h.articles.BatchDelete, "已删除 %d 篇草稿")
}

func (h *ArticleHandler) Bookmarks(c *gin.Context) {
	bookmarks, err := h.articles.Bookmarks(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	Render(c, http.StatusOK, "blog/bookmarks.html", gin.H{"Title": "我的收藏", "Bookmarks": bookmarks})
}

func (h *ArticleHandler) BatchRemoveBookmarks(c *gin.Context) {
	h.batch(c, h.articles.RemoveBookmarks, "已取消 %d 个收藏")
}

// FeatureToggle 管理员设置 / 取消精选
func (h *ArticleHandler) FeatureToggle(c *gin.Context) {
	featured, err := h.articles.ToggleFeatured(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"featured": featured})
		return
	}
	redirectBack(c, "/article/"+c.Param("slug"))
}
