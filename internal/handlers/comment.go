package handlers

import (
	"fmt"
	"net/http"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	articles *services.ArticleService
	comments *services.CommentService
}

func NewCommentHandler(articles *services.ArticleService, comments *services.CommentService) *CommentHandler {
	return &CommentHandler{articles: articles, comments: comments}
}

func commentInputFromForm(c *gin.Context) services.CommentInput {
	in := services.CommentInput{
		Content:   c.PostForm("content"),
		User:      middleware.CurrentUser(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if in.User == nil {
		in.GuestName = c.PostForm("guest_name")
		in.GuestEmail = c.PostForm("guest_email")
		in.GuestWebsite = c.PostForm("guest_website")
	}
	return in
}

func commentJSON(comment *models.Comment) gin.H {
	return gin.H{
		"id":           comment.ID,
		"author":       comment.AuthorName(),
		"content_html": string(utils.RenderComment(comment.Content)),
		"created_at":   comment.CreatedAt,
		"parent_id":    comment.ParentID,
		"is_approved":  comment.IsApproved,
		"like_count":   comment.LikeCount,
	}
}

// submitted answers a successful submission; slug is the article's slug.
func submitted(c *gin.Context, comment *models.Comment, slug string) {
	message := "评论发表成功！"
	if !comment.IsApproved {
		message = "评论已提交，审核通过后显示。"
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "comment": commentJSON(comment)})
		return
	}
	flash(c, message)
	c.Redirect(http.StatusFound, fmt.Sprintf("/article/%s#comment-%d", slug, comment.ID))
}

// rejected answers a failed submission; back is where browsers return to.
func rejected(c *gin.Context, err error, back string) {
	if middleware.WantsJSON(c) {
		c.JSON(httpStatus(err), gin.H{"success": false, "error": userMessage(c, err)})
		return
	}
	if httpStatus(err) == http.StatusNotFound {
		RenderError(c, http.StatusNotFound, err.Error())
		return
	}
	flashError(c, userMessage(c, err))
	c.Redirect(http.StatusFound, back+"#comments")
}

// Add 发表顶层评论 (POST /comment/add/:slug)
func (h *CommentHandler) Add(c *gin.Context) {
	slug := c.Param("slug")
	article, err := h.articles.GetBySlug(c.Request.Context(), slug, middleware.CurrentUser(c))
	if err != nil {
		rejected(c, err, "/")
		return
	}

	in := commentInputFromForm(c)
	in.ArticleID = article.ID
	if id, ok := utils.ParseID(c.PostForm("parent_id")); ok {
		in.ParentID = &id
	}

	comment, err := h.comments.Submit(c.Request.Context(), in)
	if err != nil {
		rejected(c, err, "/article/"+article.Slug)
		return
	}
	submitted(c, comment, article.Slug)
}

// Reply 回复评论 (POST /comment/reply/:id)
func (h *CommentHandler) Reply(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		rejected(c, services.ErrNotFound, "/")
		return
	}
	parent, err := h.comments.Get(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		rejected(c, err, "/")
		return
	}

	comment, err := h.comments.Reply(c.Request.Context(), parent.ID, commentInputFromForm(c))
	if err != nil {
		rejected(c, err, "/article/"+parent.Article.Slug)
		return
	}
	submitted(c, comment, parent.Article.Slug)
}

func (h *CommentHandler) commentID(c *gin.Context) (uint, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrNotFound.Error()})
	}
	return id, ok
}

// Like 点赞 / 取消点赞评论
func (h *CommentHandler) Like(c *gin.Context) {
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	if _, err := h.comments.Get(c.Request.Context(), id, user); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	res, err := h.comments.ToggleLike(c.Request.Context(), id, user.ID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Delete 删除评论及其所有回复
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		fail(c, services.ErrNotFound)
		return
	}
	comment, err := h.comments.Delete(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "评论已删除。"})
		return
	}
	flash(c, "评论已删除。")
	c.Redirect(http.StatusFound, "/article/"+comment.Article.Slug+"#comments")
}

// Pin 置顶 / 取消置顶，仅文章作者和管理员可操作
func (h *CommentHandler) Pin(c *gin.Context) {
	id, ok := h.commentID(c)
	if !ok {
		return
	}
	pinned, err := h.comments.TogglePin(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	message := "已取消置顶"
	if pinned {
		message = "评论已置顶"
	}
	c.JSON(http.StatusOK, gin.H{"pinned": pinned, "message": message})
}
