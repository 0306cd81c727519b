package api

import (
	"net/http"
	"strconv"

	"inkwell/internal/middleware"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

type commentPayload struct {
	Article uint   `json:"article"`
	Parent  *uint  `json:"parent"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) commentInput(c *gin.Context, p commentPayload) services.CommentInput {
	return services.CommentInput{
		ArticleID: p.Article,
		ParentID:  p.Parent,
		Content:   p.Content,
		User:      middleware.CurrentUser(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// ListComments GET /api/comments?article= lists approved top-level comments.
func (h *Handler) ListComments(c *gin.Context) {
	var articleID *uint
	if raw := c.Query("article"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "article 参数无效。")
			return
		}
		id := uint(n)
		articleID = &id
	}

	p := pageFrom(c)
	list, total, err := h.comments.TopLevel(c.Request.Context(), articleID, p.Offset(), p.Size)
	if err != nil {
		abort(c, err)
		return
	}

	viewer := middleware.CurrentUser(c)
	results := make([]CommentJSON, 0, len(list))
	for i := range list {
		replies, err := h.comments.Replies(c.Request.Context(), list[i].ID)
		if err != nil {
			abort(c, err)
			return
		}
		for j := range replies {
			list[i].Replies = append(list[i].Replies, &replies[j])
		}
		results = append(results, newComment(&list[i], viewer))
	}
	paginated(c, p, total, results)
}

func (h *Handler) GetComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	viewer := middleware.CurrentUser(c)
	comment, err := h.comments.Get(c.Request.Context(), id, viewer)
	if err != nil {
		abort(c, err)
		return
	}
	replies, err := h.comments.Replies(c.Request.Context(), comment.ID)
	if err != nil {
		abort(c, err)
		return
	}
	for i := range replies {
		comment.Replies = append(comment.Replies, &replies[i])
	}
	c.JSON(http.StatusOK, newComment(comment, viewer))
}

func (h *Handler) CreateComment(c *gin.Context) {
	var p commentPayload
	if err := c.ShouldBindJSON(&p); err != nil || p.Article == 0 {
		badRequest(c, "请提供文章和评论内容。")
		return
	}
	comment, err := h.comments.Submit(c.Request.Context(), h.commentInput(c, p))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newComment(comment, middleware.CurrentUser(c)))
}

func (h *Handler) ReplyComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var p commentPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "请提供评论内容。")
		return
	}
	viewer := middleware.CurrentUser(c)
	if _, err := h.comments.Get(c.Request.Context(), id, viewer); err != nil {
		abort(c, err)
		return
	}
	comment, err := h.comments.Reply(c.Request.Context(), id, h.commentInput(c, p))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newComment(comment, viewer))
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := h.comments.Delete(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LikeComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	if _, err := h.comments.Get(c.Request.Context(), id, user); err != nil {
		abort(c, err)
		return
	}
	res, err := h.comments.ToggleLike(c.Request.Context(), id, user.ID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": res.Liked, "likes_count": res.LikeCount})
}

func (h *Handler) PinComment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	pinned, err := h.comments.TogglePin(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": pinned})
}
