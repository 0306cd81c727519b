package handlers

import (
	"net/http"

	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

const moderationQueueSize = 100

// AdminHandler 评论审核，路由层已保证是 staff
type AdminHandler struct {
	comments *services.CommentService
}

func NewAdminHandler(comments *services.CommentService) *AdminHandler {
	return &AdminHandler{comments: comments}
}

// Comments lists comments waiting for review or flagged as spam.
func (h *AdminHandler) Comments(c *gin.Context) {
	queue, err := h.comments.Queue(c.Request.Context(), moderationQueueSize)
	if err != nil {
		fail(c, err)
		return
	}
	Render(c, http.StatusOK, "admin/comments.html", gin.H{
		"Title":    "评论审核",
		"Comments": queue,
		"Active":   "admin",
	})
}

func (h *AdminHandler) toggle(c *gin.Context, run func(*gin.Context, uint) (bool, error), key, on, off string) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		fail(c, services.ErrNotFound)
		return
	}
	value, err := run(c, id)
	if err != nil {
		fail(c, err)
		return
	}
	message := off
	if value {
		message = on
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{key: value, "message": message})
		return
	}
	flash(c, message)
	c.Redirect(http.StatusFound, "/admin/comments")
}

// Approve 通过 / 撤回评论
func (h *AdminHandler) Approve(c *gin.Context) {
	h.toggle(c, func(c *gin.Context, id uint) (bool, error) {
		return h.comments.ToggleApproved(c.Request.Context(), id)
	}, "approved", "评论已通过审核", "评论已撤回")
}

// Spam 标记 / 取消垃圾评论
func (h *AdminHandler) Spam(c *gin.Context) {
	h.toggle(c, func(c *gin.Context, id uint) (bool, error) {
		return h.comments.ToggleSpam(c.Request.Context(), id)
	}, "spam", "已标记为垃圾评论", "已取消垃圾评论标记")
}
