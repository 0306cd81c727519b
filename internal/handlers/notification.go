package handlers

import (
	"net/http"

	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

const notificationPageSize = 20

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	page := pageParam(c)

	list, total, err := h.notifications.List(c.Request.Context(), user.ID, (page-1)*notificationPageSize, notificationPageSize)
	if err != nil {
		fail(c, err)
		return
	}

	Render(c, http.StatusOK, "notification/list.html", gin.H{
		"Title":         "通知",
		"Notifications": list,
		"Pagination":    newPagination(page, notificationPageSize, total),
		"Active":        "notifications",
	})
}

// Read marks one notification read. Browsers follow it to the comment.
func (h *NotificationHandler) Read(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		fail(c, services.ErrNotFound)
		return
	}

	link, err := h.notifications.MarkRead(c.Request.Context(), user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "link": link})
		return
	}
	c.Redirect(http.StatusFound, safeNext(link, "/notifications"))
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.notifications.MarkAllRead(c.Request.Context(), user.ID); err != nil {
		fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusFound, "/notifications")
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrNotFound.Error()})
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), user.ID, id); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": userMessage(c, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
