package handlers

import (
	"net/http"

	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

// ImageHandler 图片上传
type ImageHandler struct {
	images *services.ImageService
}

func NewImageHandler(images *services.ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

// Upload 处理图片上传请求 (POST /upload/image)
// 需要用户已登录
func (h *ImageHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxImageSize+1<<20)

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "请选择要上传的图片",
		})
		return
	}
	defer file.Close()

	result, err := h.images.Save(file)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{
			"success": false,
			"error":   userMessage(c, err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"url":       result.URL,
		"thumb_url": result.ThumbURL,
		"id":        result.ID,
	})
}
