// Package api serves the JSON REST interface under /api.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"inkwell/internal/logger"
	"inkwell/internal/middleware"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Handler struct {
	accounts *services.AccountService
	articles *services.ArticleService
	comments *services.CommentService
	tokens   *services.TokenService
}

func NewHandler(accounts *services.AccountService, articles *services.ArticleService, comments *services.CommentService, tokens *services.TokenService) *Handler {
	return &Handler{accounts: accounts, articles: articles, comments: comments, tokens: tokens}
}

// Register mounts every endpoint on rg. The session/token user must already
// have been loaded by middleware.LoadUser.
func (h *Handler) Register(rg *gin.RouterGroup) {
	auth := middleware.APIAuthRequired()

	rg.POST("/auth/token", h.ObtainToken)

	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.GET("/users/:id/articles", h.UserArticles)

	rg.GET("/articles", h.ListArticles)
	rg.POST("/articles", auth, h.CreateArticle)
	rg.GET("/articles/:slug", h.GetArticle)
	rg.PUT("/articles/:slug", auth, h.UpdateArticle)
	rg.PATCH("/articles/:slug", auth, h.PatchArticle)
	rg.DELETE("/articles/:slug", auth, h.DeleteArticle)
	rg.POST("/articles/:slug/like", auth, h.LikeArticle)
	rg.POST("/articles/:slug/bookmark", auth, h.BookmarkArticle)
	rg.GET("/articles/:slug/comments", h.ArticleComments)

	rg.GET("/categories", h.ListCategories)
	rg.GET("/categories/:slug", h.GetCategory)
	rg.GET("/categories/:slug/articles", h.CategoryArticles)

	rg.GET("/tags", h.ListTags)

	rg.GET("/comments", h.ListComments)
	rg.POST("/comments", auth, h.CreateComment)
	rg.GET("/comments/:id", h.GetComment)
	rg.DELETE("/comments/:id", auth, h.DeleteComment)
	rg.POST("/comments/:id/like", auth, h.LikeComment)
	rg.POST("/comments/:id/reply", auth, h.ReplyComment)
	rg.POST("/comments/:id/pin", auth, h.PinComment)
}

// status maps service errors onto HTTP status codes.
func status(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrBadCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.As(err, &verr),
		errors.Is(err, services.ErrCommentsClosed),
		errors.Is(err, services.ErrGuestIdentity),
		errors.Is(err, services.ErrGuestCommentsDisabled),
		errors.Is(err, services.ErrInvalidComment),
		errors.Is(err, services.ErrInvalidArticle),
		errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInactiveAccount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// abort writes {"detail": msg}; internal errors are logged and masked.
func abort(c *gin.Context, err error) {
	code := status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		c.Error(err)
		logger.WithContext("api", "handler").WithError(err).
			WithField("path", c.Request.URL.Path).Error("Unexpected error")
		msg = "服务器内部错误。"
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": services.ErrNotFound.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": msg})
}

// Page is the requested slice of a list.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// pageFrom reads page and page_size; page_size is capped at MaxPageSize.
func pageFrom(c *gin.Context) Page {
	p := Page{Number: 1, Size: DefaultPageSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		p.Size = min(n, MaxPageSize)
	}
	return p
}

// pageLink returns the absolute URL of page n of the current request.
func pageLink(c *gin.Context, n int) string {
	u := url.URL{
		Scheme: "http",
		Host:   c.Request.Host,
		Path:   c.Request.URL.Path,
	}
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}
	q := c.Request.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// paginated writes the {count, next, previous, results} envelope. A page
// past the end of a non-empty list is a 404.
func paginated(c *gin.Context, p Page, total int64, results any) {
	if p.Number > 1 && int64(p.Offset()) >= total {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "无效页面。"})
		return
	}
	var next, prev *string
	if int64(p.Offset()+p.Size) < total {
		link := pageLink(c, p.Number+1)
		next = &link
	}
	if p.Number > 1 {
		link := pageLink(c, p.Number-1)
		prev = &link
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    total,
		"next":     next,
		"previous": prev,
		"results":  results,
	})
}

// window slices an in-memory list for the page.
func window[T any](items []T, p Page) []T {
	start := min(p.Offset(), len(items))
	end := min(start+p.Size, len(items))
	return items[start:end]
}

func idParam(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		notFound(c)
		return 0, false
	}
	return uint(n), true
}

func bindError(err error) string {
	return fmt.Sprintf("请求数据无效：%v", err)
}
