package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"inkwell/internal/logger"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Site holds values every page needs.
type Site struct {
	Name string
	URL  string
}

var site = Site{Name: "Inkwell", URL: "http://localhost:8080"}

func SetSite(s Site) {
	site = s
}

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
		if count, ok := c.Get(middleware.UnreadCountKey); ok {
			obj["UnreadCount"] = int(count.(int64))
		} else {
			obj["UnreadCount"] = 0
		}
	}

	session := sessions.Default(c)
	if flashes := session.Flashes(); len(flashes) > 0 {
		obj["Flashes"] = flashes
		session.Save()
	}
	if errs := session.Flashes("error"); len(errs) > 0 {
		obj["FlashErrors"] = errs
		session.Save()
	}

	obj["CurrentPath"] = c.Request.URL.Path
	obj["SiteName"] = site.Name
	obj["SiteURL"] = site.URL

	c.HTML(code, name, obj)
}

// Error helper
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

func flash(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	session.Save()
}

func flashError(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, "error")
	session.Save()
}

// httpStatus maps service errors onto HTTP status codes.
func httpStatus(err error) int {
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
	case errors.Is(err, services.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, services.ErrCommentsClosed),
		errors.Is(err, services.ErrGuestIdentity),
		errors.Is(err, services.ErrGuestCommentsDisabled),
		errors.Is(err, services.ErrInvalidComment),
		errors.Is(err, services.ErrInvalidArticle),
		errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrInvalidImage),
		errors.Is(err, services.ErrInactiveAccount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// userMessage hides internal errors from the client.
func userMessage(c *gin.Context, err error) string {
	if httpStatus(err) == http.StatusInternalServerError {
		c.Error(err)
		logger.WithContext("http", "handler").WithError(err).
			WithField("path", c.Request.URL.Path).Error("Unexpected error")
		return "服务器内部错误，请稍后再试。"
	}
	return err.Error()
}

// fail answers JSON callers with {"error": msg} and renders the error page
// for everyone else.
func fail(c *gin.Context, err error) {
	code := httpStatus(err)
	msg := userMessage(c, err)
	if middleware.WantsJSON(c) {
		c.JSON(code, gin.H{"error": msg})
		return
	}
	RenderError(c, code, msg)
}

// redirectBack sends the browser to the referring page on this site, or to
// fallback.
func redirectBack(c *gin.Context, fallback string) {
	target := fallback
	if u, err := url.Parse(c.Request.Referer()); err == nil && u.Path != "" {
		if u.Host == "" || u.Host == c.Request.Host {
			target = safeNext(u.RequestURI(), fallback)
		}
	}
	c.Redirect(http.StatusFound, target)
}

// safeNext returns next when it is a local path.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

func login(c *gin.Context, userID uint) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	session.Save()
}

func pageParam(c *gin.Context) int {
	return utils.PositiveInt(c.Query("page"), 1)
}

// Pagination describes a page of a list for templates.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

func newPagination(page, size int, total int64) Pagination {
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	return Pagination{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}
}
