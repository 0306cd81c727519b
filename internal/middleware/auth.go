package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	UnreadCountKey = "unread_count"
	SessionUserKey = "user_id"
)

// CurrentUser returns the user loaded by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// LoadUser resolves the requester from the session cookie or, for API
// clients, an "Authorization: Bearer" token, and stores it in the context.
func LoadUser(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := sessionUserID(c)
		if userID == 0 && tokens != nil {
			if raw, ok := bearerToken(c); ok {
				if claims, err := tokens.ValidateToken(raw); err == nil {
					userID = claims.UserID
				}
			}
		}

		if userID != 0 {
			var user models.User
			result := db.DB.WithContext(c.Request.Context()).Where("is_active = ?", true).First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)

				var count int64
				db.DB.WithContext(c.Request.Context()).Model(&models.Notification{}).
					Where("user_id = ? AND is_read = ?", user.ID, false).
					Count(&count)
				c.Set(UnreadCountKey, count)
			}
		}
		c.Next()
	}
}

func sessionUserID(c *gin.Context) uint {
	switch v := sessions.Default(c).Get(SessionUserKey).(type) {
	case uint:
		return v
	case int:
		return uint(v)
	case int64:
		return uint(v)
	}
	return 0
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:]), true
	}
	return "", false
}

// WantsJSON reports whether the client expects a JSON answer.
func WantsJSON(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// AuthRequired ensures a user is logged in. Browsers are sent to the login
// page, AJAX callers get a 401.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录。"})
				return
			}
			c.Redirect(http.StatusFound, "/accounts/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// StaffRequired must run after AuthRequired.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsStaff() {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "没有权限执行此操作。"})
				return
			}
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// APIAuthRequired answers 401 {"detail": ...} for anonymous API calls.
func APIAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "请先登录。"})
			return
		}
		c.Next()
	}
}
