package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"inkwell/internal/logger"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateKey     = "oauth_state"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// NewGoogleOAuthConfig returns nil when no client id is configured.
func NewGoogleOAuthConfig(clientID, clientSecret, siteURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  siteURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleUserInfo Google 用户信息结构
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

// generateStateToken 生成随机 state token
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GoogleLogin 发起 Google OAuth 登录
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		RenderError(c, http.StatusNotFound, "未启用 Google 登录。")
		return
	}
	state, err := generateStateToken()
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "生成状态令牌失败")
		return
	}

	// 将 state 存储到 session 中,用于验证回调
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.google.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (h *AuthHandler) loginError(c *gin.Context, code int, message string) {
	Render(c, code, "accounts/login.html", gin.H{"Title": "登录", "Error": message, "GoogleEnabled": h.google != nil})
}

// GoogleCallback 处理 Google OAuth 回调
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		RenderError(c, http.StatusNotFound, "未启用 Google 登录。")
		return
	}
	log := logger.WithContext("oauth", "google_callback")

	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	session.Save()
	if savedState == "" || c.Query("state") != savedState {
		h.loginError(c, http.StatusBadRequest, "无效的状态参数")
		return
	}

	code := c.Query("code")
	if code == "" {
		h.loginError(c, http.StatusBadRequest, "未获取到授权码")
		return
	}

	token, err := h.google.Exchange(c.Request.Context(), code)
	if err != nil {
		log.WithError(err).Warn("Token exchange failed")
		h.loginError(c, http.StatusBadGateway, "获取访问令牌失败")
		return
	}

	info, err := h.googleUserInfo(c, token)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch user info")
		h.loginError(c, http.StatusBadGateway, "获取用户信息失败")
		return
	}
	if !info.VerifiedEmail {
		h.loginError(c, http.StatusBadRequest, "Google 邮箱未验证")
		return
	}

	name := info.GivenName
	if name == "" {
		name = info.Name
	}
	user, err := h.accounts.FindOrCreateGoogleUser(c.Request.Context(), info.ID, info.Email, name, info.Picture)
	if err != nil {
		h.loginError(c, httpStatus(err), userMessage(c, err))
		return
	}
	if !user.IsActive {
		h.loginError(c, http.StatusForbidden, "账号已被停用。")
		return
	}

	login(c, user.ID)
	c.Redirect(http.StatusFound, "/")
}

// googleUserInfo 获取 Google 用户信息
func (h *AuthHandler) googleUserInfo(c *gin.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.google.Client(c.Request.Context(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("获取用户信息失败: %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
