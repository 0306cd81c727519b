package handlers

import (
	"net/http"
	"time"

	"inkwell/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const (
	captchaKey      = "captcha_answer"
	resetCaptchaKey = "reset_captcha_answer"
	codeSentAtKey   = "code_sent_at"

	// 两次发送邮件验证码的最小间隔
	codeResendInterval = 60 * time.Second
)

type AuthHandler struct {
	accounts       *services.AccountService
	captchaService *services.CaptchaService
	google         *oauth2.Config
	now            func() time.Time
}

func NewAuthHandler(accounts *services.AccountService, captcha *services.CaptchaService, google *oauth2.Config) *AuthHandler {
	return &AuthHandler{
		accounts:       accounts,
		captchaService: captcha,
		google:         google,
		now:            time.Now,
	}
}

// newCaptcha stores a fresh answer under key and returns the question.
func (h *AuthHandler) newCaptcha(c *gin.Context, key string) string {
	question, answer := h.captchaService.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(key, answer)
	session.Save()
	return question
}

// checkCaptcha verifies and clears the answer stored under key.
func (h *AuthHandler) checkCaptcha(c *gin.Context, key string) bool {
	session := sessions.Default(c)
	expected, ok := session.Get(key).(int)
	session.Delete(key)
	session.Save()
	return ok && h.captchaService.Verify(c.PostForm("captcha"), expected)
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/register.html", gin.H{
		"Title":   "注册",
		"Captcha": h.newCaptcha(c, captchaKey),
	})
}

// SendCode 发送注册邮箱验证码 (AJAX)
func (h *AuthHandler) SendCode(c *gin.Context) {
	session := sessions.Default(c)
	now := h.now()
	if last, ok := session.Get(codeSentAtKey).(int64); ok && now.Sub(time.Unix(last, 0)) < codeResendInterval {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "发送过于频繁，请稍后再试。"})
		return
	}

	if err := h.accounts.SendRegisterCode(c.Request.Context(), c.PostForm("email")); err != nil {
		c.JSON(httpStatus(err), gin.H{"success": false, "error": userMessage(c, err)})
		return
	}

	session.Set(codeSentAtKey, now.Unix())
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "验证码已发送，请查收邮件。"})
}

func (h *AuthHandler) Register(c *gin.Context) {
	in := services.RegisterInput{
		Username:        c.PostForm("username"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		PasswordConfirm: c.PostForm("password_confirm"),
		Code:            c.PostForm("code"),
	}
	form := gin.H{"Username": in.Username, "Email": in.Email}

	if !h.checkCaptcha(c, captchaKey) {
		Render(c, http.StatusBadRequest, "accounts/register.html", gin.H{
			"Title": "注册", "Error": "验证码错误", "Form": form, "Captcha": h.newCaptcha(c, captchaKey),
		})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		Render(c, httpStatus(err), "accounts/register.html", gin.H{
			"Title": "注册", "Error": userMessage(c, err), "Form": form, "Captcha": h.newCaptcha(c, captchaKey),
		})
		return
	}

	login(c, user.ID)
	flash(c, "注册成功，欢迎加入！")
	c.Redirect(http.StatusFound, "/")
}

// RefreshCaptcha 刷新验证码 (AJAX)
func (h *AuthHandler) RefreshCaptcha(c *gin.Context) {
	key := captchaKey
	if c.Query("type") == "reset" {
		key = resetCaptchaKey
	}
	c.JSON(http.StatusOK, gin.H{"captcha": h.newCaptcha(c, key)})
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/login.html", gin.H{
		"Title":         "登录",
		"Next":          safeNext(c.Query("next"), ""),
		"GoogleEnabled": h.google != nil,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	loginName := c.PostForm("login")
	next := safeNext(c.PostForm("next"), "/")

	user, err := h.accounts.Authenticate(c.Request.Context(), loginName, c.PostForm("password"))
	if err != nil {
		Render(c, httpStatus(err), "accounts/login.html", gin.H{
			"Title":         "登录",
			"Error":         userMessage(c, err),
			"Login":         loginName,
			"Next":          next,
			"GoogleEnabled": h.google != nil,
		})
		return
	}

	login(c, user.ID)
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	flash(c, "已退出登录。")
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowForgotPassword(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/password_forgot.html", gin.H{
		"Title":   "找回密码",
		"Captcha": h.newCaptcha(c, resetCaptchaKey),
	})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email := c.PostForm("email")
	if !h.checkCaptcha(c, resetCaptchaKey) {
		Render(c, http.StatusBadRequest, "accounts/password_forgot.html", gin.H{
			"Title": "找回密码", "Error": "验证码错误", "Email": email, "Captcha": h.newCaptcha(c, resetCaptchaKey),
		})
		return
	}

	if err := h.accounts.SendResetCode(c.Request.Context(), email); err != nil {
		Render(c, httpStatus(err), "accounts/password_forgot.html", gin.H{
			"Title": "找回密码", "Error": userMessage(c, err), "Email": email, "Captcha": h.newCaptcha(c, resetCaptchaKey),
		})
		return
	}

	// 不暴露邮箱是否已注册
	Render(c, http.StatusOK, "accounts/password_reset.html", gin.H{
		"Title":   "重置密码",
		"Success": "如果邮箱已注册，验证码已发送。请查收并重置。",
		"Email":   email,
	})
}

func (h *AuthHandler) ShowResetPassword(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/password_reset.html", gin.H{"Title": "重置密码", "Email": c.Query("email")})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	email := c.PostForm("email")
	err := h.accounts.ResetPassword(c.Request.Context(), email, c.PostForm("code"),
		c.PostForm("password"), c.PostForm("password_confirm"))
	if err != nil {
		Render(c, httpStatus(err), "accounts/password_reset.html", gin.H{
			"Title": "重置密码", "Error": userMessage(c, err), "Email": email,
		})
		return
	}
	flash(c, "密码重置成功，请登录。")
	c.Redirect(http.StatusFound, "/accounts/login")
}
