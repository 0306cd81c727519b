package handlers

import (
	"net/http"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts *services.AccountService
	articles *services.ArticleService
	images   *services.ImageService
}

func NewUserHandler(accounts *services.AccountService, articles *services.ArticleService, images *services.ImageService) *UserHandler {
	return &UserHandler{accounts: accounts, articles: articles, images: images}
}

// Profile - 用户主页 /accounts/profile/:username
func (h *UserHandler) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.accounts.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	profile, err := h.accounts.Profile(ctx, user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	page := pageParam(c)
	size := profile.PostsPerPage
	if size < 1 {
		size = listPageSize
	}
	articles, total, err := h.articles.List(ctx, services.ArticleFilter{
		AuthorID: user.ID,
		Offset:   (page - 1) * size,
		Limit:    size,
	})
	if err != nil {
		fail(c, err)
		return
	}

	Render(c, http.StatusOK, "accounts/profile.html", gin.H{
		"Title":      user.Username + " 的主页",
		"User":       user,
		"Profile":    profile,
		"DaysSince":  utils.GetDaysSinceJoined(user.CreatedAt),
		"Articles":   articles,
		"Pagination": newPagination(page, size, total),
		"IsOwner":    middleware.CurrentUser(c) != nil && middleware.CurrentUser(c).ID == user.ID,
	})
}

func (h *UserHandler) ShowEditProfile(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/profile_edit.html", gin.H{
		"Title": "编辑资料",
		"User":  middleware.CurrentUser(c),
	})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in := services.ProfileInput{
		Bio:         c.PostForm("bio"),
		Website:     c.PostForm("website"),
		Location:    c.PostForm("location"),
		GithubURL:   c.PostForm("github_url"),
		TwitterURL:  c.PostForm("twitter_url"),
		LinkedinURL: c.PostForm("linkedin_url"),
	}
	if raw := c.PostForm("birth_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.profileError(c, "出生日期格式不正确。")
			return
		}
		in.BirthDate = &d
	}

	// 头像可选，存缩略图
	if file, _, err := c.Request.FormFile("avatar"); err == nil {
		defer file.Close()
		res, err := h.images.Save(file)
		if err != nil {
			h.profileError(c, userMessage(c, err))
			return
		}
		in.Avatar = res.ThumbURL
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), user, in); err != nil {
		h.profileError(c, userMessage(c, err))
		return
	}
	flash(c, "个人资料已更新。")
	c.Redirect(http.StatusFound, "/accounts/profile/"+user.Username)
}

func (h *UserHandler) profileError(c *gin.Context, message string) {
	Render(c, http.StatusBadRequest, "accounts/profile_edit.html", gin.H{
		"Title": "编辑资料",
		"User":  middleware.CurrentUser(c),
		"Error": message,
	})
}

func (h *UserHandler) ShowSettings(c *gin.Context) {
	profile, err := h.accounts.Profile(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	Render(c, http.StatusOK, "accounts/settings.html", gin.H{"Title": "博客设置", "Profile": profile})
}

func (h *UserHandler) UpdateSettings(c *gin.Context) {
	in := services.SettingsInput{
		Theme:              c.DefaultPostForm("theme", "light"),
		BlogTitle:          c.PostForm("blog_title"),
		BlogDescription:    c.PostForm("blog_description"),
		ShowEmail:          c.PostForm("show_email") != "",
		AllowComments:      c.PostForm("allow_comments") != "",
		AllowGuestComments: c.PostForm("allow_guest_comments") != "",
		PostsPerPage:       utils.StringToInt(c.DefaultPostForm("posts_per_page", "10")),
	}
	profile, err := h.accounts.UpdateSettings(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		Render(c, httpStatus(err), "accounts/settings.html", gin.H{
			"Title":   "博客设置",
			"Error":   userMessage(c, err),
			"Profile": in,
		})
		return
	}
	flash(c, "设置已保存。")
	Render(c, http.StatusOK, "accounts/settings.html", gin.H{"Title": "博客设置", "Profile": profile})
}

func (h *UserHandler) ShowChangePassword(c *gin.Context) {
	Render(c, http.StatusOK, "accounts/password_change.html", gin.H{"Title": "修改密码"})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	err := h.accounts.ChangePassword(c.Request.Context(), middleware.CurrentUser(c),
		c.PostForm("old_password"), c.PostForm("new_password"), c.PostForm("new_password_confirm"))
	if err != nil {
		Render(c, httpStatus(err), "accounts/password_change.html", gin.H{
			"Title": "修改密码",
			"Error": userMessage(c, err),
		})
		return
	}
	flash(c, "密码已修改。")
	c.Redirect(http.StatusFound, "/accounts/dashboard")
}

// Dashboard - 个人后台概览
func (h *UserHandler) Dashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)
	stats, err := h.accounts.Dashboard(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	Render(c, http.StatusOK, "accounts/dashboard.html", gin.H{
		"Title":     "个人后台",
		"User":      user,
		"Stats":     stats,
		"DaysSince": utils.GetDaysSinceJoined(user.CreatedAt),
	})
}
