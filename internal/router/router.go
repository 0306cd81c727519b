package router

import (
	"net/http"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/handlers"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
	"inkwell/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const sessionName = "inkwell_session"

// Deps are the long-lived resources the router builds its services on.
// Redis, Mailer and Counters are optional.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Mailer   services.Mailer
	Counters *services.CounterService
}

// New builds the engine with every page, form and API route mounted.
func New(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	db.Use(deps.DB)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	renderer, err := LoadTemplates(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	r.Static("/static", cfg.StaticDir)
	r.Static("/uploads", cfg.UploadDir)

	handlers.SetSite(handlers.Site{Name: cfg.SiteName, URL: cfg.SiteURL})

	// Services
	var codes services.CodeStore
	var events services.Publisher = services.NopPublisher{}
	if deps.Redis != nil {
		codes = services.NewRedisCodeStore(deps.Redis)
		events = services.NewRedisPublisher(deps.Redis, services.DefaultEventChannel)
	} else {
		codes = services.NewMemoryCodeStore(utils.NewCache(1000))
	}

	mailer := deps.Mailer
	if mailer == nil {
		mailer = services.NewMailService(cfg.SMTP, cfg.SiteName, cfg.TemplatesDir)
	}

	// 避免把 nil 指针包装成非 nil 接口
	var counters services.CounterScheduler
	if deps.Counters != nil {
		counters = deps.Counters
	}

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	accounts := services.NewAccountService(deps.DB, codes, mailer)
	articles := services.NewArticleService(deps.DB, counters)
	notifications := services.NewNotificationService(deps.DB, mailer, cfg.SiteURL)
	comments := services.NewCommentService(deps.DB,
		services.WithModeration(cfg.CommentModeration),
		services.WithPublisher(events),
		services.WithNotifier(notifications),
		services.WithCounterScheduler(counters),
	)
	images := services.NewImageService(cfg.UploadDir, "/uploads")

	r.Use(middleware.LoadUser(tokens))

	// Handlers
	articleHandler := handlers.NewArticleHandler(articles, comments)
	commentHandler := handlers.NewCommentHandler(articles, comments)
	authHandler := handlers.NewAuthHandler(accounts, services.NewCaptchaService(),
		handlers.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL))
	userHandler := handlers.NewUserHandler(accounts, articles, images)
	searchHandler := handlers.NewSearchHandler(articles)
	notificationHandler := handlers.NewNotificationHandler(notifications)
	adminHandler := handlers.NewAdminHandler(comments)
	seoHandler := handlers.NewSEOHandler(articles)
	imageHandler := handlers.NewImageHandler(images)

	auth := middleware.AuthRequired()

	// 公共路由
	r.GET("/", articleHandler.Home)
	r.GET("/article/:slug", articleHandler.Detail)
	r.GET("/category/:slug", articleHandler.ByCategory)
	r.GET("/tag/:slug", articleHandler.ByTag)
	r.GET("/archive/:year", articleHandler.Archive)
	r.GET("/archive/:year/:month", articleHandler.Archive)
	r.GET("/search", searchHandler.Search)
	r.GET("/search/advanced", searchHandler.Advanced)

	r.GET("/feed.xml", seoHandler.RSSFeed)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)
	r.GET("/robots.txt", seoHandler.RobotsTxt)

	// 文章
	r.GET("/article/new", auth, articleHandler.ShowCreate)
	r.POST("/article/new", auth, articleHandler.Create)
	r.GET("/article/:slug/edit", auth, articleHandler.ShowEdit)
	r.POST("/article/:slug/edit", auth, articleHandler.Update)
	r.POST("/article/:slug/delete", auth, articleHandler.Delete)
	r.POST("/article/:slug/publish", auth, articleHandler.Publish)
	r.POST("/article/:slug/like", auth, articleHandler.Like)
	r.POST("/article/:slug/bookmark", auth, articleHandler.Bookmark)

	r.GET("/drafts", auth, articleHandler.Drafts)
	r.POST("/drafts/batch-publish", auth, articleHandler.BatchPublish)
	r.POST("/drafts/batch-delete", auth, articleHandler.BatchDelete)
	r.GET("/bookmarks", auth, articleHandler.Bookmarks)
	r.POST("/bookmarks/batch-remove", auth, articleHandler.BatchRemoveBookmarks)

	// 评论：游客也可以发表
	r.POST("/comment/add/:slug", commentHandler.Add)
	r.POST("/comment/reply/:id", commentHandler.Reply)
	r.POST("/comment/:id/like", auth, commentHandler.Like)
	r.POST("/comment/:id/delete", auth, commentHandler.Delete)
	r.POST("/comment/:id/pin", auth, commentHandler.Pin)

	// 账户
	accountsGroup := r.Group("/accounts")
	{
		accountsGroup.GET("/register", authHandler.ShowRegister)
		accountsGroup.POST("/register", authHandler.Register)
		accountsGroup.POST("/send-code", authHandler.SendCode)
		accountsGroup.GET("/captcha", authHandler.RefreshCaptcha)
		accountsGroup.GET("/login", authHandler.ShowLogin)
		accountsGroup.POST("/login", authHandler.Login)
		accountsGroup.GET("/logout", authHandler.Logout)
		accountsGroup.GET("/password/forgot", authHandler.ShowForgotPassword)
		accountsGroup.POST("/password/forgot", authHandler.ForgotPassword)
		accountsGroup.GET("/password/reset", authHandler.ShowResetPassword)
		accountsGroup.POST("/password/reset", authHandler.ResetPassword)
		accountsGroup.GET("/profile/:username", userHandler.Profile)

		accountsGroup.GET("/profile/edit", auth, userHandler.ShowEditProfile)
		accountsGroup.POST("/profile/edit", auth, userHandler.UpdateProfile)
		accountsGroup.GET("/settings", auth, userHandler.ShowSettings)
		accountsGroup.POST("/settings", auth, userHandler.UpdateSettings)
		accountsGroup.GET("/password/change", auth, userHandler.ShowChangePassword)
		accountsGroup.POST("/password/change", auth, userHandler.ChangePassword)
		accountsGroup.GET("/dashboard", auth, userHandler.Dashboard)
	}

	r.GET("/auth/google/login", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)

	// 通知
	notificationsGroup := r.Group("/notifications", auth)
	{
		notificationsGroup.GET("", notificationHandler.List)
		notificationsGroup.POST("/read-all", notificationHandler.ReadAll)
		notificationsGroup.POST("/:id/read", notificationHandler.Read)
		notificationsGroup.DELETE("/:id", notificationHandler.Delete)
	}

	// 管理
	admin := r.Group("/admin", auth, middleware.StaffRequired())
	{
		admin.GET("/comments", adminHandler.Comments)
		admin.POST("/comments/:id/approve", adminHandler.Approve)
		admin.POST("/comments/:id/spam", adminHandler.Spam)
		admin.POST("/articles/:slug/feature", articleHandler.FeatureToggle)
	}

	r.POST("/upload/image", auth, imageHandler.Upload)

	api.NewHandler(accounts, articles, comments, tokens).Register(r.Group("/api"))

	r.NoRoute(func(c *gin.Context) {
		if middleware.WantsJSON(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "页面不存在。"})
			return
		}
		handlers.RenderError(c, http.StatusNotFound, "页面不存在。")
	})

	return r, nil
}
