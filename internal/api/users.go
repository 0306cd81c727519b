package api

import (
	"net/http"

	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ObtainToken POST /api/auth/token exchanges credentials for a bearer token.
func (h *Handler) ObtainToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请提供登录名和密码。")
		return
	}
	user, err := h.accounts.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		abort(c, err)
		return
	}
	token, expires, err := h.tokens.GenerateToken(user)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires,
		"user":       newUser(user),
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	p := pageFrom(c)
	users, total, err := h.accounts.List(c.Request.Context(), c.Query("search"), p.Offset(), p.Size)
	if err != nil {
		abort(c, err)
		return
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := h.articles.PublishedCounts(c.Request.Context(), ids)
	if err != nil {
		abort(c, err)
		return
	}

	results := make([]*UserJSON, 0, len(users))
	for i := range users {
		out := newUser(&users[i])
		n := counts[users[i].ID]
		out.ArticlesCount = &n
		results = append(results, out)
	}
	paginated(c, p, total, results)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	if !user.IsActive {
		notFound(c)
		return
	}
	counts, err := h.articles.PublishedCounts(c.Request.Context(), []uint{user.ID})
	if err != nil {
		abort(c, err)
		return
	}
	out := newUser(user)
	n := counts[user.ID]
	out.ArticlesCount = &n
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UserArticles(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	if !user.IsActive {
		notFound(c)
		return
	}
	h.listArticles(c, services.ArticleFilter{AuthorID: user.ID})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.articles.Categories(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	p := pageFrom(c)
	results := make([]*CategoryJSON, 0, p.Size)
	for _, cat := range window(categories, p) {
		results = append(results, newCategory(&cat))
	}
	paginated(c, p, int64(len(categories)), results)
}

// categoryBySlug loads the category with its published article count.
func (h *Handler) categoryBySlug(c *gin.Context) (*CategoryJSON, bool) {
	categories, err := h.articles.Categories(c.Request.Context())
	if err != nil {
		abort(c, err)
		return nil, false
	}
	for i := range categories {
		if categories[i].Slug == c.Param("slug") {
			return newCategory(&categories[i]), true
		}
	}
	notFound(c)
	return nil, false
}

func (h *Handler) GetCategory(c *gin.Context) {
	if cat, ok := h.categoryBySlug(c); ok {
		c.JSON(http.StatusOK, cat)
	}
}

func (h *Handler) CategoryArticles(c *gin.Context) {
	cat, ok := h.categoryBySlug(c)
	if !ok {
		return
	}
	h.listArticles(c, services.ArticleFilter{CategoryID: cat.ID})
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.articles.Tags(c.Request.Context(), 0)
	if err != nil {
		abort(c, err)
		return
	}
	p := pageFrom(c)
	paginated(c, p, int64(len(tags)), newTags(window(tags, p)))
}
