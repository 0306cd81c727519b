package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		SessionSecret:     "test-secret",
		SiteURL:           "http://blog.test",
		SiteName:          "Inkwell",
		JWTSecret:         "jwt-secret",
		JWTTTL:            time.Hour,
		CommentModeration: config.ModerationNone,
		TemplatesDir:      "../../web/templates",
		StaticDir:         "../../web/static",
		UploadDir:         t.TempDir(),
	}
}

// client keeps cookies between requests like a browser.
type client struct {
	t       *testing.T
	engine  *gin.Engine
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, cfg *config.Config, d *gorm.DB) *client {
	t.Helper()
	r, err := New(cfg, Deps{DB: d})
	require.NoError(t, err)
	return &client{t: t, engine: r, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values, ajax bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ajax {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	return c.do(req)
}

func (c *client) login(username string) {
	w := c.postForm("/accounts/login", url.Values{"login": {username}, "password": {testutil.Password}}, false)
	require.Equal(c.t, http.StatusFound, w.Code)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHomeListsOnlyPublishedArticles(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	testutil.CreateArticle(t, d, author, "Visible Post")
	testutil.CreateArticle(t, d, author, "Secret Draft", func(a *models.Article) {
		a.Status = models.StatusDraft
		a.PublishedAt = nil
	})

	c := newClient(t, testConfig(t), d)
	w := c.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Visible Post")
	assert.NotContains(t, w.Body.String(), "Secret Draft")
}

func TestDraftDetailHiddenFromOthers(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	testutil.CreateUser(t, d, "bob")
	draft := testutil.CreateArticle(t, d, author, "Draft Only", func(a *models.Article) {
		a.Status = models.StatusDraft
		a.PublishedAt = nil
	})

	anon := newClient(t, testConfig(t), d)
	assert.Equal(t, http.StatusNotFound, anon.get("/article/"+draft.Slug).Code)

	bob := newClient(t, testConfig(t), d)
	bob.login("bob")
	assert.Equal(t, http.StatusNotFound, bob.get("/article/"+draft.Slug).Code)

	alice := newClient(t, testConfig(t), d)
	alice.login("alice")
	w := alice.get("/article/" + draft.Slug)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Draft Only")
}

func TestDetailRendersApprovedCommentsOnly(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	article := testutil.CreateArticle(t, d, author, "With Comments")
	require.NoError(t, d.Create(&models.Comment{
		ArticleID: article.ID, Content: "approved remark", GuestName: "g", GuestEmail: "g@example.com", IsApproved: true,
	}).Error)
	require.NoError(t, d.Create(&models.Comment{
		ArticleID: article.ID, Content: "hidden remark", GuestName: "g", GuestEmail: "g@example.com", IsApproved: false,
	}).Error)

	c := newClient(t, testConfig(t), d)
	w := c.get("/article/" + article.Slug)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approved remark")
	assert.NotContains(t, w.Body.String(), "hidden remark")
}

func TestGuestCommentRequiresIdentity(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	article := testutil.CreateArticle(t, d, author, "Guest Target")

	c := newClient(t, testConfig(t), d)
	w := c.postForm("/comment/add/"+article.Slug, url.Values{"content": {"hello"}}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = c.postForm("/comment/add/"+article.Slug, url.Values{
		"content":     {"hello"},
		"guest_name":  {"Visitor"},
		"guest_email": {"visitor@example.com"},
	}, false)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/article/"+article.Slug+"#comment-"))

	reloaded := testutil.Reload[models.Article](t, d, article.ID)
	assert.Equal(t, 1, reloaded.CommentCount)
}

func TestCommentRateLimitPerIP(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	article := testutil.CreateArticle(t, d, author, "Busy Thread")

	c := newClient(t, testConfig(t), d)
	form := url.Values{"content": {"spam?"}, "guest_name": {"Visitor"}, "guest_email": {"v@example.com"}}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, c.postForm("/comment/add/"+article.Slug, form, true).Code)
	}
	w := c.postForm("/comment/add/"+article.Slug, form, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "评论过于频繁，请稍后再试。", decode(t, w)["error"])
}

func TestCommentLikeToggle(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	testutil.CreateUser(t, d, "bob")
	article := testutil.CreateArticle(t, d, author, "Likeable")
	comment := &models.Comment{ArticleID: article.ID, AuthorID: &author.ID, Content: "nice", IsApproved: true}
	require.NoError(t, d.Create(comment).Error)

	c := newClient(t, testConfig(t), d)
	c.login("bob")
	path := "/comment/" + itoa(comment.ID) + "/like"

	w := c.postForm(path, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["liked"])
	assert.EqualValues(t, 1, body["like_count"])

	body = decode(t, c.postForm(path, nil, true))
	assert.Equal(t, false, body["liked"])
	assert.EqualValues(t, 0, body["like_count"])
}

func TestPinRequiresArticleAuthor(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	testutil.CreateUser(t, d, "bob")
	article := testutil.CreateArticle(t, d, author, "Pinnable")
	comment := &models.Comment{ArticleID: article.ID, GuestName: "g", GuestEmail: "g@example.com", Content: "pin me", IsApproved: true}
	require.NoError(t, d.Create(comment).Error)

	bob := newClient(t, testConfig(t), d)
	bob.login("bob")
	assert.Equal(t, http.StatusForbidden, bob.postForm("/comment/"+itoa(comment.ID)+"/pin", nil, true).Code)

	alice := newClient(t, testConfig(t), d)
	alice.login("alice")
	w := alice.postForm("/comment/"+itoa(comment.ID)+"/pin", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["pinned"])
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	d := testutil.NewDB(t)
	c := newClient(t, testConfig(t), d)

	w := c.get("/accounts/dashboard")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login?next=%2Faccounts%2Fdashboard", w.Header().Get("Location"))

	w = c.postForm("/article/x/like", nil, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndDashboard(t *testing.T) {
	d := testutil.NewDB(t)
	testutil.CreateUser(t, d, "alice")
	c := newClient(t, testConfig(t), d)

	w := c.postForm("/accounts/login", url.Values{"login": {"alice"}, "password": {"wrong-password"}}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c.login("alice")
	w = c.get("/accounts/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")

	c.get("/accounts/logout")
	assert.Equal(t, http.StatusFound, c.get("/accounts/dashboard").Code)
}

func TestAdminRequiresStaff(t *testing.T) {
	d := testutil.NewDB(t)
	testutil.CreateUser(t, d, "bob")
	testutil.CreateStaff(t, d, "root")

	bob := newClient(t, testConfig(t), d)
	bob.login("bob")
	assert.Equal(t, http.StatusForbidden, bob.get("/admin/comments").Code)

	staff := newClient(t, testConfig(t), d)
	staff.login("root")
	assert.Equal(t, http.StatusOK, staff.get("/admin/comments").Code)
}

func TestCreateArticleThroughForm(t *testing.T) {
	d := testutil.NewDB(t)
	testutil.CreateUser(t, d, "alice")
	c := newClient(t, testConfig(t), d)
	c.login("alice")

	require.Equal(t, http.StatusOK, c.get("/article/new").Code)

	w := c.postForm("/article/new", url.Values{
		"title":          {"Hello World"},
		"content":        {"# Heading\n\nSome text."},
		"tags":           {"go, web"},
		"status":         {"published"},
		"allow_comments": {"1"},
	}, false)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/article/hello-world", w.Header().Get("Location"))

	w = c.get("/article/hello-world")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Heading")

	w = c.get("/tag/go")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello World")
}

func TestSearch(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	testutil.CreateArticle(t, d, author, "Gophers Everywhere")
	testutil.CreateArticle(t, d, author, "Unrelated")

	c := newClient(t, testConfig(t), d)
	w := c.get("/search?q=gopher&type=articles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Gophers Everywhere")
	assert.NotContains(t, w.Body.String(), "/article/unrelated")

	assert.Equal(t, http.StatusOK, c.get("/search/advanced?q=gopher&sort=popular").Code)
}

func TestSearchAllIncludesCategories(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	category := testutil.CreateCategory(t, d, "Gopher Life")
	testutil.CreateCategory(t, d, "Baking")
	testutil.CreateArticle(t, d, author, "Gophers Everywhere")

	c := newClient(t, testConfig(t), d)

	w := c.get("/search?q=gopher&type=all")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `href="/category/`+category.Slug+`"`)
	assert.NotContains(t, body, "/category/baking")
	assert.Contains(t, body, "Gophers Everywhere")
	assert.Contains(t, body, "共找到 2 条结果")

	// 默认只搜文章
	w = c.get("/search?q=gopher")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `href="/category/`+category.Slug+`"`)
	assert.Contains(t, w.Body.String(), "共找到 1 条结果")
}

func TestFeedSitemapRobots(t *testing.T) {
	d := testutil.NewDB(t)
	author := testutil.CreateUser(t, d, "alice")
	article := testutil.CreateArticle(t, d, author, "Feed Entry")

	c := newClient(t, testConfig(t), d)

	w := c.get("/feed.xml")
	require.Equal(t, http.StatusOK, w.Code)
	feed, err := gofeed.NewParser().ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "Inkwell", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Feed Entry", feed.Items[0].Title)
	assert.Equal(t, "http://blog.test/article/"+article.Slug, feed.Items[0].Link)

	w = c.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http://blog.test/article/"+article.Slug)

	w = c.get("/robots.txt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sitemap: http://blog.test/sitemap.xml")
}

func TestUnknownRouteRendersErrorPage(t *testing.T) {
	d := testutil.NewDB(t)
	c := newClient(t, testConfig(t), d)
	w := c.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "页面不存在。")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
