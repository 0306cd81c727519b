package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	cachePrefixBlog = "blog:"
	cacheKeyPopular = "blog:popular"

	popularCacheTTL     = time.Hour
	excerptLength       = 150
	featuredImageMaxLen = 300
)

// ArticleInput is the editable part of an article.
type ArticleInput struct {
	Title           string
	Content         string
	Excerpt         string
	CategoryID      *uint
	Tags            []string
	FeaturedImage   string
	Status          models.ArticleStatus
	IsFeatured      bool
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	AllowComments   bool
	AllowSharing    bool
}

// ArticleFilter narrows List. Zero values mean "no filter".
type ArticleFilter struct {
	CategorySlug string
	CategoryID   uint
	TagSlug      string
	TagName      string
	AuthorID     uint
	AuthorName   string
	Featured     *bool
	Year         int
	Month        int
	Since        *time.Time
	Until        *time.Time
	Query        string
	Ordering     string // field name, "-" prefix for descending
	Offset       int
	Limit        int
}

var articleOrderings = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"published_at":  true,
	"view_count":    true,
	"like_count":    true,
	"comment_count": true,
}

// SortOrdering maps the search form's sort choice onto an ordering.
func SortOrdering(sort string) string {
	switch sort {
	case "oldest":
		return "published_at"
	case "popular":
		return "-view_count"
	case "commented":
		return "-comment_count"
	default:
		return "-published_at"
	}
}

type ArticleService struct {
	db       *gorm.DB
	counters CounterScheduler
	now      func() time.Time
}

func NewArticleService(d *gorm.DB, counters CounterScheduler) *ArticleService {
	return &ArticleService{db: d, counters: counters, now: time.Now}
}

func invalidateArticleCaches(slug string) {
	utils.GetCache().DeletePrefix(cachePrefixBlog)
	if slug != "" {
		utils.GetCache().Delete("article:" + slug)
	}
}

func validateArticle(in *ArticleInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Excerpt = strings.TrimSpace(in.Excerpt)

	switch {
	case in.Title == "":
		return invalid(ErrInvalidArticle, "title", "标题不能为空。")
	case utf8.RuneCountInString(in.Title) > 200:
		return invalid(ErrInvalidArticle, "title", "标题不能超过200个字符。")
	case in.Content == "":
		return invalid(ErrInvalidArticle, "content", "内容不能为空。")
	case utf8.RuneCountInString(in.Excerpt) > 500:
		return invalid(ErrInvalidArticle, "excerpt", "摘要不能超过500个字符。")
	}
	if in.Status == "" {
		in.Status = models.StatusDraft
	}
	if !in.Status.Valid() {
		return invalid(ErrInvalidArticle, "status", "无效的文章状态。")
	}
	return nil
}

// UniqueSlug slugifies title and appends -1, -2, ... until no other
// article (excluding excludeID) uses it.
func UniqueSlug(tx *gorm.DB, title string, excludeID uint) (string, error) {
	base := utils.Slugify(title, "article")
	if len(base) > 200 {
		base = strings.Trim(base[:200], "-")
	}

	candidate := base
	for i := 1; ; i++ {
		var count int64
		q := tx.Model(&models.Article{}).Where("slug = ?", candidate)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *ArticleService) apply(a *models.Article, in ArticleInput) {
	a.Title = in.Title
	a.Content = in.Content
	a.Excerpt = in.Excerpt
	if a.Excerpt == "" {
		a.Excerpt = utils.PlainText(in.Content, excerptLength)
	}
	a.CategoryID = in.CategoryID
	a.FeaturedImage = strings.TrimSpace(in.FeaturedImage)
	if a.FeaturedImage == "" {
		// 没有封面时取正文第一张图
		if src := utils.FirstImage(string(utils.RenderMarkdown(in.Content))); len(src) <= featuredImageMaxLen {
			a.FeaturedImage = src
		}
	}
	a.IsFeatured = in.IsFeatured
	a.MetaTitle = strings.TrimSpace(in.MetaTitle)
	a.MetaDescription = strings.TrimSpace(in.MetaDescription)
	a.MetaKeywords = strings.TrimSpace(in.MetaKeywords)
	a.AllowComments = in.AllowComments
	a.AllowSharing = in.AllowSharing
	a.ComputeReadingTime()

	if in.Status == models.StatusPublished {
		a.MarkPublished(s.now())
	} else {
		a.Status = in.Status
	}
}

func (s *ArticleService) checkCategory(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return invalid(ErrInvalidArticle, "category", "分类不存在。")
	}
	return nil
}

// resolveTags finds or creates tags by name.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	seen := make(map[string]bool)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || utf8.RuneCountInString(name) > 50 || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		var tag models.Tag
		if err := tx.Where("LOWER(name) = ?", strings.ToLower(name)).Limit(1).Find(&tag).Error; err != nil {
			return nil, err
		}
		if tag.ID == 0 {
			tag = models.Tag{Name: name, Slug: utils.Slugify(name, "tag")}
			var clash int64
			if err := tx.Model(&models.Tag{}).Where("slug = ?", tag.Slug).Count(&clash).Error; err != nil {
				return nil, err
			}
			if clash > 0 {
				tag.Slug = fmt.Sprintf("%s-%d", tag.Slug, clash+1)
			}
			if err := tx.Create(&tag).Error; err != nil {
				return nil, err
			}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ParseTags splits a comma separated tag list (ASCII or full-width commas).
func ParseTags(raw string) []string {
	raw = strings.ReplaceAll(raw, "，", ",")
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *ArticleService) Create(ctx context.Context, author *models.User, in ArticleInput) (*models.Article, error) {
	if author == nil {
		return nil, ErrForbidden
	}
	if err := validateArticle(&in); err != nil {
		return nil, err
	}

	article := &models.Article{AuthorID: author.ID}
	s.apply(article, in)
	if !author.IsStaff() {
		article.IsFeatured = false
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		slug, err := UniqueSlug(tx, article.Title, 0)
		if err != nil {
			return err
		}
		article.Slug = slug

		tags, err := resolveTags(tx, in.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(article).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(article).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		article.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}

	article.Author = *author
	invalidateArticleCaches("")
	logger.WithContext("articles", "create").WithFields(map[string]any{
		"article_id": article.ID,
		"author_id":  author.ID,
		"status":     article.Status,
	}).Info("Article created")
	return article, nil
}

// loadOwned loads an article by slug that user is allowed to modify.
func (s *ArticleService) loadOwned(ctx context.Context, slug string, user *models.User) (*models.Article, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&article).Error; err != nil {
		return nil, notFound(err)
	}
	if !user.CanModify(article.AuthorID) {
		return nil, ErrForbidden
	}
	return &article, nil
}

func (s *ArticleService) Update(ctx context.Context, slug string, user *models.User, in ArticleInput) (*models.Article, error) {
	article, err := s.loadOwned(ctx, slug, user)
	if err != nil {
		return nil, err
	}
	if err := validateArticle(&in); err != nil {
		return nil, err
	}

	oldSlug := article.Slug
	titleChanged := article.Title != in.Title
	wasFeatured := article.IsFeatured
	s.apply(article, in)
	if !user.IsStaff() {
		article.IsFeatured = wasFeatured
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if titleChanged {
			slug, err := UniqueSlug(tx, article.Title, article.ID)
			if err != nil {
				return err
			}
			article.Slug = slug
		}
		tags, err := resolveTags(tx, in.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(article).Error; err != nil {
			return err
		}
		if err := tx.Model(article).Association("Tags").Replace(tags); err != nil {
			return err
		}
		article.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateArticleCaches(oldSlug)
	return article, nil
}

// Delete removes an article with its comments, likes and bookmarks.
func (s *ArticleService) Delete(ctx context.Context, slug string, user *models.User) error {
	article, err := s.loadOwned(ctx, slug, user)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteArticles(tx, []uint{article.ID})
	}); err != nil {
		return err
	}
	invalidateArticleCaches(article.Slug)
	return nil
}

func deleteArticles(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	commentIDs := tx.Model(&models.Comment{}).Select("id").Where("article_id IN ?", ids)
	if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.ArticleLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.ArticleBookmark{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM article_tags WHERE article_id IN ?", ids).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Article{}).Error
}

// Publish moves a draft to published, stamping published_at the first time.
func (s *ArticleService) Publish(ctx context.Context, slug string, user *models.User) (*models.Article, error) {
	article, err := s.loadOwned(ctx, slug, user)
	if err != nil {
		return nil, err
	}
	if article.IsPublished() {
		return article, nil
	}
	article.MarkPublished(s.now())
	if err := s.db.WithContext(ctx).Model(article).
		Select("status", "published_at").
		Updates(article).Error; err != nil {
		return nil, err
	}
	invalidateArticleCaches(article.Slug)
	return article, nil
}

// GetBySlug returns a published article, or an unpublished one when viewer
// is its author or staff.
func (s *ArticleService) GetBySlug(ctx context.Context, slug string, viewer *models.User) (*models.Article, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).
		Preload("Author").Preload("Category").Preload("Tags").
		Where("slug = ?", slug).First(&article).Error; err != nil {
		return nil, notFound(err)
	}
	if !article.IsPublished() && !viewer.CanModify(article.AuthorID) {
		return nil, ErrNotFound
	}
	return &article, nil
}

// RecordView bumps view_count unless the viewer is the author.
func (s *ArticleService) RecordView(ctx context.Context, article *models.Article, viewer *models.User) {
	if viewer != nil && viewer.ID == article.AuthorID {
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", article.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
		logger.WithContext("articles", "view").WithError(err).Warn("Failed to record view")
		return
	}
	article.ViewCount++
}

func (s *ArticleService) ToggleLike(ctx context.Context, articleID, userID uint) (LikeResult, error) {
	var res LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article models.Article
		if err := tx.Select("id", "status").First(&article, articleID).Error; err != nil {
			return notFound(err)
		}
		if !article.IsPublished() {
			return ErrNotFound
		}

		var existing models.ArticleLike
		if err := tx.Where("article_id = ? AND user_id = ?", articleID, userID).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		q := tx.Model(&models.Article{}).Where("id = ?", articleID)
		if existing.ID != 0 {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := q.UpdateColumn("like_count", decrementFloor("like_count")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&models.ArticleLike{ArticleID: articleID, UserID: userID}).Error; err != nil {
				return err
			}
			if err := q.UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
				return err
			}
			res.Liked = true
		}
		return tx.Model(&models.Article{}).Select("like_count").Where("id = ?", articleID).Scan(&res.LikeCount).Error
	})
	if err != nil {
		return LikeResult{}, err
	}
	return res, nil
}

// ToggleBookmark returns true when the article is now bookmarked.
func (s *ArticleService) ToggleBookmark(ctx context.Context, articleID, userID uint) (bool, error) {
	var bookmarked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("id = ? AND status = ?", articleID, models.StatusPublished).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		res := tx.Where("article_id = ? AND user_id = ?", articleID, userID).Delete(&models.ArticleBookmark{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		bookmarked = true
		return tx.Create(&models.ArticleBookmark{ArticleID: articleID, UserID: userID}).Error
	})
	return bookmarked, err
}

func (s *ArticleService) HasLiked(ctx context.Context, articleID, userID uint) bool {
	var count int64
	s.db.WithContext(ctx).Model(&models.ArticleLike{}).Where("article_id = ? AND user_id = ?", articleID, userID).Count(&count)
	return count > 0
}

func (s *ArticleService) HasBookmarked(ctx context.Context, articleID, userID uint) bool {
	var count int64
	s.db.WithContext(ctx).Model(&models.ArticleBookmark{}).Where("article_id = ? AND user_id = ?", articleID, userID).Count(&count)
	return count > 0
}

// List returns published articles matching f and the total match count.
func (s *ArticleService) List(ctx context.Context, f ArticleFilter) ([]models.Article, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Article{}).Where("articles.status = ?", models.StatusPublished)

	if f.CategorySlug != "" {
		q = q.Where("articles.category_id IN (?)", s.db.Model(&models.Category{}).Select("id").Where("slug = ?", f.CategorySlug))
	}
	if f.CategoryID != 0 {
		q = q.Where("articles.category_id = ?", f.CategoryID)
	}
	if f.TagSlug != "" {
		q = q.Where("articles.id IN (SELECT article_tags.article_id FROM article_tags JOIN tags ON tags.id = article_tags.tag_id WHERE tags.slug = ?)", f.TagSlug)
	}
	if name := strings.TrimSpace(f.TagName); name != "" {
		q = q.Where(`articles.id IN (SELECT article_tags.article_id FROM article_tags JOIN tags ON tags.id = article_tags.tag_id WHERE LOWER(tags.name) LIKE ? ESCAPE '\')`, containsPattern(name))
	}
	if f.AuthorID != 0 {
		q = q.Where("articles.author_id = ?", f.AuthorID)
	}
	if name := strings.TrimSpace(f.AuthorName); name != "" {
		q = q.Where("articles.author_id IN (?)", s.db.Model(&models.User{}).Select("id").Where(`LOWER(username) LIKE ? ESCAPE '\'`, containsPattern(name)))
	}
	if f.Featured != nil {
		q = q.Where("articles.is_featured = ?", *f.Featured)
	}
	if f.Year > 0 {
		start, end := archiveRange(f.Year, f.Month)
		q = q.Where("articles.published_at >= ? AND articles.published_at < ?", start, end)
	}
	if f.Since != nil {
		q = q.Where("articles.published_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("articles.published_at < ?", *f.Until)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		like := containsPattern(query)
		q = q.Where(`LOWER(articles.title) LIKE ? ESCAPE '\' OR LOWER(articles.content) LIKE ? ESCAPE '\' OR LOWER(articles.excerpt) LIKE ? ESCAPE '\'`, like, like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	var articles []models.Article
	err := q.Preload("Author").Preload("Category").Preload("Tags").
		Order(orderClause(f.Ordering)).
		Offset(f.Offset).Limit(limit).
		Find(&articles).Error
	return articles, total, err
}

func orderClause(ordering string) string {
	field := strings.TrimPrefix(ordering, "-")
	if !articleOrderings[field] {
		return "articles.published_at DESC, articles.id DESC"
	}
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
	}
	return fmt.Sprintf("articles.%s %s, articles.id %s", field, dir, dir)
}

// archiveRange returns [start, end) for a year, or a month when month > 0.
func archiveRange(year, month int) (time.Time, time.Time) {
	if month >= 1 && month <= 12 {
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(1, 0, 0)
}

// Drafts lists the user's unpublished articles, most recently edited first.
func (s *ArticleService) Drafts(ctx context.Context, userID uint) ([]models.Article, error) {
	var drafts []models.Article
	err := s.db.WithContext(ctx).Preload("Category").
		Where("author_id = ? AND status = ?", userID, models.StatusDraft).
		Order("updated_at DESC").
		Find(&drafts).Error
	return drafts, err
}

// BatchPublish publishes the given drafts owned by userID.
func (s *ArticleService) BatchPublish(ctx context.Context, userID uint, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, invalid(ErrInvalidArticle, "ids", "请选择要发布的草稿。")
	}
	var drafts []models.Article
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND author_id = ? AND status = ?", ids, userID, models.StatusDraft).
		Find(&drafts).Error; err != nil {
		return 0, err
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range drafts {
			drafts[i].MarkPublished(now)
			if err := tx.Model(&drafts[i]).Select("status", "published_at").Updates(&drafts[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.counters != nil {
		for _, d := range drafts {
			s.counters.ScheduleArticle(d.ID)
		}
	}
	invalidateArticleCaches("")
	return len(drafts), nil
}

// BatchDelete deletes the given drafts owned by userID.
func (s *ArticleService) BatchDelete(ctx context.Context, userID uint, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, invalid(ErrInvalidArticle, "ids", "请选择要删除的草稿。")
	}
	var owned []uint
	if err := s.db.WithContext(ctx).Model(&models.Article{}).
		Where("id IN ? AND author_id = ? AND status = ?", ids, userID, models.StatusDraft).
		Pluck("id", &owned).Error; err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteArticles(tx, owned)
	}); err != nil {
		return 0, err
	}
	return len(owned), nil
}

// Bookmarks lists the user's bookmarks, newest first.
func (s *ArticleService) Bookmarks(ctx context.Context, userID uint) ([]models.ArticleBookmark, error) {
	var bookmarks []models.ArticleBookmark
	err := s.db.WithContext(ctx).Preload("Article").Preload("Article.Author").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookmarks).Error
	return bookmarks, err
}

// RemoveBookmarks deletes the user's bookmarks for the given articles.
func (s *ArticleService) RemoveBookmarks(ctx context.Context, userID uint, articleIDs []uint) (int, error) {
	if len(articleIDs) == 0 {
		return 0, invalid(ErrInvalidArticle, "ids", "请选择要取消的收藏。")
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND article_id IN ?", userID, articleIDs).Delete(&models.ArticleBookmark{})
	return int(res.RowsAffected), res.Error
}

// Related returns other published articles from the same category.
func (s *ArticleService) Related(ctx context.Context, a *models.Article, limit int) ([]models.Article, error) {
	if a.CategoryID == nil {
		return nil, nil
	}
	var related []models.Article
	err := s.db.WithContext(ctx).Preload("Author").
		Where("category_id = ? AND status = ? AND id <> ?", *a.CategoryID, models.StatusPublished, a.ID).
		Order("published_at DESC").
		Limit(limit).
		Find(&related).Error
	return related, err
}

// Adjacent returns the previous and next published articles by publication
// time. Either may be nil.
func (s *ArticleService) Adjacent(ctx context.Context, a *models.Article) (prev, next *models.Article, err error) {
	if a.PublishedAt == nil {
		return nil, nil, nil
	}
	var before, after []models.Article
	if err = s.db.WithContext(ctx).Select("id", "title", "slug", "published_at").
		Where("status = ? AND published_at < ?", models.StatusPublished, *a.PublishedAt).
		Order("published_at DESC").Limit(1).Find(&before).Error; err != nil {
		return nil, nil, err
	}
	if err = s.db.WithContext(ctx).Select("id", "title", "slug", "published_at").
		Where("status = ? AND published_at > ?", models.StatusPublished, *a.PublishedAt).
		Order("published_at ASC").Limit(1).Find(&after).Error; err != nil {
		return nil, nil, err
	}
	if len(before) > 0 {
		prev = &before[0]
	}
	if len(after) > 0 {
		next = &after[0]
	}
	return prev, next, nil
}

// Popular returns the most viewed published articles, cached for an hour.
func (s *ArticleService) Popular(ctx context.Context, limit int) ([]models.Article, error) {
	key := fmt.Sprintf("%s:%d", cacheKeyPopular, limit)
	if cached, ok := utils.GetCache().Get(key).([]models.Article); ok {
		return cached, nil
	}

	var popular []models.Article
	if err := s.db.WithContext(ctx).Preload("Author").
		Where("status = ?", models.StatusPublished).
		Order("view_count DESC, id DESC").
		Limit(limit).
		Find(&popular).Error; err != nil {
		return nil, err
	}
	utils.GetCache().Set(key, popular, popularCacheTTL)
	return popular, nil
}

func (s *ArticleService) Featured(ctx context.Context, limit int) ([]models.Article, error) {
	var featured []models.Article
	err := s.db.WithContext(ctx).Preload("Author").
		Where("status = ? AND is_featured = ?", models.StatusPublished, true).
		Order("published_at DESC").
		Limit(limit).
		Find(&featured).Error
	return featured, err
}

// ToggleFeatured flips the featured flag of an article.
func (s *ArticleService) ToggleFeatured(ctx context.Context, slug string) (bool, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&article).Error; err != nil {
		return false, notFound(err)
	}
	featured := !article.IsFeatured
	if err := s.db.WithContext(ctx).Model(&article).UpdateColumn("is_featured", featured).Error; err != nil {
		return false, err
	}
	invalidateArticleCaches(slug)
	return featured, nil
}

// Categories lists active categories with their published article counts.
func (s *ArticleService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}

	type row struct {
		CategoryID uint
		Total      int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Article{}).
		Select("category_id, COUNT(*) AS total").
		Where("status = ? AND category_id IS NOT NULL", models.StatusPublished).
		Group("category_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.Total
	}
	for i := range categories {
		categories[i].ArticleCount = counts[categories[i].ID]
	}
	return categories, nil
}

// Tags lists tags used by at least one published article, most used first.
func (s *ArticleService) Tags(ctx context.Context, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	q := s.db.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.*, COUNT(articles.id) AS article_count").
		Joins("JOIN article_tags ON article_tags.tag_id = tags.id").
		Joins("JOIN articles ON articles.id = article_tags.article_id AND articles.status = ?", models.StatusPublished).
		Group("tags.id").
		Order("article_count DESC, tags.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *ArticleService) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&category).Error; err != nil {
		return nil, notFound(err)
	}
	return &category, nil
}

func (s *ArticleService) TagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, notFound(err)
	}
	return &tag, nil
}

// likeEscaper 让 % _ \ 按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}

// SearchTags matches tag names case-insensitively.
func (s *ArticleService) SearchTags(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, containsPattern(query)).
		Order("name ASC").Limit(limit).
		Find(&tags).Error
	return tags, err
}

// SearchCategories matches active categories by name or description.
func (s *ArticleService) SearchCategories(ctx context.Context, query string, limit int) ([]models.Category, error) {
	var categories []models.Category
	like := containsPattern(query)
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, like, like).
		Order("sort_order ASC, name ASC").Limit(limit).
		Find(&categories).Error
	return categories, err
}

// Sitemap returns every published article with the fields feeds need.
func (s *ArticleService) Sitemap(ctx context.Context, limit int) ([]models.Article, error) {
	var articles []models.Article
	q := s.db.WithContext(ctx).Preload("Author").
		Where("status = ?", models.StatusPublished).
		Order("published_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&articles).Error
	return articles, err
}

// PublishedCounts returns the number of published articles per author.
func (s *ArticleService) PublishedCounts(ctx context.Context, authorIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return counts, nil
	}
	type row struct {
		AuthorID uint
		Total    int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Article{}).
		Select("author_id, COUNT(*) AS total").
		Where("status = ? AND author_id IN ?", models.StatusPublished, authorIDs).
		Group("author_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.AuthorID] = r.Total
	}
	return counts, nil
}
