package api

import (
	"time"

	"inkwell/internal/models"
	"inkwell/internal/utils"
)

type UserJSON struct {
	ID            uint       `json:"id"`
	Username      string     `json:"username"`
	Avatar        string     `json:"avatar"`
	Bio           string     `json:"bio"`
	Website       string     `json:"website"`
	Location      string     `json:"location"`
	BirthDate     *time.Time `json:"birth_date"`
	GithubURL     string     `json:"github_url"`
	TwitterURL    string     `json:"twitter_url"`
	LinkedinURL   string     `json:"linkedin_url"`
	ArticlesCount *int64     `json:"articles_count,omitempty"`
	DateJoined    time.Time  `json:"date_joined"`
}

func newUser(u *models.User) *UserJSON {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &UserJSON{
		ID:          u.ID,
		Username:    u.Username,
		Avatar:      u.Avatar,
		Bio:         u.Bio,
		Website:     u.Website,
		Location:    u.Location,
		BirthDate:   u.BirthDate,
		GithubURL:   u.GithubURL,
		TwitterURL:  u.TwitterURL,
		LinkedinURL: u.LinkedinURL,
		DateJoined:  u.CreatedAt,
	}
}

type CategoryJSON struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	ArticlesCount int64     `json:"articles_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func newCategory(c *models.Category) *CategoryJSON {
	if c == nil {
		return nil
	}
	return &CategoryJSON{
		ID:            c.ID,
		Name:          c.Name,
		Slug:          c.Slug,
		Description:   c.Description,
		ArticlesCount: c.ArticleCount,
		CreatedAt:     c.CreatedAt,
	}
}

type TagJSON struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	ArticlesCount int64  `json:"articles_count"`
}

func newTags(tags []models.Tag) []TagJSON {
	out := make([]TagJSON, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagJSON{ID: t.ID, Name: t.Name, Slug: t.Slug, ArticlesCount: t.ArticleCount})
	}
	return out
}

type ArticleJSON struct {
	ID              uint                 `json:"id"`
	Title           string               `json:"title"`
	Slug            string               `json:"slug"`
	Author          *UserJSON            `json:"author"`
	Content         string               `json:"content,omitempty"`
	ContentHTML     string               `json:"content_html,omitempty"`
	Excerpt         string               `json:"excerpt"`
	Category        *CategoryJSON        `json:"category"`
	Tags            []TagJSON            `json:"tags"`
	FeaturedImage   string               `json:"featured_image"`
	IsFeatured      bool                 `json:"is_featured"`
	ViewCount       int                  `json:"view_count"`
	LikeCount       int                  `json:"like_count"`
	CommentCount    int                  `json:"comment_count"`
	ReadingTime     int                  `json:"reading_time"`
	Status          models.ArticleStatus `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	PublishedAt     *time.Time           `json:"published_at"`
	MetaTitle       string               `json:"meta_title"`
	MetaDescription string               `json:"meta_description"`
	MetaKeywords    string               `json:"meta_keywords"`
	AllowComments   bool                 `json:"allow_comments"`
	AllowSharing    bool                 `json:"allow_sharing"`
}

// newArticle serializes a for lists; detail adds the body.
func newArticle(a *models.Article, detail bool) ArticleJSON {
	out := ArticleJSON{
		ID:              a.ID,
		Title:           a.Title,
		Slug:            a.Slug,
		Author:          newUser(&a.Author),
		Excerpt:         a.Excerpt,
		Category:        newCategory(a.Category),
		Tags:            newTags(a.Tags),
		FeaturedImage:   a.FeaturedImage,
		IsFeatured:      a.IsFeatured,
		ViewCount:       a.ViewCount,
		LikeCount:       a.LikeCount,
		CommentCount:    a.CommentCount,
		ReadingTime:     a.ReadingTime,
		Status:          a.Status,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		PublishedAt:     a.PublishedAt,
		MetaTitle:       a.MetaTitle,
		MetaDescription: a.MetaDescription,
		MetaKeywords:    a.MetaKeywords,
		AllowComments:   a.AllowComments,
		AllowSharing:    a.AllowSharing,
	}
	if detail {
		out.Content = a.Content
		out.ContentHTML = string(utils.RenderMarkdown(a.Content))
	}
	return out
}

func newArticles(list []models.Article) []ArticleJSON {
	out := make([]ArticleJSON, 0, len(list))
	for i := range list {
		out = append(out, newArticle(&list[i], false))
	}
	return out
}

type CommentJSON struct {
	ID           uint          `json:"id"`
	Article      uint          `json:"article"`
	Author       *UserJSON     `json:"author"`
	AuthorName   string        `json:"author_name"`
	Parent       *uint         `json:"parent"`
	Content      string        `json:"content"`
	ContentHTML  string        `json:"content_html"`
	IsApproved   bool          `json:"is_approved"`
	IsPinned     bool          `json:"is_pinned"`
	GuestName    string        `json:"guest_name"`
	GuestWebsite string        `json:"guest_website"`
	LikeCount    int           `json:"like_count"`
	ReplyCount   int           `json:"reply_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Replies      []CommentJSON `json:"replies"`
	IsOwner      bool          `json:"is_owner"`
}

// newComment serializes c and any replies already attached to it.
func newComment(c *models.Comment, viewer *models.User) CommentJSON {
	out := CommentJSON{
		ID:           c.ID,
		Article:      c.ArticleID,
		Author:       newUser(c.Author),
		AuthorName:   c.AuthorName(),
		Parent:       c.ParentID,
		Content:      c.Content,
		ContentHTML:  string(utils.RenderComment(c.Content)),
		IsApproved:   c.IsApproved,
		IsPinned:     c.IsPinned,
		GuestName:    c.GuestName,
		GuestWebsite: c.GuestWebsite,
		LikeCount:    c.LikeCount,
		ReplyCount:   c.ReplyCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Replies:      make([]CommentJSON, 0, len(c.Replies)),
		IsOwner:      c.OwnedBy(viewer),
	}
	for _, r := range c.Replies {
		out.Replies = append(out.Replies, newComment(r, viewer))
	}
	return out
}
