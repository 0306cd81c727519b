// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"inkwell/internal/db"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const Password = "password123"

// NewDB opens a migrated in-memory SQLite database and installs it as db.DB
// for the duration of the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	d, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := d.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(d))

	prev := db.DB
	db.Use(d)
	t.Cleanup(func() {
		db.Use(prev)
		sqlDB.Close()
	})
	return d
}

var passwordHash string

func hashedPassword(t *testing.T) string {
	if passwordHash == "" {
		h, err := utils.HashPassword(Password)
		require.NoError(t, err)
		passwordHash = h
	}
	return passwordHash
}

func CreateUser(t *testing.T, d *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   hashedPassword(t),
		Role:       models.RoleUser,
		IsActive:   true,
		IsVerified: true,
	}
	require.NoError(t, d.Create(u).Error)
	profile := models.DefaultProfile(u.ID)
	require.NoError(t, d.Create(&profile).Error)
	u.Profile = &profile
	return u
}

func CreateStaff(t *testing.T, d *gorm.DB, username string) *models.User {
	t.Helper()
	u := CreateUser(t, d, username)
	require.NoError(t, d.Model(u).Update("role", models.RoleStaff).Error)
	u.Role = models.RoleStaff
	return u
}

func CreateCategory(t *testing.T, d *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: utils.Slugify(name, "category"), IsActive: true}
	require.NoError(t, d.Create(c).Error)
	return c
}

// CreateArticle inserts a published article that accepts comments.
func CreateArticle(t *testing.T, d *gorm.DB, author *models.User, title string, opts ...func(*models.Article)) *models.Article {
	t.Helper()
	now := time.Now()
	a := &models.Article{
		Title:         title,
		Slug:          fmt.Sprintf("%s-%d", utils.Slugify(title, "article"), now.UnixNano()),
		AuthorID:      author.ID,
		Content:       "Body of " + title,
		Status:        models.StatusPublished,
		PublishedAt:   &now,
		AllowComments: true,
		AllowSharing:  true,
		ReadingTime:   1,
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, d.Create(a).Error)
	return a
}

func Reload[T any](t *testing.T, d *gorm.DB, id uint) *T {
	t.Helper()
	var out T
	require.NoError(t, d.First(&out, id).Error)
	return &out
}
