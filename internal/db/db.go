package db

import (
	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Init opens the PostgreSQL connection, migrates the schema and seeds
// the default categories. It exits the process on failure.
func Init(dsn string) {
	log := logger.WithContext("db", "init")

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Info("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Info("Database migration completed")

	if err := SeedCategories(DB); err != nil {
		log.WithError(err).Warn("Failed to seed categories")
	}
}

// Use replaces the shared handle, e.g. with an in-memory database in tests.
func Use(d *gorm.DB) {
	DB = d
}

func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.Category{},
		&models.Tag{},
		&models.Article{},
		&models.ArticleLike{},
		&models.ArticleBookmark{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Notification{},
	)
}

// SeedCategories creates the initial categories on an empty database.
func SeedCategories(d *gorm.DB) error {
	var count int64
	if err := d.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.WithContext("db", "seed").Debug("Categories already seeded, skipping")
		return nil
	}

	categories := []models.Category{
		{Name: "技术", Description: "编程、架构与工具", SortOrder: 1},
		{Name: "生活", Description: "日常随笔与经验分享", SortOrder: 2},
		{Name: "读书", Description: "书评与读书笔记", SortOrder: 3},
		{Name: "随想", Description: "不成体系的想法", SortOrder: 4},
	}
	for i := range categories {
		categories[i].Slug = utils.Slugify(categories[i].Name, "category")
		categories[i].IsActive = true
	}
	if err := d.Create(&categories).Error; err != nil {
		return err
	}
	logger.WithContext("db", "seed").Infof("Initial categories created: %d", len(categories))
	return nil
}
