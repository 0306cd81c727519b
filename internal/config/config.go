package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Comment moderation modes
const (
	ModerationNone   = "none"   // 所有评论直接通过
	ModerationGuests = "guests" // 游客评论需审核
	ModerationAll    = "all"    // 所有评论需审核
)

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Enabled reports whether every SMTP setting is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Pass != "" && s.From != ""
}

type Config struct {
	Port              string
	GinMode           string
	LogLevel          string
	DatabaseURL       string
	SessionSecret     string
	SiteURL           string
	SiteName          string
	RedisURL          string
	JWTSecret         string
	JWTTTL            time.Duration
	CommentModeration string
	TemplatesDir      string
	StaticDir         string
	UploadDir         string
	SMTP              SMTPConfig

	GoogleClientID     string
	GoogleClientSecret string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, reading configuration from environment")
	}
	return FromEnv()
}

func FromEnv() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=inkwell port=5432 sslmode=disable TimeZone=Asia/Shanghai"),
		SessionSecret:     getEnv("SESSION_SECRET", "secret_key_change_me"),
		SiteURL:           strings.TrimSuffix(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		SiteName:          getEnv("SITE_NAME", "Inkwell"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         getEnv("JWT_SECRET", "jwt_secret_change_me"),
		JWTTTL:            time.Duration(getEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,
		CommentModeration: parseModeration(os.Getenv("COMMENT_MODERATION")),
		TemplatesDir:      getEnv("TEMPLATES_DIR", "./web/templates"),
		StaticDir:         getEnv("STATIC_DIR", "./web/static"),
		UploadDir:         getEnv("UPLOAD_DIR", "./web/uploads"),
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: os.Getenv("SMTP_PORT"),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: os.Getenv("SMTP_FROM"),
		},
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}
	return cfg
}

func parseModeration(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ModerationGuests:
		return ModerationGuests
	case ModerationAll:
		return ModerationAll
	default:
		return ModerationNone
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
