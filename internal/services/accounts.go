package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/logger"
	"inkwell/internal/models"
	"inkwell/internal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)

type RegisterInput struct {
	Username        string `validate:"required,min=3,max=30"`
	Email           string `validate:"required,email,max=254"`
	Password        string `validate:"required,min=8,max=128"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	Code            string `validate:"required,len=4,numeric"`
}

type ProfileInput struct {
	Bio         string `validate:"max=500"`
	Website     string `validate:"omitempty,url,max=200"`
	Location    string `validate:"max=100"`
	BirthDate   *time.Time
	GithubURL   string `validate:"omitempty,url,max=200"`
	TwitterURL  string `validate:"omitempty,url,max=200"`
	LinkedinURL string `validate:"omitempty,url,max=200"`
	Avatar      string
}

type SettingsInput struct {
	Theme              string `validate:"oneof=light dark auto"`
	BlogTitle          string `validate:"max=100"`
	BlogDescription    string `validate:"max=500"`
	ShowEmail          bool
	AllowComments      bool
	AllowGuestComments bool
	PostsPerPage       int `validate:"min=1,max=50"`
}

// DashboardStats summarises an author's activity.
type DashboardStats struct {
	TotalArticles     int64
	PublishedArticles int64
	DraftArticles     int64
	TotalComments     int64
	TotalViews        int64
	TotalLikes        int64
	RecentArticles    []models.Article
	PopularArticles   []models.Article
}

var fieldMessages = map[string]string{
	"Username":        "用户名需为3-30个字符，只能包含字母、数字、下划线、点或横线。",
	"Email":           "请输入有效的邮箱地址。",
	"Password":        "密码至少需要8个字符。",
	"PasswordConfirm": "两次输入的密码不一致。",
	"Code":            "验证码格式不正确。",
	"Bio":             "个人简介不能超过500个字符。",
	"Website":         "请输入有效的网址。",
	"GithubURL":       "请输入有效的 GitHub 地址。",
	"TwitterURL":      "请输入有效的 Twitter 地址。",
	"LinkedinURL":     "请输入有效的 LinkedIn 地址。",
	"Theme":           "无效的主题。",
	"PostsPerPage":    "每页文章数需在1到50之间。",
}

// validationMessage turns the first validator failure into a ValidationError.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	msg, ok := fieldMessages[fe.Field()]
	if !ok {
		msg = fmt.Sprintf("%s 无效。", fe.Field())
	}
	return invalid(ErrInvalidAccount, strings.ToLower(fe.Field()), msg)
}

type AccountService struct {
	db       *gorm.DB
	codes    CodeStore
	mailer   Mailer
	validate *validator.Validate
	now      func() time.Time
}

func NewAccountService(d *gorm.DB, codes CodeStore, mailer Mailer) *AccountService {
	return &AccountService{
		db:       d,
		codes:    codes,
		mailer:   mailer,
		validate: validator.New(),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// SendRegisterCode emails a 4-digit code to an unregistered address.
func (s *AccountService) SendRegisterCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return invalid(ErrInvalidAccount, "email", fieldMessages["Email"])
	}
	taken, err := s.emailTaken(ctx, email, 0)
	if err != nil {
		return err
	}
	if taken {
		return invalid(ErrDuplicateAccount, "email", "该邮箱已被注册。")
	}

	code := utils.GenerateRandomCode(4)
	if err := s.codes.Save(ctx, CodePurposeRegister, email, code, CodeTTL); err != nil {
		return fmt.Errorf("save register code: %w", err)
	}
	s.mailer.SendRegisterCode(email, code)
	return nil
}

// Register creates a verified account and its default profile once the
// emailed code checks out.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationMessage(err)
	}
	if !usernamePattern.MatchString(in.Username) {
		return nil, invalid(ErrInvalidAccount, "username", fieldMessages["Username"])
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(in.Username), in.Email).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateAccount
	}

	ok, err := s.codes.Consume(ctx, CodePurposeRegister, in.Email, in.Code)
	if err != nil {
		return nil, fmt.Errorf("check register code: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:   in.Username,
		Email:      in.Email,
		Password:   hash,
		Role:       models.RoleUser,
		IsVerified: true,
		IsActive:   true,
	}
	if err := s.createWithProfile(ctx, user); err != nil {
		return nil, err
	}

	logger.WithContext("accounts", "register").WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *AccountService) createWithProfile(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		profile := models.DefaultProfile(user.ID)
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile
		return nil
	})
}

// Authenticate checks credentials. login may be an email or a username.
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" || password == "" {
		return nil, ErrBadCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? OR LOWER(username) = ?", login, login).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrBadCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	return &user, nil
}

func (s *AccountService) checkNewPassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < 8 {
		return invalid(ErrInvalidAccount, "password", fieldMessages["Password"])
	}
	if password != confirm {
		return invalid(ErrInvalidAccount, "password_confirm", fieldMessages["PasswordConfirm"])
	}
	return nil
}

func (s *AccountService) setPassword(ctx context.Context, userID uint, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("password", hash).Error
}

func (s *AccountService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword, confirm string) error {
	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		return invalid(ErrBadCredentials, "old_password", "原密码不正确。")
	}
	if err := s.checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

// SendResetCode emails a 6-digit reset code. Unknown addresses are
// accepted silently so the form does not reveal who is registered.
func (s *AccountService) SendResetCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return invalid(ErrInvalidAccount, "email", fieldMessages["Email"])
	}
	taken, err := s.emailTaken(ctx, email, 0)
	if err != nil || !taken {
		return err
	}

	code := utils.GenerateRandomCode(6)
	if err := s.codes.Save(ctx, CodePurposeReset, email, code, CodeTTL); err != nil {
		return fmt.Errorf("save reset code: %w", err)
	}
	s.mailer.SendResetCode(email, code)
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, email, code, password, confirm string) error {
	email = normalizeEmail(email)
	if err := s.checkNewPassword(password, confirm); err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	ok, err := s.codes.Consume(ctx, CodePurposeReset, email, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("check reset code: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return s.setPassword(ctx, user.ID, password)
}

func (s *AccountService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// List returns active users, optionally filtered by username.
func (s *AccountService) List(ctx context.Context, search string, offset, limit int) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	if search = strings.TrimSpace(search); search != "" {
		q = q.Where(`LOWER(username) LIKE ? ESCAPE '\'`, containsPattern(search))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}

func (s *AccountService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) error {
	in.Bio = strings.TrimSpace(in.Bio)
	in.Website = strings.TrimSpace(in.Website)
	in.Location = strings.TrimSpace(in.Location)
	in.GithubURL = strings.TrimSpace(in.GithubURL)
	in.TwitterURL = strings.TrimSpace(in.TwitterURL)
	in.LinkedinURL = strings.TrimSpace(in.LinkedinURL)
	if err := s.validate.Struct(in); err != nil {
		return validationMessage(err)
	}

	updates := map[string]any{
		"bio":          in.Bio,
		"website":      in.Website,
		"location":     in.Location,
		"birth_date":   in.BirthDate,
		"github_url":   in.GithubURL,
		"twitter_url":  in.TwitterURL,
		"linkedin_url": in.LinkedinURL,
	}
	if in.Avatar != "" {
		updates["avatar"] = in.Avatar
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}

	user.Bio, user.Website, user.Location = in.Bio, in.Website, in.Location
	user.BirthDate = in.BirthDate
	user.GithubURL, user.TwitterURL, user.LinkedinURL = in.GithubURL, in.TwitterURL, in.LinkedinURL
	if in.Avatar != "" {
		user.Avatar = in.Avatar
	}
	return nil
}

// Profile returns the user's preferences, creating defaults if missing.
func (s *AccountService) Profile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		profile = models.DefaultProfile(userID)
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, userID uint, in SettingsInput) (*models.UserProfile, error) {
	in.BlogTitle = strings.TrimSpace(in.BlogTitle)
	in.BlogDescription = strings.TrimSpace(in.BlogDescription)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationMessage(err)
	}

	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Theme = in.Theme
	profile.BlogTitle = in.BlogTitle
	profile.BlogDescription = in.BlogDescription
	profile.ShowEmail = in.ShowEmail
	profile.AllowComments = in.AllowComments
	profile.AllowGuestComments = in.AllowGuestComments
	profile.PostsPerPage = in.PostsPerPage
	if err := s.db.WithContext(ctx).Save(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *AccountService) Dashboard(ctx context.Context, userID uint) (*DashboardStats, error) {
	stats := &DashboardStats{}
	d := s.db.WithContext(ctx)

	var byStatus []struct {
		Status models.ArticleStatus
		Total  int64
		Views  int64
		Likes  int64
	}
	if err := d.Model(&models.Article{}).
		Select("status, COUNT(*) AS total, COALESCE(SUM(view_count), 0) AS views, COALESCE(SUM(like_count), 0) AS likes").
		Where("author_id = ?", userID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.TotalArticles += row.Total
		stats.TotalViews += row.Views
		stats.TotalLikes += row.Likes
		switch row.Status {
		case models.StatusPublished:
			stats.PublishedArticles = row.Total
		case models.StatusDraft:
			stats.DraftArticles = row.Total
		}
	}

	if err := d.Model(&models.Comment{}).
		Where("article_id IN (?)", s.db.Model(&models.Article{}).Select("id").Where("author_id = ?", userID)).
		Count(&stats.TotalComments).Error; err != nil {
		return nil, err
	}

	if err := d.Where("author_id = ?", userID).Order("created_at DESC").Limit(5).
		Find(&stats.RecentArticles).Error; err != nil {
		return nil, err
	}
	if err := d.Where("author_id = ? AND status = ?", userID, models.StatusPublished).
		Order("view_count DESC").Limit(5).
		Find(&stats.PopularArticles).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// FindOrCreateGoogleUser links a Google identity to an existing account
// with the same email, or registers a new one.
func (s *AccountService) FindOrCreateGoogleUser(ctx context.Context, googleID, email, name, avatar string) (*models.User, error) {
	email = normalizeEmail(email)
	if googleID == "" || email == "" {
		return nil, ErrInvalidAccount
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&user).Error
	if err == nil {
		updates := map[string]any{"google_id": googleID, "is_verified": true}
		if user.Avatar == "" && avatar != "" {
			updates["avatar"] = avatar
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username, err := s.availableUsername(ctx, name, email)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(utils.GenerateRandomCode(16))
	if err != nil {
		return nil, err
	}
	user = models.User{
		Username:   username,
		Email:      email,
		Password:   hash,
		Avatar:     avatar,
		Role:       models.RoleUser,
		IsVerified: true,
		IsActive:   true,
		GoogleID:   googleID,
	}
	if err := s.createWithProfile(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) availableUsername(ctx context.Context, name, email string) (string, error) {
	base := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if !usernamePattern.MatchString(base) || utf8.RuneCountInString(base) < 3 {
		base = strings.SplitN(email, "@", 2)[0]
	}
	if utf8.RuneCountInString(base) > 24 {
		base = string([]rune(base)[:24])
	}

	candidate := base
	for i := 1; ; i++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(candidate)).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
