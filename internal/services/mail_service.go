package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/logger"
)

// Mailer delivers transactional emails. Delivery is best effort.
type Mailer interface {
	SendRegisterCode(email, code string)
	SendResetCode(email, code string)
	SendCommentNotification(email string, msg CommentMail)
}

// CommentMail is the data rendered into notification.html.
type CommentMail struct {
	Actor         string
	ArticleTitle  string
	Content       string
	ParentContent string
	Link          string
}

type MailService struct {
	cfg          config.SMTPConfig
	siteName     string
	templatesDir string
	send         func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg config.SMTPConfig, siteName, templatesDir string) *MailService {
	if !cfg.Enabled() {
		logger.WithContext("mail", "init").Warn("MailService disabled: missing SMTP environment variables")
	}
	return &MailService{
		cfg:          cfg,
		siteName:     siteName,
		templatesDir: templatesDir,
		send:         smtp.SendMail,
	}
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.cfg.Enabled() {
		return
	}

	go func() {
		log := logger.WithContext("mail", "send")
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
		addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

		msg := s.compose(to, subject, body)
		if err := s.send(addr, auth, s.cfg.From, to, msg); err != nil {
			log.WithError(err).WithField("to", to).Error("Failed to send email")
			return
		}
		log.WithField("to", to).Infof("Email sent: %s", subject)
	}()
}

func (s *MailService) compose(to []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ","))
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.siteName, s.cfg.From)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func (s *MailService) parseTemplate(templateName string, data any) (string, error) {
	path := filepath.Join(s.templatesDir, "email", templateName)
	t, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

func (s *MailService) SendRegisterCode(email, code string) {
	body, err := s.parseTemplate("code.html", map[string]string{
		"Code":     code,
		"SiteName": s.siteName,
	})
	if err != nil {
		logger.WithContext("mail", "register_code").WithError(err).Error("Error rendering register email")
		return
	}
	s.sendAsync([]string{email}, "欢迎加入 "+s.siteName+"，请验证您的邮箱", body)
}

func (s *MailService) SendResetCode(email, code string) {
	body, err := s.parseTemplate("reset.html", map[string]string{
		"Code":     code,
		"SiteName": s.siteName,
	})
	if err != nil {
		logger.WithContext("mail", "reset_code").WithError(err).Error("Error rendering reset email")
		return
	}
	s.sendAsync([]string{email}, "["+s.siteName+"] 安全提醒：您正在申请重置密码", body)
}

func (s *MailService) SendCommentNotification(email string, msg CommentMail) {
	body, err := s.parseTemplate("notification.html", msg)
	if err != nil {
		logger.WithContext("mail", "notification").WithError(err).Error("Error rendering notification email")
		return
	}
	s.sendAsync([]string{email}, msg.Actor+" 评论了《"+msg.ArticleTitle+"》", body)
}
