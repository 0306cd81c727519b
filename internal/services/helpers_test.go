package services

import "sync"

type sentComment struct {
	to  string
	msg CommentMail
}

type fakeMailer struct {
	mu       sync.Mutex
	register map[string]string
	reset    map[string]string
	comments []sentComment
}

func (m *fakeMailer) SendRegisterCode(email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.register == nil {
		m.register = map[string]string{}
	}
	m.register[email] = code
}

func (m *fakeMailer) SendResetCode(email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reset == nil {
		m.reset = map[string]string{}
	}
	m.reset[email] = code
}

func (m *fakeMailer) SendCommentNotification(email string, msg CommentMail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, sentComment{to: email, msg: msg})
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uint
}

func (s *recordingScheduler) ScheduleArticle(articleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, articleID)
}
