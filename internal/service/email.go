package service

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"libris-backend/internal/domain"
)

type emailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailService(host string, port int, username, password, from string) EmailService {
	return &emailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *emailService) SendOverdueReminder(ctx context.Context, user *domain.User, loans []domain.Loan) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Overdue book reminder")

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThe following loans are overdue:\n\n", user.FullName())
	for _, loan := range loans {
		fmt.Fprintf(&b, "  - loan #%d, due %s\n", loan.ID, loan.DueDate.Format("2006-01-02"))
	}
	b.WriteString("\nPlease return the books at your earliest convenience.\n\nYour library")
	m.SetBody("text/plain", b.String())

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send overdue reminder: %w", err)
	}
	return nil
}
