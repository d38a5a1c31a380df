package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/common/config"
	"github.com/StudentGarage/StudentGarage/internal/common/logger"
	"github.com/StudentGarage/StudentGarage/internal/common/middleware"
)

// SMTPMailer 验证邮件发送方。
// SMTP 是外部依赖：所有发送都过熔断器，故障时快速失败而不是拖死注册路径。
type SMTPMailer struct {
	cfg     config.MailConfig
	breaker *middleware.CircuitBreaker
	log     logger.Logger

	// 可替换发送函数，测试时注入
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailConfig, log logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:     cfg,
		breaker: middleware.NewCircuitBreaker("smtp", 5, 30*time.Second),
		log:     log,
		send:    smtp.SendMail,
	}
}

// SendVerification 给新注册的邮箱发一封验证邮件。
func (m *SMTPMailer) SendVerification(ctx context.Context, email string) error {
	if m == nil {
		return fmt.Errorf("mailer is nil")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if !m.cfg.Enabled {
		if m.log != nil {
			m.log.Debugf("mail disabled, skip verification mail to %s", email)
		}
		return nil
	}

	msg := buildVerificationMessage(m.cfg.From, email)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	return m.breaker.Call(ctx, func() error {
		return m.send(addr, auth, m.cfg.From, []string{email}, msg)
	})
}

func buildVerificationMessage(from, to string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Verify your email address\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Welcome! Please verify your email address to finish setting up your account.\r\n")
	return []byte(b.String())
}
