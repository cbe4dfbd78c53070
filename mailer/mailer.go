// Package mailer delivers notifications by email over SMTP.
package mailer

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"fichador/models"
	"fichador/notify"
)

type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

func NewSender(host string, port int, username, password, from string, log *zap.Logger) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log,
	}
}

func (s *Sender) Send(ctx context.Context, user *models.User, msg notify.Message) error {
	if user.Email == "" {
		return notify.ErrNoTarget
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return err
	}
	s.log.Debug("email sent", zap.Uint("user_id", user.ID), zap.String("kind", string(msg.Kind)))
	return nil
}
