package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Mailer delivers account emails
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes outgoing mail to the log instead of sending it. It is used
// when no mail transport is configured.
type LogMailer struct{}

// NewLogMailer creates a new log mailer
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendPasswordReset logs the reset link for email
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	log.Info().
		Str("to", email).
		Str("link", link).
		Msg("Password reset email")
	return nil
}
