// Package mail is the outbound e-mail boundary. The service only ever sends
// one kind of message: the verification link that completes a pending
// registration.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Sender delivers a verification link to the address waiting on it.
type Sender interface {
	SendVerificationLink(ctx context.Context, email, token string) error
}

// LogSender writes the verification link to the log instead of delivering it.
// It is the default wiring until a real provider is configured, and what the
// tests use.
type LogSender struct {
	Logger  *slog.Logger
	BaseURL string // e.g. "https://api.example.com"
}

func (s *LogSender) SendVerificationLink(_ context.Context, email, token string) error {
	link := fmt.Sprintf("%s/v1/auth/verify?token=%s", s.BaseURL, url.QueryEscape(token))
	s.Logger.Info("verification e-mail (log delivery)",
		"to", email,
		"link", link,
	)
	return nil
}
