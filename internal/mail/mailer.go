// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Welcome mail parameters.
const (
	WelcomeTemplate = "welcome"
	WelcomeSubject  = "Welcome!"
)

// WelcomePayload is the data behind a welcome mail.
type WelcomePayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Mailer renders templates and hands them to a Sender.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger
}

// NewMailer creates a Mailer.
func NewMailer(renderer *Renderer, sender Sender, logger *slog.Logger) (*Mailer, error) {
	if renderer == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("renderer is required")
	}
	if sender == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sender is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{renderer: renderer, sender: sender, logger: logger}, nil
}

// SendTemplate renders template with data and sends it to to.
func (m *Mailer) SendTemplate(ctx context.Context, to, template, subject string, data any) (string, error) {
	body, err := m.renderer.Render(template, data)
	if err != nil {
		return "", err
	}
	id, err := m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: body})
	if err != nil {
		return "", err
	}
	m.logger.InfoContext(ctx, "mail sent", "to", to, "template", template, "message_id", id)
	return id, nil
}

// SendWelcome sends the welcome mail described by p.
func (m *Mailer) SendWelcome(ctx context.Context, p WelcomePayload) (string, error) {
	return m.SendTemplate(ctx, p.Email, WelcomeTemplate, WelcomeSubject, p)
}
