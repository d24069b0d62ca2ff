// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// Message is a rendered HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message and returns its Message-ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Secure selects implicit TLS. Otherwise STARTTLS is used when offered.
	Secure bool
}

// SMTPSender delivers mail over SMTP with go-mail.
type SMTPSender struct {
	client *gomail.Client
	from   string
	domain string
}

// NewSMTPSender creates an SMTPSender. No connection is made until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("from address is required")
	}

	opts := []gomail.Option{}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return &SMTPSender{client: client, from: cfg.From, domain: cfg.Host}, nil
}

// Send builds and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	m, id, err := s.build(msg)
	if err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", oops.Code("MAIL_SEND_FAILED").
			With("to", msg.To).
			With("message_id", id).
			Wrap(err)
	}
	return id, nil
}

func (s *SMTPSender) build(msg Message) (*gomail.Msg, string, error) {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, "", oops.Code("MAIL_ADDRESS_INVALID").With("from", s.from).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, "", oops.Code("MAIL_ADDRESS_INVALID").With("to", msg.To).Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	m.SetDate()

	id := fmt.Sprintf("%s@%s", uuid.NewString(), s.domain)
	m.SetMessageIDWithValue(id)
	return m, id, nil
}
