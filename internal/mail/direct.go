// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"

	"github.com/holomush/authkit/internal/auth"
)

// Direct sends the welcome mail inside the signup request.
type Direct struct {
	mailer *Mailer
}

// NewDirect creates a Direct notifier.
func NewDirect(mailer *Mailer) *Direct {
	return &Direct{mailer: mailer}
}

// UserSignedUp sends the welcome mail.
func (d *Direct) UserSignedUp(ctx context.Context, user auth.PublicUser) error {
	_, err := d.mailer.SendWelcome(ctx, WelcomePayload{UserID: user.ID, Email: user.Email})
	return err
}

var _ auth.SignupNotifier = (*Direct)(nil)
