// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"log/slog"
)

// Notifier delivers a plaintext reset token out of band (email, SMS).
// The token must never be returned to the requester directly.
type Notifier interface {
	SendResetToken(ctx context.Context, identity *Identity, token string) error
}

// LogNotifier "delivers" reset tokens to a logger. Intended for development.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendResetToken logs the token at debug level.
func (n *LogNotifier) SendResetToken(ctx context.Context, identity *Identity, token string) error {
	n.logger.DebugContext(ctx, "password reset token issued",
		"identity_id", identity.ID.String(),
		"reset_token", token,
	)
	return nil
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)
