// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package auth_test

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

type captureNotifier struct {
	mu     sync.Mutex
	tokens map[ulid.ULID]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{tokens: make(map[ulid.ULID]string)}
}

func (n *captureNotifier) SendResetToken(_ context.Context, identity *auth.Identity, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[identity.ID] = token
	return nil
}

func (n *captureNotifier) last(id ulid.ULID) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[id]
}
