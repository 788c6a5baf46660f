// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
)

func TestMemoryIdentityRepository_IdentifierRouting(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewMemoryIdentityRepository()

	victim, err := auth.NewCredentials("victim@x.com", "08011112222", "", "victim-digest")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, victim))

	email, phone := "other@y.com", "victim@x.com"
	require.NoError(t, repo.Create(ctx, &auth.Credentials{
		Identity:     auth.Identity{ID: ulid.Make(), Email: &email, PhoneNumber: &phone, Status: auth.StatusActive},
		PasswordHash: "other-digest",
	}))

	for range 20 {
		got, err := repo.FindCredentialsByIdentifier(ctx, "victim@x.com")
		require.NoError(t, err)
		assert.Equal(t, victim.ID, got.ID)
	}

	byPhone, err := repo.FindCredentialsByIdentifier(ctx, "08011112222")
	require.NoError(t, err)
	assert.Equal(t, victim.ID, byPhone.ID)
}

func TestMemoryIdentityRepository_ConditionalWriteChecksExpiry(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewMemoryIdentityRepository()
	creds, err := auth.NewCredentials("a@x.com", "", "", "old-digest")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, creds))

	expired := &auth.ResetTicket{Hash: "stale", ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, repo.Update(ctx, creds.ID, auth.IdentityPatch{SetResetTicket: expired}))

	digest := "new-digest"
	err = repo.Update(ctx, creds.ID, auth.IdentityPatch{
		PasswordHash:           &digest,
		ClearResetTicket:       true,
		RequireResetTicketHash: "stale",
	})
	require.ErrorIs(t, err, auth.ErrNotFound)

	stored, err := repo.FindCredentialsByID(ctx, creds.ID)
	require.NoError(t, err)
	assert.Equal(t, "old-digest", stored.PasswordHash)
	require.NotNil(t, stored.ResetTicketHash)
}
