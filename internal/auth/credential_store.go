// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/cache"
)

// DefaultProfileCacheTTL is how long a cached public profile lives.
const DefaultProfileCacheTTL = time.Hour

// CredentialStore wraps an IdentityRepository with the profile cache.
//
// FindByID is cache-through. Writes go to the repository first and then
// unconditionally invalidate the profile entry; invalidating before the write
// would let a concurrent read re-populate the stale value.
// Profile cache failures never fail a request.
type CredentialStore struct {
	repo  IdentityRepository
	cache cache.Store
	ttl   time.Duration
}

// NewCredentialStore creates a CredentialStore. A non-positive ttl uses DefaultProfileCacheTTL.
func NewCredentialStore(repo IdentityRepository, store cache.Store, ttl time.Duration) (*CredentialStore, error) {
	if repo == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("identity repository is required")
	}
	if store == nil {
		return nil, oops.Code("CREDENTIAL_STORE_INVALID").Errorf("cache store is required")
	}
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &CredentialStore{repo: repo, cache: store, ttl: ttl}, nil
}

// FindByID checks the profile cache first and populates it on a miss.
func (s *CredentialStore) FindByID(ctx context.Context, id ulid.ULID) (*Identity, error) {
	key := cache.ProfileKey(id.String())
	if cached, ok := cache.GetJSON[Identity](ctx, s.cache, key); ok {
		return &cached, nil
	}

	identity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository errors already carry codes
	}

	//nolint:errcheck // profile cache is best effort
	_ = cache.SetJSON(ctx, s.cache, key, identity, s.ttl)

	return identity, nil
}

// Create stores a new identity and drops any stale profile entry for its ID.
func (s *CredentialStore) Create(ctx context.Context, creds *Credentials) error {
	err := s.repo.Create(ctx, creds)
	if creds != nil {
		s.invalidate(ctx, creds.ID)
	}
	return err //nolint:wrapcheck // repository errors already carry codes
}

// Update applies the patch, then invalidates the profile entry whether or
// not the write reported success; a timed-out write may still have committed.
func (s *CredentialStore) Update(ctx context.Context, id ulid.ULID, patch IdentityPatch) error {
	err := s.repo.Update(ctx, id, patch)
	s.invalidate(ctx, id)
	return err //nolint:wrapcheck // repository errors already carry codes
}

func (s *CredentialStore) invalidate(ctx context.Context, id ulid.ULID) {
	//nolint:errcheck // entry expires on its own if the delete is lost
	_, _ = s.cache.Delete(ctx, cache.ProfileKey(id.String()))
}

// FindByEmail passes through to the repository.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.repo.FindByEmail(ctx, email) //nolint:wrapcheck // pass-through
}

// FindByPhoneNumber passes through to the repository.
func (s *CredentialStore) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*Identity, error) {
	return s.repo.FindByPhoneNumber(ctx, phoneNumber) //nolint:wrapcheck // pass-through
}

// FindByIdentifier passes through to the repository.
func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	return s.repo.FindByIdentifier(ctx, identifier) //nolint:wrapcheck // pass-through
}

// FindCredentialsByIdentifier passes through to the repository; secrets are never cached.
func (s *CredentialStore) FindCredentialsByIdentifier(ctx context.Context, identifier string) (*Credentials, error) {
	return s.repo.FindCredentialsByIdentifier(ctx, identifier) //nolint:wrapcheck // pass-through
}

// FindCredentialsByID passes through to the repository; secrets are never cached.
func (s *CredentialStore) FindCredentialsByID(ctx context.Context, id ulid.ULID) (*Credentials, error) {
	return s.repo.FindCredentialsByID(ctx, id) //nolint:wrapcheck // pass-through
}

// FindByResetTicket passes through to the repository.
func (s *CredentialStore) FindByResetTicket(ctx context.Context, ticketHash string, now time.Time) (*Identity, error) {
	return s.repo.FindByResetTicket(ctx, ticketHash, now) //nolint:wrapcheck // pass-through
}

// Compile-time interface check.
var _ IdentityRepository = (*CredentialStore)(nil)
