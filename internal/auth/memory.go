// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryIdentityRepository is an in-memory IdentityRepository for testing.
// It enforces the same uniqueness and conditional-update rules as the
// PostgreSQL repository.
type MemoryIdentityRepository struct {
	mu   sync.RWMutex
	rows map[ulid.ULID]Credentials
}

// NewMemoryIdentityRepository creates a new in-memory identity repository.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{rows: make(map[ulid.ULID]Credentials)}
}

// Len returns the number of stored identities.
func (r *MemoryIdentityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func (r *MemoryIdentityRepository) find(match func(*Credentials) bool) (*Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if match(&row) {
			found := row
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func emailMatches(c *Credentials, email string) bool {
	return c.Email != nil && strings.EqualFold(*c.Email, email)
}

func phoneMatches(c *Credentials, phone string) bool {
	return c.PhoneNumber != nil && *c.PhoneNumber == phone
}

func publicRead(c *Credentials, err error) (*Identity, error) {
	if err != nil {
		return nil, err
	}
	identity := c.Identity
	return &identity, nil
}

// FindByEmail retrieves an identity by email (case-insensitive).
func (r *MemoryIdentityRepository) FindByEmail(_ context.Context, email string) (*Identity, error) {
	return publicRead(r.find(func(c *Credentials) bool { return emailMatches(c, email) }))
}

// FindByPhoneNumber retrieves an identity by phone number.
func (r *MemoryIdentityRepository) FindByPhoneNumber(_ context.Context, phoneNumber string) (*Identity, error) {
	return publicRead(r.find(func(c *Credentials) bool { return phoneMatches(c, phoneNumber) }))
}

// FindByIdentifier retrieves an identity by email or phone number.
func (r *MemoryIdentityRepository) FindByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	return publicRead(r.FindCredentialsByIdentifier(ctx, identifier))
}

// FindByID retrieves an identity by ID.
func (r *MemoryIdentityRepository) FindByID(ctx context.Context, id ulid.ULID) (*Identity, error) {
	return publicRead(r.FindCredentialsByID(ctx, id))
}

// FindCredentialsByIdentifier retrieves the authentication read by email
// when identifier contains '@', otherwise by phone number.
func (r *MemoryIdentityRepository) FindCredentialsByIdentifier(_ context.Context, identifier string) (*Credentials, error) {
	if IsEmailIdentifier(identifier) {
		return r.find(func(c *Credentials) bool { return emailMatches(c, identifier) })
	}
	return r.find(func(c *Credentials) bool { return phoneMatches(c, identifier) })
}

// FindCredentialsByID retrieves the authentication read by ID.
func (r *MemoryIdentityRepository) FindCredentialsByID(_ context.Context, id ulid.ULID) (*Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// FindByResetTicket retrieves the identity holding an unexpired ticket hash.
func (r *MemoryIdentityRepository) FindByResetTicket(_ context.Context, ticketHash string, now time.Time) (*Identity, error) {
	return publicRead(r.find(func(c *Credentials) bool {
		return c.ResetTicketHash != nil && *c.ResetTicketHash == ticketHash &&
			c.ResetTicketExpiry != nil && now.Before(*c.ResetTicketExpiry)
	}))
}

// Create stores a new identity, rejecting duplicate identifiers.
func (r *MemoryIdentityRepository) Create(_ context.Context, creds *Credentials) error {
	if creds == nil {
		return oops.Code("IDENTITY_CREATE_FAILED").Errorf("credentials are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if creds.Email != nil && emailMatches(&row, *creds.Email) {
			return oops.Code("IDENTITY_CREATE_FAILED").With("field", "email").Wrap(ErrEmailTaken)
		}
		if creds.PhoneNumber != nil && phoneMatches(&row, *creds.PhoneNumber) {
			return oops.Code("IDENTITY_CREATE_FAILED").With("field", "phone_number").Wrap(ErrPhoneTaken)
		}
	}
	if _, ok := r.rows[creds.ID]; ok {
		return oops.Code("IDENTITY_CREATE_FAILED").Wrap(ErrConflict)
	}
	r.rows[creds.ID] = *creds
	return nil
}

// Update applies a partial update to an identity. A patch with
// RequireResetTicketHash only applies while that ticket is stored and unexpired.
func (r *MemoryIdentityRepository) Update(_ context.Context, id ulid.ULID, patch IdentityPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}
	now := time.Now().UTC()
	if patch.RequireResetTicketHash != "" &&
		(row.ResetTicketHash == nil || *row.ResetTicketHash != patch.RequireResetTicketHash ||
			row.ResetTicketExpiry == nil || !now.Before(*row.ResetTicketExpiry)) {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(ErrNotFound)
	}

	if patch.PasswordHash != nil {
		row.PasswordHash = *patch.PasswordHash
	}
	if patch.CountryCode != nil {
		row.CountryCode = optional(*patch.CountryCode)
	}
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.IsEmailVerified != nil {
		row.IsEmailVerified = *patch.IsEmailVerified
	}
	if patch.IsPhoneVerified != nil {
		row.IsPhoneVerified = *patch.IsPhoneVerified
	}
	if patch.SetResetTicket != nil {
		hash, expires := patch.SetResetTicket.Hash, patch.SetResetTicket.ExpiresAt
		row.ResetTicketHash, row.ResetTicketExpiry = &hash, &expires
	}
	if patch.ClearResetTicket {
		row.ResetTicketHash, row.ResetTicketExpiry = nil, nil
	}
	row.UpdatedAt = now
	r.rows[id] = row
	return nil
}

// Compile-time interface check.
var _ IdentityRepository = (*MemoryIdentityRepository)(nil)
