// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Status is the account state of an identity.
type Status string

// Identity statuses.
const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBlocked
}

// Identity is the public read of a registered identity. It never carries
// the password hash or the reset ticket hash.
type Identity struct {
	ID              ulid.ULID `json:"id"`
	Email           *string   `json:"email,omitempty"`
	PhoneNumber     *string   `json:"phoneNumber,omitempty"`
	CountryCode     *string   `json:"countryCode,omitempty"`
	Status          Status    `json:"status"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EmailValue returns the email or "" when absent.
func (i *Identity) EmailValue() string {
	if i == nil || i.Email == nil {
		return ""
	}
	return *i.Email
}

// IsBlocked returns true if the identity may not authenticate.
func (i *Identity) IsBlocked() bool {
	return i.Status == StatusBlocked
}

// Credentials is the authentication read of an identity.
type Credentials struct {
	Identity
	PasswordHash      string
	ResetTicketHash   *string
	ResetTicketExpiry *time.Time
}

// NewCredentials creates a validated Credentials value for a new identity.
// Email is lower-cased; at least one of email and phone number is required.
func NewCredentials(email, phoneNumber, countryCode, passwordHash string) (*Credentials, error) {
	email = NormalizeEmail(email)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if err := ValidateIdentifiers(email, phoneNumber); err != nil {
		return nil, oops.Code("IDENTITY_INVALID").Wrap(err)
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Credentials{
		Identity: Identity{
			ID:          ulid.Make(),
			Email:       optional(email),
			PhoneNumber: optional(phoneNumber),
			CountryCode: optional(strings.TrimSpace(countryCode)),
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: passwordHash,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEmailIdentifier reports whether identifier is an email address rather
// than a phone number. Emails always contain '@' and phone numbers never do,
// so an identifier can only ever match one column.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// ValidateIdentifiers checks that at least one identifier is present and that
// each belongs to its own namespace.
func ValidateIdentifiers(email, phoneNumber string) error {
	switch {
	case email == "" && phoneNumber == "":
		return ErrIdentifierRequired
	case email != "" && !IsEmailIdentifier(email):
		return ErrInvalidEmail
	case phoneNumber != "" && IsEmailIdentifier(phoneNumber):
		return ErrInvalidPhoneNumber
	}
	return nil
}

// NormalizeIdentifier prepares an email or phone number for lookup.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if IsEmailIdentifier(identifier) {
		return strings.ToLower(identifier)
	}
	return identifier
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ResetTicket is the stored half of a password reset ticket.
type ResetTicket struct {
	Hash      string
	ExpiresAt time.Time
}

// Valid reports whether the ticket is unexpired at now.
func (t ResetTicket) Valid(now time.Time) bool {
	return t.Hash != "" && now.Before(t.ExpiresAt)
}

// IdentityPatch is a partial update of an identity. Nil fields are left alone.
type IdentityPatch struct {
	PasswordHash    *string
	CountryCode     *string
	Status          *Status
	IsEmailVerified *bool
	IsPhoneVerified *bool

	// SetResetTicket stores a new ticket, replacing any previous one.
	SetResetTicket *ResetTicket
	// ClearResetTicket removes the stored ticket in the same write.
	ClearResetTicket bool
	// RequireResetTicketHash makes the write conditional on the row still
	// holding this ticket hash. A row that no longer matches yields ErrNotFound.
	RequireResetTicketHash string
}

// Validate checks the patch for contradictory instructions.
func (p IdentityPatch) Validate() error {
	if p.SetResetTicket != nil && p.ClearResetTicket {
		return oops.Code("IDENTITY_PATCH_INVALID").Errorf("cannot set and clear reset ticket in one patch")
	}
	if p.SetResetTicket != nil && p.SetResetTicket.Hash == "" {
		return oops.Code("IDENTITY_PATCH_INVALID").Errorf("reset ticket hash cannot be empty")
	}
	if p.PasswordHash != nil && *p.PasswordHash == "" {
		return oops.Code("IDENTITY_PATCH_INVALID").Errorf("password hash cannot be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return oops.Code("IDENTITY_PATCH_INVALID").With("status", *p.Status).Errorf("unknown status")
	}
	return nil
}

// IdentityRepository manages identity persistence.
// Lookups that find nothing return an error wrapping ErrNotFound.
type IdentityRepository interface {
	// FindByEmail retrieves an identity by email (case-insensitive).
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByPhoneNumber retrieves an identity by phone number.
	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*Identity, error)

	// FindByIdentifier retrieves an identity by email or phone number.
	FindByIdentifier(ctx context.Context, identifier string) (*Identity, error)

	// FindByID retrieves an identity by ID.
	FindByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// FindCredentialsByIdentifier retrieves the authentication read by email or phone number.
	FindCredentialsByIdentifier(ctx context.Context, identifier string) (*Credentials, error)

	// FindCredentialsByID retrieves the authentication read by ID.
	FindCredentialsByID(ctx context.Context, id ulid.ULID) (*Credentials, error)

	// FindByResetTicket retrieves the identity holding the ticket hash,
	// provided the ticket is still unexpired at now.
	FindByResetTicket(ctx context.Context, ticketHash string, now time.Time) (*Identity, error)

	// Create stores a new identity. Duplicate identifiers yield an error
	// wrapping ErrEmailTaken, ErrPhoneTaken or ErrConflict.
	Create(ctx context.Context, creds *Credentials) error

	// Update applies a partial update to an identity.
	Update(ctx context.Context, id ulid.ULID, patch IdentityPatch) error
}
