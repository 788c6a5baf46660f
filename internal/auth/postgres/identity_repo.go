// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Unique index names from the identities migration.
const (
	emailConstraint = "identities_email_key"
	phoneConstraint = "identities_phone_number_key"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultQueryTimeout bounds every statement when no timeout is configured.
const DefaultQueryTimeout = 5 * time.Second

const identityColumns = `
	id, email, phone_number, country_code, password_hash, status,
	is_email_verified, is_phone_verified, reset_ticket_hash,
	reset_ticket_expires_at, created_at, updated_at`

const (
	selectByEmail = `SELECT` + identityColumns + ` FROM identities WHERE LOWER(email) = LOWER($1)`
	selectByPhone = `SELECT` + identityColumns + ` FROM identities WHERE phone_number = $1`
)

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db      DB
	timeout time.Duration
	now     func() time.Time
}

// Option configures an IdentityRepository.
type Option func(*IdentityRepository)

// WithQueryTimeout sets the deadline applied to each statement.
// Non-positive values keep DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *IdentityRepository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db DB, opts ...Option) *IdentityRepository {
	r := &IdentityRepository{db: db, timeout: DefaultQueryTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByEmail retrieves an identity by email (case-insensitive).
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	return public(r.findOne(ctx, "email", email, selectByEmail, email))
}

// FindByPhoneNumber retrieves an identity by phone number.
func (r *IdentityRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*auth.Identity, error) {
	return public(r.findOne(ctx, "phone_number", phoneNumber, selectByPhone, phoneNumber))
}

// FindByIdentifier retrieves an identity by email or phone number.
func (r *IdentityRepository) FindByIdentifier(ctx context.Context, identifier string) (*auth.Identity, error) {
	return public(r.FindCredentialsByIdentifier(ctx, identifier))
}

// FindByID retrieves an identity by ID.
func (r *IdentityRepository) FindByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	return public(r.FindCredentialsByID(ctx, id))
}

// FindCredentialsByIdentifier retrieves the authentication read by email
// when identifier contains '@', otherwise by phone number. Only one column is
// ever searched so an identifier cannot resolve to two identities.
func (r *IdentityRepository) FindCredentialsByIdentifier(ctx context.Context, identifier string) (*auth.Credentials, error) {
	if auth.IsEmailIdentifier(identifier) {
		return r.findOne(ctx, "email", identifier, selectByEmail, identifier)
	}
	return r.findOne(ctx, "phone_number", identifier, selectByPhone, identifier)
}

// FindCredentialsByID retrieves the authentication read by ID.
func (r *IdentityRepository) FindCredentialsByID(ctx context.Context, id ulid.ULID) (*auth.Credentials, error) {
	return r.findOne(ctx, "id", id.String(),
		`SELECT`+identityColumns+` FROM identities WHERE id = $1`, id.String())
}

// FindByResetTicket retrieves the identity holding an unexpired ticket hash.
func (r *IdentityRepository) FindByResetTicket(ctx context.Context, ticketHash string, now time.Time) (*auth.Identity, error) {
	creds, err := r.findOne(ctx, "reset_ticket", "<redacted>",
		`SELECT`+identityColumns+` FROM identities
		WHERE reset_ticket_hash = $1 AND reset_ticket_expires_at > $2`, ticketHash, now)
	return public(creds, err)
}

func (r *IdentityRepository) findOne(ctx context.Context, field, value, query string, args ...any) (*auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	creds, err := scanCredentials(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With(field, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").
			With("operation", "find by "+field).
			Wrap(err)
	}
	return creds, nil
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, creds *auth.Credentials) error {
	if creds == nil {
		return oops.Code("IDENTITY_CREATE_FAILED").Errorf("credentials are required")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		creds.ID.String(),
		creds.Email,
		creds.PhoneNumber,
		creds.CountryCode,
		creds.PasswordHash,
		string(creds.Status),
		creds.IsEmailVerified,
		creds.IsPhoneVerified,
		creds.ResetTicketHash,
		creds.ResetTicketExpiry,
		creds.CreatedAt,
		creds.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return oops.Code("IDENTITY_CREATE_FAILED").
				With("id", creds.ID.String()).
				Wrap(conflict)
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("id", creds.ID.String()).
			Wrap(err)
	}
	return nil
}

// uniqueViolation maps a unique index violation to the matching sentinel,
// or returns nil if err is not one.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case emailConstraint:
		return auth.ErrEmailTaken
	case phoneConstraint:
		return auth.ErrPhoneTaken
	default:
		return fmt.Errorf("%w: %s", auth.ErrConflict, pgErr.ConstraintName)
	}
}

// Update applies a partial update. When patch.RequireResetTicketHash is set
// the write only happens if the row still holds that hash unexpired;
// otherwise (or if the row is missing) it returns an error wrapping
// auth.ErrNotFound.
func (r *IdentityRepository) Update(ctx context.Context, id ulid.ULID, patch auth.IdentityPatch) error {
	if err := patch.Validate(); err != nil {
		return err //nolint:wrapcheck // already coded
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query, args := buildUpdate(id, patch, r.now().UTC())
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "update identity").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func buildUpdate(id ulid.ULID, patch auth.IdentityPatch, now time.Time) (string, []any) {
	args := []any{id.String()}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.CountryCode != nil {
		var cc *string
		if *patch.CountryCode != "" {
			cc = patch.CountryCode
		}
		set("country_code", cc)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.IsEmailVerified != nil {
		set("is_email_verified", *patch.IsEmailVerified)
	}
	if patch.IsPhoneVerified != nil {
		set("is_phone_verified", *patch.IsPhoneVerified)
	}
	if patch.SetResetTicket != nil {
		set("reset_ticket_hash", patch.SetResetTicket.Hash)
		set("reset_ticket_expires_at", patch.SetResetTicket.ExpiresAt)
	}
	if patch.ClearResetTicket {
		sets = append(sets, "reset_ticket_hash = NULL", "reset_ticket_expires_at = NULL")
	}
	set("updated_at", now)

	query := "UPDATE identities SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if patch.RequireResetTicketHash != "" {
		args = append(args, patch.RequireResetTicketHash, now)
		query += fmt.Sprintf(" AND reset_ticket_hash = $%d AND reset_ticket_expires_at > $%d", len(args)-1, len(args))
	}
	return query, args
}

func public(creds *auth.Credentials, err error) (*auth.Identity, error) {
	if err != nil {
		return nil, err
	}
	identity := creds.Identity
	return &identity, nil
}

// scanCredentials scans a single row into Credentials.
// Callers are responsible for handling pgx.ErrNoRows.
func scanCredentials(row pgx.Row) (*auth.Credentials, error) {
	var (
		idStr  string
		status string
		creds  auth.Credentials
	)
	err := row.Scan(
		&idStr,
		&creds.Email,
		&creds.PhoneNumber,
		&creds.CountryCode,
		&creds.PasswordHash,
		&status,
		&creds.IsEmailVerified,
		&creds.IsPhoneVerified,
		&creds.ResetTicketHash,
		&creds.ResetTicketExpiry,
		&creds.CreatedAt,
		&creds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan identity").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	creds.ID = id
	creds.Status = auth.Status(status)
	return &creds, nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
