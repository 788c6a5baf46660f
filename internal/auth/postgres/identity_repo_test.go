// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

var columns = []string{
	"id", "email", "phone_number", "country_code", "password_hash", "status",
	"is_email_verified", "is_phone_verified", "reset_ticket_hash",
	"reset_ticket_expires_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*IdentityRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewIdentityRepository(mock), mock
}

func strPtr(s string) *string { return &s }

func identityRow(id ulid.ULID, email *string, status string) *pgxmock.Rows {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(columns).AddRow(
		id.String(), email, (*string)(nil), strPtr("NG"), "digest", status,
		false, false, (*string)(nil), (*time.Time)(nil), now, now,
	)
}

func TestIdentityRepository_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("by email is case-insensitive", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
			WithArgs("Alice@X.com").
			WillReturnRows(identityRow(id, strPtr("alice@x.com"), "ACTIVE"))

		got, err := repo.FindByEmail(ctx, "Alice@X.com")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "alice@x.com", got.EmailValue())
		assert.Nil(t, got.PhoneNumber)
		assert.Equal(t, auth.StatusActive, got.Status)
	})

	t.Run("credentials carry the digest", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE phone_number = $1") + "$").
			WithArgs("08012345678").
			WillReturnRows(identityRow(id, nil, "BLOCKED"))

		got, err := repo.FindCredentialsByIdentifier(ctx, "08012345678")
		require.NoError(t, err)
		assert.Equal(t, "digest", got.PasswordHash)
		assert.True(t, got.IsBlocked())
	})

	t.Run("identifier with @ searches email only", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE LOWER(email) = LOWER($1)") + "$").
			WithArgs("victim@x.com").
			WillReturnRows(identityRow(id, strPtr("victim@x.com"), "ACTIVE"))

		got, err := repo.FindCredentialsByIdentifier(ctx, "victim@x.com")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := repo.FindByID(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "IDENTITY_NOT_FOUND")
	})

	t.Run("reset ticket lookup filters on expiry", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE reset_ticket_hash = $1 AND reset_ticket_expires_at > $2")).
			WithArgs("hash", now).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := repo.FindByResetTicket(ctx, "hash", now)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("query failure is wrapped", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE phone_number = $1")).
			WithArgs("0800").
			WillReturnError(assert.AnError)

		_, err := repo.FindByPhoneNumber(ctx, "0800")
		require.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestIdentityRepository_Create(t *testing.T) {
	ctx := context.Background()

	newCreds := func(t *testing.T) *auth.Credentials {
		t.Helper()
		creds, err := auth.NewCredentials("a@x.com", "0800", "NG", "digest")
		require.NoError(t, err)
		return creds
	}

	t.Run("inserts all columns", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		creds := newCreds(t)
		mock.ExpectExec("INSERT INTO identities").
			WithArgs(creds.ID.String(), creds.Email, creds.PhoneNumber, creds.CountryCode,
				"digest", "ACTIVE", false, false, creds.ResetTicketHash, creds.ResetTicketExpiry,
				creds.CreatedAt, creds.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, creds))
	})

	tests := []struct {
		constraint string
		want       error
	}{
		{emailConstraint, auth.ErrEmailTaken},
		{phoneConstraint, auth.ErrPhoneTaken},
		{"identities_pkey", auth.ErrConflict},
	}
	for _, tt := range tests {
		t.Run("unique violation on "+tt.constraint, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec("INSERT INTO identities").
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tt.constraint})

			err := repo.Create(ctx, newCreds(t))
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, auth.KindConflict, auth.KindOf(err))
		})
	}

	t.Run("other failures are not conflicts", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("INSERT INTO identities").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation})

		err := repo.Create(ctx, newCreds(t))
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestIdentityRepository_Update(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("writes only patched columns", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		cc := "GH"
		mock.ExpectExec(regexp.QuoteMeta("UPDATE identities SET country_code = $2, updated_at = $3 WHERE id = $1")).
			WithArgs(id.String(), &cc, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, id, auth.IdentityPatch{CountryCode: &cc}))
	})

	t.Run("redeem is conditional on the ticket hash", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		digest := "new-digest"
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE identities SET password_hash = $2, reset_ticket_hash = NULL, reset_ticket_expires_at = NULL, updated_at = $3 "+
				"WHERE id = $1 AND reset_ticket_hash = $4 AND reset_ticket_expires_at > $5")).
			WithArgs(id.String(), digest, pgxmock.AnyArg(), "ticket", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, id, auth.IdentityPatch{
			PasswordHash:           &digest,
			ClearResetTicket:       true,
			RequireResetTicketHash: "ticket",
		})
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("stores a reset ticket", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		expires := time.Now().Add(time.Hour)
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE identities SET reset_ticket_hash = $2, reset_ticket_expires_at = $3, updated_at = $4 WHERE id = $1")).
			WithArgs(id.String(), "hash", expires, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, id, auth.IdentityPatch{
			SetResetTicket: &auth.ResetTicket{Hash: "hash", ExpiresAt: expires},
		}))
	})

	t.Run("invalid patch never reaches the database", func(t *testing.T) {
		repo, _ := newMockRepo(t)
		err := repo.Update(ctx, id, auth.IdentityPatch{
			SetResetTicket:   &auth.ResetTicket{Hash: "h"},
			ClearResetTicket: true,
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "IDENTITY_PATCH_INVALID")
	})

	t.Run("exec failure is wrapped", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec("UPDATE identities").WillReturnError(assert.AnError)

		err := repo.Update(ctx, id, auth.IdentityPatch{})
		require.ErrorIs(t, err, assert.AnError)
		errutil.AssertErrorContext(t, err, "operation", "update identity")
	})
}

func TestIdentityRepository_QueryTimeout(t *testing.T) {
	ctx := context.Background()
	newRepo := func(t *testing.T) (*IdentityRepository, pgxmock.PgxPoolIface) {
		t.Helper()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mock.Close)
		return NewIdentityRepository(mock, WithQueryTimeout(20*time.Millisecond)), mock
	}

	t.Run("stalled lookup returns a deadline error", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
			WithArgs("a@x.com").
			WillReturnRows(identityRow(ulid.Make(), strPtr("a@x.com"), "ACTIVE")).
			WillDelayFor(time.Second)

		start := time.Now()
		_, err := repo.FindCredentialsByIdentifier(ctx, "a@x.com")
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})

	t.Run("stalled update returns a deadline error", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectExec("UPDATE identities").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1)).
			WillDelayFor(time.Second)

		err := repo.Update(ctx, ulid.Make(), auth.IdentityPatch{})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		errutil.AssertErrorCode(t, err, "IDENTITY_UPDATE_FAILED")
	})

	t.Run("non-positive timeout keeps the default", func(t *testing.T) {
		repo := NewIdentityRepository(nil, WithQueryTimeout(0))
		assert.Equal(t, DefaultQueryTimeout, repo.timeout)
	})
}
