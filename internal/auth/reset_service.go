// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// ResetService handles password reset tickets.
type ResetService struct {
	identities IdentityRepository
	hasher     PasswordHasher
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewResetService creates a new ResetService that discards delivery failures.
func NewResetService(identities IdentityRepository, hasher PasswordHasher, notifier Notifier) (*ResetService, error) {
	return NewResetServiceWithLogger(identities, hasher, notifier, slog.New(slog.DiscardHandler))
}

// NewResetServiceWithLogger creates a new ResetService that logs delivery failures.
func NewResetServiceWithLogger(identities IdentityRepository, hasher PasswordHasher, notifier Notifier, logger *slog.Logger) (*ResetService, error) {
	if identities == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("identity repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("logger is required")
	}
	return &ResetService{
		identities: identities,
		hasher:     hasher,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// RequestReset issues a ticket for the identity behind identifier and hands
// the plaintext to the notifier. An unknown identifier returns nil exactly
// like a known one and touches no state.
func (s *ResetService) RequestReset(ctx context.Context, identifier string) error {
	identity, err := s.identities.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "find identity").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	patch := IdentityPatch{
		SetResetTicket: &ResetTicket{Hash: hash, ExpiresAt: s.now().Add(ResetTokenExpiry)},
	}
	if err := s.identities.Update(ctx, identity.ID, patch); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store ticket").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.SendResetToken(ctx, identity, token); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "reset token delivery failed",
			oops.With("identity_id", identity.ID.String()).Wrap(err))
	}
	return nil
}

// Redeem sets a new password using a ticket. The password change and the
// ticket removal happen in one conditional write, so a ticket can succeed
// at most once even when redeemed concurrently. Wrong, expired and already
// used tickets all yield ErrInvalidResetTicket.
func (s *ResetService) Redeem(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Wrap(ErrPasswordRequired)
	}
	if token == "" {
		return oops.Code("RESET_TICKET_INVALID").Wrap(ErrInvalidResetTicket)
	}

	hash := HashResetToken(token)
	identity, err := s.identities.FindByResetTicket(ctx, hash, s.now())
	if errors.Is(err, ErrNotFound) {
		return oops.Code("RESET_TICKET_INVALID").Wrap(ErrInvalidResetTicket)
	}
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "find ticket").
			Wrap(err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	patch := IdentityPatch{
		PasswordHash:           &digest,
		ClearResetTicket:       true,
		RequireResetTicketHash: hash,
	}
	err = s.identities.Update(ctx, identity.ID, patch)
	if errors.Is(err, ErrNotFound) {
		return oops.Code("RESET_TICKET_INVALID").Wrap(ErrInvalidResetTicket)
	}
	if err != nil {
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "update password").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	return nil
}
