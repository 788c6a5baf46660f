// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// dummyPasswordHash is verified against when the identifier is unknown so
// that login takes the same time whether or not the account exists.
// It is not a credential and matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput is a pre-validated registration request.
type RegisterInput struct {
	Email       string
	PhoneNumber string
	CountryCode string
	Password    string
}

// ProfilePatch is the self-service subset of IdentityPatch.
type ProfilePatch struct {
	CountryCode *string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Identity *Identity
	Tokens   *TokenPair
}

// Service composes the credential store, hasher, token service and reset
// flow into the operations exposed to the boundary layer.
//
// Every error it returns either wraps one of the taxonomy sentinels
// (see KindOf) or is an internal failure.
type Service struct {
	identities IdentityRepository
	hasher     PasswordHasher
	tokens     *TokenService
	resets     *ResetService
	logger     *slog.Logger
}

// NewAuthService creates a new Service.
func NewAuthService(identities IdentityRepository, hasher PasswordHasher, tokens *TokenService, resets *ResetService) (*Service, error) {
	return NewAuthServiceWithLogger(identities, hasher, tokens, resets, slog.New(slog.DiscardHandler))
}

// NewAuthServiceWithLogger creates a new Service that logs best-effort failures.
func NewAuthServiceWithLogger(identities IdentityRepository, hasher PasswordHasher, tokens *TokenService, resets *ResetService, logger *slog.Logger) (*Service, error) {
	if identities == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("identity repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token service is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("reset service is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		identities: identities,
		hasher:     hasher,
		tokens:     tokens,
		resets:     resets,
		logger:     logger,
	}, nil
}

// Register creates an identity and starts its session.
//
// The existence checks are a fast reject only. Two concurrent registrations
// can both pass them; the store's unique indexes decide the winner and the
// loser gets the same conflict error as the pre-check.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.PhoneNumber)
	if email == "" && phone == "" {
		return nil, oops.Code("AUTH_IDENTIFIER_REQUIRED").Wrap(ErrIdentifierRequired)
	}
	if err := ValidateIdentifiers(email, phone); err != nil {
		return nil, oops.Code("AUTH_IDENTIFIER_INVALID").Wrap(err)
	}
	if in.Password == "" {
		return nil, oops.Code("AUTH_PASSWORD_REQUIRED").Wrap(ErrPasswordRequired)
	}

	if email != "" {
		if err := s.ensureAbsent(ctx, "email", email, s.identities.FindByEmail, ErrEmailTaken); err != nil {
			return nil, err
		}
	}
	if phone != "" {
		if err := s.ensureAbsent(ctx, "phone", phone, s.identities.FindByPhoneNumber, ErrPhoneTaken); err != nil {
			return nil, err
		}
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	creds, err := NewCredentials(email, phone, in.CountryCode, digest)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build identity").
			Wrap(err)
	}

	if err := s.identities.Create(ctx, creds); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictError(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create identity").
			Wrap(err)
	}

	identity := creds.Identity
	tokens, err := s.tokens.Issue(ctx, &identity)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue tokens").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	return &AuthResult{Identity: &identity, Tokens: tokens}, nil
}

func (s *Service) ensureAbsent(
	ctx context.Context,
	field, value string,
	find func(context.Context, string) (*Identity, error),
	taken error,
) error {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return oops.Code("AUTH_IDENTIFIER_TAKEN").With("field", field).Wrap(taken)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing "+field).
			Wrap(err)
	}
}

// conflictError rebuilds a store-level unique violation as the same error
// the pre-check would have produced.
func conflictError(err error) error {
	switch {
	case errors.Is(err, ErrPhoneTaken):
		return oops.Code("AUTH_IDENTIFIER_TAKEN").With("field", "phone").Wrap(ErrPhoneTaken)
	case errors.Is(err, ErrEmailTaken):
		return oops.Code("AUTH_IDENTIFIER_TAKEN").With("field", "email").Wrap(ErrEmailTaken)
	default:
		return oops.Code("AUTH_IDENTIFIER_TAKEN").Wrap(ErrConflict)
	}
}

// Login authenticates by email or phone number and starts a new session,
// superseding any existing one. Unknown identifiers, wrong passwords and
// blocked identities all produce the same error.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	creds, lookupErr := s.identities.FindCredentialsByIdentifier(ctx, NormalizeIdentifier(identifier))

	var targetHash string
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = creds.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find credentials").
			Wrap(lookupErr)
	}

	// Always verify so both branches cost the same.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("identity_id", creds.ID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid || creds.IsBlocked() {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(creds.PasswordHash) {
		s.upgradeHash(ctx, creds.ID, password)
	}

	identity := creds.Identity
	tokens, err := s.tokens.Issue(ctx, &identity)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue tokens").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	return &AuthResult{Identity: &identity, Tokens: tokens}, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrUnauthorized)
}

// upgradeHash re-hashes a legacy digest. Login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, id ulid.ULID, password string) {
	digest, err := s.hasher.Hash(password)
	if err == nil {
		err = s.identities.Update(ctx, id, IdentityPatch{PasswordHash: &digest})
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed",
			oops.With("identity_id", id.String()).Wrap(err))
	}
}

// Logout revokes the identity's refresh token. Access tokens already issued
// remain valid until they expire. Logging out twice succeeds.
func (s *Service) Logout(ctx context.Context, identityID ulid.ULID) error {
	if err := s.tokens.Revoke(ctx, identityID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// Refresh rotates a refresh token. Invalid, expired, superseded and revoked
// tokens all yield ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, _, err := s.tokens.Rotate(ctx, refreshToken)
	if err == nil {
		return pair, nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, oops.Code("AUTH_INVALID_REFRESH_TOKEN").Wrap(ErrUnauthorized)
	}
	return nil, oops.Code("AUTH_REFRESH_FAILED").Wrap(err)
}

// ForgotPassword starts the reset flow. The returned message is identical
// whether or not the identifier belongs to an identity.
func (s *Service) ForgotPassword(ctx context.Context, identifier string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", oops.Code("AUTH_IDENTIFIER_REQUIRED").Wrap(ErrIdentifierRequired)
	}
	if err := s.resets.RequestReset(ctx, identifier); err != nil {
		return "", oops.Code("AUTH_FORGOT_PASSWORD_FAILED").Wrap(err)
	}
	return MsgResetRequested, nil
}

// ResetPassword redeems a reset ticket.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	err := s.resets.Redeem(ctx, token, newPassword)
	switch {
	case err == nil:
		return MsgPasswordReset, nil
	case errors.Is(err, ErrInvalidResetTicket):
		return "", oops.Code("AUTH_INVALID_RESET_TICKET").Wrap(ErrInvalidResetTicket)
	case errors.Is(err, ErrPasswordRequired):
		return "", oops.Code("AUTH_PASSWORD_REQUIRED").Wrap(ErrPasswordRequired)
	default:
		return "", oops.Code("AUTH_RESET_PASSWORD_FAILED").Wrap(err)
	}
}

// Profile returns the public read of an authenticated identity. An identity
// that no longer exists is reported as unauthorized, not as missing.
func (s *Service) Profile(ctx context.Context, identityID ulid.ULID) (*Identity, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_IDENTITY_GONE").
			With("identity_id", identityID.String()).
			Wrap(ErrUnauthorized)
	}
	if err != nil {
		return nil, oops.Code("AUTH_PROFILE_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return identity, nil
}

// UpdateProfile applies a self-service change and returns the fresh profile.
func (s *Service) UpdateProfile(ctx context.Context, identityID ulid.ULID, patch ProfilePatch) (*Identity, error) {
	if patch.CountryCode != nil {
		trimmed := strings.TrimSpace(*patch.CountryCode)
		patch.CountryCode = &trimmed
	}

	err := s.identities.Update(ctx, identityID, IdentityPatch{CountryCode: patch.CountryCode})
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_IDENTITY_GONE").
			With("identity_id", identityID.String()).
			Wrap(ErrUnauthorized)
	}
	if err != nil {
		return nil, oops.Code("AUTH_PROFILE_UPDATE_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return s.Profile(ctx, identityID)
}

// VerifyAccessToken authenticates a bearer token for the boundary layer.
func (s *Service) VerifyAccessToken(token string) (*Claims, error) {
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_ACCESS_TOKEN").Wrap(ErrUnauthorized)
	}
	return claims, nil
}
