// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/cache"
)

// Token defaults.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultTokenIssuer     = "gatekeep"
)

// TokenConfig holds the signing parameters for both token kinds.
type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
}

// Validate checks that both token kinds are usable and independent.
func (c TokenConfig) Validate() error {
	if len(c.AccessSecret) == 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("access token secret is required")
	}
	if len(c.RefreshSecret) == 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh token secret is required")
	}
	if bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").With("ttl", c.AccessTTL).Errorf("access token ttl must be positive")
	}
	if c.RefreshTTL <= 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").With("ttl", c.RefreshTTL).Errorf("refresh token ttl must be positive")
	}
	return nil
}

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IdentityID parses the subject claim.
func (c *Claims) IdentityID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_INVALID_SUBJECT").With("subject", c.Subject).Wrap(ErrUnauthorized)
	}
	return id, nil
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// IdentityFinder loads the public read of an identity.
type IdentityFinder interface {
	FindByID(ctx context.Context, id ulid.ULID) (*Identity, error)
}

// TokenService issues, rotates and revokes session tokens.
//
// Each identity has at most one live refresh token, stored under
// cache.RefreshTokenKey. Issuing overwrites the slot, rotating replaces it,
// revoking deletes it. Access tokens are never stored and stay valid until
// they expire.
type TokenService struct {
	cfg        TokenConfig
	cache      cache.Store
	identities IdentityFinder
	now        func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for signing and verification.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg TokenConfig, store cache.Store, identities IdentityFinder, opts ...TokenOption) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("cache store is required")
	}
	if identities == nil {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("identity finder is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}

	s := &TokenService{
		cfg:        cfg,
		cache:      store,
		identities: identities,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints a new pair for identity and makes its refresh token the only
// live one, silently superseding any previous session.
func (s *TokenService) Issue(ctx context.Context, identity *Identity) (*TokenPair, error) {
	if identity == nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").Errorf("identity is required")
	}

	now := s.now()
	subject := identity.ID.String()

	access, accessExp, err := s.sign(subject, identity.EmailValue(), now, s.cfg.AccessTTL, s.cfg.AccessSecret)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("kind", "access").Wrap(err)
	}
	refresh, refreshExp, err := s.sign(subject, identity.EmailValue(), now, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("kind", "refresh").Wrap(err)
	}

	if err := s.cache.Set(ctx, cache.RefreshTokenKey(subject), refresh, s.cfg.RefreshTTL); err != nil {
		return nil, oops.Code("TOKEN_PERSIST_FAILED").
			With("identity_id", subject).
			Wrap(err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair. Tokens that fail
// verification, were superseded by a newer login or rotation, or were
// revoked yield an error wrapping ErrUnauthorized.
func (s *TokenService) Rotate(ctx context.Context, presented string) (*TokenPair, *Identity, error) {
	claims, err := s.parse(presented, s.cfg.RefreshSecret)
	if err != nil {
		return nil, nil, err
	}
	id, err := claims.IdentityID()
	if err != nil {
		return nil, nil, err
	}

	stored, ok := s.cache.Get(ctx, cache.RefreshTokenKey(claims.Subject))
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return nil, nil, oops.Code("TOKEN_REVOKED").
			With("identity_id", claims.Subject).
			Wrap(ErrUnauthorized)
	}

	identity, err := s.identities.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, oops.Code("TOKEN_SUBJECT_UNKNOWN").
			With("identity_id", claims.Subject).
			Wrap(ErrUnauthorized)
	}
	if err != nil {
		return nil, nil, oops.Code("TOKEN_ROTATE_FAILED").
			With("operation", "find identity").
			With("identity_id", claims.Subject).
			Wrap(err)
	}
	if identity.IsBlocked() {
		return nil, nil, oops.Code("TOKEN_SUBJECT_BLOCKED").
			With("identity_id", claims.Subject).
			Wrap(ErrUnauthorized)
	}

	pair, err := s.Issue(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return pair, identity, nil
}

// Revoke ends the identity's session. Revoking an identity with no live
// session succeeds.
func (s *TokenService) Revoke(ctx context.Context, identityID ulid.ULID) error {
	if _, err := s.cache.Delete(ctx, cache.RefreshTokenKey(identityID.String())); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// VerifyAccess checks an access token's signature, issuer and expiry.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.parse(token, s.cfg.AccessSecret)
}

func (s *TokenService) sign(subject, email string, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err //nolint:wrapcheck // wrapped by caller
	}
	return signed, expiresAt, nil
}

func (s *TokenService) parse(token string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_EMPTY").Wrap(ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", err.Error()).
			Wrap(ErrUnauthorized)
	}
	return claims, nil
}
