// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/observability"
)

// AuthService is the auth core as seen by the HTTP boundary.
type AuthService interface {
	AccessVerifier
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*auth.AuthResult, error)
	Logout(ctx context.Context, identityID ulid.ULID) error
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	ForgotPassword(ctx context.Context, identifier string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	Profile(ctx context.Context, identityID ulid.ULID) (*auth.Identity, error)
	UpdateProfile(ctx context.Context, identityID ulid.ULID, patch auth.ProfilePatch) (*auth.Identity, error)
}

var _ AuthService = (*auth.Service)(nil)

type registerRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,min=10,excludes=@"`
	CountryCode string `json:"countryCode" validate:"omitempty,min=2"`
	Password    string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password" validate:"required,min=6"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type forgotPasswordRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type profilePatchRequest struct {
	CountryCode *string `json:"countryCode" validate:"omitempty,min=2"`
}

// authResponse is the data of register and login responses.
type authResponse struct {
	User *auth.Identity `json:"user"`
	*auth.TokenPair
}

// identifier picks the email when given, the phone number otherwise.
func identifier(email, phoneNumber string) string {
	if email != "" {
		return email
	}
	return phoneNumber
}

// Handler serves the auth and profile endpoints.
type Handler struct {
	svc       AuthService
	validator *Validator
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(svc AuthService, metrics *observability.Metrics, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("HTTP_HANDLER_INVALID").Errorf("auth service is required")
	}
	if logger == nil {
		return nil, oops.Code("HTTP_HANDLER_INVALID").Errorf("logger is required")
	}
	return &Handler{
		svc:       svc,
		validator: NewValidator(),
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// fail records a failed operation and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	h.metrics.RecordAuth(operation, err)
	writeError(w, r, h.logger, err)
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		h.fail(w, r, "register", err)
		return
	}

	result, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		CountryCode: req.CountryCode,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	h.metrics.RecordAuth("register", nil)
	writeSuccess(w, r, http.StatusCreated, MsgRegistered, authResponse{User: result.Identity, TokenPair: result.Tokens})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		h.fail(w, r, "login", err)
		return
	}
	id := identifier(req.Email, req.PhoneNumber)
	if id == "" {
		h.fail(w, r, "login", auth.ErrIdentifierRequired)
		return
	}

	result, err := h.svc.Login(r.Context(), id, req.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	h.metrics.RecordAuth("login", nil)
	writeSuccess(w, r, http.StatusOK, MsgLoggedIn, authResponse{User: result.Identity, TokenPair: result.Tokens})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	h.metrics.RecordAuth("refresh", nil)
	writeSuccess(w, r, http.StatusOK, MsgRefreshed, pair)
}

// Logout handles POST /auth/logout for the bearer's identity.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityID(r.Context())
	if !ok {
		h.fail(w, r, "logout", errMissingBearer)
		return
	}

	if err := h.svc.Logout(r.Context(), id); err != nil {
		h.fail(w, r, "logout", err)
		return
	}

	h.metrics.RecordAuth("logout", nil)
	writeSuccess(w, r, http.StatusOK, MsgLoggedOut, nil)
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}

	msg, err := h.svc.ForgotPassword(r.Context(), identifier(req.Email, req.PhoneNumber))
	if err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}

	h.metrics.RecordAuth("forgot_password", nil)
	writeSuccess(w, r, http.StatusOK, msg, nil)
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}

	msg, err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}

	h.metrics.RecordAuth("reset_password", nil)
	writeSuccess(w, r, http.StatusOK, msg, nil)
}

// Profile handles GET /users/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityID(r.Context())
	if !ok {
		writeError(w, r, h.logger, errMissingBearer)
		return
	}

	identity, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, MsgProfileFetched, identity)
}

// UpdateProfile handles PATCH /users/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityID(r.Context())
	if !ok {
		writeError(w, r, h.logger, errMissingBearer)
		return
	}

	var req profilePatchRequest
	if err := h.validator.decode(r, w, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	identity, err := h.svc.UpdateProfile(r.Context(), id, auth.ProfilePatch{CountryCode: req.CountryCode})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, MsgProfileUpdated, identity)
}
