// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Response messages.
const (
	MsgInternalError    = "Internal server error"
	MsgInvalidJSON      = "Invalid JSON format in request body"
	MsgRegistered       = "User registered successfully"
	MsgLoggedIn         = "Login successful"
	MsgLoggedOut        = "Logout successful"
	MsgRefreshed        = "Token refreshed successfully"
	MsgProfileFetched   = "Profile fetched successfully"
	MsgProfileUpdated   = "Profile updated successfully"
	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Data       any       `json:"data,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, env Envelope) {
	env.Timestamp = time.Now().UTC()
	env.Path = r.URL.Path

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	//nolint:errcheck // client may disconnect
	_ = json.NewEncoder(w).Encode(env)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, r, Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func writeFailure(w http.ResponseWriter, r *http.Request, status int, message string, details []string) {
	writeJSON(w, r, Envelope{
		StatusCode: status,
		Message:    message,
		Errors:     details,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindBadRequest:
		return http.StatusBadRequest
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err and writes the failure envelope. Internal errors
// are logged with their oops context and reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeFailure(w, r, http.StatusBadRequest, verr.First(), verr.Messages)
		return
	}

	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
		writeFailure(w, r, http.StatusInternalServerError, MsgInternalError, nil)
		return
	}
	writeFailure(w, r, statusFor(kind), auth.PublicMessage(err), nil)
}
