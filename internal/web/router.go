// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package web is the HTTP boundary of the auth service: a chi router that
// decodes and validates requests, calls the auth core and wraps results in
// a JSON envelope.
package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatekeep/gatekeep/internal/observability"
)

// NewRouter mounts the auth and profile routes. metrics may be nil.
func NewRouter(h *Handler, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(propagateRequestID)
	r.Use(accessLog(logger, metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusNotFound, MsgNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusMethodNotAllowed, MsgMethodNotAllowed, nil)
	})

	bearer := RequireBearer(h.svc, logger)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.With(bearer).Post("/logout", h.Logout)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(bearer)
		r.Get("/profile", h.Profile)
		r.Patch("/profile", h.UpdateProfile)
	})

	return r
}
