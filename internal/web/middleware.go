// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/observability"
)

type identityIDKey struct{}

// IdentityID returns the authenticated identity stored by RequireBearer.
func IdentityID(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(identityIDKey{}).(ulid.ULID)
	return id, ok
}

// AccessVerifier checks access tokens.
type AccessVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// errMissingBearer is reported when the Authorization header is absent or malformed.
var errMissingBearer = oops.Code("HTTP_BEARER_MISSING").Wrap(auth.ErrUnauthorized)

// RequireBearer authenticates the request with an access token taken from
// the Authorization header.
func RequireBearer(verifier AccessVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, r, logger, errMissingBearer)
				return
			}

			claims, err := verifier.VerifyAccessToken(strings.TrimSpace(token))
			if err != nil {
				logger.DebugContext(r.Context(), "access token rejected", "error", err)
				writeError(w, r, logger, err)
				return
			}
			id, err := claims.IdentityID()
			if err != nil {
				writeError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// propagateRequestID copies the chi request ID into the logging context
// and echoes it in the response.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
			r = r.WithContext(logging.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs each request and counts it by route pattern.
func accessLog(logger *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			metrics.RecordHTTP(route, status)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
