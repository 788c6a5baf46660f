// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Taxonomy sentinels. Errors returned by Service wrap exactly one of these
// (or none, for internal failures). Their messages are safe to show to callers.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrIdentifierRequired = fmt.Errorf("%w: email or phone number must be provided", ErrInvalidInput)
	ErrPasswordRequired   = fmt.Errorf("%w: password is required", ErrInvalidInput)
	ErrInvalidEmail       = fmt.Errorf("%w: email must contain '@'", ErrInvalidInput)
	ErrInvalidPhoneNumber = fmt.Errorf("%w: phone number must not contain '@'", ErrInvalidInput)
	ErrConflict           = errors.New("already registered")
	ErrEmailTaken         = fmt.Errorf("email %w", ErrConflict)
	ErrPhoneTaken         = fmt.Errorf("phone number %w", ErrConflict)
	ErrUnauthorized       = errors.New("invalid credentials")
	ErrInvalidResetTicket = errors.New("invalid or expired password reset token")
)

// Generic outcome messages.
const (
	MsgResetRequested = "If a user with this record exists, a reset link has been sent"
	MsgPasswordReset  = "Password reset successful"
)

// Kind classifies an error for the boundary layer.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// KindOf returns the taxonomy kind of err. Anything that does not wrap a
// taxonomy sentinel is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidResetTicket):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	for _, sentinel := range []error{
		ErrEmailTaken, ErrPhoneTaken, ErrConflict,
		ErrIdentifierRequired, ErrPasswordRequired,
		ErrInvalidEmail, ErrInvalidPhoneNumber, ErrInvalidInput,
		ErrUnauthorized, ErrInvalidResetTicket,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}
