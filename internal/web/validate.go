// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ValidationError carries one message per failed field, in field order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, ", ")
}

// First returns the message reported to the caller.
func (e *ValidationError) First() string {
	if len(e.Messages) == 0 {
		return "Bad request"
	}
	return e.Messages[0]
}

// errInvalidJSON is reported for bodies that do not decode.
var errInvalidJSON = &ValidationError{Messages: []string{MsgInvalidJSON}}

// Validator checks decoded request bodies against their validate tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator reporting fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s, returning a *ValidationError on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err //nolint:wrapcheck // invalid validation target is a programming error
	}

	out := &ValidationError{Messages: make([]string, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Messages = append(out.Messages, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be an email", field)
	case "min":
		return fmt.Sprintf("%s must be longer than or equal to %s characters", field, fe.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain '%s'", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// decode reads a JSON body into dst and validates it.
func (v *Validator) decode(r *http.Request, w http.ResponseWriter, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return v.Struct(dst)
}
