// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// Services run the full rule set. Handlers only check that required fields are
// present; storage never validates.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/taibuivan/helios/internal/platform/apperr"
)

var (
	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Email fails if the value is not a bare RFC 5322 address (no display name).
func (v *Validator) Email(field, value string) *Validator {
	if address, err := mail.ParseAddress(value); err != nil || address.Address != value {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// # Password Policy

const (
	// PasswordMinLength is the minimum number of characters in a password.
	PasswordMinLength = 8
	// PasswordMaxLength caps input length; bcrypt ignores bytes past 72.
	PasswordMaxLength = 72
)

// Password fails unless the value satisfies the password strength policy:
// 8-72 characters with at least one upper-case letter, one lower-case letter,
// one digit and one symbol.
func (v *Validator) Password(field, value string) *Validator {
	if problem := PasswordProblem(value); problem != "" {
		v.add(field, problem)
	}
	return v
}

// PasswordProblem describes the first policy rule value violates, or returns
// an empty string for a strong password.
func PasswordProblem(value string) string {
	length := utf8.RuneCountInString(value)
	if length < PasswordMinLength {
		return fmt.Sprintf("Minimum %d characters", PasswordMinLength)
	}
	if len(value) > PasswordMaxLength {
		return fmt.Sprintf("Maximum %d bytes", PasswordMaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return "Must contain an upper-case letter"
	case !hasLower:
		return "Must contain a lower-case letter"
	case !hasDigit:
		return "Must contain a digit"
	case !hasSymbol:
		return "Must contain a symbol"
	}
	return ""
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("phone", err != nil, "must be a valid phone number")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method. Call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
