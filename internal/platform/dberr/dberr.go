// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// Classification is driven by the structured SQLSTATE carried by
// [pgconn.PgError], never by the text of the error message.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/helios/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// ConstraintError reports an integrity-constraint violation with the offending
// constraint identified as data.
type ConstraintError struct {
	// Code is the SQLSTATE, e.g. [pgerrcode.UniqueViolation].
	Code string
	// Table is the table the constraint belongs to, if reported.
	Table string
	// Constraint is the name of the violated constraint (e.g. "account_email_key").
	Constraint string
	// Cause is the driver error.
	Cause error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %q violated (sqlstate %s)", e.Constraint, e.Code)
}

func (e *ConstraintError) Unwrap() error { return e.Cause }

// IsUnique reports whether the violation is a duplicate-key error.
func (e *ConstraintError) IsUnique() bool {
	return e.Code == pgerrcode.UniqueViolation
}

// UniqueViolation builds a [ConstraintError] for a duplicate-key violation on the
// named constraint. Storage fakes use it to mimic the PostgreSQL driver.
func UniqueViolation(constraint string) *ConstraintError {
	return &ConstraintError{Code: pgerrcode.UniqueViolation, Constraint: constraint}
}

// AsConstraint extracts a [ConstraintError] from err, translating a raw
// [pgconn.PgError] integrity violation when necessary.
func AsConstraint(err error) (*ConstraintError, bool) {
	var constraintErr *ConstraintError
	if errors.As(err, &constraintErr) {
		return constraintErr, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		return &ConstraintError{
			Code:       pgErr.Code,
			Table:      pgErr.TableName,
			Constraint: pgErr.ConstraintName,
			Cause:      err,
		}, true
	}

	return nil, false
}

// Wrap inspects a database error and wraps it into a meaningful error.
// It hides internal database details from the client while classifying the error type:
//
//   - no rows            -> [ErrNotFound]
//   - integrity failures -> [*ConstraintError] (callers map it to a field-level conflict)
//   - anything else      -> fmt-wrapped with the action for server-side logs
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	if constraintErr, ok := AsConstraint(err); ok {
		return constraintErr
	}

	return fmt.Errorf("%s: %w", action, err)
}
