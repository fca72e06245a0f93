// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/helios/internal/platform/dberr"
)

func TestWrap_NoRows(t *testing.T) {
	err := dberr.Wrap(fmt.Errorf("scan: %w", pgx.ErrNoRows), "find_user")
	assert.Same(t, dberr.ErrNotFound, err)
}

func TestWrap_UniqueViolationFromDriver(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		TableName:      "account",
		ConstraintName: "account_email_key",
		Message:        "duplicate key value violates unique constraint",
	}

	err := dberr.Wrap(fmt.Errorf("insert: %w", pgErr), "create_user")

	constraintErr, ok := dberr.AsConstraint(err)
	require.True(t, ok)
	assert.True(t, constraintErr.IsUnique())
	assert.Equal(t, "account_email_key", constraintErr.Constraint)
	assert.Equal(t, "account", constraintErr.Table)
	assert.ErrorIs(t, err, pgErr)
}

func TestWrap_NonConstraintDriverError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.QueryCanceled}

	err := dberr.Wrap(pgErr, "create_user")

	_, ok := dberr.AsConstraint(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "create_user")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "noop"))
}

func TestUniqueViolation(t *testing.T) {
	err := error(dberr.UniqueViolation("account_phone_key"))

	constraintErr, ok := dberr.AsConstraint(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	assert.True(t, constraintErr.IsUnique())
	assert.Equal(t, "account_phone_key", constraintErr.Constraint)
	assert.False(t, errors.Is(err, dberr.ErrNotFound))
}
