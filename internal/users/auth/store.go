// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Transactional Store

// Store groups the repositories of the auth domain and the transaction boundary
// shared by them.
//
// Lookups return [dberr.ErrNotFound] for missing rows. Accounts with status
// DELETED are invisible to every lookup.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	ResetTokens() ResetTokenRepository

	/*
		InTx runs fn inside one transaction. fn receives a Store bound to that
		transaction. Any returned error rolls everything back; nil commits.

		Parameters:
		  - context: context.Context
		  - fn: func(Store) error

		Returns:
		  - error: fn's error or a commit failure
	*/
	InTx(context context.Context, fn func(tx Store) error) error
}

// # User Data Access

// LoginFailure is the counter state after a failed login was recorded.
type LoginFailure struct {
	Attempts    int
	LockedUntil *time.Time
}

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {
	FindByID(context context.Context, id string) (*User, error)
	FindByEmail(context context.Context, email string) (*User, error)
	FindByPhone(context context.Context, phone string) (*User, error)

	/*
		Create persists a brand-new account.

		Returns:
		  - error: [*dberr.ConstraintError] on a duplicate email, phone or national id
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces the password hash. When resetLockout is set the
		failed-login counter and any lock are cleared in the same statement.
	*/
	UpdatePassword(context context.Context, userID, hash string, resetLockout bool) error

	/*
		RecordLoginFailure increments the failed-login counter in one atomic
		statement and sets locked_until to lockUntil once the counter reaches
		maxAttempts.

		Returns:
		  - LoginFailure: the counter and lock after the increment
	*/
	RecordLoginFailure(context context.Context, userID string, maxAttempts int, lockUntil time.Time) (LoginFailure, error)

	// ResetLoginAttempts zeroes the counter and clears locked_until.
	ResetLoginAttempts(context context.Context, userID string) error
}

// # Session Data Access

// SessionRepository defines the data access contract for refresh-token sessions.
type SessionRepository interface {
	Create(context context.Context, session *Session) error

	/*
		FindByTokenHash returns the unexpired session for a refresh-token digest
		together with its owner.

		Returns:
		  - error: [dberr.ErrNotFound] when absent, expired or owned by a deleted account
	*/
	FindByTokenHash(context context.Context, tokenHash string, now time.Time) (*Session, *User, error)

	/*
		Delete removes one session by id.

		Returns:
		  - bool: false when no row matched, e.g. it was already rotated away
	*/
	Delete(context context.Context, sessionID string) (bool, error)

	// DeleteForUser removes one session only if it belongs to userID.
	DeleteForUser(context context.Context, userID, sessionID string) (bool, error)

	// DeleteOthersForUser removes every session of userID except keepSessionID.
	DeleteOthersForUser(context context.Context, userID, keepSessionID string) (int64, error)

	// DeleteAllForUser removes every session of userID and reports how many.
	DeleteAllForUser(context context.Context, userID string) (int64, error)

	// ListForUser returns the unexpired sessions of userID, newest first.
	ListForUser(context context.Context, userID string, now time.Time) ([]*Session, error)

	// DeleteExpired purges sessions that expired before now.
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Reset Token Data Access

// ResetTokenRepository defines the contract for single-use password reset tokens.
type ResetTokenRepository interface {
	Create(context context.Context, token *PasswordResetToken) error

	// FindValid returns the unused, unexpired token with the given digest.
	FindValid(context context.Context, tokenHash string, now time.Time) (*PasswordResetToken, error)

	/*
		MarkUsed flips used to true only if the token is still unused and
		unexpired.

		Returns:
		  - bool: false when another request consumed it first
	*/
	MarkUsed(context context.Context, tokenID string, now time.Time) (bool, error)
}
