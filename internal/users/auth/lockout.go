// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/metrics"
)

// LockoutGuard enforces the timed lock after repeated failed logins.
//
// # State Machine
//
//	OK --failure--> OK (attempts+1) ... --attempts >= max--> LOCKED
//	LOCKED --locked_until elapsed, next login--> OK (counters reset)
//	any  --successful login or password reset--> OK (counters reset)
//
// The lock is expired lazily when the next login observes it; there is no
// background sweep.
type LockoutGuard struct {
	users        UserRepository
	audit        compliance.Logger
	metrics      *metrics.Metrics
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

// NewLockoutGuard creates a guard persisting its counters through users.
func NewLockoutGuard(users UserRepository, audit compliance.Logger, m *metrics.Metrics, maxAttempts int, lockDuration time.Duration) *LockoutGuard {
	return &LockoutGuard{
		users:        users,
		audit:        audit,
		metrics:      m,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		now:          time.Now,
	}
}

/*
Check rejects a login for a locked account before any password is verified.

An elapsed lock is cleared here so the account starts over with a full set of
attempts.

Returns:
  - error: [ErrAccountLocked] while the lock is in force
*/
func (guard *LockoutGuard) Check(context context.Context, user *User) error {
	now := guard.now()

	if user.Status == StatusLocked || user.IsLocked(now) {
		return ErrAccountLocked
	}

	if user.LockExpired(now) {
		if err := guard.users.ResetLoginAttempts(context, user.ID); err != nil {
			return err
		}
		user.LoginAttempts = 0
		user.LockedUntil = nil
	}

	return nil
}

/*
RecordFailure counts one failed login.

Returns:
  - int: attempts after the increment
  - error: [ErrAccountLocked] when this failure triggered the lock
*/
func (guard *LockoutGuard) RecordFailure(context context.Context, user *User) (int, error) {
	now := guard.now()

	failure, err := guard.users.RecordLoginFailure(context, user.ID, guard.maxAttempts, now.Add(guard.lockDuration))
	if err != nil {
		return 0, err
	}

	user.LoginAttempts = failure.Attempts
	user.LockedUntil = failure.LockedUntil

	if failure.LockedUntil == nil || !failure.LockedUntil.After(now) {
		return failure.Attempts, nil
	}

	ctxutil.GetLogger(context).WarnContext(context, "account_locked",
		slog.String("user_id", user.ID),
		slog.Int("attempts", failure.Attempts),
		slog.Time("locked_until", *failure.LockedUntil),
	)
	guard.metrics.Lockout()
	guard.audit.LogSecurityEvent(context, compliance.SecurityAccountLocked, compliance.SeverityHigh, map[string]any{
		"user_id":      user.ID,
		"attempts":     failure.Attempts,
		"locked_until": failure.LockedUntil.UTC().Format(time.RFC3339),
	})

	return failure.Attempts, ErrAccountLocked
}

// RecordSuccess resets the counters after a successful login.
func (guard *LockoutGuard) RecordSuccess(context context.Context, user *User) error {
	if user.LoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	if err := guard.users.ResetLoginAttempts(context, user.ID); err != nil {
		return err
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	return nil
}
