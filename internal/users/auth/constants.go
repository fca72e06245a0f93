// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/helios/internal/platform/apperr"
)

// # Authentication Constraints

const (
	// RefreshTokenLength is the byte length of the random refresh token.
	RefreshTokenLength = 32

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// UserSnapshotTTL bounds how stale a cached user view may be.
	UserSnapshotTTL = time.Hour

	// LoginOTPTTL is how long an issued login OTP stays bound to an email.
	LoginOTPTTL = 5 * time.Minute

	// LoginVerifiedTTL is how long a verified OTP may wait for the login it unlocks.
	LoginVerifiedTTL = 10 * time.Minute

	// DefaultPhoneRegion applies when the policy names no region.
	DefaultPhoneRegion = "US"

	tokenTypeBearer = "Bearer"
)

// # Domain Errors

var (
	ErrInvalidCredentials = apperr.Unauthorized("Invalid login credentials")
	ErrAccountLocked      = apperr.Unauthorized("Account is temporarily locked due to too many failed login attempts")
	ErrAccountSuspended   = apperr.Unauthorized("Account is suspended")
	ErrOTPRequired        = apperr.Unauthorized("OTP verification required")
	ErrOTPExpired         = apperr.Unauthorized("OTP session expired, request a new code")
	ErrInvalidRefresh     = apperr.Unauthorized("Invalid or expired refresh token")
	ErrInvalidResetToken  = apperr.Unauthorized("Reset token is invalid or expired")
	ErrWrongPassword      = apperr.Unauthorized("Current password is incorrect")
	ErrPhoneUnverified    = apperr.PreconditionFailed("Phone number must be verified before registration")
	ErrUserNotFound       = apperr.NotFound("User")
)
