// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements credential registration, login, token rotation,
account lockout, the login OTP gate and password recovery.

# Architecture

  - [Service]: the orchestrator behind every public operation.
  - [Store]: repositories for accounts, sessions and reset tokens, plus [Store.InTx]
    for the atomic regions (registration, refresh rotation, reset confirmation).
  - [LockoutGuard] and [OTPGate]: the two checks a login passes before the
    password is verified.
  - [Handler]: the JSON transport mounted at /api/v1/auth.
*/
package auth

import (
	"time"

	"github.com/taibuivan/helios/internal/platform/sec"
	"github.com/taibuivan/helios/pkg/pointer"
)

// # Domain Entities

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	StatusPending   UserStatus = "PENDING"
	StatusActive    UserStatus = "ACTIVE"
	StatusSuspended UserStatus = "SUSPENDED"
	StatusLocked    UserStatus = "LOCKED"
	StatusDeleted   UserStatus = "DELETED"
)

// User is an account together with its credential and lockout state.
type User struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Phone         *string
	NationalID    *string
	Role          sec.UserRole
	Status        UserStatus
	LoginAttempts int
	LockedUntil   *time.Time
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLocked reports whether a timed lock is still in force at now.
// A lock in the past is the same as no lock.
func (user *User) IsLocked(now time.Time) bool {
	return user.LockedUntil != nil && user.LockedUntil.After(now)
}

// LockExpired reports whether a lock was set and has since elapsed.
func (user *User) LockExpired(now time.Time) bool {
	return user.LockedUntil != nil && !user.LockedUntil.After(now)
}

// View returns the public projection of the account.
func (user *User) View() *UserView {
	return &UserView{
		ID:            user.ID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Phone:         pointer.Val(user.Phone),
		Role:          user.Role,
		Status:        user.Status,
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		CreatedAt:     user.CreatedAt,
	}
}

// UserView is the account as returned to clients and cached as a snapshot.
// It never carries the password hash or lockout counters.
type UserView struct {
	ID            string       `json:"id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone,omitempty"`
	Role          sec.UserRole `json:"role"`
	Status        UserStatus   `json:"status"`
	EmailVerified bool         `json:"email_verified"`
	PhoneVerified bool         `json:"phone_verified"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Session is one issued refresh token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	TokenHash string    `json:"-"` // SHA-256 of the refresh token; the raw token is never stored.
	DeviceID  string    `json:"device_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

// PasswordResetToken is a single-use credential for password recovery.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// TokenPair is the credential set returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"-"`
}

// Registration is the result of a successful [Service.Register].
type Registration struct {
	TokenPair
	User *UserView `json:"user"`
}

// # Field Identifiers

// Field names used in validation details and request payloads.
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldNationalID      = "national_id"
	FieldRole            = "role"
	FieldUserType        = "user_type"
	FieldPassword        = "password"
	FieldLogin           = "login"
	FieldToken           = "token"
	FieldRefreshToken    = "refresh_token"
	FieldCode            = "code"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldMessage         = "message"
)
