// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/constants"
	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/dberr"
	"github.com/taibuivan/helios/internal/platform/phone"
	"github.com/taibuivan/helios/pkg/pointer"
)

// PhoneVerifier is the phone-verification collaborator. [*phone.Verifier]
// satisfies it.
type PhoneVerifier interface {
	IsPhoneVerified(context context.Context, phone string) (bool, error)
	SendOTP(context context.Context, phone string) error
	VerifyOTP(context context.Context, phone, code string) (bool, error)
}

// ErrPhoneVerifierUnavailable is returned when no [PhoneVerifier] is configured.
var ErrPhoneVerifierUnavailable = errors.New("auth: phone verification is not configured")

// unavailablePhones stands in for a missing [PhoneVerifier]. No number ever
// counts as verified and no code can be sent.
type unavailablePhones struct{}

func (unavailablePhones) IsPhoneVerified(context.Context, string) (bool, error) { return false, nil }

func (unavailablePhones) SendOTP(context.Context, string) error {
	return apperr.Internal(ErrPhoneVerifierUnavailable)
}

func (unavailablePhones) VerifyOTP(context.Context, string, string) (bool, error) { return false, nil }

// OTPGate requires a phone OTP before a password login by email.
//
// # Flow
//  1. SendLoginOTP: login_email_otp:<email> -> phone (5 min), code sent to the phone.
//  2. VerifyLoginOTP: on a correct code, login_verified:<email> -> "true" (10 min)
//     and the mapping is dropped.
//  3. Login by email requires the flag and deletes it on success.
type OTPGate struct {
	users    UserRepository
	phones   PhoneVerifier
	cache    cache.Cache
	required bool
}

// NewOTPGate builds the gate. When required is false logins skip the check
// but the send/verify endpoints keep working.
func NewOTPGate(users UserRepository, phones PhoneVerifier, c cache.Cache, required bool) *OTPGate {
	return &OTPGate{users: users, phones: phones, cache: c, required: required}
}

func loginOTPKey(email string) string      { return constants.RedisPrefixLoginOTP + email }
func loginVerifiedKey(email string) string { return constants.RedisPrefixLoginVerified + email }

/*
SendLoginOTP sends a code to the phone on file for email.

Returns:
  - string: the masked phone, e.g. "******1234"
  - error: NotFound for an unknown email, Validation when no phone is on file
*/
func (gate *OTPGate) SendLoginOTP(context context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	user, err := gate.users.FindByEmail(context, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	number := pointer.Val(user.Phone)
	if number == "" {
		return "", apperr.ValidationError("No phone number on file for this account",
			apperr.FieldError{Field: FieldPhone, Message: "is not registered"})
	}

	if err := gate.phones.SendOTP(context, number); err != nil {
		return "", err
	}

	gate.cache.Set(context, loginOTPKey(email), number, LoginOTPTTL)
	return phone.Mask(number), nil
}

/*
VerifyLoginOTP checks a code for the phone bound to email by SendLoginOTP.

Returns:
  - bool: true when the code matched and the login flag was set
  - error: [ErrOTPExpired] when no code is outstanding
*/
func (gate *OTPGate) VerifyLoginOTP(context context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)

	number, ok := gate.cache.Get(context, loginOTPKey(email))
	if !ok {
		return false, ErrOTPExpired
	}

	verified, err := gate.phones.VerifyOTP(context, number, code)
	if err != nil {
		return false, err
	}
	if !verified {
		ctxutil.GetLogger(context).InfoContext(context, "login_otp_rejected", slog.String("phone", phone.Mask(number)))
		return false, nil
	}

	gate.cache.Set(context, loginVerifiedKey(email), "true", LoginVerifiedTTL)
	gate.cache.Delete(context, loginOTPKey(email))
	return true, nil
}

// Require fails with [ErrOTPRequired] unless a verified flag exists for email.
func (gate *OTPGate) Require(context context.Context, email string) error {
	if !gate.required {
		return nil
	}
	if _, ok := gate.cache.Get(context, loginVerifiedKey(email)); !ok {
		return ErrOTPRequired
	}
	return nil
}

// Consume deletes the verified flag so it cannot unlock a second login.
func (gate *OTPGate) Consume(context context.Context, email string) {
	if gate.required {
		gate.cache.Delete(context, loginVerifiedKey(email))
	}
}
