// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestOTPGate_FlagUnlocksOneLogin runs a full send/verify cycle and checks that
the verified flag is spent by the first successful login.
*/
func TestOTPGate_FlagUnlocksOneLogin(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")
	context := context.Background()

	_, err := f.login("a@x.com", testPassword)
	require.ErrorIs(t, err, ErrOTPRequired)

	masked, err := f.service.SendLoginOTP(context, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "******0000", masked)
	assert.Equal(t, []string{"+16502530000"}, f.phones.sent)

	verified, err := f.service.VerifyLoginOTP(context, "A@x.com", testCode)
	require.NoError(t, err)
	require.True(t, verified)

	_, err = f.login("a@x.com", testPassword)
	require.NoError(t, err)

	_, err = f.login("a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrOTPRequired)
}

func TestOTPGate_WrongCode(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")
	context := context.Background()

	_, err := f.service.SendLoginOTP(context, "a@x.com")
	require.NoError(t, err)

	verified, err := f.service.VerifyLoginOTP(context, "a@x.com", "000000")
	require.NoError(t, err)
	assert.False(t, verified)

	_, err = f.login("a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrOTPRequired)
}

func TestOTPGate_VerifyWithoutPendingCode(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")
	context := context.Background()

	_, err := f.service.VerifyLoginOTP(context, "a@x.com", testCode)
	assert.ErrorIs(t, err, ErrOTPExpired)

	_, err = f.service.SendLoginOTP(context, "a@x.com")
	require.NoError(t, err)
	f.redis.FastForward(LoginOTPTTL + time.Second)

	_, err = f.service.VerifyLoginOTP(context, "a@x.com", testCode)
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPGate_VerifiedFlagExpires(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")
	context := context.Background()

	_, err := f.service.SendLoginOTP(context, "a@x.com")
	require.NoError(t, err)
	verified, err := f.service.VerifyLoginOTP(context, "a@x.com", testCode)
	require.NoError(t, err)
	require.True(t, verified)

	f.redis.FastForward(LoginVerifiedTTL + time.Second)

	_, err = f.login("a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrOTPRequired)
}

func TestOTPGate_SendRefusals(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "nophone@x.com", "")
	context := context.Background()

	_, err := f.service.SendLoginOTP(context, "ghost@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.service.SendLoginOTP(context, "nophone@x.com")
	requireAppError(t, err, "VALIDATION_ERROR")

	f.register(t, "a@x.com", "6502530000")
	f.phones.sendErr = errors.New("gateway down")
	_, err = f.service.SendLoginOTP(context, "a@x.com")
	assert.Error(t, err)

	// A failed send leaves nothing to verify.
	_, err = f.service.VerifyLoginOTP(context, "a@x.com", testCode)
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPGate_FailedPasswordKeepsFlag(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")
	context := context.Background()

	_, err := f.service.SendLoginOTP(context, "a@x.com")
	require.NoError(t, err)
	_, err = f.service.VerifyLoginOTP(context, "a@x.com", testCode)
	require.NoError(t, err)

	_, err = f.login("a@x.com", "Wr0ng!Password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.login("a@x.com", testPassword)
	assert.NoError(t, err)
}

func TestOTPGate_PhoneLoginSkipsGate(t *testing.T) {
	f := newFixture(t, withOTP)
	f.register(t, "a@x.com", "6502530000")

	_, err := f.login("650-253-0000", testPassword)
	assert.NoError(t, err)
}

func TestOTPGate_Disabled(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "6502530000")

	_, err := f.login("a@x.com", testPassword)
	require.NoError(t, err)

	// The endpoints keep working even when logins do not require them.
	_, err = f.service.SendLoginOTP(context.Background(), "a@x.com")
	require.NoError(t, err)
	verified, err := f.service.VerifyLoginOTP(context.Background(), "a@x.com", testCode)
	require.NoError(t, err)
	assert.True(t, verified)
}
