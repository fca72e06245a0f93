// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTokenService(t *testing.T, issuer, audience string) *TokenService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewTokenServiceFromKey(key, issuer, audience)
}

/*
TestTokenService_RoundTrip verifies that issued claims survive verification.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service := newTestTokenService(t, "iss", "aud")

	token, err := service.GenerateAccessToken(AccessSubject{
		UserID:    "user-1",
		Email:     "a@x.com",
		Role:      RoleContractor,
		SessionID: "session-1",
	}, time.Minute)
	require.NoError(t, err)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "CONTRACTOR", claims.Role)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.NotNil(t, claims.IssuedAt)
}

/*
TestTokenService_Expired rejects tokens past their expiry.
*/
func TestTokenService_Expired(t *testing.T) {
	service := newTestTokenService(t, "iss", "aud")
	service.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := service.GenerateAccessToken(AccessSubject{UserID: "u", SessionID: "s"}, time.Minute)
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.VerifyToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

/*
TestTokenService_IssuerAudience rejects tokens minted for another issuer or audience.
*/
func TestTokenService_IssuerAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	minter := NewTokenServiceFromKey(key, "other-issuer", "aud")
	token, err := minter.GenerateAccessToken(AccessSubject{UserID: "u", SessionID: "s"}, time.Minute)
	require.NoError(t, err)

	_, err = NewTokenServiceFromKey(key, "iss", "aud").VerifyToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	minter = NewTokenServiceFromKey(key, "iss", "other-audience")
	token, err = minter.GenerateAccessToken(AccessSubject{UserID: "u", SessionID: "s"}, time.Minute)
	require.NoError(t, err)

	_, err = NewTokenServiceFromKey(key, "iss", "aud").VerifyToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

/*
TestTokenService_ForeignKey rejects tokens signed by a different key.
*/
func TestTokenService_ForeignKey(t *testing.T) {
	minter := newTestTokenService(t, "iss", "aud")
	verifier := newTestTokenService(t, "iss", "aud")

	token, err := minter.GenerateAccessToken(AccessSubject{UserID: "u", SessionID: "s"}, time.Minute)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestTokenService_RequiresSession(t *testing.T) {
	service := newTestTokenService(t, "iss", "aud")
	_, err := service.GenerateAccessToken(AccessSubject{UserID: "u"}, time.Minute)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	hasher := PasswordHasher{Cost: bcrypt.MinCost}

	hash, err := hasher.Hash("Str0ngP@ss!")
	require.NoError(t, err)

	assert.NotEqual(t, "Str0ngP@ss!", hash)
	assert.True(t, hasher.Verify("Str0ngP@ss!", hash))
	assert.False(t, hasher.Verify("str0ngP@ss!", hash))
}

func TestSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 43)
	assert.Len(t, HashToken(first), 64)
	assert.Equal(t, HashToken(first), HashToken(first))
}

func TestUserRole(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleUser.AtLeast(RoleContractor))
	assert.True(t, RoleContractor.SelfAssignable())
	assert.False(t, RoleAdmin.SelfAssignable())
	assert.False(t, UserRole("ROOT").Valid())
}
