// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package phone

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/constants"
	"github.com/taibuivan/helios/internal/platform/ctxutil"
)

// CodeDigits is the length of every issued code.
const CodeDigits = 6

const (
	codeTTL         = 5 * time.Minute
	verifiedTTL     = 24 * time.Hour
	maxCodeAttempts = 5
)

// Sender delivers a code to a handset.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log. It is the development stand-in for an
// SMS gateway.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, phone, code string) error {
	ctxutil.GetLogger(ctx).InfoContext(ctx, "phone_otp_issued",
		slog.String("phone", Mask(phone)),
		slog.String("code", code),
	)
	return nil
}

// pendingCode is the cached state of an outstanding code.
type pendingCode struct {
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier issues and checks one-time codes for phone numbers.
type Verifier struct {
	cache  cache.Cache
	sender Sender
	now    func() time.Time
}

// NewVerifier creates a verifier storing its state in c.
func NewVerifier(c cache.Cache, sender Sender) *Verifier {
	return &Verifier{cache: c, sender: sender, now: time.Now}
}

/*
SendOTP issues a fresh code for number, replacing any outstanding one.

Returns:
  - error: apperr.Internal if no code could be generated or delivered
*/
func (verifier *Verifier) SendOTP(ctx context.Context, number string) error {
	code, err := generateCode()
	if err != nil {
		return apperr.Internal(err)
	}

	pending := pendingCode{Code: code, ExpiresAt: verifier.now().Add(codeTTL)}
	cache.SetJSON(ctx, verifier.cache, codeKey(number), pending, codeTTL)

	if err := verifier.sender.SendCode(ctx, number, code); err != nil {
		verifier.cache.Delete(ctx, codeKey(number))
		return apperr.Internal(fmt.Errorf("phone: deliver code: %w", err))
	}
	return nil
}

/*
VerifyOTP checks code against the outstanding code for number.

A wrong code consumes one of five attempts and keeps the original expiry. The
code is discarded once the attempts are exhausted. A correct code is single
use.

Returns:
  - bool: true when the code matched
*/
func (verifier *Verifier) VerifyOTP(ctx context.Context, number, code string) (bool, error) {
	var pending pendingCode
	if !cache.GetJSON(ctx, verifier.cache, codeKey(number), &pending) {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		pending.Attempts++
		remaining := pending.ExpiresAt.Sub(verifier.now())
		if pending.Attempts >= maxCodeAttempts || remaining <= 0 {
			verifier.cache.Delete(ctx, codeKey(number))
		} else {
			cache.SetJSON(ctx, verifier.cache, codeKey(number), pending, remaining)
		}
		return false, nil
	}

	verifier.cache.Delete(ctx, codeKey(number))
	verifier.cache.Set(ctx, verifiedKey(number), "true", verifiedTTL)
	return true, nil
}

// IsPhoneVerified reports whether number completed verification recently.
func (verifier *Verifier) IsPhoneVerified(ctx context.Context, number string) (bool, error) {
	_, ok := verifier.cache.Get(ctx, verifiedKey(number))
	return ok, nil
}

func codeKey(number string) string     { return constants.RedisPrefixPhoneCode + number }
func verifiedKey(number string) string { return constants.RedisPrefixPhoneVerified + number }

func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("phone: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
