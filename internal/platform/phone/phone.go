// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package phone normalizes phone numbers and implements the phone-verification
collaborator used by registration and the login OTP gate.

# Verification Lifecycle

 1. [Verifier.SendOTP] stores a 6-digit code under phone:otp:<phone> for five
    minutes and hands it to a [Sender].
 2. [Verifier.VerifyOTP] compares the submitted code in constant time. A match
    deletes the code and marks phone:verified:<phone> for 24 hours.
 3. [Verifier.IsPhoneVerified] reports whether that marker exists.

State lives in the fail-open cache, so an unavailable cache reads as
"unverified" and never as "verified".
*/
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidNumber is returned when a number cannot be normalized.
var ErrInvalidNumber = errors.New("phone: invalid number")

/*
Normalize converts a user-entered number to E.164.

Numbers without a country code are read in the national format of region,
so trunk prefixes are dropped ("07912 345678" in GB becomes "+447912345678").
Anything the numbering plan does not allocate is rejected.

Parameters:
  - raw: The number as typed
  - region: ISO 3166 alpha-2 region, e.g. "US"

Returns:
  - string: The E.164 form
  - error: [ErrInvalidNumber] when the number is malformed or unallocated
*/
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidNumber
	}

	number, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// IsSupportedRegion reports whether region is known to the numbering plan.
func IsSupportedRegion(region string) bool {
	return phonenumbers.GetSupportedRegions()[strings.ToUpper(region)]
}

// Mask hides all but the last four digits, e.g. "******1234".
func Mask(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", 6) + number[len(number)-4:]
}
