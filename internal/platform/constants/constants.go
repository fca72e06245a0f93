// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuers, headers and cache key prefixes.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "helios-auth"
	AppVersion = "0.3.0-dev"

	// MetricsNamespace prefixes every Prometheus series exported by the service.
	MetricsNamespace = "helios_auth"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the default 'iss' claim in JWTs.
	AuthIssuer = "auth.helios.energy"

	// AuthAudience is the default 'aud' claim in JWTs.
	AuthAudience = "helios-api"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
	HeaderRetryAfter    = "Retry-After"
)

// # JSON Field Identifiers

const (
	FieldStatus = "status"
	FieldChecks = "checks"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisPrefixUserSnapshot keys the cached public view of a user.
	RedisPrefixUserSnapshot = "auth:user:"

	// RedisPrefixLoginOTP maps a normalized email to the phone an OTP was sent to.
	RedisPrefixLoginOTP = "login_email_otp:"

	// RedisPrefixLoginVerified marks an email whose second factor is satisfied.
	RedisPrefixLoginVerified = "login_verified:"

	// RedisPrefixPhoneCode holds the pending code sent to a phone number.
	RedisPrefixPhoneCode = "phone:otp:"

	// RedisPrefixPhoneVerified marks a phone number as verified.
	RedisPrefixPhoneVerified = "phone:verified:"
)
