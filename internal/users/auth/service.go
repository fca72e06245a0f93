// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/dberr"
	"github.com/taibuivan/helios/internal/platform/metrics"
	"github.com/taibuivan/helios/internal/platform/phone"
	"github.com/taibuivan/helios/internal/platform/sec"
	"github.com/taibuivan/helios/internal/platform/validate"
	"github.com/taibuivan/helios/pkg/pointer"
	"github.com/taibuivan/helios/pkg/uuidv7"
)

// # Contracts & Types

// TokenIssuer signs access tokens. [*sec.TokenService] satisfies it.
type TokenIssuer interface {
	GenerateAccessToken(subject sec.AccessSubject, timeToLive time.Duration) (string, error)
}

// PasswordHasher hashes and verifies passwords. [sec.PasswordHasher] satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Dependencies are the collaborators of [Service].
type Dependencies struct {
	Store    Store
	Tokens   TokenIssuer
	Hasher   PasswordHasher
	Cache    cache.Cache
	Phones   PhoneVerifier
	Audit    compliance.Logger
	Notifier ResetNotifier
	Metrics  *metrics.Metrics
}

// Policy holds the tunable authentication rules.
type Policy struct {
	MaxLoginAttempts         int
	LockDuration             time.Duration
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	ResetTokenTTL            time.Duration
	RequirePhoneVerification bool
	LoginOTPRequired         bool

	// PhoneRegion is the region assumed for numbers without a country code.
	PhoneRegion string
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// rotation or reset logic must be reviewed by the security team.
type Service struct {
	store     Store
	tokens    TokenIssuer
	hasher    PasswordHasher
	snapshots snapshotCache
	phones    PhoneVerifier
	audit     compliance.Logger
	notifier  ResetNotifier
	metrics   *metrics.Metrics
	lockout   *LockoutGuard
	otp       *OTPGate
	policy    Policy
	now       func() time.Time
}

// NewService wires the orchestrator and its guards.
func NewService(deps Dependencies, policy Policy) *Service {
	if deps.Audit == nil {
		deps.Audit = compliance.Noop{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoop()
	}
	if deps.Phones == nil {
		deps.Phones = unavailablePhones{}
	}
	if deps.Notifier == nil {
		deps.Notifier = unavailableNotifier{}
	}
	if policy.PhoneRegion == "" {
		policy.PhoneRegion = DefaultPhoneRegion
	}

	users := deps.Store.Users()
	return &Service{
		store:     deps.Store,
		tokens:    deps.Tokens,
		hasher:    deps.Hasher,
		snapshots: snapshotCache{cache: deps.Cache},
		phones:    deps.Phones,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		lockout:   NewLockoutGuard(users, deps.Audit, deps.Metrics, policy.MaxLoginAttempts, policy.LockDuration),
		otp:       NewOTPGate(users, deps.Phones, deps.Cache, policy.LoginOTPRequired),
		policy:    policy,
		now:       time.Now,
	}
}

// SessionMeta describes the client a session is issued to.
type SessionMeta struct {
	DeviceID  string
	UserAgent string
	IPAddress string
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Phone      string
	NationalID string
	Role       string
	UserType   string
	SessionMeta
}

/*
Register creates a PENDING account and signs it in.

The account row and its first session are written in one transaction, so a
failure leaves neither behind.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Registration: token pair and public user view
  - error: Validation, Conflict (naming the field), PreconditionFailed (unverified phone)
*/
func (service *Service) Register(context context.Context, input RegisterInput) (result *Registration, err error) {
	defer func() { service.metrics.Operation("register", err) }()

	role, err := resolveRole(input.Role, input.UserType)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		MaxLen(FieldFirstName, input.FirstName, 100).
		Required(FieldLastName, input.LastName).
		MaxLen(FieldLastName, input.LastName, 100).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, strings.TrimSpace(input.Email)).
		Password(FieldPassword, input.Password).
		MaxLen(FieldNationalID, input.NationalID, 64)

	var normalizedPhone string
	if strings.TrimSpace(input.Phone) != "" {
		normalizedPhone, err = phone.Normalize(input.Phone, service.policy.PhoneRegion)
		validator.Custom(FieldPhone, err != nil, "must be a valid phone number")
	}

	if err := validator.Err(); err != nil {
		return nil, err
	}

	phoneVerified := false
	if normalizedPhone != "" {
		phoneVerified, err = service.checkPhone(context, normalizedPhone)
		if err != nil {
			return nil, err
		}
	}

	hash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		ID:            uuidv7.New(),
		FirstName:     normalizeName(input.FirstName),
		LastName:      normalizeName(input.LastName),
		Email:         normalizeEmail(input.Email),
		PasswordHash:  hash,
		Role:          role,
		Status:        StatusPending,
		PhoneVerified: phoneVerified,
		CreatedAt:     service.now().UTC(),
	}
	if normalizedPhone != "" {
		user.Phone = pointer.To(normalizedPhone)
	}
	if nationalID := strings.TrimSpace(input.NationalID); nationalID != "" {
		user.NationalID = pointer.To(nationalID)
	}

	var pair *TokenPair
	err = service.store.InTx(context, func(tx Store) error {
		if err := tx.Users().Create(context, user); err != nil {
			return conflictFromConstraint(err)
		}

		issued, err := service.issueSession(context, tx.Sessions(), user, input.SessionMeta)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	service.snapshots.put(context, user)
	service.audit.LogAuthEvent(context, compliance.EventUserRegistration, user.ID, map[string]any{
		"role":           string(user.Role),
		"phone_verified": user.PhoneVerified,
		"ip_address":     input.IPAddress,
	})

	return &Registration{TokenPair: *pair, User: user.View()}, nil
}

// checkPhone consults the verifier. A verifier error counts as unverified.
func (service *Service) checkPhone(context context.Context, number string) (bool, error) {
	logger := ctxutil.GetLogger(context)

	verified, err := service.phones.IsPhoneVerified(context, number)
	if err != nil {
		logger.WarnContext(context, "phone_verification_lookup_failed", slog.Any("error", err))
		verified = false
	}

	if verified {
		return true, nil
	}
	if service.policy.RequirePhoneVerification {
		return false, ErrPhoneUnverified
	}

	logger.InfoContext(context, "registering_with_unverified_phone", slog.String("phone", phone.Mask(number)))
	return false, nil
}

// resolveRole picks the self-assigned role. userType "contractor" wins over role.
func resolveRole(role, userType string) (sec.UserRole, error) {
	if strings.EqualFold(strings.TrimSpace(userType), "contractor") {
		return sec.RoleContractor, nil
	}

	role = strings.TrimSpace(role)
	if role == "" {
		return sec.RoleUser, nil
	}

	resolved := sec.UserRole(strings.ToUpper(role))
	if !resolved.SelfAssignable() {
		return "", validate.RequiredError(FieldRole, "must be USER or CONTRACTOR")
	}
	return resolved, nil
}

// conflictFromConstraint turns a duplicate-key violation into a conflict that
// names the field category and never the constraint.
func conflictFromConstraint(err error) error {
	constraintErr, ok := dberr.AsConstraint(err)
	if !ok || !constraintErr.IsUnique() {
		return err
	}

	switch constraintErr.Constraint {
	case "account_email_key":
		return apperr.ConflictField(FieldEmail, "Email is already registered")
	case "account_phone_key":
		return apperr.ConflictField(FieldPhone, "Phone number is already registered")
	case "account_nationalid_key":
		return apperr.ConflictField(FieldNationalID, "National ID is already registered")
	default:
		return apperr.Conflict("Account already exists")
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login    string // Email or phone number
	Password string
	SessionMeta
}

/*
Login verifies credentials and opens a new session.

# Order of checks
 1. Resolve the account (unknown accounts get the generic credential error).
 2. Suspended and locked accounts are refused.
 3. Email logins need a verified OTP flag.
 4. The password is verified; a mismatch feeds the lockout counter.

Concurrent logins create independent sessions.

Returns:
  - *TokenPair: fresh access and refresh tokens
  - error: Unauthorized in every refusal case
*/
func (service *Service) Login(context context.Context, input LoginInput) (pair *TokenPair, err error) {
	defer func() { service.metrics.Operation("login", err) }()

	identifier := strings.TrimSpace(input.Login)
	byEmail := strings.Contains(identifier, "@")

	user, err := service.findLoginUser(context, identifier, byEmail)
	if err != nil {
		return nil, err
	}

	if user.Status == StatusSuspended {
		return nil, ErrAccountSuspended
	}

	if err := service.lockout.Check(context, user); err != nil {
		return nil, err
	}

	if byEmail {
		if err := service.otp.Require(context, user.Email); err != nil {
			return nil, err
		}
	}

	if !service.hasher.Verify(input.Password, user.PasswordHash) {
		attempts, lockErr := service.lockout.RecordFailure(context, user)
		if lockErr != nil {
			return nil, lockErr
		}
		service.audit.LogSecurityEvent(context, compliance.SecurityFailedLogin, compliance.SeverityLow, map[string]any{
			"user_id":    user.ID,
			"attempts":   attempts,
			"ip_address": input.IPAddress,
		})
		return nil, ErrInvalidCredentials
	}

	if err := service.lockout.RecordSuccess(context, user); err != nil {
		return nil, err
	}

	pair, err = service.issueSession(context, service.store.Sessions(), user, input.SessionMeta)
	if err != nil {
		return nil, err
	}

	if byEmail {
		service.otp.Consume(context, user.Email)
	}

	service.snapshots.put(context, user)
	service.audit.LogAuthEvent(context, compliance.EventUserLogin, user.ID, map[string]any{
		"session_id": pair.SessionID,
		"device_id":  input.DeviceID,
		"ip_address": input.IPAddress,
	})

	return pair, nil
}

func (service *Service) findLoginUser(context context.Context, identifier string, byEmail bool) (*User, error) {
	var (
		user *User
		err  error
	)

	if byEmail {
		user, err = service.store.Users().FindByEmail(context, normalizeEmail(identifier))
	} else {
		number, normalizeErr := phone.Normalize(identifier, service.policy.PhoneRegion)
		if normalizeErr != nil {
			return nil, ErrInvalidCredentials
		}
		user, err = service.store.Users().FindByPhone(context, number)
	}

	if errors.Is(err, dberr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	return user, err
}

// # Session Lifecycle

/*
Refresh rotates a refresh token.

The presented token is looked up by digest; validity is purely "an unexpired
row exists". The old row is deleted and the new one inserted in one
transaction. A zero-row delete means a concurrent rotation won, so the token
is rejected and nothing is issued.

Returns:
  - *TokenPair: the replacement pair
  - error: [ErrInvalidRefresh] for unknown, expired or already rotated tokens
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer func() { service.metrics.Operation("refresh", err) }()

	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}

	session, user, err := service.store.Sessions().FindByTokenHash(context, sec.HashToken(refreshToken), service.now())
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			service.audit.LogSecurityEvent(context, compliance.SecurityRefreshTokenRejected, compliance.SeverityMedium, nil)
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	switch user.Status {
	case StatusSuspended:
		return nil, ErrAccountSuspended
	case StatusLocked:
		return nil, ErrAccountLocked
	}

	meta := SessionMeta{DeviceID: session.DeviceID, UserAgent: session.UserAgent, IPAddress: session.IPAddress}

	err = service.store.InTx(context, func(tx Store) error {
		deleted, err := tx.Sessions().Delete(context, session.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrInvalidRefresh
		}

		issued, err := service.issueSession(context, tx.Sessions(), user, meta)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout ends exactly one session of userID. Ending a session that no longer
// exists succeeds.
func (service *Service) Logout(context context.Context, userID, sessionID string) (err error) {
	defer func() { service.metrics.Operation("logout", err) }()

	if _, err := service.store.Sessions().DeleteForUser(context, userID, sessionID); err != nil {
		return err
	}

	service.audit.LogAuthEvent(context, compliance.EventUserLogout, userID, map[string]any{"session_id": sessionID})
	return nil
}

// ListSessions returns the live sessions of userID, flagging currentSessionID.
func (service *Service) ListSessions(context context.Context, userID, currentSessionID string) ([]*Session, error) {
	sessions, err := service.store.Sessions().ListForUser(context, userID, service.now())
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		session.Current = session.ID == currentSessionID
	}
	return sessions, nil
}

// RevokeSession ends one session of userID, typically another device.
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	deleted, err := service.store.Sessions().DeleteForUser(context, userID, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("Session")
	}

	service.audit.LogAuthEvent(context, compliance.EventSessionRevoked, userID, map[string]any{"session_id": sessionID})
	return nil
}

// RevokeOtherSessions ends every session of userID except currentSessionID
// and reports how many were ended.
func (service *Service) RevokeOtherSessions(context context.Context, userID, currentSessionID string) (int64, error) {
	revoked, err := service.store.Sessions().DeleteOthersForUser(context, userID, currentSessionID)
	if err != nil {
		return 0, err
	}

	if revoked > 0 {
		service.audit.LogAuthEvent(context, compliance.EventSessionRevoked, userID, map[string]any{
			"kept_session_id": currentSessionID,
			"revoked":         revoked,
		})
	}
	return revoked, nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (service *Service) PurgeExpiredSessions(context context.Context) (int64, error) {
	purged, err := service.store.Sessions().DeleteExpired(context, service.now())
	if err != nil {
		return 0, err
	}
	service.metrics.Purged(purged)
	return purged, nil
}

// CurrentUser returns the public view of userID, served from the snapshot
// cache when possible.
func (service *Service) CurrentUser(context context.Context, userID string) (*UserView, error) {
	if view, ok := service.snapshots.get(context, userID); ok {
		return view, nil
	}

	user, err := service.store.Users().FindByID(context, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	service.snapshots.put(context, user)
	return user.View(), nil
}

// # OTP Gate

// SendLoginOTP starts the second factor for an email login.
func (service *Service) SendLoginOTP(context context.Context, email string) (masked string, err error) {
	defer func() { service.metrics.Operation("send_login_otp", err) }()
	return service.otp.SendLoginOTP(context, email)
}

// VerifyLoginOTP completes the second factor for an email login.
func (service *Service) VerifyLoginOTP(context context.Context, email, code string) (verified bool, err error) {
	defer func() { service.metrics.Operation("verify_login_otp", err) }()
	return service.otp.VerifyLoginOTP(context, email, code)
}

// # Token Issuance

// issueSession persists a session for user and mints the matching token pair.
func (service *Service) issueSession(context context.Context, sessions SessionRepository, user *User, meta SessionMeta) (*TokenPair, error) {
	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := service.now().UTC()
	session := &Session{
		ID:        uuidv7.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(refreshToken),
		DeviceID:  meta.DeviceID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: now.Add(service.policy.RefreshTokenTTL),
		CreatedAt: now,
	}

	if err := sessions.Create(context, session); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	accessToken, err := service.tokens.GenerateAccessToken(sec.AccessSubject{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
	}, service.policy.AccessTokenTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(service.policy.AccessTokenTTL / time.Second),
		SessionID:    session.ID,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeName stores names in NFC so "é" typed as one or two code points
// compares equal.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
