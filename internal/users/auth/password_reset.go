// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/dberr"
	"github.com/taibuivan/helios/internal/platform/queue"
	"github.com/taibuivan/helios/internal/platform/sec"
	"github.com/taibuivan/helios/internal/platform/validate"
	"github.com/taibuivan/helios/pkg/uuidv7"
)

// # Delivery

// ResetMessage is what the delivery channel needs to send a reset link.
type ResetMessage struct {
	Template  string    `json:"template"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetNotifier hands a raw reset token to the out-of-band delivery channel.
type ResetNotifier interface {
	SendPasswordReset(context context.Context, message ResetMessage) error
}

// QueueResetNotifier publishes reset messages for the mail service.
type QueueResetNotifier struct {
	publisher queue.Publisher
}

// ErrNotifierUnavailable is returned when no [ResetNotifier] is configured.
var ErrNotifierUnavailable = errors.New("auth: reset delivery is not configured")

// unavailableNotifier stands in for a missing [ResetNotifier]. The token is
// never written anywhere.
type unavailableNotifier struct{}

func (unavailableNotifier) SendPasswordReset(context.Context, ResetMessage) error {
	return ErrNotifierUnavailable
}

// NewQueueResetNotifier wraps the mail topic publisher.
func NewQueueResetNotifier(publisher queue.Publisher) *QueueResetNotifier {
	return &QueueResetNotifier{publisher: publisher}
}

func (notifier *QueueResetNotifier) SendPasswordReset(context context.Context, message ResetMessage) error {
	message.Template = "password_reset"
	return notifier.publisher.Publish(context, message.UserID, message)
}

// # Password Recovery

/*
RequestPasswordReset issues a single-use reset token for email.

An unknown address succeeds without side effects so responses never reveal
whether an account exists. Delivery failures are logged, not returned, for
the same reason.

Returns:
  - error: only storage failures
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (err error) {
	defer func() { service.metrics.Operation("request_password_reset", err) }()

	user, err := service.store.Users().FindByEmail(context, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil
		}
		return err
	}

	rawToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return apperr.Internal(err)
	}

	token := &PasswordResetToken{
		ID:        uuidv7.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(rawToken),
		ExpiresAt: service.now().UTC().Add(service.policy.ResetTokenTTL),
		CreatedAt: service.now().UTC(),
	}
	if err := service.store.ResetTokens().Create(context, token); err != nil {
		return err
	}

	service.audit.LogAuthEvent(context, compliance.EventPasswordResetRequested, user.ID, map[string]any{
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})

	err = service.notifier.SendPasswordReset(context, ResetMessage{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Token:     rawToken,
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		ctxutil.GetLogger(context).ErrorContext(context, "password_reset_delivery_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return nil
}

/*
ConfirmPasswordReset sets a new password using a reset token.

In one transaction the password is replaced, lockout counters are cleared,
the token is marked used and every session of the user is deleted. Marking
the token is conditional, so of two concurrent confirmations only one commits.

Returns:
  - error: Validation for a weak password, [ErrInvalidResetToken] otherwise
*/
func (service *Service) ConfirmPasswordReset(context context.Context, rawToken, newPassword string) (err error) {
	defer func() { service.metrics.Operation("confirm_password_reset", err) }()

	if problem := validate.PasswordProblem(newPassword); problem != "" {
		return validate.RequiredError(FieldPassword, problem)
	}

	now := service.now()
	token, err := service.store.ResetTokens().FindValid(context, sec.HashToken(rawToken), now)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	var revoked int64
	err = service.store.InTx(context, func(tx Store) error {
		if err := tx.Users().UpdatePassword(context, token.UserID, hash, true); err != nil {
			if errors.Is(err, dberr.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}

		marked, err := tx.ResetTokens().MarkUsed(context, token.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return ErrInvalidResetToken
		}

		revoked, err = tx.Sessions().DeleteAllForUser(context, token.UserID)
		return err
	})
	if err != nil {
		return err
	}

	service.snapshots.invalidate(context, token.UserID)
	service.audit.LogAuthEvent(context, compliance.EventPasswordResetCompleted, token.UserID, map[string]any{
		"sessions_revoked": revoked,
	})

	return nil
}

/*
ChangePassword replaces the password of a signed-in user after checking the
current one. Other sessions stay valid.

A wrong current password counts as a failed login, so a stolen access token
cannot be used to guess the password past the lockout limit.

Returns:
  - error: NotFound, [ErrWrongPassword], [ErrAccountLocked], or Validation for a weak or unchanged password
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) (err error) {
	defer func() { service.metrics.Operation("change_password", err) }()

	user, err := service.store.Users().FindByID(context, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := service.lockout.Check(context, user); err != nil {
		return err
	}

	if !service.hasher.Verify(currentPassword, user.PasswordHash) {
		attempts, lockErr := service.lockout.RecordFailure(context, user)
		if lockErr != nil {
			return lockErr
		}
		service.audit.LogSecurityEvent(context, compliance.SecurityFailedLogin, compliance.SeverityLow, map[string]any{
			"user_id":   user.ID,
			"attempts":  attempts,
			"operation": "change_password",
		})
		return ErrWrongPassword
	}

	if err := service.lockout.RecordSuccess(context, user); err != nil {
		return err
	}

	validator := &validate.Validator{}
	validator.Password(FieldNewPassword, newPassword).
		Custom(FieldNewPassword, newPassword == currentPassword, "Must differ from the current password")
	if err := validator.Err(); err != nil {
		return err
	}

	hash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := service.store.Users().UpdatePassword(context, user.ID, hash, false); err != nil {
		return err
	}

	service.snapshots.invalidate(context, user.ID)
	service.audit.LogAuthEvent(context, compliance.EventPasswordChanged, user.ID, nil)
	return nil
}
