// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package compliance records authentication and security events for audit.

Emission is fire-and-forget. [EventLogger] expects a non-blocking publisher,
normally a [queue.AsyncPublisher], and a failing sink is logged without ever
surfacing to the request that produced the event.
*/
package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/queue"
)

// # Event Types

const (
	EventUserRegistration        = "USER_REGISTRATION"
	EventUserLogin               = "USER_LOGIN"
	EventUserLogout              = "USER_LOGOUT"
	EventPasswordResetRequested  = "PASSWORD_RESET_REQUESTED"
	EventPasswordResetCompleted  = "PASSWORD_RESET_COMPLETED"
	EventPasswordChanged         = "PASSWORD_CHANGED"
	EventSessionRevoked          = "SESSION_REVOKED"
	SecurityAccountLocked        = "ACCOUNT_LOCKED"
	SecurityFailedLogin          = "FAILED_LOGIN"
	SecurityRefreshTokenRejected = "REFRESH_TOKEN_REJECTED"
)

// Severity grades security events.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Logger is the audit contract consumed by the auth domain.
type Logger interface {
	LogAuthEvent(ctx context.Context, eventType, userID string, data map[string]any)
	LogSecurityEvent(ctx context.Context, eventType string, severity Severity, data map[string]any)
}

// Event is the serialized form published to the audit stream.
type Event struct {
	Kind       string         `json:"kind"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	Severity   Severity       `json:"severity,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// # Publishing Logger

// EventLogger publishes events through a [queue.Publisher].
type EventLogger struct {
	publisher queue.Publisher
	now       func() time.Time
}

// NewEventLogger wraps a publisher, typically the compliance Kafka topic behind
// a [queue.AsyncPublisher]. A synchronous publisher would stall the caller.
func NewEventLogger(publisher queue.Publisher) *EventLogger {
	return &EventLogger{publisher: publisher, now: time.Now}
}

func (logger *EventLogger) LogAuthEvent(ctx context.Context, eventType, userID string, data map[string]any) {
	logger.emit(ctx, userID, Event{Kind: "auth", Type: eventType, UserID: userID, Data: data})
}

func (logger *EventLogger) LogSecurityEvent(ctx context.Context, eventType string, severity Severity, data map[string]any) {
	key := eventType
	if userID, ok := data["user_id"].(string); ok && userID != "" {
		key = userID
	}
	logger.emit(ctx, key, Event{Kind: "security", Type: eventType, Severity: severity, Data: data})
}

func (logger *EventLogger) emit(ctx context.Context, key string, event Event) {
	event.RequestID = ctxutil.GetRequestID(ctx)
	event.OccurredAt = logger.now().UTC()

	if err := logger.publisher.Publish(ctx, key, event); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "compliance_event_dropped",
			slog.String("type", event.Type),
			slog.Any("error", err),
		)
	}
}

// # No-op Logger

// Noop discards every event.
type Noop struct{}

func (Noop) LogAuthEvent(context.Context, string, string, map[string]any)        {}
func (Noop) LogSecurityEvent(context.Context, string, Severity, map[string]any) {}
