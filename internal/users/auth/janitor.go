// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"time"
)

// SessionJanitor periodically deletes expired sessions. Expired rows are
// already rejected by every lookup; the janitor only keeps the table small.
type SessionJanitor struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionJanitor creates a janitor running every interval.
func NewSessionJanitor(service *Service, interval time.Duration, logger *slog.Logger) *SessionJanitor {
	return &SessionJanitor{service: service, interval: interval, logger: logger}
}

// Run sweeps until the context is cancelled.
func (janitor *SessionJanitor) Run(context context.Context) {
	ticker := time.NewTicker(janitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			janitor.sweep(context)
		case <-context.Done():
			return
		}
	}
}

func (janitor *SessionJanitor) sweep(context context.Context) {
	purged, err := janitor.service.PurgeExpiredSessions(context)
	if err != nil {
		janitor.logger.ErrorContext(context, "session_sweep_failed", slog.Any("error", err))
		return
	}
	if purged > 0 {
		janitor.logger.InfoContext(context, "session_sweep_completed", slog.Int64("purged", purged))
	}
}
