// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/constants"
	"github.com/taibuivan/helios/internal/platform/respond"
)

const readinessTimeout = 3 * time.Second

// HealthCheck pings one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error

	// Optional dependencies are reported but never fail readiness. The cache
	// is optional because every cache call already fails open.
	Optional bool
}

type healthHandler struct {
	checks []HealthCheck
	logger *slog.Logger
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(checks []HealthCheck, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{checks: checks, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (liveness check).
func (handler *healthHandler) liveness(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
}

type checkResult struct {
	Name     string `json:"name"`
	IsOK     bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// readiness handles GET /ready (readiness check). A failed required dependency
// answers 503 SERVICE_UNAVAILABLE naming each one in the error details.
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()

	results := make([]checkResult, 0, len(handler.checks))
	status := "ready"
	var unavailable []apperr.FieldError

	for _, check := range handler.checks {
		result := checkResult{Name: check.Name, IsOK: true, Optional: check.Optional}

		if err := check.Check(ctx); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			handler.logger.ErrorContext(ctx, "readiness_check_failed", slog.String("dependency", check.Name), slog.Any("error", err))

			if check.Optional {
				if status == "ready" {
					status = "degraded"
				}
			} else {
				unavailable = append(unavailable, apperr.FieldError{Field: check.Name, Message: "dependency unreachable"})
			}
		}
		results = append(results, result)
	}

	if len(unavailable) > 0 {
		appErr := apperr.ServiceUnavailable("Service is not ready")
		appErr.Details = unavailable
		respond.Error(writer, request, appErr)
		return
	}

	respond.OK(writer, map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: results,
	})
}
