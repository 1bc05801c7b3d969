package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/farm-records-service/internal/lifecycle"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/observability"
	"github.com/kjstillabower/farm-records-service/internal/records"
	"github.com/kjstillabower/farm-records-service/internal/service"
	"github.com/kjstillabower/farm-records-service/internal/traffic"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// Overload compares rate-limit denials in OverloadWindow against
	// OverloadThresholdPct of the requests RateLimitRPS admits. Disabled when RateLimitRPS is 0.
	RateLimitRPS         int
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	// BreakerState, when set, reports the record client's circuit breaker
	// state ("closed", "half-open", "open").
	BreakerState func() string
}

// Services are the domain services served over HTTP.
type Services struct {
	Crops    *service.CropService
	Expenses *service.ExpenseService
	Farms    *service.FarmService
	Tasks    *service.TaskService
	Weather  *service.WeatherService
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	services         Services
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(services Services, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		services:     services,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetForecast handles GET /weather/forecast.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.services.Weather.GetForecast(r.Context()))
}

// GetCurrentWeather handles GET /weather/current. 404 when the forecast is empty.
func (h *Handler) GetCurrentWeather(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.services.Weather.GetCurrentWeather(r.Context())
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no current weather available")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"recordsApi": "healthy"}
	if result.status == "degraded" {
		checks["recordsApi"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.BreakerState != nil {
		checks["circuitBreaker"] = h.healthConfig.BreakerState()
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "farm-records-service",
		"version":   "dev",
		"ready":     lifecycle.IsReady(),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > breaker open > error rate breach > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(traffic.DenialCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.BreakerState != nil && h.healthConfig.BreakerState() == "open" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// notifications returns the messages collected for this request, never nil.
func notifications(ctx context.Context) []string {
	if c, ok := notify.CollectorFromContext(ctx); ok {
		return c.Messages()
	}
	return []string{}
}

// writeError writes the standard error envelope. requestId is the
// correlation id; notifications are those raised while serving the request.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":          code,
			"message":       message,
			"requestId":     observability.CorrelationID(r.Context()),
			"notifications": notifications(r.Context()),
		},
	})
}

// writeMutationError maps a failed create, update or delete to a status code.
func writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	observability.LoggerFromContext(r.Context(), nil).Debug("mutation error", zap.String("op", op), zap.Error(err))

	var be *service.BackendError
	switch {
	case errors.Is(err, service.ErrServiceUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", service.MsgServiceUnavailable)
	case errors.As(err, &be):
		writeError(w, r, http.StatusUnprocessableEntity, "BACKEND_REJECTED", be.Error())
	case errors.Is(err, service.ErrCreateFailed):
		writeError(w, r, http.StatusUnprocessableEntity, "OPERATION_FAILED", service.MsgCreateFailed)
	case errors.Is(err, service.ErrUpdateFailed):
		writeError(w, r, http.StatusUnprocessableEntity, "OPERATION_FAILED", service.MsgUpdateFailed)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Record backend did not respond in time")
	case errors.Is(err, records.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "record not found")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", failedMessage(op))
	}
}

func failedMessage(op string) string {
	switch op {
	case service.OpCreate:
		return service.MsgCreateFailed
	case service.OpUpdate:
		return service.MsgUpdateFailed
	default:
		return service.MsgDeleteFailed
	}
}
