package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/pkg/circuit"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusDisabled  = "disabled"
)

// Pinger is satisfied by the postgres and mongo stores
type Pinger interface {
	Ping(ctx context.Context) error
}

// CachePinger is the optional redis dependency
type CachePinger interface {
	Pinger
	IsEnabled() bool
}

type HealthHandler struct {
	store   Pinger
	cache   CachePinger
	breaker *circuit.Breaker
	timeout time.Duration
}

type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthHandler takes the active store, the redis client and the event
// publisher's breaker. Any of them may be nil.
func NewHealthHandler(store Pinger, cache CachePinger, breaker *circuit.Breaker) *HealthHandler {
	return &HealthHandler{
		store:   store,
		cache:   cache,
		breaker: breaker,
		timeout: 5 * time.Second,
	}
}

// HealthCheck reports 503 only when the store is down. Redis and the event
// broker degrade the service without taking it out of rotation.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	response := HealthCheckResponse{
		Status:    statusHealthy,
		Version:   constants.AppVersion,
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck, 3),
	}

	store := h.checkStore(ctx)
	response.Checks["store"] = store
	if store.Status != statusHealthy {
		response.Status = statusUnhealthy
	}

	cache := h.checkCache(ctx)
	response.Checks["redis"] = cache
	if cache.Status == statusUnhealthy && response.Status == statusHealthy {
		response.Status = statusDegraded
	}

	events := h.checkEvents()
	response.Checks["events"] = events
	if events.Status == statusUnhealthy && response.Status == statusHealthy {
		response.Status = statusDegraded
	}

	statusCode := http.StatusOK
	if response.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

func (h *HealthHandler) checkStore(ctx context.Context) HealthCheck {
	if h.store == nil {
		return HealthCheck{Status: statusUnhealthy, Message: "Store not initialized"}
	}
	if err := h.store.Ping(ctx); err != nil {
		logger.GetLogger().Error("Store ping failed", zap.Error(err))
		return HealthCheck{Status: statusUnhealthy, Message: "Store ping failed"}
	}
	return HealthCheck{Status: statusHealthy}
}

func (h *HealthHandler) checkCache(ctx context.Context) HealthCheck {
	if h.cache == nil || !h.cache.IsEnabled() {
		return HealthCheck{Status: statusDisabled, Message: "Redis is disabled"}
	}
	if err := h.cache.Ping(ctx); err != nil {
		logger.GetLogger().Warn("Redis ping failed", zap.Error(err))
		return HealthCheck{Status: statusUnhealthy, Message: "Redis ping failed"}
	}
	return HealthCheck{Status: statusHealthy}
}

func (h *HealthHandler) checkEvents() HealthCheck {
	if h.breaker == nil {
		return HealthCheck{Status: statusDisabled, Message: "Event publishing is disabled"}
	}
	if state := h.breaker.State(); state == circuit.StateOpen {
		return HealthCheck{Status: statusUnhealthy, Message: "Publisher circuit is " + state.String()}
	}
	return HealthCheck{Status: statusHealthy}
}
