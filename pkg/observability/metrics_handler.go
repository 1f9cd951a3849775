package observability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfanzaky/txqueue/pkg/metrics"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// MetricsHandler provides Prometheus metrics and health endpoints
type MetricsHandler struct {
	service string

	mu     sync.RWMutex
	checks map[string]ReadinessCheck
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service string) *MetricsHandler {
	return &MetricsHandler{
		service: service,
		checks:  make(map[string]ReadinessCheck),
	}
}

// RegisterCheck adds a named readiness check
func (h *MetricsHandler) RegisterCheck(name string, check ReadinessCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// MetricsEndpoint returns the Prometheus metrics handler
func (h *MetricsHandler) MetricsEndpoint() gin.HandlerFunc {
	handler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthEndpoint provides basic health information
func (h *MetricsHandler) HealthEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   h.service,
			"timestamp": time.Now().UTC(),
		})
	}
}

// ReadinessEndpoint runs every registered check
func (h *MetricsHandler) ReadinessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		h.mu.RLock()
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		results := make(gin.H, len(names))
		ready := true
		for _, name := range names {
			if err := h.checks[name](ctx); err != nil {
				results[name] = err.Error()
				ready = false
				continue
			}
			results[name] = "ok"
		}
		h.mu.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"checks": results,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"checks": results,
		})
	}
}

// LivenessEndpoint provides liveness check
func (h *MetricsHandler) LivenessEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
		})
	}
}

// Register mounts the metrics and health endpoints on router
func (h *MetricsHandler) Register(router gin.IRoutes) {
	router.GET("/metrics", h.MetricsEndpoint())
	router.GET("/health", h.HealthEndpoint())
	router.GET("/ready", h.ReadinessEndpoint())
	router.GET("/live", h.LivenessEndpoint())
}
