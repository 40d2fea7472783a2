package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/tracklight/tracklight-api/internal/service"
)

// OpsHandler exposes the operational endpoints: liveness, readiness
// and the Prometheus scrape target.
type OpsHandler struct {
	metrics *service.MetricsService
	db      *sqlx.DB
}

// NewOpsHandler constructs the handler.
func NewOpsHandler(metrics *service.MetricsService, db *sqlx.DB) *OpsHandler {
	return &OpsHandler{metrics: metrics, db: db}
}

// Health reports process liveness.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the store is reachable.
func (h *OpsHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Prometheus serves the metrics scrape endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
