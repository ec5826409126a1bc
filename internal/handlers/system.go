package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantarc/ordergate/internal/eventstore"
	"github.com/quantarc/ordergate/internal/execution"
	"github.com/quantarc/ordergate/internal/risk"
)

// SystemHandler serves the root information document, health, and the
// business-level system metrics.
type SystemHandler struct {
	store   *eventstore.Store
	riskEng *risk.Engine
	exec    *execution.Engine
	version string
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(store *eventstore.Store, riskEng *risk.Engine, exec *execution.Engine, version string) *SystemHandler {
	return &SystemHandler{store: store, riskEng: riskEng, exec: exec, version: version}
}

// Root returns the unauthenticated system information document.
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system":  "Institutional Order Gateway",
		"version": h.version,
		"status":  "operational",
		"endpoints": gin.H{
			"auth":    "/api/v1/auth/login",
			"orders":  "/api/v1/orders",
			"risk":    "/api/v1/risk",
			"audit":   "/api/v1/audit",
			"health":  "/api/v1/health",
			"metrics": "/api/v1/metrics",
		},
	})
}

// Health reports component liveness.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"components": gin.H{
			"event_store":      "operational",
			"risk_engine":      "operational",
			"execution_engine": "operational",
		},
	})
}

// SystemMetrics returns the aggregate order, event, breaker, and risk
// view for authenticated operators.
func (h *SystemHandler) SystemMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_orders":           h.exec.OrderCount(),
		"total_events":           h.store.Len(),
		"order_status_breakdown": h.exec.StatusBreakdown(),
		"circuit_breaker":        h.exec.BreakerStatus(),
		"risk_metrics":           h.riskEng.Metrics(),
		"timestamp":              time.Now().UTC().Format(time.RFC3339Nano),
	})
}
