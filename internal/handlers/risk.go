package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/middleware"
	"github.com/quantarc/ordergate/internal/risk"
)

// RiskHandler serves risk metrics, limits management, the kill switch,
// and position lookup.
type RiskHandler struct {
	engine *risk.Engine
	logger *zap.Logger
}

// NewRiskHandler creates a risk handler.
func NewRiskHandler(engine *risk.Engine, logger *zap.Logger) *RiskHandler {
	return &RiskHandler{engine: engine, logger: logger}
}

// Metrics returns the current risk snapshot.
func (h *RiskHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Metrics())
}

// GetLimits returns the current limits configuration.
func (h *RiskHandler) GetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Limits())
}

// UpdateLimits replaces the limits configuration.
func (h *RiskHandler) UpdateLimits(c *gin.Context) {
	var limits risk.Limits
	if err := c.ShouldBindJSON(&limits); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}
	if limits.MaxPositionSize < 0 || limits.MaxDailyVolume < 0 ||
		limits.MaxNetExposure < 0 || limits.MaxGrossExposure < 0 {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "limits must be non-negative")
		return
	}

	h.engine.SetLimits(limits)
	if claims := middleware.ClaimsFrom(c); claims != nil {
		h.logger.Info("risk limits replaced", zap.String("updated_by", claims.Username))
	}
	c.JSON(http.StatusOK, h.engine.Limits())
}

// KillSwitch toggles the kill switch via the enabled query parameter.
func (h *RiskHandler) KillSwitch(c *gin.Context) {
	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "enabled must be true or false")
		return
	}

	h.engine.SetKillSwitch(enabled)
	if claims := middleware.ClaimsFrom(c); claims != nil {
		h.logger.Warn("kill switch toggled",
			zap.Bool("enabled", enabled),
			zap.String("updated_by", claims.Username),
		)
	}

	message := "Kill switch deactivated"
	if enabled {
		message = "Kill switch activated"
	}
	c.JSON(http.StatusOK, gin.H{
		"kill_switch_enabled": enabled,
		"message":             message,
		"timestamp":           time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Positions returns all open positions.
func (h *RiskHandler) Positions(c *gin.Context) {
	positions := h.engine.Positions()
	c.JSON(http.StatusOK, gin.H{
		"positions":       positions,
		"total_positions": len(positions),
	})
}
