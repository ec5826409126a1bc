package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quantarc/ordergate/internal/eventstore"
)

const defaultRecentLimit = 100

// AuditHandler serves the compliance views over the event log.
type AuditHandler struct {
	store *eventstore.Store
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(store *eventstore.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// RecentEvents returns the most recent events, newest last.
func (h *AuditHandler) RecentEvents(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events := h.store.GetRecent(limit)
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// ByCorrelation replays the full event chain for one correlation ID.
func (h *AuditHandler) ByCorrelation(c *gin.Context) {
	cid := c.Param("cid")
	events := h.store.Replay(cid)
	if len(events) == 0 {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "no events for correlation id")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": cid,
		"events":         events,
		"total_events":   len(events),
	})
}

// OrderTrail returns the audit trail for one order.
func (h *AuditHandler) OrderTrail(c *gin.Context) {
	oid := c.Param("oid")
	events := h.store.GetByOrder(oid)
	if len(events) == 0 {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "no events for order id")
		return
	}

	out := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		out = append(out, e.Serialize())
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":     oid,
		"events":       out,
		"total_events": len(out),
	})
}
