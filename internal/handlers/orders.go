package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/domain/order"
	"github.com/quantarc/ordergate/internal/execution"
	"github.com/quantarc/ordergate/internal/middleware"
)

// OrderHandler serves order submission and lookup.
type OrderHandler struct {
	engine *execution.Engine
	logger *zap.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(engine *execution.Engine, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{engine: engine, logger: logger}
}

// OrderRequest is the submission body.
type OrderRequest struct {
	Symbol        string  `json:"symbol" binding:"required,min=1,max=20"`
	Side          string  `json:"side" binding:"required,oneof=BUY SELL"`
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	Price         float64 `json:"price" binding:"required,gt=0"`
	Strategy      string  `json:"strategy" binding:"max=50"`
	ClientOrderID string  `json:"client_order_id"`
}

// OrderResponse is the synchronous submission reply.
type OrderResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
}

// Submit accepts a new order, runs the risk check, and replies with the
// approval or rejection. Execution continues in the background.
func (h *OrderHandler) Submit(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}

	claims := middleware.ClaimsFrom(c)
	side, err := order.ParseSide(req.Side)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "default"
	}

	result, err := h.engine.SubmitOrder(execution.SubmitRequest{
		Symbol:        strings.ToUpper(req.Symbol),
		Side:          side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		Strategy:      strategy,
		ClientOrderID: req.ClientOrderID,
		UserID:        claims.UserID,
	})
	if err != nil {
		if errors.Is(err, execution.ErrDuplicateSubmission) {
			writeError(c, http.StatusConflict, "DUPLICATE_SUBMISSION", "Duplicate order submission detected")
			return
		}
		h.logger.Error("order submission failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "order submission failed")
		return
	}

	c.JSON(http.StatusOK, OrderResponse{
		OrderID:       result.OrderID,
		Status:        string(result.Status),
		CorrelationID: result.CorrelationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Message:       result.Message,
	})
}

// Get returns the full projection of one order.
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.engine.GetOrder(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "order not found")
		return
	}
	c.JSON(http.StatusOK, orderProjection(o))
}

// List returns summaries of all orders, oldest first.
func (h *OrderHandler) List(c *gin.Context) {
	orders := h.engine.ListOrders()
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, gin.H{
			"order_id":   o.ID,
			"symbol":     o.Symbol,
			"side":       string(o.Side),
			"quantity":   o.Quantity,
			"status":     string(o.Status),
			"created_at": o.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": len(out)})
}

func orderProjection(o *order.Order) gin.H {
	proj := gin.H{
		"order_id":          o.ID,
		"correlation_id":    o.CorrelationID,
		"symbol":            o.Symbol,
		"side":              string(o.Side),
		"quantity":          o.Quantity,
		"price":             o.Price,
		"status":            string(o.Status),
		"executed_quantity": o.ExecutedQuantity,
		"created_at":        o.CreatedAt.Format(time.RFC3339Nano),
	}
	if o.ExecutedPrice != nil {
		proj["executed_price"] = *o.ExecutedPrice
	}
	if o.RejectionReason != "" {
		proj["rejection_reason"] = o.RejectionReason
	}
	return proj
}
