// Package execution owns the order lifecycle: intake and idempotency,
// risk dispatch, and supervised background execution with retry,
// exponential backoff, and a circuit breaker.
package execution

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/domain/event"
	"github.com/quantarc/ordergate/internal/domain/order"
	"github.com/quantarc/ordergate/internal/eventstore"
	"github.com/quantarc/ordergate/internal/risk"
)

var (
	// ErrDuplicateSubmission indicates the idempotency fingerprint has
	// already been seen; no order or event was created.
	ErrDuplicateSubmission = errors.New("duplicate order submission detected")
	// ErrOrderNotFound indicates no order exists with the given ID.
	ErrOrderNotFound = errors.New("order not found")
)

// Observer receives lifecycle notifications for operational metrics.
// All methods must be non-blocking.
type Observer interface {
	OrderSubmitted()
	OrderExecuted()
	OrderRejected()
	OrderFailed()
	BreakerOpened()
}

// Config holds the execution engine tunables.
type Config struct {
	MaxRetryAttempts int
	BackoffBase      time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts: 3,
		BackoffBase:      time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// SubmitRequest carries a validated submission into the engine. Symbol
// is expected uppercased and Strategy defaulted by the caller.
type SubmitRequest struct {
	Symbol        string
	Side          order.Side
	Quantity      float64
	Price         float64
	Strategy      string
	ClientOrderID string
	UserID        string
}

// SubmitResult is the synchronous outcome of a submission. Execution
// continues in the background after an APPROVED result.
type SubmitResult struct {
	OrderID       string
	CorrelationID string
	Status        order.Status
	Message       string
}

// Engine hosts the order table, the idempotency set, and the state
// machine. Orders are mutated only under the engine lock; background
// executions are tracked so Close can drain them.
type Engine struct {
	mu          sync.Mutex
	orders      map[string]*order.Order
	idempotency map[string]struct{}

	store    *eventstore.Store
	risk     *risk.Engine
	venue    Venue
	breaker  *circuitBreaker
	cfg      Config
	logger   *zap.Logger
	observer Observer
	wg       sync.WaitGroup

	sleep func(time.Duration)
}

// NewEngine wires the engine to its collaborators. observer may be nil.
func NewEngine(store *eventstore.Store, riskEngine *risk.Engine, venue Venue, cfg Config, logger *zap.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		orders:      make(map[string]*order.Order),
		idempotency: make(map[string]struct{}),
		store:       store,
		risk:        riskEngine,
		venue:       venue,
		breaker:     newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, nil),
		cfg:         cfg,
		logger:      logger,
		observer:    observer,
		sleep:       time.Sleep,
	}
}

// SubmitOrder runs the synchronous half of the pipeline: idempotency
// gate, order creation, risk check, and on approval the dispatch of a
// background execution. The returned status is APPROVED or REJECTED.
func (e *Engine) SubmitOrder(req SubmitRequest) (*SubmitResult, error) {
	key := executionKey(req)

	e.mu.Lock()
	if _, seen := e.idempotency[key]; seen {
		e.mu.Unlock()
		return nil, ErrDuplicateSubmission
	}
	e.idempotency[key] = struct{}{}

	o := &order.Order{
		ID:            uuid.New().String(),
		CorrelationID: uuid.New().String(),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		Strategy:      req.Strategy,
		Status:        order.StatusPending,
		CreatedAt:     time.Now().UTC(),
		UserID:        req.UserID,
		ClientOrderID: req.ClientOrderID,
	}
	e.orders[o.ID] = o
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.OrderSubmitted()
	}

	created := event.New(event.TypeOrderCreated, o.CorrelationID, o.ID, o.UserID, map[string]interface{}{
		"symbol":   o.Symbol,
		"side":     string(o.Side),
		"quantity": o.Quantity,
		"price":    o.Price,
		"strategy": o.Strategy,
	})
	if err := e.store.Append(created); err != nil {
		return nil, err
	}

	e.transition(o.ID, order.StatusRiskCheck)
	check, err := e.risk.CheckOrder(o.Clone(), o.CorrelationID)
	if err != nil {
		return nil, err
	}

	if !check.Passed {
		e.mu.Lock()
		e.applyTransitionLocked(o, order.StatusRejected)
		o.RejectionReason = check.Message
		e.mu.Unlock()
		if e.observer != nil {
			e.observer.OrderRejected()
		}
		e.logger.Info("order rejected",
			zap.String("order_id", o.ID),
			zap.String("reason", check.Message),
		)
		return &SubmitResult{
			OrderID:       o.ID,
			CorrelationID: o.CorrelationID,
			Status:        order.StatusRejected,
			Message:       check.Message,
		}, nil
	}

	e.transition(o.ID, order.StatusApproved)
	e.logger.Info("order approved",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
	)

	e.wg.Add(1)
	go e.runExecution(o.ID)

	return &SubmitResult{
		OrderID:       o.ID,
		CorrelationID: o.CorrelationID,
		Status:        order.StatusApproved,
		Message:       "Order approved and submitted for execution",
	}, nil
}

// runExecution drives one order through the venue with retry, backoff,
// and breaker discipline. Panics are contained so a misbehaving venue
// cannot take the process down.
func (e *Engine) runExecution(orderID string) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("execution panicked",
				zap.String("order_id", orderID),
				zap.Any("panic", r),
			)
			e.failOrder(orderID, "internal execution error")
		}
	}()

	snapshot, err := e.GetOrder(orderID)
	if err != nil {
		return
	}

	if !e.breaker.Admit() {
		e.failOrder(orderID, "Circuit breaker open")
		if e.observer != nil {
			e.observer.OrderFailed()
		}
		e.logger.Warn("execution blocked by circuit breaker",
			zap.String("order_id", orderID),
		)
		return
	}

	e.transition(orderID, order.StatusExecuting)
	started := event.New(event.TypeExecutionStarted, snapshot.CorrelationID, orderID, snapshot.UserID, map[string]interface{}{
		"symbol":   snapshot.Symbol,
		"quantity": snapshot.Quantity,
	})
	if err := e.store.Append(started); err != nil {
		e.failOrder(orderID, "event store append failed")
		return
	}

	for attempt := 0; attempt < e.cfg.MaxRetryAttempts; attempt++ {
		fill, execErr := e.venue.Execute(snapshot)
		if execErr == nil {
			e.settleFill(orderID, fill, attempt)
			return
		}

		e.mu.Lock()
		if o, ok := e.orders[orderID]; ok {
			o.RetryCount++
		}
		e.mu.Unlock()

		if attempt < e.cfg.MaxRetryAttempts-1 {
			e.sleep(e.cfg.BackoffBase << attempt)
		}
	}

	reason := fmt.Sprintf("Execution failed after %d attempts", e.cfg.MaxRetryAttempts)
	e.failOrder(orderID, reason)
	if e.observer != nil {
		e.observer.OrderFailed()
	}
	if e.breaker.RecordFailure() {
		if e.observer != nil {
			e.observer.BreakerOpened()
		}
		e.logger.Warn("circuit breaker opened",
			zap.Int("threshold", e.cfg.BreakerThreshold),
			zap.Duration("cooldown", e.cfg.BreakerCooldown),
		)
	}

	failed := event.New(event.TypeExecutionFailed, snapshot.CorrelationID, orderID, snapshot.UserID, map[string]interface{}{
		"reason":         reason,
		"retry_attempts": e.cfg.MaxRetryAttempts,
	})
	if err := e.store.Append(failed); err != nil {
		e.logger.Error("failed to append execution failure event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

// settleFill records a successful attempt: execution fields, terminal
// transition, position settlement, then the completion event. Position
// updates strictly precede EXECUTION_COMPLETED.
func (e *Engine) settleFill(orderID string, fill Fill, attempt int) {
	e.mu.Lock()
	o, ok := e.orders[orderID]
	if !ok {
		e.mu.Unlock()
		return
	}
	o.ExecutedQuantity = fill.Quantity
	price := fill.Price
	o.ExecutedPrice = &price
	e.applyTransitionLocked(o, order.StatusExecuted)
	settled := o.Clone()
	e.mu.Unlock()

	e.risk.UpdatePosition(settled)

	if e.observer != nil {
		e.observer.OrderExecuted()
	}

	completed := event.New(event.TypeExecutionCompleted, settled.CorrelationID, orderID, settled.UserID, map[string]interface{}{
		"executed_quantity": fill.Quantity,
		"executed_price":    fill.Price,
		"retry_attempt":     attempt,
	})
	if err := e.store.Append(completed); err != nil {
		e.logger.Error("failed to append execution completion event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	e.breaker.RecordSuccess()
	e.logger.Info("order executed",
		zap.String("order_id", orderID),
		zap.Float64("executed_quantity", fill.Quantity),
		zap.Float64("executed_price", fill.Price),
	)
}

// GetOrder returns a snapshot of the order, or ErrOrderNotFound.
func (e *Engine) GetOrder(orderID string) (*order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

// ListOrders returns snapshots of all orders, oldest first.
func (e *Engine) ListOrders() []*order.Order {
	e.mu.Lock()
	out := make([]*order.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o.Clone())
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OrderCount returns the number of orders in the table.
func (e *Engine) OrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

// StatusBreakdown returns a count per status present in the table.
func (e *Engine) StatusBreakdown() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int)
	for _, o := range e.orders {
		out[string(o.Status)]++
	}
	return out
}

// BreakerStatus returns the circuit breaker's current state.
func (e *Engine) BreakerStatus() BreakerStatus {
	return e.breaker.Snapshot()
}

// Wait blocks until all in-flight background executions finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close drains in-flight executions. No new submissions should be
// accepted by the caller once Close has been invoked.
func (e *Engine) Close() {
	e.Wait()
}

// transition applies a state-machine move under the engine lock.
func (e *Engine) transition(orderID string, next order.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		e.applyTransitionLocked(o, next)
	}
}

func (e *Engine) applyTransitionLocked(o *order.Order, next order.Status) {
	if !order.CanTransition(o.Status, next) {
		e.logger.Error("invalid status transition",
			zap.String("order_id", o.ID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(next)),
		)
		return
	}
	o.Status = next
}

// failOrder moves the order to FAILED with the given reason, from
// whichever non-terminal state it is in.
func (e *Engine) failOrder(orderID, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return
	}
	e.applyTransitionLocked(o, order.StatusFailed)
	o.RejectionReason = reason
}

// executionKey derives the idempotency fingerprint from the fields that
// identify a submission. Floats are rendered with minimal digits so the
// same numeric value always yields the same key.
func executionKey(req SubmitRequest) string {
	parts := []string{
		req.UserID,
		req.Symbol,
		string(req.Side),
		strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		strconv.FormatFloat(req.Price, 'f', -1, 64),
		req.ClientOrderID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
