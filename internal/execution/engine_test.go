package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/domain/event"
	"github.com/quantarc/ordergate/internal/domain/order"
	"github.com/quantarc/ordergate/internal/eventstore"
	"github.com/quantarc/ordergate/internal/risk"
)

type triad struct {
	engine *Engine
	store  *eventstore.Store
	risk   *risk.Engine
	venue  *SimulatedVenue
}

func newTestTriad(t *testing.T, cfg Config) *triad {
	t.Helper()
	store := eventstore.New(zap.NewNop())
	riskEngine := risk.NewEngine(store, risk.DefaultLimits(), zap.NewNop())
	venue := &SimulatedVenue{
		Outcome: func() bool { return true },
		Jitter:  func() float64 { return 0 },
	}
	engine := NewEngine(store, riskEngine, venue, cfg, zap.NewNop(), nil)
	engine.sleep = func(time.Duration) {}
	return &triad{engine: engine, store: store, risk: riskEngine, venue: venue}
}

// outcomeSequence returns an oracle that plays the given results, then
// repeats the last one.
func outcomeSequence(results ...bool) func() bool {
	var mu sync.Mutex
	i := 0
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r
	}
}

func submitReq() SubmitRequest {
	return SubmitRequest{
		Symbol:   "AAPL",
		Side:     order.SideBuy,
		Quantity: 100,
		Price:    175.50,
		Strategy: "default",
		UserID:   "u1",
	}
}

func eventTypes(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestSubmitOrderHappyPath(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())
	tr.venue.Jitter = func() float64 { return 0.0005 }

	result, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	assert.Equal(t, order.StatusApproved, result.Status)
	assert.Equal(t, "Order approved and submitted for execution", result.Message)
	assert.NotEmpty(t, result.OrderID)
	assert.NotEmpty(t, result.CorrelationID)

	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExecuted, o.Status)
	assert.InDelta(t, 100.0, o.ExecutedQuantity, 1e-9)
	require.NotNil(t, o.ExecutedPrice)
	assert.InDelta(t, 175.50*1.0005, *o.ExecutedPrice, 1e-9)
	assert.GreaterOrEqual(t, *o.ExecutedPrice, 175.50*0.999)
	assert.LessOrEqual(t, *o.ExecutedPrice, 175.50*1.001)

	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypeRiskCheckStarted,
		event.TypeRiskCheckPassed,
		event.TypeExecutionStarted,
		event.TypeExecutionCompleted,
	}, eventTypes(tr.store.GetByCorrelation(result.CorrelationID)))

	positions := tr.risk.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.InDelta(t, 100.0, positions[0].Quantity, 1e-9)
	assert.InDelta(t, *o.ExecutedPrice, positions[0].AveragePrice, 1e-9)
}

func TestSubmitOrderRiskRejection(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	req := submitReq()
	req.Symbol = "TSLA"
	req.Quantity = 50_000
	req.Price = 250

	result, err := tr.engine.SubmitOrder(req)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRejected, result.Status)
	assert.Contains(t, result.Message, "POSITION_LIMIT")

	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRejected, o.Status)
	assert.Equal(t, result.Message, o.RejectionReason)

	// No execution events follow a rejection.
	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypeRiskCheckStarted,
		event.TypeRiskCheckFailed,
	}, eventTypes(tr.store.GetByOrder(result.OrderID)))
}

func TestSubmitOrderDuplicateRejected(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	req := submitReq()
	req.ClientOrderID = "K"

	first, err := tr.engine.SubmitOrder(req)
	require.NoError(t, err)
	require.Equal(t, order.StatusApproved, first.Status)

	_, err = tr.engine.SubmitOrder(req)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	tr.engine.Wait()
	assert.Equal(t, 1, tr.engine.OrderCount())
}

func TestSubmitOrderDifferentClientOrderIDIsNotDuplicate(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	req := submitReq()
	req.ClientOrderID = "A"
	_, err := tr.engine.SubmitOrder(req)
	require.NoError(t, err)

	req.ClientOrderID = "B"
	_, err = tr.engine.SubmitOrder(req)
	require.NoError(t, err)

	tr.engine.Wait()
	assert.Equal(t, 2, tr.engine.OrderCount())
}

func TestExecutionSucceedsAfterRetries(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())
	tr.venue.Outcome = outcomeSequence(false, false, true)

	result, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExecuted, o.Status)
	assert.Equal(t, 2, o.RetryCount)

	events := tr.store.GetByOrder(result.OrderID)
	last := events[len(events)-1]
	assert.Equal(t, event.TypeExecutionCompleted, last.Type)
	assert.Equal(t, 2, last.Payload["retry_attempt"])
}

func TestExecutionFailsAfterAllRetries(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())
	tr.venue.Outcome = func() bool { return false }

	result, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.Equal(t, 3, o.RetryCount)
	assert.Equal(t, "Execution failed after 3 attempts", o.RejectionReason)

	events := tr.store.GetByOrder(result.OrderID)
	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypeRiskCheckStarted,
		event.TypeRiskCheckPassed,
		event.TypeExecutionStarted,
		event.TypeExecutionFailed,
	}, eventTypes(events))
	assert.Equal(t, "Execution failed after 3 attempts", events[4].Payload["reason"])

	assert.Equal(t, 1, tr.engine.BreakerStatus().Failures)
}

func TestBreakerBlocksExecutionWhenOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerThreshold = 1
	tr := newTestTriad(t, cfg)
	tr.venue.Outcome = func() bool { return false }

	_, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()
	require.Equal(t, "open", tr.engine.BreakerStatus().Status)

	req := submitReq()
	req.ClientOrderID = "second"
	second, err := tr.engine.SubmitOrder(req)
	require.NoError(t, err)
	require.Equal(t, order.StatusApproved, second.Status)
	tr.engine.Wait()

	o, err := tr.engine.GetOrder(second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.Equal(t, "Circuit breaker open", o.RejectionReason)

	// A blocked execution emits no execution events at all.
	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypeRiskCheckStarted,
		event.TypeRiskCheckPassed,
	}, eventTypes(tr.store.GetByOrder(second.OrderID)))
}

func TestBreakerResetsAfterCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerThreshold = 1
	tr := newTestTriad(t, cfg)

	clock := time.Now()
	tr.engine.breaker = newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, func() time.Time { return clock })

	tr.venue.Outcome = func() bool { return false }
	_, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()
	require.Equal(t, "open", tr.engine.BreakerStatus().Status)

	// Cooldown elapses; the next execution is admitted and succeeds.
	clock = clock.Add(cfg.BreakerCooldown + time.Second)
	tr.venue.Outcome = func() bool { return true }

	req := submitReq()
	req.ClientOrderID = "after-cooldown"
	result, err := tr.engine.SubmitOrder(req)
	require.NoError(t, err)
	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExecuted, o.Status)
	assert.Equal(t, "closed", tr.engine.BreakerStatus().Status)
}

func TestGetOrderUnknownID(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())
	_, err := tr.engine.GetOrder("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersOldestFirst(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	for _, id := range []string{"a", "b", "c"} {
		req := submitReq()
		req.ClientOrderID = id
		_, err := tr.engine.SubmitOrder(req)
		require.NoError(t, err)
	}
	tr.engine.Wait()

	orders := tr.engine.ListOrders()
	require.Len(t, orders, 3)
	for i := 1; i < len(orders); i++ {
		assert.False(t, orders[i].CreatedAt.Before(orders[i-1].CreatedAt))
	}
}

func TestStatusBreakdownCountsTerminalStates(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	ok := submitReq()
	ok.ClientOrderID = "ok"
	_, err := tr.engine.SubmitOrder(ok)
	require.NoError(t, err)

	rejected := submitReq()
	rejected.ClientOrderID = "rejected"
	rejected.Quantity = 50_000
	rejected.Price = 250
	_, err = tr.engine.SubmitOrder(rejected)
	require.NoError(t, err)

	tr.engine.Wait()

	breakdown := tr.engine.StatusBreakdown()
	assert.Equal(t, 1, breakdown[string(order.StatusExecuted)])
	assert.Equal(t, 1, breakdown[string(order.StatusRejected)])
}

func TestEventsShareOrderCorrelation(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())

	result, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()

	for _, e := range tr.store.GetByOrder(result.OrderID) {
		assert.Equal(t, result.CorrelationID, e.CorrelationID)
		assert.Equal(t, result.OrderID, e.OrderID)
	}
}

func TestExecutionPanicIsContained(t *testing.T) {
	tr := newTestTriad(t, DefaultConfig())
	tr.venue.Outcome = func() bool { panic("venue blew up") }

	result, err := tr.engine.SubmitOrder(submitReq())
	require.NoError(t, err)
	tr.engine.Wait()

	o, err := tr.engine.GetOrder(result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, o.Status)
}
