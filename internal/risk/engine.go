// Package risk implements pre-trade controls: limit checks against
// projected exposure, the kill switch, position settlement, and the
// daily volume accumulator.
package risk

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/domain/event"
	"github.com/quantarc/ordergate/internal/domain/order"
	"github.com/quantarc/ordergate/internal/eventstore"
)

const killSwitchMessage = "Kill switch is active - all trading halted"

// Engine owns positions, the daily volume accumulator, and the limits
// configuration. All state is guarded by a single mutex; the engine may
// append to the event store while holding it (store lock ranks below).
type Engine struct {
	mu               sync.Mutex
	store            *eventstore.Store
	limits           Limits
	positions        map[string]*Position
	dailyVolume      float64
	dailyVolumeReset time.Time
	logger           *zap.Logger

	now func() time.Time
}

// NewEngine creates an engine with the given starting limits.
func NewEngine(store *eventstore.Store, limits Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := func() time.Time { return time.Now().UTC() }
	return &Engine{
		store:            store,
		limits:           limits,
		positions:        make(map[string]*Position),
		dailyVolumeReset: now(),
		logger:           logger,
		now:              now,
	}
}

// CheckOrder evaluates the order against the current limits. It appends
// RISK_CHECK_STARTED before evaluating and exactly one of
// RISK_CHECK_PASSED or RISK_CHECK_FAILED with the decision.
func (e *Engine) CheckOrder(o *order.Order, correlationID string) (CheckResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetDailyVolumeLocked()

	started := event.New(event.TypeRiskCheckStarted, correlationID, o.ID, o.UserID, map[string]interface{}{
		"order": orderSummary(o),
	})
	if err := e.store.Append(started); err != nil {
		return CheckResult{}, err
	}

	var violations []ViolationType
	var net, gross float64

	if e.limits.KillSwitchEnabled {
		// Short-circuit: no further controls are evaluated. The
		// recorded exposures are the current book, unprojected.
		violations = append(violations, ViolationKillSwitch)
		net, gross = e.exposuresLocked()
	} else {
		notional := o.NotionalValue()
		if notional > e.limits.MaxPositionSize {
			violations = append(violations, ViolationPositionLimit)
		}
		if e.dailyVolume+notional > e.limits.MaxDailyVolume {
			violations = append(violations, ViolationDailyVolume)
		}
		net, gross = e.projectedExposuresLocked(o)
		if math.Abs(net) > e.limits.MaxNetExposure {
			violations = append(violations, ViolationNetExposure)
		}
		if gross > e.limits.MaxGrossExposure {
			violations = append(violations, ViolationGrossExposure)
		}
	}

	result := CheckResult{Passed: len(violations) == 0, Violations: violations}
	if result.Passed {
		result.Message = "Risk checks passed"
	} else if e.limits.KillSwitchEnabled {
		result.Message = killSwitchMessage
	} else {
		names := make([]string, len(violations))
		for i, v := range violations {
			names[i] = string(v)
		}
		result.Message = "Risk violations: " + strings.Join(names, ", ")
	}

	decisionType := event.TypeRiskCheckPassed
	if !result.Passed {
		decisionType = event.TypeRiskCheckFailed
	}
	violationNames := make([]string, len(violations))
	for i, v := range violations {
		violationNames[i] = string(v)
	}
	decision := event.New(decisionType, correlationID, o.ID, o.UserID, map[string]interface{}{
		"passed":         result.Passed,
		"violations":     violationNames,
		"net_exposure":   net,
		"gross_exposure": gross,
	})
	if err := e.store.Append(decision); err != nil {
		return CheckResult{}, err
	}

	if !result.Passed {
		e.logger.Info("order rejected by risk checks",
			zap.String("order_id", o.ID),
			zap.Strings("violations", violationNames),
		)
	}
	return result, nil
}

// UpdatePosition settles an executed fill into the position book and
// accrues the order's notional into the daily volume.
func (e *Engine) UpdatePosition(o *order.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetDailyVolumeLocked()

	delta := o.ExecutedQuantity
	if o.Side == order.SideSell {
		delta = -delta
	}
	fillPrice := o.Price
	if o.ExecutedPrice != nil {
		fillPrice = *o.ExecutedPrice
	}

	pos, ok := e.positions[o.Symbol]
	if !ok {
		pos = &Position{Symbol: o.Symbol}
		e.positions[o.Symbol] = pos
	}

	newQuantity := pos.Quantity + delta
	if newQuantity != 0 {
		// Naive cost-basis blend, kept even across sign changes.
		pos.AveragePrice = (pos.Quantity*pos.AveragePrice + delta*fillPrice) / newQuantity
		pos.Quantity = newQuantity
	} else {
		pos.Quantity = 0
		pos.AveragePrice = 0
	}

	e.dailyVolume += o.NotionalValue()

	e.logger.Info("position updated",
		zap.String("symbol", o.Symbol),
		zap.Float64("quantity", pos.Quantity),
		zap.Float64("average_price", pos.AveragePrice),
	)
}

// Metrics returns a snapshot of current exposures and volume.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetDailyVolumeLocked()

	net, gross := e.exposuresLocked()
	var largest float64
	for _, p := range e.positions {
		if abs := math.Abs(p.Exposure()); abs > largest {
			largest = abs
		}
	}
	return Metrics{
		NetExposure:      net,
		GrossExposure:    gross,
		DailyVolume:      e.dailyVolume,
		TotalPositions:   len(e.positions),
		LargestPosition:  largest,
		KillSwitchActive: e.limits.KillSwitchEnabled,
	}
}

// Limits returns the current limits configuration.
func (e *Engine) Limits() Limits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limits
}

// SetLimits atomically replaces the limits configuration.
func (e *Engine) SetLimits(limits Limits) {
	e.mu.Lock()
	e.limits = limits
	e.mu.Unlock()
	e.logger.Info("risk limits updated",
		zap.Float64("max_position_size", limits.MaxPositionSize),
		zap.Float64("max_daily_volume", limits.MaxDailyVolume),
		zap.Float64("max_net_exposure", limits.MaxNetExposure),
		zap.Float64("max_gross_exposure", limits.MaxGrossExposure),
	)
}

// SetKillSwitch flips the kill switch and returns the new state.
func (e *Engine) SetKillSwitch(enabled bool) bool {
	e.mu.Lock()
	e.limits.KillSwitchEnabled = enabled
	e.mu.Unlock()
	if enabled {
		e.logger.Warn("kill switch activated, all trading halted")
	} else {
		e.logger.Warn("kill switch deactivated")
	}
	return enabled
}

// Positions returns a snapshot of all positions, sorted by symbol.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// resetDailyVolumeLocked zeroes the accumulator on the first operation
// of a new UTC day.
func (e *Engine) resetDailyVolumeLocked() {
	now := e.now()
	ry, rm, rd := e.dailyVolumeReset.Date()
	ny, nm, nd := now.Date()
	if ny > ry || (ny == ry && (nm > rm || (nm == rm && nd > rd))) {
		e.dailyVolume = 0
		e.dailyVolumeReset = now
		e.logger.Info("daily volume reset")
	}
}

// exposuresLocked computes net and gross exposure from the current book.
func (e *Engine) exposuresLocked() (net, gross float64) {
	for _, p := range e.positions {
		exp := p.Exposure()
		net += exp
		gross += math.Abs(exp)
	}
	return net, gross
}

// projectedExposuresLocked computes exposures as if the order filled at
// its limit price. The projection prices each symbol at its current
// average price, so a symbol with no position projects at zero.
func (e *Engine) projectedExposuresLocked(o *order.Order) (net, gross float64) {
	projected := make(map[string]float64, len(e.positions)+1)
	prices := make(map[string]float64, len(e.positions)+1)
	for sym, p := range e.positions {
		projected[sym] = p.Quantity
		prices[sym] = p.AveragePrice
	}
	delta := o.Quantity
	if o.Side == order.SideSell {
		delta = -delta
	}
	projected[o.Symbol] += delta
	if _, ok := prices[o.Symbol]; !ok {
		prices[o.Symbol] = 0
	}

	for sym, qty := range projected {
		exp := qty * prices[sym]
		net += exp
		gross += math.Abs(exp)
	}
	return net, gross
}

func orderSummary(o *order.Order) map[string]interface{} {
	return map[string]interface{}{
		"symbol":   o.Symbol,
		"side":     string(o.Side),
		"quantity": o.Quantity,
		"price":    o.Price,
		"strategy": o.Strategy,
	}
}
