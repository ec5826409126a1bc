package execution

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/quantarc/ordergate/internal/domain/order"
)

// ErrVenueRejected is returned when a simulated attempt does not fill.
var ErrVenueRejected = errors.New("venue rejected order")

// Fill is the result of a successful execution attempt.
type Fill struct {
	Quantity float64
	Price    float64
}

// Venue executes a single order attempt. Implementations must be safe
// for concurrent use.
type Venue interface {
	Execute(o *order.Order) (Fill, error)
}

// SimulatedVenue stands in for a real venue adapter: it sleeps for a
// fixed latency, fills with the configured probability, and applies a
// small uniform jitter to the limit price. Outcome and Jitter are
// injectable so tests can drive deterministic sequences.
type SimulatedVenue struct {
	Latency     time.Duration
	SuccessRate float64

	// Outcome, when set, replaces the success-rate draw.
	Outcome func() bool
	// Jitter, when set, replaces the price jitter draw. Must return a
	// value in [-0.001, 0.001].
	Jitter func() float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedVenue builds a venue with the given latency and success
// probability.
func NewSimulatedVenue(latency time.Duration, successRate float64) *SimulatedVenue {
	return &SimulatedVenue{
		Latency:     latency,
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute simulates one attempt against the venue.
func (v *SimulatedVenue) Execute(o *order.Order) (Fill, error) {
	if v.Latency > 0 {
		time.Sleep(v.Latency)
	}
	if !v.outcome() {
		return Fill{}, ErrVenueRejected
	}
	return Fill{
		Quantity: o.Quantity,
		Price:    o.Price * (1 + v.jitter()),
	}, nil
}

func (v *SimulatedVenue) outcome() bool {
	if v.Outcome != nil {
		return v.Outcome()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rng.Float64() < v.SuccessRate
}

func (v *SimulatedVenue) jitter() float64 {
	if v.Jitter != nil {
		return v.Jitter()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return (v.rng.Float64() - 0.5) * 0.002
}
