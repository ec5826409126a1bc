// Package eventstore implements the append-only audit log with
// correlation- and order-keyed indices. The in-memory store never fails;
// the API surfaces errors so durable backends can slot in behind it.
package eventstore

import (
	"sync"

	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/domain/event"
)

// Store is an append-only event log. A single mutex serialises the log
// and both indices; reads hand back snapshot copies.
type Store struct {
	mu            sync.Mutex
	events        []event.Event
	byCorrelation map[string][]event.Event
	byOrder       map[string][]event.Event
	logger        *zap.Logger
	onAppend      func(event.Event)
}

// Option configures a Store.
type Option func(*Store)

// WithAppendHook registers a callback invoked after every successful
// append, outside the store lock. Used to feed operational metrics.
func WithAppendHook(fn func(event.Event)) Option {
	return func(s *Store) { s.onAppend = fn }
}

// New creates an empty store.
func New(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		byCorrelation: make(map[string][]event.Event),
		byOrder:       make(map[string][]event.Event),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append inserts the event into the master log and both indices
// atomically. After return the event is visible to all readers. The
// in-memory implementation cannot fail; callers must treat a non-nil
// error as fatal for the triggering operation.
func (s *Store) Append(e event.Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.byCorrelation[e.CorrelationID] = append(s.byCorrelation[e.CorrelationID], e)
	s.byOrder[e.OrderID] = append(s.byOrder[e.OrderID], e)
	s.mu.Unlock()

	s.logger.Info("event stored",
		zap.String("event_type", string(e.Type)),
		zap.String("order_id", e.OrderID),
		zap.String("correlation_id", e.CorrelationID),
	)
	if s.onAppend != nil {
		s.onAppend(e)
	}
	return nil
}

// GetByCorrelation returns every event recorded for the correlation ID,
// in append order.
func (s *Store) GetByCorrelation(correlationID string) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEvents(s.byCorrelation[correlationID])
}

// GetByOrder returns every event recorded for the order ID, in append
// order.
func (s *Store) GetByOrder(orderID string) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEvents(s.byOrder[orderID])
}

// Replay returns the correlation chain projected to its serialisable
// representation, preserving append order.
func (s *Store) Replay(correlationID string) []map[string]interface{} {
	events := s.GetByCorrelation(correlationID)
	out := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		out = append(out, e.Serialize())
	}
	return out
}

// GetRecent returns the most recent limit events, serialised, in append
// order.
func (s *Store) GetRecent(limit int) []map[string]interface{} {
	s.mu.Lock()
	events := s.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	snapshot := copyEvents(events)
	s.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, e.Serialize())
	}
	return out
}

// Len returns the total number of events appended.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func copyEvents(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)
	return out
}
