// Package session manages the lifecycle of ordering sessions. Each session
// owns exactly one order; all access to it is serialized by the session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/lookup"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// ErrNotFound is returned for unknown, expired or ended sessions.
var ErrNotFound = errors.New("session not found")

// Session holds one customer's order.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu           sync.Mutex
	lastActiveAt time.Time
	order        *order.Order
	lookups      *lookup.Coordinator
	recorder     event.Recorder
	logger       *zap.Logger
	now          func() time.Time
	listeners    map[int]func(types.OrderState)
	nextListener int
}

// Update runs fn with exclusive access to the order and records the domain
// events its cascade result implies.
func (s *Session) Update(ctx context.Context, fn func(o *order.Order) cascade.Result) cascade.Result {
	s.mu.Lock()
	s.lastActiveAt = s.now()
	res := fn(s.order)
	after := s.order.Snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	for _, evt := range s.eventsFor(res, after) {
		s.record(ctx, evt)
	}
	if res.Mutation != "" {
		for _, l := range listeners {
			l(after)
		}
	}
	return res
}

// View runs fn with exclusive access to the order. fn must not mutate it.
func (s *Session) View(fn func(o *order.Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = s.now()
	fn(s.order)
}

// Snapshot returns a copy of the order state.
func (s *Session) Snapshot() types.OrderState {
	var st types.OrderState
	s.View(func(o *order.Order) { st = o.Snapshot() })
	return st
}

// Lookups returns the catalog lookup coordinator of this session.
func (s *Session) Lookups() *lookup.Coordinator { return s.lookups }

// OnChange registers fn to receive the order state after every mutation.
// It returns a function that removes the registration.
func (s *Session) OnChange(fn func(types.OrderState)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(types.OrderState))
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) listenersLocked() []func(types.OrderState) {
	out := make([]func(types.OrderState), 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// Confirm mints the order number. Confirming an already confirmed order
// returns the same number without a new event.
func (s *Session) Confirm(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.lastActiveAt = s.now()
	was := s.order.Snapshot().Confirmation.OrderNumber
	num, err := s.order.GenerateOrderNumber()
	q := s.order.Quote()
	state := s.order.Snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if was != num {
		s.record(ctx, event.NewOrderConfirmed(event.OrderConfirmedPayload{
			SessionID:   s.ID,
			OrderNumber: num,
			Monthly:     types.EUR(q.Monthly.TotalCents),
			OneTime:     types.EUR(q.OneTime.TotalCents),
		}))
		for _, l := range listeners {
			l(state)
		}
	}
	return num, nil
}

// Reset discards the order and starts over. Lookups in flight are dropped.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.lastActiveAt = s.now()
	s.order.Reset()
	s.lookups.Tracker().Forget()
	state := s.order.Snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.record(ctx, event.NewSessionReset(event.SessionPayload{SessionID: s.ID}))
	for _, l := range listeners {
		l(state)
	}
}

// LastActiveAt returns when the session was last used.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActiveAt = s.now()
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, maxAge, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.CreatedAt) > maxAge || now.Sub(s.lastActiveAt) > idle
}

func (s *Session) record(ctx context.Context, evt event.DomainEvent) {
	if err := s.recorder.Record(ctx, evt); err != nil {
		s.logger.Warn("recording event failed",
			zap.String("event_type", evt.EventType),
			zap.Error(err))
	}
}

// eventsFor derives domain events from a mutation result.
func (s *Session) eventsFor(res cascade.Result, after types.OrderState) []event.DomainEvent {
	var out []event.DomainEvent
	cfg := after.Configuration
	switch res.Mutation {
	case cascade.AddressReplaced:
		if cfg.Address != nil {
			a := cfg.Address
			out = append(out, event.NewAddressResolved(event.AddressResolvedPayload{
				SessionID: s.ID, Street: a.Street, HouseNumber: a.HouseNumber, City: a.City,
				BuildingID: a.BuildingID, ConnectionType: a.ConnectionType,
			}))
		}
	case cascade.TariffReplaced:
		if cfg.Tariff != nil {
			out = append(out, event.NewTariffSelected(event.TariffSelectedPayload{
				SessionID: s.ID, TariffID: cfg.Tariff.ID, Monthly: types.EUR(cfg.Tariff.MonthlyCents),
			}))
		}
	case cascade.PromoCodeRejected:
		out = append(out, event.NewPromoCodeRejected(event.PromoCodeRejectedPayload{
			SessionID: s.ID, Reason: cfg.PromoCodeError,
		}))
	}
	if res.Invalidated {
		out = append(out, event.NewConfirmationInvalidated(event.ConfirmationInvalidatedPayload{
			SessionID:   s.ID,
			OrderNumber: res.RevokedOrderNumber,
			Mutation:    string(res.Mutation),
			Cleared:     res.Cleared,
		}))
	}
	return out
}

// Options configures a Manager.
type Options struct {
	MaxAge      time.Duration
	IdleTimeout time.Duration
	Policy      types.Policy
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	provider catalog.Provider
	recorder event.Recorder
	logger   *zap.Logger
}

// NewManager creates a session manager. A nil recorder discards events.
func NewManager(opts Options, provider catalog.Provider, recorder event.Recorder, logger *zap.Logger) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if recorder == nil {
		recorder = event.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		provider: provider,
		recorder: recorder,
		logger:   logger,
	}
}

// Create starts a new session with an empty order.
func (m *Manager) Create(ctx context.Context) *Session {
	now := m.opts.Clock()
	s := &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		lastActiveAt: now,
		order:        order.New(m.opts.Policy, order.WithClock(m.opts.Clock)),
		recorder:     m.recorder,
		now:          m.opts.Clock,
	}
	s.logger = m.logger.With(zap.String("session_id", s.ID))
	s.lookups = lookup.NewCoordinator(m.provider, s, s.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.logger.Info("session started")
	s.record(ctx, event.NewSessionStarted(event.SessionPayload{SessionID: s.ID}))
	return s
}

// Get retrieves a live session and marks it active.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(m.opts.Clock(), m.opts.MaxAge, m.opts.IdleTimeout) {
		m.end(ctx, id, "expired")
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Remove ends a session, as on logout. Its order is discarded.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if !m.end(ctx, id, "logout") {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) end(ctx context.Context, id, reason string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.logger.Info("session ended", zap.String("reason", reason))
	s.record(ctx, event.NewSessionEnded(event.SessionPayload{SessionID: id, Reason: reason}))
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many.
func (m *Manager) Cleanup(ctx context.Context) int {
	now := m.opts.Clock()
	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.expired(now, m.opts.MaxAge, m.opts.IdleTimeout) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if m.end(ctx, id, "expired") {
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(ctx); n > 0 {
				m.logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
