package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/signals"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// signalHorizon bounds how long signals are kept per session. It matches the
// longest escalation window.
const signalHorizon = 24 * time.Hour

// SignalConsumer classifies domain events against the signal registry and
// logs when an escalation rule fires for a session. Each rule is reported
// once per session.
type SignalConsumer struct {
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionSignals
}

type sessionSignals struct {
	signals []types.Signal
	fired   map[string]bool
}

// NewSignalConsumer creates a new signal classification consumer.
func NewSignalConsumer(logger *zap.Logger) *SignalConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalConsumer{logger: logger, sessions: make(map[string]*sessionSignals)}
}

// HandleEvent classifies the domain event and evaluates escalations over the
// session's recent signals.
func (c *SignalConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	sig, ok := signals.Classify(evt.Entry())
	if !ok {
		return nil
	}
	sessionID := subject(evt, "session")
	c.logger.Debug("signal",
		zap.String("session_id", sessionID),
		zap.String("signal", sig.RegistrationID),
		zap.String("category", sig.Category),
		zap.String("weight", sig.Weight))
	if sessionID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ss, ok := c.sessions[sessionID]
	if !ok {
		ss = &sessionSignals{fired: make(map[string]bool)}
		c.sessions[sessionID] = ss
	}
	ss.signals = append(ss.signals, sig)
	cutoff := sig.OccurredAt.Add(-signalHorizon)
	for len(ss.signals) > 0 && ss.signals[0].OccurredAt.Before(cutoff) {
		ss.signals = ss.signals[1:]
	}

	for _, es := range signals.EvaluateEscalations(ss.signals, sig.OccurredAt) {
		if ss.fired[es.Rule.ID] {
			continue
		}
		ss.fired[es.Rule.ID] = true
		c.logger.Warn("signal escalation",
			zap.String("session_id", sessionID),
			zap.String("rule", es.Rule.ID),
			zap.String("weight", es.Rule.EscalatedWeight),
			zap.Int("count", es.TriggeringCount),
			zap.String("summary", es.Rule.EscalatedSummary))
	}

	// Nothing follows an ended session.
	if evt.EventType == event.TypeSessionEnded {
		delete(c.sessions, sessionID)
	}
	return nil
}

func subject(evt event.DomainEvent, entityType string) string {
	for _, ref := range evt.AffectedEntities {
		if ref.EntityType == entityType {
			return ref.EntityID
		}
	}
	return ""
}
