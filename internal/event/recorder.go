// Package event provides the domain events of the order funnel. Every event
// names the session it belongs to and, where relevant, the order, tariff or
// building it touched; the recorder indexes it once per such entity.
package event

import (
	"context"
	"fmt"

	"github.com/matthewbaird/fiberorder/internal/activity"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// Recorder persists domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher hands recorded events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// Entries indexes the event under each affected entity.
func (e DomainEvent) Entries() []types.ActivityEntry {
	entries := make([]types.ActivityEntry, len(e.AffectedEntities))
	for i, ref := range e.AffectedEntities {
		entries[i] = e.entryFor(ref)
	}
	return entries
}

// Entry is the event indexed under its first affected entity, or under no
// entity when it has none.
func (e DomainEvent) Entry() types.ActivityEntry {
	if len(e.AffectedEntities) == 0 {
		return e.entryFor(types.SourceRef{})
	}
	return e.entryFor(e.AffectedEntities[0])
}

func (e DomainEvent) entryFor(ref types.SourceRef) types.ActivityEntry {
	return types.ActivityEntry{
		EventID:           e.ID,
		EventType:         e.EventType,
		OccurredAt:        e.OccurredAt,
		IndexedEntityType: ref.EntityType,
		IndexedEntityID:   ref.EntityID,
		EntityRole:        ref.Role,
		SourceRefs:        e.AffectedEntities,
		Summary:           e.Summary,
		Category:          e.Category,
		Payload:           e.Payload,
	}
}

// ActivityRecorder writes the entries of each event to an activity.Store and
// then publishes the event, so consumers never see an event the feed lacks.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes the event's entries and publishes it. Events without
// affected entities are published only.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if entries := evt.Entries(); len(entries) > 0 {
		if err := r.store.WriteEntries(ctx, entries); err != nil {
			return fmt.Errorf("recording %s: %w", evt.EventType, err)
		}
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Discard drops every event. Sessions use it when no recorder is configured.
type Discard struct{}

func (Discard) Record(context.Context, DomainEvent) error { return nil }
