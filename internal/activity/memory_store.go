package activity

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// MemoryStore implements Store using in-memory slices.
// Intended for development and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []types.ActivityEntry
	seen    map[string]bool
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := entryKey(e)
		if s.seen[k] {
			continue
		}
		s.seen[k] = true
		s.entries = append(s.entries, e)
	}
	return nil
}

func entryKey(e types.ActivityEntry) string {
	return e.EventID + "|" + e.IndexedEntityType + "|" + e.IndexedEntityID
}

func (s *MemoryStore) QueryByEntity(_ context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor time.Time
	hasCursor := false
	if opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			cursor, hasCursor = t, true
		}
	}

	var matched []types.ActivityEntry
	total := 0
	// Newest insertion first so equal timestamps keep reverse write order.
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.IndexedEntityType != entityType || e.IndexedEntityID != entityID {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		if len(opts.EventTypes) > 0 && !slices.Contains(opts.EventTypes, e.EventType) {
			continue
		}
		total++
		if hasCursor && !e.OccurredAt.Before(cursor) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	limit := queryLimit(opts.Limit)
	var nextCursor string
	if len(matched) > limit {
		matched = matched[:limit]
		nextCursor = matched[len(matched)-1].OccurredAt.Format(time.RFC3339Nano)
	}

	return matched, nextCursor, total, nil
}

func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var matched []types.ActivityEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !strings.Contains(strings.ToLower(e.Summary), q) {
			continue
		}
		if opts.EntityType != "" && e.IndexedEntityType != opts.EntityType {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	totalCount := len(matched)
	if limit := searchLimit(opts.Limit); len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, totalCount, nil
}
