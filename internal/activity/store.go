package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity, newest
	// first. totalCount ignores the cursor.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search performs a case-insensitive substring search across summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

const table = "activity_entries"

// SQLStore implements Store on SQLite through ent's SQL builder.
type SQLStore struct {
	drv *entsql.Driver
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(drv *entsql.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.SQLite) }

// CreateTable creates the activity_entries table and its indexes.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS activity_entries (
			event_id            TEXT NOT NULL,
			event_type          TEXT NOT NULL,
			occurred_at         INTEGER NOT NULL,
			indexed_entity_type TEXT NOT NULL,
			indexed_entity_id   TEXT NOT NULL,
			entity_role         TEXT NOT NULL,
			source_refs         TEXT NOT NULL DEFAULT '[]',
			summary             TEXT NOT NULL,
			category            TEXT NOT NULL,
			payload             TEXT,
			PRIMARY KEY (indexed_entity_type, indexed_entity_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_entity_time
			ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at DESC)`,
	} {
		if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
			return fmt.Errorf("creating activity table: %w", err)
		}
	}
	return nil
}

// WriteEntries inserts activity entries. Entries already stored are skipped.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := builder().Insert(table).Columns(
		"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
		"entity_role", "source_refs", "summary", "category", "payload",
	).OnConflict(entsql.DoNothing())
	for _, e := range entries {
		refsJSON, err := json.Marshal(e.SourceRefs)
		if err != nil {
			return fmt.Errorf("encoding source refs: %w", err)
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, payload,
		)
	}
	q, args := ins.Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

var columns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "payload",
}

func (s *SQLStore) scan(ctx context.Context, sel *entsql.Selector) ([]types.ActivityEntry, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var e types.ActivityEntry
		var occurred int64
		var refsJSON string
		var payload sql.NullString
		if err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &payload,
		); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurred).UTC()
		_ = json.Unmarshal([]byte(refsJSON), &e.SourceRefs)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) count(ctx context.Context, where *entsql.Predicate) (int, error) {
	q, args := builder().Select(entsql.Count("*")).From(builder().Table(table)).Where(where).Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}

func inAny(col string, vals []string) *entsql.Predicate {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return entsql.In(col, args...)
}

// entityFilter builds the shared filter of QueryByEntity. A fresh predicate
// is built per call because predicates are not reusable across selectors.
func entityFilter(entityType, entityID string, opts QueryOptions, withCursor bool) *entsql.Predicate {
	preds := []*entsql.Predicate{
		entsql.EQ("indexed_entity_type", entityType),
		entsql.EQ("indexed_entity_id", entityID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		preds = append(preds, inAny("category", opts.Categories))
	}
	if len(opts.EventTypes) > 0 {
		preds = append(preds, inAny("event_type", opts.EventTypes))
	}
	if withCursor && opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			preds = append(preds, entsql.LT("occurred_at", t.UnixNano()))
		}
	}
	return entsql.And(preds...)
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	limit := queryLimit(opts.Limit)

	sel := builder().Select(columns...).
		From(builder().Table(table)).
		Where(entityFilter(entityType, entityID, opts, true)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit + 1) // fetch one extra for cursor
	entries, err := s.scan(ctx, sel)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}

	total, err := s.count(ctx, entityFilter(entityType, entityID, opts, false))
	if err != nil {
		return nil, "", 0, err
	}
	return entries, nextCursor, total, nil
}

// Search performs a case-insensitive search across activity summaries.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	filter := func() *entsql.Predicate {
		preds := []*entsql.Predicate{entsql.ContainsFold("summary", query)}
		if opts.EntityType != "" {
			preds = append(preds, entsql.EQ("indexed_entity_type", opts.EntityType))
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, inAny("category", opts.Categories))
		}
		return entsql.And(preds...)
	}

	sel := builder().Select(columns...).
		From(builder().Table(table)).
		Where(filter()).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(searchLimit(opts.Limit))
	entries, err := s.scan(ctx, sel)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.count(ctx, filter())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
