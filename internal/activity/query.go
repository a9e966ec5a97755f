// Package activity provides the activity store interface and implementations
// for the per-session audit trail of the order funnel.
package activity

import "time"

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string // "session", "configuration", "confirmation"
	EventTypes []string
	Limit      int    // max results (default: 100, max: 500)
	Cursor     string // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for full-text activity search.
type SearchOptions struct {
	EntityType string     // filter to specific entity type
	Since      *time.Time // filter by time
	Categories []string
	Limit      int // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions covering the last day.
func DefaultQueryOptions() QueryOptions {
	dayAgo := time.Now().Add(-24 * time.Hour)
	return QueryOptions{
		Since: &dayAgo,
		Limit: 100,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: 20,
	}
}

func queryLimit(n int) int {
	if n <= 0 || n > 500 {
		return 100
	}
	return n
}

func searchLimit(n int) int {
	if n <= 0 {
		return 20
	}
	return n
}
