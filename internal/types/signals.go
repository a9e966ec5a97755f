package types

import "time"

// SignalRegistration maps an event type to a signal classification.
type SignalRegistration struct {
	ID              string           `json:"id"`
	EventType       string           `json:"event_type"`
	Condition       string           `json:"condition,omitempty"`
	Category        string           `json:"category"`
	Weight          string           `json:"weight"`
	Polarity        string           `json:"polarity"`
	Description     string           `json:"description"`
	EscalationRules []EscalationRule `json:"escalation_rules,omitempty"`
}

// EscalationRule defines when repeated or combined signals escalate in severity.
type EscalationRule struct {
	ID                 string                `json:"id"`
	Description        string                `json:"description"`
	TriggerType        string                `json:"trigger_type"` // "count", "cross_category"
	SignalID           string                `json:"signal_id,omitempty"`
	Count              int                   `json:"count,omitempty"`
	Within             time.Duration         `json:"within,omitempty"`
	RequiredCategories []CategoryRequirement `json:"required_categories,omitempty"`
	EscalatedWeight    string                `json:"escalated_weight"`
	EscalatedSummary   string                `json:"escalated_summary"`
}

// CategoryRequirement is one leg of a cross-category rule.
type CategoryRequirement struct {
	Category string `json:"category"`
	Polarity string `json:"polarity,omitempty"`
	MinCount int    `json:"min_count"`
}

// Signal is a classified activity entry.
type Signal struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	Category       string    `json:"category"`
	Weight         string    `json:"weight"`
	Polarity       string    `json:"polarity"`
	Description    string    `json:"description"`
}

// EscalatedSignal is a rule that fired over a set of signals.
type EscalatedSignal struct {
	Rule             EscalationRule `json:"rule"`
	TriggeringCount  int            `json:"triggering_count"`
	EarliestOccurred time.Time      `json:"earliest_occurred"`
	LatestOccurred   time.Time      `json:"latest_occurred"`
}

// CategorySummary aggregates signals within a single category.
type CategorySummary struct {
	Category         string         `json:"category"`
	SignalCount      int            `json:"signal_count"`
	ByWeight         map[string]int `json:"by_weight"`
	ByPolarity       map[string]int `json:"by_polarity"`
	DominantPolarity string         `json:"dominant_polarity"`
}

// SignalSummary is the funnel health of one session or order.
type SignalSummary struct {
	EntityType  string                     `json:"entity_type"`
	EntityID    string                     `json:"entity_id"`
	Since       time.Time                  `json:"since"`
	Until       time.Time                  `json:"until"`
	Signals     []Signal                   `json:"signals"`
	Categories  map[string]CategorySummary `json:"categories"`
	Escalations []EscalatedSignal          `json:"escalations,omitempty"`
	Health      string                     `json:"health"` // "healthy", "struggling", "at_risk"
	Reason      string                     `json:"reason"`
}
