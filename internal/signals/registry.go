// Package signals classifies funnel activity into weighted signals and
// rolls them up into a health summary per session or order.
package signals

import (
	"sync"
	"time"

	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// Signal categories.
const (
	CategoryProgress    = "progress"
	CategoryFriction    = "friction"
	CategoryConversion  = "conversion"
	CategoryAbandonment = "abandonment"
)

// WeightOrder maps signal weights to numeric severity (lower = more severe).
var WeightOrder = map[string]int{
	"critical": 1,
	"strong":   2,
	"moderate": 3,
	"weak":     4,
	"info":     5,
}

// Registry contains every signal registration of the funnel.
var Registry = []types.SignalRegistration{
	{
		ID:          "address_connected",
		EventType:   event.TypeAddressResolved,
		Condition:   "connection_type == " + string(types.ConnectionFTTH),
		Category:    CategoryProgress,
		Weight:      "info",
		Polarity:    "positive",
		Description: "Address has a fiber connection",
	},
	{
		ID:          "address_limited",
		EventType:   event.TypeAddressResolved,
		Condition:   "connection_type == " + string(types.ConnectionLimited),
		Category:    CategoryProgress,
		Weight:      "weak",
		Polarity:    "positive",
		Description: "Address has a limited (FTTB) connection",
	},
	{
		ID:          "address_not_connected",
		EventType:   event.TypeAddressResolved,
		Condition:   "connection_type == " + string(types.ConnectionNotConnected),
		Category:    CategoryFriction,
		Weight:      "strong",
		Polarity:    "negative",
		Description: "Address is not connected",
	},
	{
		ID:          "tariff_selected",
		EventType:   event.TypeTariffSelected,
		Category:    CategoryProgress,
		Weight:      "info",
		Polarity:    "positive",
		Description: "Tariff selected",
	},
	{
		ID:          "promo_code_unknown",
		EventType:   event.TypePromoCodeRejected,
		Condition:   "reason == " + order.MsgPromoCodeNotFound,
		Category:    CategoryFriction,
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Promo code not found",
		EscalationRules: []types.EscalationRule{
			{
				ID:               "promo_code_guessing",
				Description:      "Repeated unknown promo codes",
				TriggerType:      "count",
				SignalID:         "promo_code_unknown",
				Count:            3,
				Within:           15 * time.Minute,
				EscalatedWeight:  "strong",
				EscalatedSummary: "3+ rejected promo codes within 15 minutes.",
			},
		},
	},
	{
		ID:          "promo_code_rejected",
		EventType:   event.TypePromoCodeRejected,
		Category:    CategoryFriction,
		Weight:      "weak",
		Polarity:    "negative",
		Description: "Promo code rejected",
	},
	{
		ID:          "session_reset",
		EventType:   event.TypeSessionReset,
		Category:    CategoryFriction,
		Weight:      "weak",
		Polarity:    "negative",
		Description: "Order started over",
	},
	{
		ID:          "confirmation_invalidated",
		EventType:   event.TypeConfirmationInvalidated,
		Category:    CategoryFriction,
		Weight:      "strong",
		Polarity:    "negative",
		Description: "Confirmed order revoked by an edit",
		EscalationRules: []types.EscalationRule{
			{
				ID:               "repeated_rework",
				Description:      "Order revoked and reconfirmed repeatedly",
				TriggerType:      "count",
				SignalID:         "confirmation_invalidated",
				Count:            2,
				Within:           time.Hour,
				EscalatedWeight:  "critical",
				EscalatedSummary: "Order revoked 2+ times within an hour.",
			},
		},
	},
	{
		ID:          "order_confirmed",
		EventType:   event.TypeOrderConfirmed,
		Category:    CategoryConversion,
		Weight:      "info",
		Polarity:    "positive",
		Description: "Order confirmed",
	},
	{
		ID:          "session_expired",
		EventType:   event.TypeSessionEnded,
		Condition:   "reason == expired",
		Category:    CategoryAbandonment,
		Weight:      "moderate",
		Polarity:    "negative",
		Description: "Session expired without further activity",
	},
}

// CrossCategoryRules span several signal categories.
var CrossCategoryRules = []types.EscalationRule{
	{
		ID:          "abandoned_after_friction",
		Description: "Session abandoned after repeated friction",
		TriggerType: "cross_category",
		Within:      24 * time.Hour,
		RequiredCategories: []types.CategoryRequirement{
			{Category: CategoryFriction, Polarity: "negative", MinCount: 2},
			{Category: CategoryAbandonment, MinCount: 1},
		},
		EscalatedWeight:  "critical",
		EscalatedSummary: "Session expired after 2+ friction signals.",
	},
}

var byEventType = sync.OnceValue(func() map[string][]types.SignalRegistration {
	m := make(map[string][]types.SignalRegistration, len(Registry))
	for _, reg := range Registry {
		m[reg.EventType] = append(m[reg.EventType], reg)
	}
	return m
})

// Lookup returns all registrations matching the given event type.
func Lookup(eventType string) []types.SignalRegistration {
	return byEventType()[eventType]
}

// WeightSeverity returns the numeric severity for a weight (lower = more severe).
// Returns 6 for unknown weights.
func WeightSeverity(weight string) int {
	if s, ok := WeightOrder[weight]; ok {
		return s
	}
	return 6
}

// IsAtLeastWeight returns true if actual is at least as severe as minimum.
func IsAtLeastWeight(actual, minimum string) bool {
	return WeightSeverity(actual) <= WeightSeverity(minimum)
}
