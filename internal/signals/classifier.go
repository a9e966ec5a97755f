package signals

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Classify maps an activity entry to a signal. Registrations with a
// condition are tried first, in registry order; the first unconditional
// registration is the fallback.
//
// Returns ok=false if no registration matches the event type.
func Classify(entry types.ActivityEntry) (types.Signal, bool) {
	registrations := Lookup(entry.EventType)
	if len(registrations) == 0 {
		return types.Signal{}, false
	}

	var payload map[string]any
	if len(entry.Payload) > 0 {
		_ = json.Unmarshal(entry.Payload, &payload)
	}

	var fallback *types.SignalRegistration
	for i := range registrations {
		reg := &registrations[i]
		if reg.Condition == "" {
			if fallback == nil {
				fallback = reg
			}
			continue
		}
		if matchCondition(reg.Condition, payload) {
			return signalOf(reg, entry), true
		}
	}
	if fallback != nil {
		return signalOf(fallback, entry), true
	}
	return types.Signal{}, false
}

func signalOf(reg *types.SignalRegistration, entry types.ActivityEntry) types.Signal {
	return types.Signal{
		RegistrationID: reg.ID,
		EventID:        entry.EventID,
		EventType:      entry.EventType,
		OccurredAt:     entry.OccurredAt,
		Category:       reg.Category,
		Weight:         reg.Weight,
		Polarity:       reg.Polarity,
		Description:    reg.Description,
	}
}

// matchCondition matches "field == value", "field > N", "field < N",
// "field <= N" and "field >= N" against top-level payload fields.
func matchCondition(condition string, payload map[string]any) bool {
	if payload == nil {
		return false
	}

	// Two-char operators before single-char.
	for _, op := range []string{"<=", ">=", "==", "<", ">"} {
		key, expected, found := strings.Cut(condition, op)
		if !found {
			continue
		}
		actual, exists := payload[strings.TrimSpace(key)]
		if !exists {
			return false
		}
		expected = strings.TrimSpace(expected)
		switch op {
		case "==":
			return valueEquals(actual, expected)
		case "<=":
			return valueCompare(actual, expected) <= 0
		case ">=":
			return valueCompare(actual, expected) >= 0
		case "<":
			return valueCompare(actual, expected) < 0
		case ">":
			return valueCompare(actual, expected) > 0
		}
	}
	return false
}

func valueEquals(actual any, expected string) bool {
	switch v := actual.(type) {
	case string:
		return v == expected
	case float64:
		ev, err := strconv.ParseFloat(expected, 64)
		if err != nil {
			return strconv.FormatFloat(v, 'f', -1, 64) == expected
		}
		return v == ev
	case bool:
		return strconv.FormatBool(v) == expected
	default:
		return false
	}
}

// valueCompare returns -1, 0, or 1 comparing actual to threshold numerically.
func valueCompare(actual any, threshold string) int {
	av, ok := actual.(float64)
	if !ok {
		return 0
	}
	tv, err := strconv.ParseFloat(threshold, 64)
	if err != nil {
		return 0
	}
	switch {
	case av < tv:
		return -1
	case av > tv:
		return 1
	}
	return 0
}
