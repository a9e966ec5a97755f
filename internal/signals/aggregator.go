package signals

import (
	"slices"
	"time"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Aggregate classifies the activity entries of one entity and summarizes
// them over [since, until]. Escalation windows end at until.
func Aggregate(entries []types.ActivityEntry, entityType, entityID string, since, until time.Time) types.SignalSummary {
	var sigs []types.Signal
	for _, e := range entries {
		if e.OccurredAt.Before(since) || e.OccurredAt.After(until) {
			continue
		}
		if s, ok := Classify(e); ok {
			sigs = append(sigs, s)
		}
	}
	slices.SortStableFunc(sigs, func(a, b types.Signal) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})

	categories := make(map[string]types.CategorySummary)
	for _, s := range sigs {
		cs, ok := categories[s.Category]
		if !ok {
			cs = types.CategorySummary{
				Category:   s.Category,
				ByWeight:   make(map[string]int),
				ByPolarity: make(map[string]int),
			}
		}
		cs.SignalCount++
		cs.ByWeight[s.Weight]++
		cs.ByPolarity[s.Polarity]++
		categories[s.Category] = cs
	}
	for cat, cs := range categories {
		cs.DominantPolarity = dominantPolarity(cs.ByPolarity)
		categories[cat] = cs
	}

	escalations := EvaluateEscalations(sigs, until)
	health, reason := computeHealth(categories, escalations)
	if sigs == nil {
		sigs = []types.Signal{}
	}

	return types.SignalSummary{
		EntityType:  entityType,
		EntityID:    entityID,
		Since:       since,
		Until:       until,
		Signals:     sigs,
		Categories:  categories,
		Escalations: escalations,
		Health:      health,
		Reason:      reason,
	}
}

// EvaluateEscalations checks every count and cross-category rule against
// the signals. A rule fires at most once.
func EvaluateEscalations(sigs []types.Signal, now time.Time) []types.EscalatedSignal {
	var escalated []types.EscalatedSignal
	for _, reg := range Registry {
		for _, rule := range reg.EscalationRules {
			if es, ok := evaluateRule(rule, sigs, now); ok {
				escalated = append(escalated, es)
			}
		}
	}
	for _, rule := range CrossCategoryRules {
		if es, ok := evaluateRule(rule, sigs, now); ok {
			escalated = append(escalated, es)
		}
	}
	return escalated
}

func evaluateRule(rule types.EscalationRule, sigs []types.Signal, now time.Time) (types.EscalatedSignal, bool) {
	switch rule.TriggerType {
	case "count":
		return evaluateCountRule(rule, sigs, now)
	case "cross_category":
		return evaluateCrossCategoryRule(rule, sigs, now)
	default:
		return types.EscalatedSignal{}, false
	}
}

func evaluateCountRule(rule types.EscalationRule, sigs []types.Signal, now time.Time) (types.EscalatedSignal, bool) {
	windowStart := now.Add(-rule.Within)

	var matching []types.Signal
	for _, s := range sigs {
		if s.OccurredAt.Before(windowStart) {
			continue
		}
		if rule.SignalID != "" && s.RegistrationID != rule.SignalID {
			continue
		}
		matching = append(matching, s)
	}
	if len(matching) < rule.Count {
		return types.EscalatedSignal{}, false
	}
	return types.EscalatedSignal{
		Rule:             rule,
		TriggeringCount:  len(matching),
		EarliestOccurred: matching[0].OccurredAt,
		LatestOccurred:   matching[len(matching)-1].OccurredAt,
	}, true
}

func evaluateCrossCategoryRule(rule types.EscalationRule, sigs []types.Signal, now time.Time) (types.EscalatedSignal, bool) {
	windowStart := now.Add(-rule.Within)

	counts := make(map[string]int)
	var earliest, latest time.Time
	for _, s := range sigs {
		if s.OccurredAt.Before(windowStart) {
			continue
		}
		for _, req := range rule.RequiredCategories {
			if s.Category != req.Category || (req.Polarity != "" && s.Polarity != req.Polarity) {
				continue
			}
			counts[req.Category]++
			if earliest.IsZero() || s.OccurredAt.Before(earliest) {
				earliest = s.OccurredAt
			}
			if s.OccurredAt.After(latest) {
				latest = s.OccurredAt
			}
		}
	}

	total := 0
	for _, req := range rule.RequiredCategories {
		if counts[req.Category] < req.MinCount {
			return types.EscalatedSignal{}, false
		}
		total += counts[req.Category]
	}
	return types.EscalatedSignal{
		Rule:             rule,
		TriggeringCount:  total,
		EarliestOccurred: earliest,
		LatestOccurred:   latest,
	}, true
}

// dominantPolarity returns the polarity with the highest count. Ties go to
// the negative polarity.
func dominantPolarity(byPolarity map[string]int) string {
	best, bestCount := "", 0
	for _, p := range []string{"negative", "positive", "neutral"} {
		if c := byPolarity[p]; c > bestCount {
			best, bestCount = p, c
		}
	}
	return best
}

func computeHealth(categories map[string]types.CategorySummary, escalations []types.EscalatedSignal) (string, string) {
	for _, e := range escalations {
		if e.Rule.EscalatedWeight == "critical" {
			return "at_risk", "Critical escalation: " + e.Rule.EscalatedSummary
		}
	}

	var strong, negative, positive int
	for _, cs := range categories {
		strong += cs.ByWeight["strong"] + cs.ByWeight["critical"]
		negative += cs.ByPolarity["negative"]
		positive += cs.ByPolarity["positive"]
	}
	if _, converted := categories[CategoryConversion]; converted && len(escalations) == 0 {
		return "healthy", "Order confirmed."
	}
	if len(escalations) > 0 || strong >= 2 || negative > positive {
		return "struggling", "Friction outweighs progress."
	}
	return "healthy", "Activity is predominantly progress."
}
