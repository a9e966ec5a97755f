// Package order owns the canonical in-progress order of one session. It is
// the only component with mutation authority: every named operation edits the
// state, runs the reset cascade and re-filters add-on selections against the
// current catalog answer. An Order is not safe for concurrent use; callers
// serialize access per session.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/eligibility"
	"github.com/matthewbaird/fiberorder/internal/pricing"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// ErrIncomplete is returned when an order number is requested for an order
// that is missing required data.
var ErrIncomplete = errors.New("order incomplete")

// Order holds one session's order state.
type Order struct {
	state  types.OrderState
	policy types.Policy
	now    func() time.Time
	mint   func(time.Time) string
}

// Option configures an Order.
type Option func(*Order)

// WithClock overrides the clock used for confirmation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Order) { o.now = now }
}

// WithOrderNumbers overrides the order number generator.
func WithOrderNumbers(mint func(time.Time) string) Option {
	return func(o *Order) { o.mint = mint }
}

// New returns an empty order at step 1.
func New(p types.Policy, opts ...Option) *Order {
	o := &Order{
		state:  types.NewOrderState(),
		policy: p,
		now:    time.Now,
		mint:   NewOrderNumber,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewOrderNumber mints "FO-YYYYMMDD-XXXXXXXX".
func NewOrderNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("FO-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(id[:8]))
}

// Policy returns the pricing policy the order was created with.
func (o *Order) Policy() types.Policy { return o.policy }

// Snapshot returns a deep copy of the current state.
func (o *Order) Snapshot() types.OrderState { return o.state.Clone() }

// Step returns the step cursor.
func (o *Order) Step() int { return o.state.Step }

// Options resolves the add-ons the customer may currently choose from.
func (o *Order) Options() eligibility.Options {
	return eligibility.Resolve(o.state.Eligibility, &o.state.Configuration)
}

// Quote recomputes prices from the current configuration. Nothing is cached.
func (o *Order) Quote() pricing.Quote {
	return pricing.Compute(o.state.Configuration.Clone(), o.policy)
}

// Reset discards the whole order, including personal data.
func (o *Order) Reset() {
	o.state = types.NewOrderState()
}

// apply runs change, then the cascade for m, then eligibility normalization.
// While the catalog answer is pending normalization waits for it, so a
// tariff or address switch never clears a selection the new answer keeps.
func (o *Order) apply(m cascade.Mutation, change func(s *types.OrderState)) cascade.Result {
	change(&o.state)
	res := cascade.Apply(m, &o.state, o.policy)
	if o.state.Eligibility != nil {
		res.Merge(eligibility.Normalize(&o.state)...)
	}
	res.Cleared = dedupe(res.Cleared)
	return res
}

// applyAnswer stores a catalog answer. The confirmation is revoked only when
// the answer changes the configuration.
func (o *Order) applyAnswer(m cascade.Mutation, change func(s *types.OrderState)) cascade.Result {
	before := o.state.Configuration.Clone()
	res := o.apply(m, change)
	if !cmp.Equal(before, o.state.Configuration) {
		res.Invalidate(&o.state)
	}
	return res
}

// ignored is the result of an input that was normalized away.
func ignored(m cascade.Mutation) cascade.Result {
	return cascade.Result{Mutation: m}
}

func dedupe(fields []string) []string {
	if len(fields) < 2 {
		return fields
	}
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// CanNavigateToStep reports whether step n may be entered from any step.
func (o *Order) CanNavigateToStep(n int) bool {
	return CanNavigateToStep(&o.state, n)
}

// CanNavigateToStep is the pure gate predicate: step 2 needs a connected
// address, step 3 a tariff, step 4 customer and bank data.
func CanNavigateToStep(s *types.OrderState, n int) bool {
	switch n {
	case types.StepAddress:
		return true
	case types.StepTariff:
		return s.Configuration.Address.Connected()
	case types.StepCustomer:
		return s.Configuration.Tariff != nil
	case types.StepReview:
		return s.Customer.Present() && s.Bank.Present()
	}
	return false
}

// SetStep moves the cursor. Forward moves need the target gate; a failing
// gate is a no-op. Moving back is always allowed, and moving back to step 2
// or earlier resets the tariff selection while keeping personal data.
func (o *Order) SetStep(n int) (cascade.Result, bool) {
	cur := o.state.Step
	switch {
	case n == cur:
		return cascade.Result{}, true
	case n > cur:
		if !o.CanNavigateToStep(n) {
			return cascade.Result{}, false
		}
		o.state.Step = n
		return cascade.Result{}, true
	case n < types.StepAddress:
		return cascade.Result{}, false
	case n <= types.StepTariff:
		return o.apply(cascade.BackNavigation, func(s *types.OrderState) { s.Step = n }), true
	default:
		o.state.Step = n
		return cascade.Result{}, true
	}
}

// GenerateOrderNumber confirms the order. While the order stays confirmed it
// returns the same number.
func (o *Order) GenerateOrderNumber() (string, error) {
	s := &o.state
	if s.Confirmation.Confirmed() {
		return s.Confirmation.OrderNumber, nil
	}
	var missing []string
	if !s.Configuration.Address.Connected() {
		missing = append(missing, "address")
	}
	if s.Configuration.Tariff == nil {
		missing = append(missing, "tariff")
	}
	if !s.Customer.Present() {
		missing = append(missing, "customer data")
	}
	if !s.Bank.Present() {
		missing = append(missing, "bank data")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	now := o.now()
	s.Confirmation = types.Confirmation{OrderNumber: o.mint(now), ConfirmedAt: &now}
	return s.Confirmation.OrderNumber, nil
}
