package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// Target gives serialized access to the order a coordinator works for.
// Update runs fn while holding the order exclusively and returns its result.
type Target interface {
	Update(ctx context.Context, fn func(o *order.Order) cascade.Result) cascade.Result
}

// Coordinator runs catalog lookups for one order. Provider calls happen
// outside the order lock; results are written back only while their tag is
// current.
type Coordinator struct {
	provider catalog.Provider
	target   Target
	tracker  *Tracker
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator for target.
func NewCoordinator(p catalog.Provider, target Target, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{provider: p, target: target, tracker: NewTracker(), logger: logger}
}

// Tracker exposes the coordinator's tag tracker.
func (c *Coordinator) Tracker() *Tracker { return c.tracker }

// read runs fn under the order lock without mutating.
func (c *Coordinator) read(ctx context.Context, fn func(o *order.Order)) {
	c.target.Update(ctx, func(o *order.Order) cascade.Result {
		fn(o)
		return cascade.Result{}
	})
}

// commit writes a result if tag is still current. When key is set, the
// input key derived from the order at commit time must also still equal the
// tag's key; a customer type switch, for example, outdates an address
// lookup without starting a new one.
func (c *Coordinator) commit(ctx context.Context, tag Tag, key func(cfg types.Configuration) string, fn func(o *order.Order) cascade.Result) (cascade.Result, error) {
	var stale bool
	res := c.target.Update(ctx, func(o *order.Order) cascade.Result {
		if !c.tracker.Current(tag) || (key != nil && key(o.Snapshot().Configuration) != tag.Key) {
			stale = true
			return cascade.Result{}
		}
		return fn(o)
	})
	if stale {
		c.logger.Debug("discarding stale lookup",
			zap.String("channel", string(tag.Channel)), zap.String("key", tag.Key))
		return cascade.Result{}, ErrStale
	}
	return res, nil
}

func (c *Coordinator) configuration(ctx context.Context) types.Configuration {
	var cfg types.Configuration
	c.read(ctx, func(o *order.Order) { cfg = o.Snapshot().Configuration })
	return cfg
}

// eligibilityKey is the input key of an add-on catalog lookup.
func eligibilityKey(cfg types.Configuration) string {
	var tariffID, buildingID string
	if cfg.Tariff != nil {
		tariffID = cfg.Tariff.ID
	}
	if cfg.Address != nil {
		buildingID = cfg.Address.BuildingID
	}
	return strings.Join([]string{tariffID, buildingID, string(cfg.CustomerType)}, "|")
}

// promotionsKey is the input key of a promotion lookup.
func promotionsKey(cfg types.Configuration) string {
	if cfg.Address == nil || cfg.Tariff == nil {
		return ""
	}
	return cfg.Address.BuildingID + "|" + cfg.Address.Street + "|" + cfg.Tariff.ID
}

// ResolveAddress looks up an address and makes it the order's address. The
// catalog answers for the selected tariff are refreshed afterwards. A failed
// lookup leaves the order unchanged.
func (c *Coordinator) ResolveAddress(ctx context.Context, street, houseNumber, city string) (cascade.Result, error) {
	ct := c.configuration(ctx).CustomerType
	tag := c.tracker.Begin(ChannelAddress, types.LookupKey(street, houseNumber, city, ct))
	addr, err := c.provider.LookupAddress(ctx, street, houseNumber, city, ct)
	if err != nil {
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("resolve address: %w", err)
	}
	key := func(cfg types.Configuration) string {
		return types.LookupKey(street, houseNumber, city, cfg.CustomerType)
	}
	res, err := c.commit(ctx, tag, key, func(o *order.Order) cascade.Result { return o.SetAddress(addr) })
	if err != nil {
		return res, err
	}
	c.logger.Info("address resolved",
		zap.String("building_id", addr.BuildingID),
		zap.String("connection_type", string(addr.ConnectionType)))
	return res, c.refresh(ctx, &res)
}

// SelectTariff loads a tariff and its add-on catalog and selects both in one
// update, so selections the new catalog still offers survive the switch.
// Promotions are fetched afterwards. A failed lookup leaves the order
// unchanged; of overlapping selections the latest wins.
func (c *Coordinator) SelectTariff(ctx context.Context, tariffID string) (cascade.Result, error) {
	t, err := c.provider.Tariff(ctx, tariffID)
	if err != nil {
		return cascade.Result{}, fmt.Errorf("select tariff: %w", err)
	}

	cfg := c.configuration(ctx)
	cfg.Tariff = t
	answerKey := eligibilityKey(cfg)
	var buildingID string
	if cfg.Address != nil {
		buildingID = cfg.Address.BuildingID
	}

	tag := c.tracker.Begin(ChannelTariff, answerKey)
	e, err := c.provider.Eligibility(ctx, t.ID, buildingID, cfg.CustomerType)
	if err != nil {
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("select tariff: %w", err)
	}

	var answered bool
	res, err := c.commit(ctx, tag, nil, func(o *order.Order) cascade.Result {
		res := o.SetTariff(t)
		// The address or customer type may have moved on while fetching.
		if eligibilityKey(o.Snapshot().Configuration) == answerKey {
			answered = true
			res.Combine(o.ApplyEligibility(e))
		}
		return res
	})
	if err != nil {
		return res, err
	}
	if !answered {
		return res, c.refresh(ctx, &res)
	}
	p, err := c.RefreshPromotions(ctx)
	if errors.Is(err, ErrStale) {
		return res, nil
	}
	res.Combine(p)
	return res, err
}

// SetCustomerType switches the catalog and refreshes the catalog answers.
func (c *Coordinator) SetCustomerType(ctx context.Context, ct types.CustomerType) (cascade.Result, error) {
	res := c.target.Update(ctx, func(o *order.Order) cascade.Result { return o.SetCustomerType(ct) })
	return res, c.refresh(ctx, &res)
}

func (c *Coordinator) refresh(ctx context.Context, res *cascade.Result) error {
	var errs []error
	for _, step := range []func(context.Context) (cascade.Result, error){c.RefreshEligibility, c.RefreshPromotions} {
		r, err := step(ctx)
		if errors.Is(err, ErrStale) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Combine(r)
	}
	return errors.Join(errs...)
}

// RefreshEligibility fetches the add-on catalog for the selected tariff,
// building and customer type. Without a tariff nothing is fetched.
func (c *Coordinator) RefreshEligibility(ctx context.Context) (cascade.Result, error) {
	cfg := c.configuration(ctx)
	if cfg.Tariff == nil {
		return cascade.Result{}, nil
	}
	var buildingID string
	if cfg.Address != nil {
		buildingID = cfg.Address.BuildingID
	}

	tag := c.tracker.Begin(ChannelEligibility, eligibilityKey(cfg))
	e, err := c.provider.Eligibility(ctx, cfg.Tariff.ID, buildingID, cfg.CustomerType)
	if err != nil {
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("refresh eligibility: %w", err)
	}
	return c.commit(ctx, tag, eligibilityKey, func(o *order.Order) cascade.Result { return o.ApplyEligibility(e) })
}

// RefreshPromotions fetches the promotions for the current address and
// tariff.
func (c *Coordinator) RefreshPromotions(ctx context.Context) (cascade.Result, error) {
	cfg := c.configuration(ctx)
	if cfg.Address == nil || cfg.Tariff == nil {
		return cascade.Result{}, nil
	}

	tag := c.tracker.Begin(ChannelPromotions, promotionsKey(cfg))
	promos, err := c.provider.Promotions(ctx, cfg.Address, cfg.Tariff.ID)
	if err != nil {
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("refresh promotions: %w", err)
	}
	return c.commit(ctx, tag, promotionsKey, func(o *order.Order) cascade.Result { return o.ApplyPromotions(promos) })
}

// ApplyPromoCode validates code with the registry. Unknown codes are
// recorded as a promo code error; registry failures leave the order as is.
func (c *Coordinator) ApplyPromoCode(ctx context.Context, code string) (cascade.Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		c.tracker.Begin(ChannelPromoCode, "")
		return c.target.Update(ctx, func(o *order.Order) cascade.Result { return o.ClearPromoCode() }), nil
	}

	tag := c.tracker.Begin(ChannelPromoCode, catalog.NormalizeCode(code))
	pc, err := c.provider.PromoCode(ctx, code)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		pc = nil
	case err != nil:
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("validate promo code: %w", err)
	}
	return c.commit(ctx, tag, nil, func(o *order.Order) cascade.Result { return o.ApplyPromoCode(pc) })
}

// ValidateReferral checks the referrer customer number of a customer
// referral. The order must already carry the referral type.
func (c *Coordinator) ValidateReferral(ctx context.Context, customerNumber string) (cascade.Result, error) {
	customerNumber = strings.TrimSpace(customerNumber)
	tag := c.tracker.Begin(ChannelReferral, customerNumber)
	if customerNumber == "" {
		return c.commit(ctx, tag, nil, func(o *order.Order) cascade.Result {
			return o.ApplyReferralValidation("", false)
		})
	}
	ok, err := c.provider.ValidateReferrer(ctx, customerNumber)
	if err != nil {
		if !c.tracker.Current(tag) {
			return cascade.Result{}, ErrStale
		}
		return cascade.Result{}, fmt.Errorf("validate referrer: %w", err)
	}
	return c.commit(ctx, tag, nil, func(o *order.Order) cascade.Result {
		return o.ApplyReferralValidation(customerNumber, ok)
	})
}
