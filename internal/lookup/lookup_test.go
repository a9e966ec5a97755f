package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/types"
)

type lockedOrder struct {
	mu sync.Mutex
	o  *order.Order
}

func (l *lockedOrder) Update(_ context.Context, fn func(o *order.Order) cascade.Result) cascade.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.o)
}

func (l *lockedOrder) snapshot() types.OrderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.o.Snapshot()
}

func ptr(v int64) *int64 { return &v }

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Addresses: []types.Address{
			{Street: "Hauptstrasse", HouseNumber: "5", City: "Kiel", ConnectionType: types.ConnectionFTTH, BuildingID: "B-1"},
			{Street: "Am Hafen", HouseNumber: "2", City: "Kiel", ConnectionType: types.ConnectionLimited, BuildingID: "B-2"},
		},
		Addons: []types.Addon{
			{ID: "fritzbox-5590", Name: "5590", Category: types.CategoryRouter, MonthlyCents: 999, DiscountedCents: ptr(599), FTTH: true},
			{ID: "fritzbox-7590", Name: "7590", Category: types.CategoryRouter, MonthlyCents: 699, FTTB: true},
		},
		Tariffs: []catalog.TariffOffer{
			{
				Tariff: types.Tariff{ID: "einfach-250", Name: "Einfach", MonthlyCents: 4990, SetupFeeCents: 9900, ContractMonths: 24, Family: "einfach"},
				Addons: []catalog.Assignment{{AddonID: "fritzbox-5590"}, {AddonID: "fritzbox-7590"}},
			},
			{
				Tariff: types.Tariff{ID: "einfach-500", Name: "Einfach 500", MonthlyCents: 5990, SetupFeeCents: 9900, ContractMonths: 24, Family: "einfach"},
				Addons: []catalog.Assignment{{AddonID: "fritzbox-5590"}},
			},
			{
				Tariff: types.Tariff{ID: "basic-100", Name: "Basic", MonthlyCents: 3490, SetupFeeCents: 9900, ContractMonths: 24, Family: "fiberbasic"},
				Addons: []catalog.Assignment{{AddonID: "fritzbox-7590"}},
			},
		},
		Promotions: []catalog.PromotionRule{{
			Promotion: types.Promotion{ID: "b1", Name: "B1", Scope: types.ScopeBuilding, SetupFeeWaived: true},
			BuildingID: "B-1",
		}},
		PromoCodes: []types.PromoCode{
			{Code: "ROUTER2", RouterDiscountCents: 200},
			{Code: "HAFEN", ValidAddresses: []string{"hafen"}},
		},
		Referrers: []string{"K-100"},
	}
}

// gatedProvider blocks address lookups for one street until released.
type gatedProvider struct {
	catalog.Provider
	street  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedProvider) LookupAddress(ctx context.Context, street, houseNumber, city string, ct types.CustomerType) (*types.Address, error) {
	if street == g.street {
		close(g.entered)
		<-g.release
	}
	return g.Provider.LookupAddress(ctx, street, houseNumber, city, ct)
}

type failingProvider struct {
	catalog.Provider
}

type eligibilityOutage struct {
	catalog.Provider
}

func (eligibilityOutage) Eligibility(context.Context, string, string, types.CustomerType) (*types.Eligibility, error) {
	return nil, errors.New("catalog down")
}

func (failingProvider) PromoCode(context.Context, string) (*types.PromoCode, error) {
	return nil, errors.New("registry down")
}

func newCoordinator(t *testing.T, wrap func(catalog.Provider) catalog.Provider) (*Coordinator, *lockedOrder) {
	t.Helper()
	mem, err := catalog.NewMemoryCatalog(testCatalog())
	require.NoError(t, err)
	var p catalog.Provider = mem
	if wrap != nil {
		p = wrap(mem)
	}
	target := &lockedOrder{o: order.New(types.DefaultPolicy())}
	return NewCoordinator(p, target, nil), target
}

func TestTracker_LatestWins(t *testing.T) {
	tr := NewTracker()
	first := tr.Begin(ChannelAddress, "a")
	second := tr.Begin(ChannelAddress, "b")
	other := tr.Begin(ChannelPromoCode, "X")

	assert.False(t, tr.Current(first))
	assert.True(t, tr.Current(second))
	assert.True(t, tr.Current(other))

	tr.Forget()
	assert.False(t, tr.Current(second))
	assert.False(t, tr.Current(other))
}

func TestResolveAddress_FetchesCatalogForSelectedTariff(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()

	_, err := c.SelectTariff(ctx, "einfach-250")
	require.NoError(t, err)
	_, err = c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
	require.NoError(t, err)

	s := target.snapshot()
	require.NotNil(t, s.Configuration.Address)
	assert.Equal(t, "B-1", s.Configuration.Address.BuildingID)
	require.NotNil(t, s.Eligibility)
	assert.Equal(t, "B-1", s.Eligibility.BuildingID)
	require.Len(t, s.Configuration.Promotions, 1)
	assert.Equal(t, "b1", s.Configuration.Promotions[0].ID)
}

func TestResolveAddress_NotFoundLeavesOrderUnchanged(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()

	_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
	require.NoError(t, err)
	_, err = c.ResolveAddress(ctx, "Nirgendwo", "1", "Kiel")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	assert.Equal(t, "Hauptstrasse", target.snapshot().Configuration.Address.Street)
}

func TestResolveAddress_SupersededResultIsDiscarded(t *testing.T) {
	gate := &gatedProvider{street: "Hauptstrasse", entered: make(chan struct{}), release: make(chan struct{})}
	c, target := newCoordinator(t, func(p catalog.Provider) catalog.Provider {
		gate.Provider = p
		return gate
	})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
		slow <- err
	}()
	<-gate.entered

	_, err := c.ResolveAddress(ctx, "Am Hafen", "2", "Kiel")
	require.NoError(t, err)
	close(gate.release)

	assert.ErrorIs(t, <-slow, ErrStale)
	assert.Equal(t, "Am Hafen", target.snapshot().Configuration.Address.Street)
}

func TestResolveAddress_CustomerTypeSwitchOutdatesLookup(t *testing.T) {
	gate := &gatedProvider{street: "Hauptstrasse", entered: make(chan struct{}), release: make(chan struct{})}
	c, target := newCoordinator(t, func(p catalog.Provider) catalog.Provider {
		gate.Provider = p
		return gate
	})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
		slow <- err
	}()
	<-gate.entered

	_, err := c.SetCustomerType(ctx, types.CustomerBusiness)
	require.NoError(t, err)
	close(gate.release)

	assert.ErrorIs(t, <-slow, ErrStale)
	assert.Nil(t, target.snapshot().Configuration.Address)
}

func TestSelectTariff_KeepsRouterTheNewCatalogOffers(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()
	_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
	require.NoError(t, err)
	_, err = c.SelectTariff(ctx, "einfach-250")
	require.NoError(t, err)
	target.Update(ctx, func(o *order.Order) cascade.Result { return o.SetRouter("fritzbox-5590") })
	require.Equal(t, "fritzbox-5590", target.snapshot().Configuration.Router.ID())

	res, err := c.SelectTariff(ctx, "einfach-500")
	require.NoError(t, err)
	s := target.snapshot()
	assert.Equal(t, "einfach-500", s.Configuration.Tariff.ID)
	assert.Equal(t, "fritzbox-5590", s.Configuration.Router.ID())
	assert.NotContains(t, res.Cleared, cascade.FieldRouter)
	require.NotNil(t, s.Eligibility)
	assert.Equal(t, "einfach-500", s.Eligibility.TariffID)
	require.Len(t, s.Configuration.Promotions, 1, "promotions are fetched for the new tariff")

	res, err = c.SelectTariff(ctx, "basic-100")
	require.NoError(t, err)
	assert.Equal(t, types.RouterNotSelected, target.snapshot().Configuration.Router.Kind)
	assert.Contains(t, res.Cleared, cascade.FieldRouter)
}

func TestSelectTariff_CatalogFailureLeavesOrderUnchanged(t *testing.T) {
	c, target := newCoordinator(t, func(p catalog.Provider) catalog.Provider {
		return eligibilityOutage{Provider: p}
	})
	_, err := c.SelectTariff(context.Background(), "einfach-250")
	require.Error(t, err)
	assert.Nil(t, target.snapshot().Configuration.Tariff)
}

func TestSelectTariff_UnknownTariff(t *testing.T) {
	c, target := newCoordinator(t, nil)
	_, err := c.SelectTariff(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Nil(t, target.snapshot().Configuration.Tariff)
}

func TestSetCustomerType_RefetchesEligibility(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()
	_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
	require.NoError(t, err)
	_, err = c.SelectTariff(ctx, "einfach-250")
	require.NoError(t, err)

	_, err = c.SetCustomerType(ctx, types.CustomerBusiness)
	require.NoError(t, err)

	s := target.snapshot()
	require.NotNil(t, s.Eligibility)
	assert.Equal(t, types.CustomerBusiness, s.Eligibility.CustomerType)
}

func TestApplyPromoCode(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()
	_, err := c.ResolveAddress(ctx, "Hauptstrasse", "5", "Kiel")
	require.NoError(t, err)

	_, err = c.ApplyPromoCode(ctx, "router2")
	require.NoError(t, err)
	cfg := target.snapshot().Configuration
	require.NotNil(t, cfg.PromoCode)
	assert.Equal(t, "ROUTER2", cfg.PromoCode.Code)
	assert.Empty(t, cfg.PromoCodeError)

	_, err = c.ApplyPromoCode(ctx, "HAFEN")
	require.NoError(t, err)
	cfg = target.snapshot().Configuration
	assert.Equal(t, order.MsgPromoCodeWrongAddress, cfg.PromoCodeError)
	assert.Equal(t, "ROUTER2", cfg.PromoCode.Code)

	_, err = c.ApplyPromoCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, order.MsgPromoCodeNotFound, target.snapshot().Configuration.PromoCodeError)

	_, err = c.ApplyPromoCode(ctx, "  ")
	require.NoError(t, err)
	cfg = target.snapshot().Configuration
	assert.Nil(t, cfg.PromoCode)
	assert.Empty(t, cfg.PromoCodeError)
}

func TestApplyPromoCode_RegistryFailureLeavesOrder(t *testing.T) {
	c, target := newCoordinator(t, func(p catalog.Provider) catalog.Provider {
		return failingProvider{Provider: p}
	})
	_, err := c.ApplyPromoCode(context.Background(), "ROUTER2")
	require.Error(t, err)
	cfg := target.snapshot().Configuration
	assert.Nil(t, cfg.PromoCode)
	assert.Empty(t, cfg.PromoCodeError)
}

func TestValidateReferral(t *testing.T) {
	c, target := newCoordinator(t, nil)
	ctx := context.Background()

	target.Update(ctx, func(o *order.Order) cascade.Result {
		return o.SetReferralType(types.ReferralCustomer, "K-100")
	})
	_, err := c.ValidateReferral(ctx, "K-100")
	require.NoError(t, err)
	assert.True(t, target.snapshot().Configuration.Referral.Validated)

	target.Update(ctx, func(o *order.Order) cascade.Result {
		return o.SetReferralType(types.ReferralCustomer, "K-999")
	})
	_, err = c.ValidateReferral(ctx, "K-999")
	require.NoError(t, err)
	ref := target.snapshot().Configuration.Referral
	assert.False(t, ref.Validated)
	assert.Equal(t, order.MsgReferrerNotFound, ref.Error)

	target.Update(ctx, func(o *order.Order) cascade.Result {
		return o.SetReferralType(types.ReferralCustomer, "")
	})
	_, err = c.ValidateReferral(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, order.MsgReferrerNumberRequired, target.snapshot().Configuration.Referral.Error)
}
