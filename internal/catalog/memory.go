package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// MemoryCatalog is an in-memory Provider for tests and development.
type MemoryCatalog struct {
	mu         sync.RWMutex
	addresses  map[string]types.Address
	tariffs    []TariffOffer
	addons     map[string]types.Addon
	promotions []PromotionRule
	codes      map[string]types.PromoCode
	referrers  map[string]bool
}

// NewMemoryCatalog creates a provider holding c.
func NewMemoryCatalog(c *Catalog) (*MemoryCatalog, error) {
	m := &MemoryCatalog{}
	if err := m.Load(c); err != nil {
		return nil, err
	}
	return m, nil
}

// Load replaces the held catalog.
func (m *MemoryCatalog) Load(c *Catalog) error {
	if err := c.Check(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	addresses := make(map[string]types.Address, len(c.Addresses))
	for _, a := range c.Addresses {
		addresses[AddressKey(a.Street, a.HouseNumber, a.City)] = a
	}
	addons := make(map[string]types.Addon, len(c.Addons))
	for _, a := range c.Addons {
		addons[a.ID] = a.Clone()
	}
	codes := make(map[string]types.PromoCode, len(c.PromoCodes))
	for _, pc := range c.PromoCodes {
		codes[NormalizeCode(pc.Code)] = *pc.Clone()
	}
	referrers := make(map[string]bool, len(c.Referrers))
	for _, r := range c.Referrers {
		referrers[r] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses = addresses
	m.tariffs = slices.Clone(c.Tariffs)
	m.addons = addons
	m.promotions = slices.Clone(c.Promotions)
	m.codes = codes
	m.referrers = referrers
	return nil
}

func (m *MemoryCatalog) LookupAddress(_ context.Context, street, houseNumber, city string, _ types.CustomerType) (*types.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.addresses[AddressKey(street, houseNumber, city)]
	if !ok {
		return nil, fmt.Errorf("address %s %s, %s: %w", street, houseNumber, city, ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryCatalog) Tariffs(_ context.Context, ct types.CustomerType) ([]types.Tariff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Tariff
	for _, t := range m.tariffs {
		if t.OfferedTo(ct) {
			out = append(out, *t.Tariff.Clone())
		}
	}
	return out, nil
}

func (m *MemoryCatalog) Tariff(_ context.Context, id string) (*types.Tariff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tariffs {
		if t.ID == id {
			return t.Tariff.Clone(), nil
		}
	}
	return nil, fmt.Errorf("tariff %q: %w", id, ErrNotFound)
}

func (m *MemoryCatalog) Eligibility(_ context.Context, tariffID, buildingID string, ct types.CustomerType) (*types.Eligibility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := slices.IndexFunc(m.tariffs, func(t TariffOffer) bool { return t.ID == tariffID })
	if idx < 0 || !m.tariffs[idx].OfferedTo(ct) {
		return nil, fmt.Errorf("tariff %q: %w", tariffID, ErrNotFound)
	}
	var addons []types.Addon
	for _, as := range m.tariffs[idx].Addons {
		if !as.AppliesTo(buildingID) {
			continue
		}
		if a, ok := m.addons[as.AddonID]; ok && !slices.ContainsFunc(addons, func(x types.Addon) bool { return x.ID == a.ID }) {
			addons = append(addons, a.Clone())
		}
	}
	return buildEligibility(tariffID, buildingID, ct, addons), nil
}

func (m *MemoryCatalog) Promotions(_ context.Context, addr *types.Address, tariffID string) ([]types.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Promotion
	for _, r := range m.promotions {
		if r.Matches(addr, tariffID) {
			out = append(out, r.Promotion)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) PromoCode(_ context.Context, code string) (*types.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pc, ok := m.codes[NormalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("promo code %q: %w", code, ErrNotFound)
	}
	return pc.Clone(), nil
}

func (m *MemoryCatalog) ValidateReferrer(_ context.Context, customerNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.referrers[customerNumber], nil
}
