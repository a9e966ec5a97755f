// Package catalog provides the external collaborators of the order funnel:
// address lookup, the per-tariff add-on catalog, promotions and the promo
// code and referral registries. Implementations are backed by memory or by
// SQLite and are seeded from a CUE catalog file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// ErrNotFound is returned when a lookup has no answer.
var ErrNotFound = errors.New("not found")

// AddressLookup resolves a postal address to its infrastructure data.
type AddressLookup interface {
	LookupAddress(ctx context.Context, street, houseNumber, city string, ct types.CustomerType) (*types.Address, error)
}

// TariffLister lists the tariffs offered to a customer type.
type TariffLister interface {
	Tariffs(ctx context.Context, ct types.CustomerType) ([]types.Tariff, error)
	Tariff(ctx context.Context, id string) (*types.Tariff, error)
}

// EligibilityProvider returns the add-ons a tariff allows in a building.
type EligibilityProvider interface {
	Eligibility(ctx context.Context, tariffID, buildingID string, ct types.CustomerType) (*types.Eligibility, error)
}

// PromotionProvider returns the promotions active for an address and tariff.
type PromotionProvider interface {
	Promotions(ctx context.Context, addr *types.Address, tariffID string) ([]types.Promotion, error)
}

// PromoCodeRegistry validates promo codes.
type PromoCodeRegistry interface {
	PromoCode(ctx context.Context, code string) (*types.PromoCode, error)
}

// ReferralRegistry validates referrer customer numbers.
type ReferralRegistry interface {
	ValidateReferrer(ctx context.Context, customerNumber string) (bool, error)
}

// Provider bundles every collaborator.
type Provider interface {
	AddressLookup
	TariffLister
	EligibilityProvider
	PromotionProvider
	PromoCodeRegistry
	ReferralRegistry
}

// Catalog is the seed data of a provider.
type Catalog struct {
	Addresses  []types.Address   `json:"addresses"`
	Tariffs    []TariffOffer     `json:"tariffs"`
	Addons     []types.Addon     `json:"addons"`
	Promotions []PromotionRule   `json:"promotions"`
	PromoCodes []types.PromoCode `json:"promo_codes"`
	Referrers  []string          `json:"referrers"`
}

// TariffOffer is a tariff with its customer types and add-on assignments.
type TariffOffer struct {
	types.Tariff
	// CustomerTypes limits the offer; empty means every customer type.
	CustomerTypes []types.CustomerType `json:"customer_types,omitempty"`
	Addons        []Assignment         `json:"addons"`
}

// OfferedTo reports whether the tariff is sold to ct.
func (t TariffOffer) OfferedTo(ct types.CustomerType) bool {
	return len(t.CustomerTypes) == 0 || slices.Contains(t.CustomerTypes, ct)
}

// Assignment makes an add-on available with a tariff, optionally only in
// one building.
type Assignment struct {
	AddonID    string `json:"addon_id"`
	BuildingID string `json:"building_id,omitempty"`
}

// AppliesTo reports whether the assignment holds in buildingID.
func (a Assignment) AppliesTo(buildingID string) bool {
	return a.BuildingID == "" || a.BuildingID == buildingID
}

// PromotionRule is a promotion plus the keys it is scoped by.
type PromotionRule struct {
	types.Promotion
	Street     string   `json:"street,omitempty"`
	BuildingID string   `json:"building_id,omitempty"`
	TariffIDs  []string `json:"tariff_ids,omitempty"`
}

// Matches reports whether the rule applies to addr and tariffID. Address
// scope matches the street case-insensitively.
func (r PromotionRule) Matches(addr *types.Address, tariffID string) bool {
	if len(r.TariffIDs) > 0 && !slices.Contains(r.TariffIDs, tariffID) {
		return false
	}
	switch r.Scope {
	case types.ScopeGlobal:
		return true
	case types.ScopeBuilding:
		return addr != nil && r.BuildingID != "" && r.BuildingID == addr.BuildingID
	case types.ScopeAddress:
		return addr != nil && r.Street != "" &&
			strings.Contains(strings.ToLower(addr.Street), strings.ToLower(r.Street))
	}
	return false
}

// AddressKey normalizes the address lookup inputs.
func AddressKey(street, houseNumber, city string) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	return norm(street) + "|" + norm(houseNumber) + "|" + norm(city)
}

// NormalizeCode canonicalizes a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check verifies the catalog's referential integrity.
func (c *Catalog) Check() error {
	var errs []error
	addons := make(map[string]bool, len(c.Addons))
	for _, a := range c.Addons {
		if addons[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate addon %q", a.ID))
		}
		addons[a.ID] = true
	}
	tariffs := make(map[string]bool, len(c.Tariffs))
	for _, t := range c.Tariffs {
		if tariffs[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate tariff %q", t.ID))
		}
		tariffs[t.ID] = true
		for _, as := range t.Addons {
			if !addons[as.AddonID] {
				errs = append(errs, fmt.Errorf("tariff %q assigns unknown addon %q", t.ID, as.AddonID))
			}
		}
	}
	for _, p := range c.Promotions {
		for _, id := range p.TariffIDs {
			if !tariffs[id] {
				errs = append(errs, fmt.Errorf("promotion %q references unknown tariff %q", p.ID, id))
			}
		}
		if p.RouterID != "" && !addons[p.RouterID] {
			errs = append(errs, fmt.Errorf("promotion %q references unknown router %q", p.ID, p.RouterID))
		}
	}
	codes := make(map[string]bool, len(c.PromoCodes))
	for _, pc := range c.PromoCodes {
		k := NormalizeCode(pc.Code)
		if codes[k] {
			errs = append(errs, fmt.Errorf("duplicate promo code %q", pc.Code))
		}
		codes[k] = true
	}
	return errors.Join(errs...)
}

// buildEligibility sorts the assigned add-ons into the eligibility lists.
func buildEligibility(tariffID, buildingID string, ct types.CustomerType, addons []types.Addon) *types.Eligibility {
	e := &types.Eligibility{TariffID: tariffID, BuildingID: buildingID, CustomerType: ct}
	for _, a := range addons {
		switch a.Category {
		case types.CategoryRouter:
			e.Routers = append(e.Routers, a)
		case types.CategoryTV, types.CategoryTVAddon, types.CategoryTVHardware, types.CategoryTVStick:
			e.TVOptions = append(e.TVOptions, a)
		case types.CategoryPhone:
			e.PhoneOptions = append(e.PhoneOptions, a)
		case types.CategoryService:
			e.ServiceOptions = append(e.ServiceOptions, a)
		case types.CategoryInstallation:
			e.InstallationOptions = append(e.InstallationOptions, a)
		case types.CategoryExpress:
			e.ExpressOptions = append(e.ExpressOptions, a)
		}
	}
	return e
}
