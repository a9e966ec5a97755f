package types

import (
	"slices"
	"strings"
)

// Policy holds the tariff-family rules and flat amounts that are business
// configuration rather than catalog data.
type Policy struct {
	// TwelveMonthFamilies may be ordered with a 12-month contract.
	TwelveMonthFamilies []string `json:"twelve_month_families" mapstructure:"twelve_month_families"`
	// RouterDiscountFamilies get the catalog's discounted router price.
	RouterDiscountFamilies []string `json:"router_discount_families" mapstructure:"router_discount_families"`
	// ReferralBonusCents is credited once against the one-time total.
	ReferralBonusCents int64 `json:"referral_bonus_cents" mapstructure:"referral_bonus_cents"`
	// ExpressFallbackCents is charged when express activation has no option record.
	ExpressFallbackCents int64 `json:"express_fallback_cents" mapstructure:"express_fallback_cents"`
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		TwelveMonthFamilies:    []string{"fiberbasic"},
		RouterDiscountFamilies: []string{"einfach"},
		ReferralBonusCents:     5000,
		ExpressFallbackCents:   2990,
	}
}

func familyIn(families []string, t *Tariff) bool {
	if t == nil || t.Family == "" {
		return false
	}
	return slices.ContainsFunc(families, func(f string) bool {
		return strings.EqualFold(f, t.Family)
	})
}

// TwelveMonthEligible reports whether t may run on a 12-month contract.
func (p Policy) TwelveMonthEligible(t *Tariff) bool {
	return familyIn(p.TwelveMonthFamilies, t)
}

// RouterDiscountEligible reports whether t unlocks discounted router prices.
func (p Policy) RouterDiscountEligible(t *Tariff) bool {
	return familyIn(p.RouterDiscountFamilies, t)
}
