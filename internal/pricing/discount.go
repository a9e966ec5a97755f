// Package pricing turns an order configuration into effective prices. Every
// function is pure: it reads a configuration value and a policy and returns
// numbers, so repeated calls on the same input return identical results.
package pricing

import "github.com/matthewbaird/fiberorder/internal/types"

// RouterPrice is the discount breakdown for the selected router. Monthly and
// one-time lines are computed independently.
type RouterPrice struct {
	RouterID string `json:"router_id,omitempty"`

	CatalogMonthlyCents   int64 `json:"catalog_monthly_cents"`
	EffectiveMonthlyCents int64 `json:"effective_monthly_cents"`
	MonthlySavingsCents   int64 `json:"monthly_savings_cents"`

	CatalogOneTimeCents   int64 `json:"catalog_one_time_cents"`
	EffectiveOneTimeCents int64 `json:"effective_one_time_cents"`
	OneTimeSavingsCents   int64 `json:"one_time_savings_cents"`

	BundledDiscount bool   `json:"bundled_discount"`
	PromotionID     string `json:"promotion_id,omitempty"`
	PromoCode       string `json:"promo_code,omitempty"`
}

func floor0(v int64) int64 { return max(v, 0) }

// Router computes the effective router prices:
//
//  1. start from the catalog price;
//  2. monthly only: a discount-eligible tariff family substitutes the
//     catalog's discounted price outright;
//  3. the largest applicable promotion discount is subtracted;
//  4. the applied promo code's discount is subtracted.
//
// Each stage floors at zero and works on the previous stage's output.
func Router(cfg types.Configuration, p types.Policy) RouterPrice {
	if cfg.Router.Kind != types.RouterSelected || cfg.Router.Router == nil {
		return RouterPrice{RouterID: cfg.Router.ID()}
	}
	r := cfg.Router.Router
	rp := RouterPrice{
		RouterID:            r.ID,
		CatalogMonthlyCents: floor0(r.MonthlyCents),
		CatalogOneTimeCents: floor0(r.OneTimeCents),
	}
	monthly := rp.CatalogMonthlyCents
	oneTime := rp.CatalogOneTimeCents

	if r.DiscountedCents != nil && p.RouterDiscountEligible(cfg.Tariff) {
		monthly = min(floor0(*r.DiscountedCents), monthly)
		rp.BundledDiscount = true
	}

	if promo, m, o := bestPromotion(cfg.Promotions, r.ID); promo != "" {
		monthly = floor0(monthly - m)
		oneTime = floor0(oneTime - o)
		rp.PromotionID = promo
	}

	if pc := cfg.PromoCode; pc != nil {
		monthly = floor0(monthly - floor0(pc.RouterDiscountCents))
		oneTime = floor0(oneTime - floor0(pc.RouterOneTimeDiscountCents))
		rp.PromoCode = pc.Code
	}

	rp.EffectiveMonthlyCents = monthly
	rp.EffectiveOneTimeCents = oneTime
	rp.MonthlySavingsCents = rp.CatalogMonthlyCents - monthly
	rp.OneTimeSavingsCents = rp.CatalogOneTimeCents - oneTime
	return rp
}

// bestPromotion returns the largest monthly and one-time router discounts
// among the promotions that apply to routerID. Promotions do not stack with
// each other. The returned id names the promotion with the larger monthly
// discount, or the larger one-time discount when no monthly discount applies.
func bestPromotion(promos []types.Promotion, routerID string) (id string, monthly, oneTime int64) {
	var monthlyID, oneTimeID string
	for _, pr := range promos {
		if pr.RouterID != "" && pr.RouterID != routerID {
			continue
		}
		if d := floor0(pr.RouterMonthlyDiscountCents); d > monthly {
			monthly, monthlyID = d, pr.ID
		}
		if d := floor0(pr.RouterOneTimeDiscountCents); d > oneTime {
			oneTime, oneTimeID = d, pr.ID
		}
	}
	if monthlyID != "" {
		return monthlyID, monthly, oneTime
	}
	return oneTimeID, monthly, oneTime
}

// SetupFee returns the tariff setup fee, or exactly zero when any applicable
// promotion or the applied promo code waives it. There is no partial waiver.
func SetupFee(cfg types.Configuration) (cents int64, waived bool) {
	if cfg.Tariff == nil {
		return 0, false
	}
	if cfg.PromoCode != nil && cfg.PromoCode.SetupFeeWaived {
		return 0, true
	}
	for _, pr := range cfg.Promotions {
		if pr.SetupFeeWaived {
			return 0, true
		}
	}
	return floor0(cfg.Tariff.SetupFeeCents), false
}

// ReferralBonus returns the flat bonus credited against the one-time total.
// It applies only to a validated customer referral; an unvalidated attempt
// prices as if no referral was given.
func ReferralBonus(cfg types.Configuration, p types.Policy) int64 {
	ref := cfg.Referral
	if ref.Type != types.ReferralCustomer || !ref.Validated || cfg.PromoCode != nil {
		return 0
	}
	return floor0(p.ReferralBonusCents)
}
