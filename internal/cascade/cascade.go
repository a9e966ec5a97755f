// Package cascade decides, for every order mutation, which dependent fields
// are cleared and whether the confirmation is invalidated. The decision is a
// declarative table evaluated by Apply; setters never reset fields themselves.
package cascade

import (
	"fmt"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Mutation names a class of order edit.
type Mutation string

const (
	AddressReplaced             Mutation = "address_replaced"
	CustomerTypeChanged         Mutation = "customer_type_changed"
	TariffReplaced              Mutation = "tariff_replaced"
	RouterChanged               Mutation = "router_changed"
	TVChanged                   Mutation = "tv_changed"
	PhoneChanged                Mutation = "phone_changed"
	AddonsChanged               Mutation = "addons_changed"
	ContractChanged             Mutation = "contract_changed"
	ExpressChanged              Mutation = "express_changed"
	EligibilityChanged          Mutation = "eligibility_changed"
	PromotionsChanged           Mutation = "promotions_changed"
	PromoCodeChanged            Mutation = "promo_code_changed"
	PromoCodeRejected           Mutation = "promo_code_rejected"
	ReferralChanged             Mutation = "referral_changed"
	BackNavigation              Mutation = "back_navigation"
	CustomerDataChanged         Mutation = "customer_data_changed"
	BankDataChanged             Mutation = "bank_data_changed"
	AlternatePersonsChanged     Mutation = "alternate_persons_changed"
	PreferredDateChanged        Mutation = "preferred_date_changed"
	ProviderCancellationChanged Mutation = "provider_cancellation_changed"
	ConsentsChanged             Mutation = "consents_changed"
	ApartmentChanged            Mutation = "apartment_changed"
)

// Effect is one reset or invalidation step.
type Effect string

const (
	ClearRouter                 Effect = "clear_router"
	DropStaleEligibility        Effect = "drop_stale_eligibility"
	ClearPromotions             Effect = "clear_promotions"
	RevalidatePromoScope        Effect = "revalidate_promo_scope"
	ResetPhoneIfBundled         Effect = "reset_phone_if_bundled"
	ForceContract24IfIneligible Effect = "force_contract_24_if_ineligible"
	ResetTariffSelection        Effect = "reset_tariff_selection"
	InvalidateConfirmation      Effect = "invalidate_confirmation"
)

// Table maps each mutation to the effects it triggers, in order. Personal
// data never feeds pricing or the contract summary, so it has no effects. A
// rejected promo code only records an error message. Catalog answers have no
// effects of their own: the order revokes the confirmation only when
// normalizing against a new answer changes the configuration.
var Table = map[Mutation][]Effect{
	AddressReplaced:     {ClearRouter, DropStaleEligibility, ClearPromotions, RevalidatePromoScope, InvalidateConfirmation},
	CustomerTypeChanged: {DropStaleEligibility, InvalidateConfirmation},
	TariffReplaced:      {ResetPhoneIfBundled, ForceContract24IfIneligible, DropStaleEligibility, ClearPromotions, InvalidateConfirmation},
	RouterChanged:       {InvalidateConfirmation},
	TVChanged:           {InvalidateConfirmation},
	PhoneChanged:        {InvalidateConfirmation},
	AddonsChanged:       {InvalidateConfirmation},
	ContractChanged:     {InvalidateConfirmation},
	ExpressChanged:      {InvalidateConfirmation},
	EligibilityChanged:  {},
	PromotionsChanged:   {},
	PromoCodeChanged:    {InvalidateConfirmation},
	ReferralChanged:     {InvalidateConfirmation},
	BackNavigation:      {ResetTariffSelection, InvalidateConfirmation},
	PromoCodeRejected:   {},

	CustomerDataChanged:         {},
	BankDataChanged:             {},
	AlternatePersonsChanged:     {},
	PreferredDateChanged:        {},
	ProviderCancellationChanged: {},
	ConsentsChanged:             {},
	ApartmentChanged:            {},
}

// Cleared field names.
const (
	FieldRouter         = "router"
	FieldTV             = "tv"
	FieldPhone          = "phone"
	FieldAddons         = "addons"
	FieldContractMonths = "contract_months"
	FieldExpress        = "express"
	FieldPromoCode      = "promo_code"
	FieldReferral       = "referral"
	FieldEligibility    = "eligibility"
	FieldPromotions     = "promotions"
)

// Result reports what a mutation's cascade changed.
type Result struct {
	Mutation Mutation `json:"mutation"`
	Cleared  []string `json:"cleared,omitempty"`
	// Invalidated is true when a Confirmed order dropped back to Unconfirmed.
	Invalidated bool `json:"invalidated"`
	// RevokedOrderNumber is the order number that was invalidated.
	RevokedOrderNumber string `json:"revoked_order_number,omitempty"`
}

// Merge folds the fields cleared by a later pass into r.
func (r *Result) Merge(cleared ...string) {
	r.Cleared = append(r.Cleared, cleared...)
}

// Combine folds a later result for the same edit into r.
func (r *Result) Combine(other Result) {
	r.Merge(other.Cleared...)
	if other.Invalidated {
		r.Invalidated = true
		r.RevokedOrderNumber = other.RevokedOrderNumber
	}
}

// Invalidate drops the confirmation of s and records the revoked order
// number in r.
func (r *Result) Invalidate(s *types.OrderState) {
	if s.Confirmation.Confirmed() {
		r.Invalidated = true
		r.RevokedOrderNumber = s.Confirmation.OrderNumber
	}
	s.Confirmation = types.Confirmation{}
}

// Effects returns the effects of m. Unknown mutations are a programming error.
func Effects(m Mutation) ([]Effect, error) {
	effects, ok := Table[m]
	if !ok {
		return nil, fmt.Errorf("unknown mutation: %s", m)
	}
	return effects, nil
}

// Apply evaluates the table entry for m against s.
func Apply(m Mutation, s *types.OrderState, p types.Policy) Result {
	res := Result{Mutation: m}
	effects, err := Effects(m)
	if err != nil {
		panic(err)
	}
	cfg := &s.Configuration
	for _, e := range effects {
		switch e {
		case ClearRouter:
			if cfg.Router.Kind != types.RouterNotSelected {
				cfg.Router = types.NotSelectedRouter()
				res.Merge(FieldRouter)
			}
		case DropStaleEligibility:
			if e := s.Eligibility; e != nil && !eligibilityMatches(e, cfg) {
				s.Eligibility = nil
				res.Merge(FieldEligibility)
			}
		case ClearPromotions:
			if len(cfg.Promotions) > 0 {
				cfg.Promotions = nil
				res.Merge(FieldPromotions)
			}
		case RevalidatePromoScope:
			if cfg.PromoCode != nil && !cfg.PromoCode.ValidFor(cfg.Address) {
				cfg.PromoCode = nil
				cfg.PromoCodeError = ""
				res.Merge(FieldPromoCode)
			}
		case ResetPhoneIfBundled:
			if cfg.Tariff != nil && cfg.Tariff.IncludesPhone {
				if cfg.Phone.Enabled || cfg.Phone.Option != nil {
					res.Merge(FieldPhone)
				}
				cfg.Phone = types.DefaultPhone()
			}
		case ForceContract24IfIneligible:
			if cfg.ContractMonths != 24 && !p.TwelveMonthEligible(cfg.Tariff) {
				cfg.ContractMonths = 24
				res.Merge(FieldContractMonths)
			}
		case ResetTariffSelection:
			res.Merge(resetTariffSelection(cfg)...)
		case InvalidateConfirmation:
			res.Invalidate(s)
		}
	}
	return res
}

// eligibilityMatches reports whether a catalog answer still belongs to the
// configuration's tariff, building and customer type. Empty keys match
// anything.
func eligibilityMatches(e *types.Eligibility, cfg *types.Configuration) bool {
	if e.TariffID != "" && (cfg.Tariff == nil || cfg.Tariff.ID != e.TariffID) {
		return false
	}
	if e.BuildingID != "" && (cfg.Address == nil || cfg.Address.BuildingID != e.BuildingID) {
		return false
	}
	return e.CustomerType == "" || e.CustomerType == cfg.CustomerType
}

// resetTariffSelection clears everything chosen on the tariff step except the
// tariff itself.
func resetTariffSelection(cfg *types.Configuration) []string {
	var cleared []string
	if cfg.Router.Kind != types.RouterNotSelected {
		cleared = append(cleared, FieldRouter)
	}
	if cfg.TV.Package != nil || cfg.TV.StreamingStick {
		cleared = append(cleared, FieldTV)
	}
	if cfg.Phone.Enabled || cfg.Phone.Option != nil {
		cleared = append(cleared, FieldPhone)
	}
	if len(cfg.Addons) > 0 {
		cleared = append(cleared, FieldAddons)
	}
	if cfg.ContractMonths != 24 {
		cleared = append(cleared, FieldContractMonths)
	}
	if cfg.Express.Enabled || cfg.Express.Option != nil {
		cleared = append(cleared, FieldExpress)
	}
	if cfg.PromoCode != nil || cfg.PromoCodeError != "" {
		cleared = append(cleared, FieldPromoCode)
	}
	if cfg.Referral.Type != types.ReferralNone {
		cleared = append(cleared, FieldReferral)
	}

	cfg.Router = types.NotSelectedRouter()
	cfg.TV = types.DefaultTV()
	cfg.Phone = types.DefaultPhone()
	cfg.Addons = nil
	cfg.ContractMonths = 24
	cfg.Express = types.ExpressActivation{}
	cfg.PromoCode = nil
	cfg.PromoCodeError = ""
	cfg.Referral = types.ReferralData{Type: types.ReferralNone}
	return cleared
}
