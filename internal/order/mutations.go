package order

import (
	"time"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/eligibility"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// Rejection messages stored in the configuration's error fields.
const (
	MsgPromoCodeNotFound      = "promo code not found"
	MsgPromoCodeWrongAddress  = "promo code is not valid for this address"
	MsgReferrerNotFound       = "referrer customer number could not be validated"
	MsgReferrerNumberRequired = "referrer customer number required"
)

// TVInput selects a TV package and its extras by catalog id.
type TVInput struct {
	PackageID      string   `json:"package_id"`
	HDAddonID      string   `json:"hd_addon_id,omitempty"`
	HardwareIDs    []string `json:"hardware_ids,omitempty"`
	StreamingStick bool     `json:"streaming_stick,omitempty"`
}

// PhoneInput configures the purchasable phone line.
type PhoneInput struct {
	Enabled         bool               `json:"enabled"`
	OptionID        string             `json:"option_id,omitempty"`
	Lines           int                `json:"lines,omitempty"`
	PortingRequired bool               `json:"porting_required,omitempty"`
	Porting         *types.PortingData `json:"porting,omitempty"`
}

// AddonInput selects a service or installation item.
type AddonInput struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity,omitempty"`
}

// SetAddress replaces the looked-up address. A nil address clears it.
func (o *Order) SetAddress(addr *types.Address) cascade.Result {
	var a *types.Address
	if addr != nil {
		c := *addr
		a = &c
	}
	return o.apply(cascade.AddressReplaced, func(s *types.OrderState) {
		s.Configuration.Address = a
	})
}

// SetCustomerType switches between the private and business catalog.
func (o *Order) SetCustomerType(ct types.CustomerType) cascade.Result {
	if ct != types.CustomerPrivate && ct != types.CustomerBusiness {
		return ignored(cascade.CustomerTypeChanged)
	}
	return o.apply(cascade.CustomerTypeChanged, func(s *types.OrderState) {
		s.Configuration.CustomerType = ct
	})
}

// SetTariff replaces the selected tariff. The eligibility answer of the
// previous tariff stops applying; add-on selections are kept until the new
// answer arrives and filters them.
func (o *Order) SetTariff(t *types.Tariff) cascade.Result {
	t = t.Clone()
	return o.apply(cascade.TariffReplaced, func(s *types.OrderState) {
		s.Configuration.Tariff = t
	})
}

// SetRouter selects a router by id. The empty id means undecided and
// types.NoRouterID the explicit "no router" choice. Ids outside the eligible
// set are ignored.
func (o *Order) SetRouter(id string) cascade.Result {
	opts := o.Options()
	var choice types.RouterChoice
	switch id {
	case "":
		choice = types.NotSelectedRouter()
	case types.NoRouterID:
		choice = types.NoRouter()
	default:
		r, ok := opts.Router(id)
		if !ok {
			return ignored(cascade.RouterChanged)
		}
		choice = types.SelectRouter(r)
	}
	if !opts.AllowsRouter(choice) {
		return ignored(cascade.RouterChanged)
	}
	return o.apply(cascade.RouterChanged, func(s *types.OrderState) {
		s.Configuration.Router = choice
	})
}

// SetTV selects a TV package. An empty or ineligible package id clears the
// TV selection; ineligible extras are dropped.
func (o *Order) SetTV(in TVInput) cascade.Result {
	opts := o.Options()
	tv := types.DefaultTV()
	if pkg, ok := opts.TVPackage(in.PackageID); ok {
		tv.Package = &pkg
		tv.Type = eligibility.TVTypeOf(pkg)
		if hd, ok := opts.TVAddon(in.HDAddonID); ok {
			tv.HDAddon = &hd
		}
		for _, id := range in.HardwareIDs {
			if hw, ok := opts.TVHardwareItem(id); ok {
				tv.Hardware = append(tv.Hardware, hw)
			}
		}
		if in.StreamingStick && tv.Type == types.TVStreaming && opts.TVStick != nil {
			tv.StreamingStick = true
			tv.StickPriceCents = opts.TVStick.OneTimeCents
		}
	}
	return o.apply(cascade.TVChanged, func(s *types.OrderState) {
		s.Configuration.TV = tv
	})
}

// SetPhone configures the purchasable phone line. With a phone-bundling
// tariff, or without an eligible option, the line stays disabled.
func (o *Order) SetPhone(in PhoneInput) cascade.Result {
	phone := types.DefaultPhone()
	t := o.state.Configuration.Tariff
	if in.Enabled && (t == nil || !t.IncludesPhone) {
		if opt, ok := o.Options().PhoneOption(in.OptionID); ok {
			phone = types.PhoneSelection{
				Enabled:         true,
				Option:          &opt,
				Lines:           eligibility.ClampLines(in.Lines),
				UnitPriceCents:  opt.MonthlyCents,
				PortingRequired: in.PortingRequired,
			}
			if in.PortingRequired && in.Porting != nil {
				p := *in.Porting
				p.Numbers = append([]string(nil), in.Porting.Numbers...)
				phone.Porting = &p
			}
		}
	}
	return o.apply(cascade.PhoneChanged, func(s *types.OrderState) {
		s.Configuration.Phone = phone
	})
}

// SetAddons replaces the service and installation items. Unknown or
// ineligible ids are dropped; a repeated id keeps its first quantity.
// Quantities are clamped to [1,10].
func (o *Order) SetAddons(in []AddonInput) cascade.Result {
	opts := o.Options()
	var addons []types.SelectedAddon
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		if seen[a.ID] {
			continue
		}
		item, ok := opts.Extra(a.ID)
		if !ok {
			continue
		}
		seen[a.ID] = true
		addons = append(addons, types.SelectedAddon{Addon: item, Quantity: eligibility.ClampQuantity(a.Quantity)})
	}
	return o.apply(cascade.AddonsChanged, func(s *types.OrderState) {
		s.Configuration.Addons = addons
	})
}

// SetContractDuration sets 12 or 24 months. A 12-month request for a tariff
// outside the 12-month family yields 24.
func (o *Order) SetContractDuration(months int) cascade.Result {
	if months != 12 && months != 24 {
		return ignored(cascade.ContractChanged)
	}
	if months == 12 && !o.policy.TwelveMonthEligible(o.state.Configuration.Tariff) {
		months = 24
	}
	return o.apply(cascade.ContractChanged, func(s *types.OrderState) {
		s.Configuration.ContractMonths = months
	})
}

// SetExpressActivation toggles express activation. An unknown option id
// leaves the option empty, which prices at the fallback fee.
func (o *Order) SetExpressActivation(enabled bool, optionID string) cascade.Result {
	var express types.ExpressActivation
	if enabled {
		express.Enabled = true
		if opt, ok := o.Options().ExpressOption(optionID); ok {
			express.Option = &opt
		}
	}
	return o.apply(cascade.ExpressChanged, func(s *types.OrderState) {
		s.Configuration.Express = express
	})
}

// ApplyEligibility stores a catalog answer and drops the selections that are
// no longer members of it. Answers for a tariff other than the selected one
// are ignored.
func (o *Order) ApplyEligibility(e *types.Eligibility) cascade.Result {
	if e == nil || !eligibility.Current(e, o.state.Configuration.Tariff) {
		return ignored(cascade.EligibilityChanged)
	}
	e = e.Clone()
	return o.applyAnswer(cascade.EligibilityChanged, func(s *types.OrderState) {
		s.Eligibility = e
	})
}

// ApplyPromotions stores the promotions that apply to the current address
// and tariff.
func (o *Order) ApplyPromotions(promos []types.Promotion) cascade.Result {
	promos = append([]types.Promotion(nil), promos...)
	return o.applyAnswer(cascade.PromotionsChanged, func(s *types.OrderState) {
		s.Configuration.Promotions = promos
	})
}

// ApplyPromoCode applies a code validated by the registry. The code becomes
// the order's only bonus mechanism. A code scoped to other streets is
// rejected instead.
func (o *Order) ApplyPromoCode(pc *types.PromoCode) cascade.Result {
	if pc == nil {
		return o.RejectPromoCode(MsgPromoCodeNotFound)
	}
	if !pc.ValidFor(o.state.Configuration.Address) {
		return o.RejectPromoCode(MsgPromoCodeWrongAddress)
	}
	pc = pc.Clone()
	return o.apply(cascade.PromoCodeChanged, func(s *types.OrderState) {
		s.Configuration.PromoCode = pc
		s.Configuration.PromoCodeError = ""
		s.Configuration.Referral = types.ReferralData{Type: types.ReferralPromoCode}
	})
}

// RejectPromoCode records why a code was not applied. Prices are untouched.
func (o *Order) RejectPromoCode(msg string) cascade.Result {
	return o.apply(cascade.PromoCodeRejected, func(s *types.OrderState) {
		s.Configuration.PromoCodeError = msg
	})
}

// ClearPromoCode removes the applied code and its error.
func (o *Order) ClearPromoCode() cascade.Result {
	return o.apply(cascade.PromoCodeChanged, func(s *types.OrderState) {
		cfg := &s.Configuration
		cfg.PromoCode = nil
		cfg.PromoCodeError = ""
		if cfg.Referral.Type == types.ReferralPromoCode {
			cfg.Referral = types.ReferralData{Type: types.ReferralNone}
		}
	})
}

// SetReferralType records how the customer heard about the offer. Any type
// other than promo-code drops an applied promo code; a customer referral
// starts unvalidated.
func (o *Order) SetReferralType(t types.ReferralType, customerNumber string) cascade.Result {
	if !t.Valid() {
		return ignored(cascade.ReferralChanged)
	}
	ref := types.ReferralData{Type: t}
	if t == types.ReferralCustomer {
		ref.CustomerNumber = customerNumber
	}
	return o.apply(cascade.ReferralChanged, func(s *types.OrderState) {
		cfg := &s.Configuration
		if t != types.ReferralPromoCode {
			cfg.PromoCode = nil
			cfg.PromoCodeError = ""
		}
		cfg.Referral = ref
	})
}

// ApplyReferralValidation stores the registry answer for customerNumber.
// Answers for a number that is no longer the current referrer are ignored.
func (o *Order) ApplyReferralValidation(customerNumber string, valid bool) cascade.Result {
	ref := o.state.Configuration.Referral
	if ref.Type != types.ReferralCustomer || ref.CustomerNumber != customerNumber {
		return ignored(cascade.ReferralChanged)
	}
	ref.Validated = valid && customerNumber != ""
	switch {
	case customerNumber == "":
		ref.Error = MsgReferrerNumberRequired
	case !valid:
		ref.Error = MsgReferrerNotFound
	default:
		ref.Error = ""
	}
	return o.apply(cascade.ReferralChanged, func(s *types.OrderState) {
		s.Configuration.Referral = ref
	})
}

func clonePerson(p *types.Person) *types.Person {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// SetCustomerData replaces the customer's personal data.
func (o *Order) SetCustomerData(p *types.Person) cascade.Result {
	p = clonePerson(p)
	return o.apply(cascade.CustomerDataChanged, func(s *types.OrderState) { s.Customer = p })
}

// SetBankData replaces the direct debit details.
func (o *Order) SetBankData(b *types.BankData) cascade.Result {
	var bank *types.BankData
	if b != nil {
		c := *b
		bank = &c
	}
	return o.apply(cascade.BankDataChanged, func(s *types.OrderState) { s.Bank = bank })
}

// SetAlternateBilling sets a different invoice recipient, or clears it.
func (o *Order) SetAlternateBilling(p *types.Person) cascade.Result {
	p = clonePerson(p)
	return o.apply(cascade.AlternatePersonsChanged, func(s *types.OrderState) { s.AlternateBilling = p })
}

// SetAlternatePayer sets a different account holder, or clears it.
func (o *Order) SetAlternatePayer(p *types.Person) cascade.Result {
	p = clonePerson(p)
	return o.apply(cascade.AlternatePersonsChanged, func(s *types.OrderState) { s.AlternatePayer = p })
}

// SetPreferredDate sets the desired activation date.
func (o *Order) SetPreferredDate(d *time.Time) cascade.Result {
	var date *time.Time
	if d != nil {
		v := *d
		date = &v
	}
	return o.apply(cascade.PreferredDateChanged, func(s *types.OrderState) { s.PreferredDate = date })
}

// SetProviderCancellation sets the cancellation request for the previous
// provider.
func (o *Order) SetProviderCancellation(pc *types.ProviderCancellation) cascade.Result {
	var c *types.ProviderCancellation
	if pc != nil {
		v := *pc
		c = &v
	}
	return o.apply(cascade.ProviderCancellationChanged, func(s *types.OrderState) { s.ProviderCancellation = c })
}

// SetConsents records the legal checkboxes.
func (o *Order) SetConsents(c types.Consents) cascade.Result {
	return o.apply(cascade.ConsentsChanged, func(s *types.OrderState) { s.Consents = c })
}

// SetApartment locates the unit inside the building.
func (o *Order) SetApartment(a *types.Apartment) cascade.Result {
	var apt *types.Apartment
	if a != nil {
		v := *a
		apt = &v
	}
	return o.apply(cascade.ApartmentChanged, func(s *types.OrderState) { s.Apartment = apt })
}
