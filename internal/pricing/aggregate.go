package pricing

import "github.com/matthewbaird/fiberorder/internal/types"

// Monthly is the monthly price breakdown.
type Monthly struct {
	TariffCents int64 `json:"tariff_cents"`
	RouterCents int64 `json:"router_cents"`
	TVCents     int64 `json:"tv_cents"`
	PhoneCents  int64 `json:"phone_cents"`
	AddonsCents int64 `json:"addons_cents"`
	TotalCents  int64 `json:"total_cents"`
}

// OneTime is the one-time price breakdown.
type OneTime struct {
	SetupFeeCents       int64 `json:"setup_fee_cents"`
	SetupFeeWaived      bool  `json:"setup_fee_waived"`
	RouterCents         int64 `json:"router_cents"`
	TVHardwareCents     int64 `json:"tv_hardware_cents"`
	StreamingStickCents int64 `json:"streaming_stick_cents"`
	ExpressCents        int64 `json:"express_cents"`
	AddonsCents         int64 `json:"addons_cents"`
	ReferralBonusCents  int64 `json:"referral_bonus_cents"`
	TotalCents          int64 `json:"total_cents"`
}

// Quote is the full price picture of a configuration. It is never stored;
// callers recompute it from the current configuration on every read.
type Quote struct {
	Monthly Monthly     `json:"monthly"`
	OneTime OneTime     `json:"one_time"`
	Router  RouterPrice `json:"router"`
	// SetupFeeSavingsCents is the waived catalog setup fee, if any.
	SetupFeeSavingsCents int64 `json:"setup_fee_savings_cents"`
}

// TariffMonthly returns the tariff's monthly price, using the 12-month
// variant for the eligible family on a 12-month contract.
func TariffMonthly(cfg types.Configuration, p types.Policy) int64 {
	t := cfg.Tariff
	if t == nil {
		return 0
	}
	if cfg.ContractMonths == 12 && t.Monthly12Cents != nil && p.TwelveMonthEligible(t) {
		return *t.Monthly12Cents
	}
	return t.MonthlyCents
}

// TVMonthly sums the base package, the HD add-on and each hardware line's
// monthly component.
func TVMonthly(tv types.TVSelection) int64 {
	if tv.Package == nil {
		return 0
	}
	total := tv.Package.MonthlyCents
	if tv.HDAddon != nil {
		total += tv.HDAddon.MonthlyCents
	}
	for _, hw := range tv.Hardware {
		total += hw.MonthlyCents
	}
	return total
}

// TVOneTime sums the hardware one-time parts and the streaming stick.
func TVOneTime(tv types.TVSelection) (hardware, stick int64) {
	if tv.Package == nil {
		return 0, 0
	}
	for _, hw := range tv.Hardware {
		hardware += hw.OneTimeCents
	}
	if tv.StreamingStick {
		stick = tv.StickPriceCents
	}
	return hardware, stick
}

// PhoneMonthly is lines × unit price; a tariff that bundles phone skips it.
func PhoneMonthly(cfg types.Configuration) int64 {
	if !cfg.Phone.Enabled || (cfg.Tariff != nil && cfg.Tariff.IncludesPhone) {
		return 0
	}
	lines := min(max(cfg.Phone.Lines, types.MinPhoneLines), types.MaxPhoneLines)
	return int64(lines) * cfg.Phone.UnitPriceCents
}

// Addons sums service and installation items by quantity.
func Addons(addons []types.SelectedAddon) (monthly, oneTime int64) {
	for _, a := range addons {
		monthly += a.Addon.MonthlyCents * a.Count()
		oneTime += a.Addon.OneTimeCents * a.Count()
	}
	return monthly, oneTime
}

// Express returns the express-activation fee: the option's price, or the
// policy fallback when no option record is loaded.
func Express(cfg types.Configuration, p types.Policy) int64 {
	if !cfg.Express.Enabled {
		return 0
	}
	if cfg.Express.Option != nil {
		return cfg.Express.Option.OneTimeCents
	}
	return p.ExpressFallbackCents
}

// Compute builds the full quote for cfg.
func Compute(cfg types.Configuration, p types.Policy) Quote {
	var q Quote
	q.Router = Router(cfg, p)

	addonsMonthly, addonsOneTime := Addons(cfg.Addons)
	q.Monthly = Monthly{
		TariffCents: TariffMonthly(cfg, p),
		RouterCents: q.Router.EffectiveMonthlyCents,
		TVCents:     TVMonthly(cfg.TV),
		PhoneCents:  PhoneMonthly(cfg),
		AddonsCents: addonsMonthly,
	}
	q.Monthly.TotalCents = floor0(q.Monthly.TariffCents + q.Monthly.RouterCents +
		q.Monthly.TVCents + q.Monthly.PhoneCents + q.Monthly.AddonsCents)

	setup, waived := SetupFee(cfg)
	hardware, stick := TVOneTime(cfg.TV)
	q.OneTime = OneTime{
		SetupFeeCents:       setup,
		SetupFeeWaived:      waived,
		RouterCents:         q.Router.EffectiveOneTimeCents,
		TVHardwareCents:     hardware,
		StreamingStickCents: stick,
		ExpressCents:        Express(cfg, p),
		AddonsCents:         addonsOneTime,
		ReferralBonusCents:  ReferralBonus(cfg, p),
	}
	q.OneTime.TotalCents = floor0(q.OneTime.SetupFeeCents + q.OneTime.RouterCents +
		q.OneTime.TVHardwareCents + q.OneTime.StreamingStickCents + q.OneTime.ExpressCents +
		q.OneTime.AddonsCents - q.OneTime.ReferralBonusCents)

	if waived {
		q.SetupFeeSavingsCents = floor0(cfg.Tariff.SetupFeeCents)
	}
	return q
}

// TotalMonthly returns the monthly total of cfg, never negative.
func TotalMonthly(cfg types.Configuration, p types.Policy) int64 {
	return Compute(cfg, p).Monthly.TotalCents
}

// TotalOneTime returns the one-time total of cfg, never negative.
func TotalOneTime(cfg types.Configuration, p types.Policy) int64 {
	return Compute(cfg, p).OneTime.TotalCents
}
