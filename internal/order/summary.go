package order

import (
	"time"

	"github.com/matthewbaird/fiberorder/internal/pricing"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// Line kinds of the contract summary.
const (
	LineTariff   = "tariff"
	LineRouter   = "router"
	LineTV       = "tv"
	LinePhone    = "phone"
	LineAddon    = "addon"
	LineExpress  = "express"
	LineSetupFee = "setup_fee"
	LineReferral = "referral_bonus"
)

// Line is one itemized row of the contract summary.
type Line struct {
	Kind           string `json:"kind"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	MonthlyCents   int64  `json:"monthly_cents"`
	OneTimeCents   int64  `json:"one_time_cents"`
	SavingsMonthly int64  `json:"savings_monthly_cents,omitempty"`
	SavingsOneTime int64  `json:"savings_one_time_cents,omitempty"`
}

// Summary is everything the contract document generator consumes: the full
// order snapshot, the itemized lines and the totals with their discount
// breakdown.
type Summary struct {
	OrderNumber string           `json:"order_number,omitempty"`
	Confirmed   bool             `json:"confirmed"`
	GeneratedAt time.Time        `json:"generated_at"`
	Order       types.OrderState `json:"order"`
	Lines       []Line           `json:"lines"`
	Quote       pricing.Quote    `json:"quote"`
	Monthly     types.Money      `json:"monthly_total"`
	OneTime     types.Money      `json:"one_time_total"`
}

// Summary builds the contract summary from a snapshot of the order.
func (o *Order) Summary() Summary {
	snap := o.Snapshot()
	q := pricing.Compute(snap.Configuration, o.policy)
	return Summary{
		OrderNumber: snap.Confirmation.OrderNumber,
		Confirmed:   snap.Confirmation.Confirmed(),
		GeneratedAt: o.now(),
		Order:       snap,
		Lines:       Lines(snap.Configuration, q),
		Quote:       q,
		Monthly:     types.EUR(q.Monthly.TotalCents),
		OneTime:     types.EUR(q.OneTime.TotalCents),
	}
}

// Lines itemizes a configuration against its quote.
func Lines(cfg types.Configuration, q pricing.Quote) []Line {
	var lines []Line
	if t := cfg.Tariff; t != nil {
		lines = append(lines, Line{
			Kind: LineTariff, ID: t.ID, Name: t.Name, Quantity: 1,
			MonthlyCents: q.Monthly.TariffCents,
		})
		if q.OneTime.SetupFeeWaived || q.OneTime.SetupFeeCents > 0 {
			lines = append(lines, Line{
				Kind: LineSetupFee, ID: t.ID, Name: "Setup fee", Quantity: 1,
				OneTimeCents: q.OneTime.SetupFeeCents, SavingsOneTime: q.SetupFeeSavingsCents,
			})
		}
	}
	if r := cfg.Router.Router; cfg.Router.Kind == types.RouterSelected && r != nil {
		lines = append(lines, Line{
			Kind: LineRouter, ID: r.ID, Name: r.Name, Quantity: 1,
			MonthlyCents: q.Router.EffectiveMonthlyCents, OneTimeCents: q.Router.EffectiveOneTimeCents,
			SavingsMonthly: q.Router.MonthlySavingsCents, SavingsOneTime: q.Router.OneTimeSavingsCents,
		})
	}
	if tv := cfg.TV; tv.Package != nil {
		lines = append(lines, Line{Kind: LineTV, ID: tv.Package.ID, Name: tv.Package.Name, Quantity: 1, MonthlyCents: tv.Package.MonthlyCents})
		if tv.HDAddon != nil {
			lines = append(lines, Line{Kind: LineTV, ID: tv.HDAddon.ID, Name: tv.HDAddon.Name, Quantity: 1, MonthlyCents: tv.HDAddon.MonthlyCents})
		}
		for _, hw := range tv.Hardware {
			lines = append(lines, Line{Kind: LineTV, ID: hw.ID, Name: hw.Name, Quantity: 1, MonthlyCents: hw.MonthlyCents, OneTimeCents: hw.OneTimeCents})
		}
		if tv.StreamingStick {
			lines = append(lines, Line{Kind: LineTV, Name: "Streaming stick", Quantity: 1, OneTimeCents: q.OneTime.StreamingStickCents})
		}
	}
	if q.Monthly.PhoneCents > 0 && cfg.Phone.Option != nil {
		lines = append(lines, Line{
			Kind: LinePhone, ID: cfg.Phone.Option.ID, Name: cfg.Phone.Option.Name,
			Quantity: int64(cfg.Phone.Lines), MonthlyCents: q.Monthly.PhoneCents,
		})
	}
	for _, a := range cfg.Addons {
		lines = append(lines, Line{
			Kind: LineAddon, ID: a.Addon.ID, Name: a.Addon.Name, Quantity: a.Count(),
			MonthlyCents: a.Addon.MonthlyCents * a.Count(), OneTimeCents: a.Addon.OneTimeCents * a.Count(),
		})
	}
	if cfg.Express.Enabled {
		l := Line{Kind: LineExpress, Name: "Express activation", Quantity: 1, OneTimeCents: q.OneTime.ExpressCents}
		if cfg.Express.Option != nil {
			l.ID, l.Name = cfg.Express.Option.ID, cfg.Express.Option.Name
		}
		lines = append(lines, l)
	}
	if q.OneTime.ReferralBonusCents > 0 {
		lines = append(lines, Line{
			Kind: LineReferral, ID: cfg.Referral.CustomerNumber, Name: "Referral bonus", Quantity: 1,
			OneTimeCents: -q.OneTime.ReferralBonusCents,
		})
	}
	return lines
}
