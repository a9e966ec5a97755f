package eligibility

import "github.com/matthewbaird/fiberorder/internal/types"

// Field names reported by Normalize.
const (
	FieldRouter  = "router"
	FieldTV      = "tv"
	FieldTVHD    = "tv.hd_addon"
	FieldTVHW    = "tv.hardware"
	FieldTVStick = "tv.streaming_stick"
	FieldPhone   = "phone"
	FieldAddons  = "addons"
	FieldExpress = "express.option"
)

// Normalize re-filters every add-on selection of s against the options the
// current catalog answer allows. Members are refreshed to the current catalog
// record; non-members are reset to their default. It returns the fields it
// had to clear.
func Normalize(s *types.OrderState) []string {
	cfg := &s.Configuration
	opts := Resolve(s.Eligibility, cfg)
	var cleared []string

	switch {
	case !opts.AllowsRouter(cfg.Router):
		cfg.Router = types.NotSelectedRouter()
		cleared = append(cleared, FieldRouter)
	case cfg.Router.Kind == types.RouterSelected:
		r, _ := opts.Router(cfg.Router.ID())
		cfg.Router = types.SelectRouter(r)
	}

	cleared = append(cleared, normalizeTV(&cfg.TV, opts)...)

	if cfg.Phone.Enabled || cfg.Phone.Option != nil {
		if cfg.Phone.Option == nil {
			cfg.Phone = types.DefaultPhone()
			cleared = append(cleared, FieldPhone)
		} else if o, ok := opts.PhoneOption(cfg.Phone.Option.ID); ok {
			cfg.Phone.Option = &o
			cfg.Phone.UnitPriceCents = o.MonthlyCents
		} else {
			cfg.Phone = types.DefaultPhone()
			cleared = append(cleared, FieldPhone)
		}
	}
	cfg.Phone.Lines = ClampLines(cfg.Phone.Lines)

	if len(cfg.Addons) > 0 {
		kept := cfg.Addons[:0:0]
		for _, sel := range cfg.Addons {
			if a, ok := opts.Extra(sel.Addon.ID); ok {
				kept = append(kept, types.SelectedAddon{Addon: a, Quantity: ClampQuantity(sel.Quantity)})
			}
		}
		if len(kept) != len(cfg.Addons) {
			cleared = append(cleared, FieldAddons)
		}
		cfg.Addons = kept
	}

	if cfg.Express.Option != nil {
		if o, ok := opts.ExpressOption(cfg.Express.Option.ID); ok {
			cfg.Express.Option = &o
		} else {
			cfg.Express.Option = nil
			cleared = append(cleared, FieldExpress)
		}
	}
	return cleared
}

func normalizeTV(tv *types.TVSelection, opts Options) []string {
	if tv.Package == nil {
		if tv.HDAddon != nil || len(tv.Hardware) > 0 || tv.StreamingStick {
			*tv = types.DefaultTV()
			return []string{FieldTV}
		}
		return nil
	}
	pkg, ok := opts.TVPackage(tv.Package.ID)
	if !ok {
		*tv = types.DefaultTV()
		return []string{FieldTV}
	}
	tv.Package = &pkg
	tv.Type = typeOf(pkg)

	var cleared []string
	if tv.HDAddon != nil {
		if hd, ok := opts.TVAddon(tv.HDAddon.ID); ok {
			tv.HDAddon = &hd
		} else {
			tv.HDAddon = nil
			cleared = append(cleared, FieldTVHD)
		}
	}
	if len(tv.Hardware) > 0 {
		kept := tv.Hardware[:0:0]
		for _, hw := range tv.Hardware {
			if a, ok := opts.TVHardwareItem(hw.ID); ok {
				kept = append(kept, a)
			}
		}
		if len(kept) != len(tv.Hardware) {
			cleared = append(cleared, FieldTVHW)
		}
		tv.Hardware = kept
	}
	if tv.StreamingStick {
		if tv.Type != types.TVStreaming || opts.TVStick == nil {
			tv.StreamingStick = false
			tv.StickPriceCents = 0
			cleared = append(cleared, FieldTVStick)
		} else {
			tv.StickPriceCents = opts.TVStick.OneTimeCents
		}
	}
	return cleared
}

func typeOf(pkg types.Addon) types.TVType {
	if pkg.CableBased {
		return types.TVCable
	}
	return types.TVStreaming
}

// TVTypeOf classifies a TV package.
func TVTypeOf(pkg types.Addon) types.TVType { return typeOf(pkg) }
