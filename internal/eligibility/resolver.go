// Package eligibility filters catalog add-ons against the active tariff,
// connection type and building, and drops selections that became illegal.
package eligibility

import (
	"slices"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Options is the resolved set of add-ons a customer may choose from.
type Options struct {
	// RouterSelectorVisible is false when the catalog has no router for the
	// address infrastructure. That is distinct from an explicit "no router".
	RouterSelectorVisible bool          `json:"router_selector_visible"`
	Routers               []types.Addon `json:"routers"`

	TVVisible  bool          `json:"tv_visible"`
	TVPackages []types.Addon `json:"tv_packages,omitempty"`
	TVAddons   []types.Addon `json:"tv_addons,omitempty"`
	TVHardware []types.Addon `json:"tv_hardware,omitempty"`
	TVStick    *types.Addon  `json:"tv_stick,omitempty"`

	PhoneVisible bool          `json:"phone_visible"`
	PhoneOptions []types.Addon `json:"phone_options,omitempty"`

	Services      []types.Addon `json:"services,omitempty"`
	Installations []types.Addon `json:"installations,omitempty"`
	Express       []types.Addon `json:"express,omitempty"`
}

// Current reports whether e answers for the given tariff. An answer without a
// tariff id is accepted for any tariff.
func Current(e *types.Eligibility, t *types.Tariff) bool {
	if e == nil || t == nil {
		return false
	}
	return e.TariffID == "" || e.TariffID == t.ID
}

// Resolve computes the options for the configuration's tariff and address from
// the last-known catalog answer. A missing or stale answer resolves to nothing.
func Resolve(e *types.Eligibility, cfg *types.Configuration) Options {
	var opts Options
	if !Current(e, cfg.Tariff) {
		return opts
	}

	var conn types.ConnectionType
	cableTV := false
	if cfg.Address != nil {
		conn = cfg.Address.ConnectionType
		cableTV = cfg.Address.CableTVAvailable
	}

	for _, r := range e.Routers {
		if routerFits(r, conn) {
			opts.Routers = append(opts.Routers, r)
		}
	}
	opts.RouterSelectorVisible = len(opts.Routers) > 0

	opts.TVVisible = len(e.TVOptions) > 0
	if opts.TVVisible {
		cableAllowed := conn == types.ConnectionFTTH && cableTV
		for _, o := range e.TVOptions {
			switch o.Category {
			case types.CategoryTV:
				if o.CableBased && !cableAllowed {
					continue
				}
				opts.TVPackages = append(opts.TVPackages, o)
			case types.CategoryTVAddon:
				opts.TVAddons = append(opts.TVAddons, o)
			case types.CategoryTVHardware:
				opts.TVHardware = append(opts.TVHardware, o)
			case types.CategoryTVStick:
				if opts.TVStick == nil {
					stick := o
					opts.TVStick = &stick
				}
			}
		}
	}

	opts.PhoneVisible = len(e.PhoneOptions) > 0
	opts.PhoneOptions = e.PhoneOptions
	opts.Services = e.ServiceOptions
	opts.Installations = e.InstallationOptions
	opts.Express = e.ExpressOptions
	return opts
}

// routerFits applies the infrastructure flag: FTTH-capable routers for ftth
// and limited connections, FTTB-capable ones otherwise.
func routerFits(r types.Addon, conn types.ConnectionType) bool {
	switch conn {
	case types.ConnectionFTTH, types.ConnectionLimited:
		return r.FTTH
	default:
		return r.FTTB
	}
}

func find(list []types.Addon, id string) (types.Addon, bool) {
	i := slices.IndexFunc(list, func(a types.Addon) bool { return a.ID == id })
	if i < 0 {
		return types.Addon{}, false
	}
	return list[i], true
}

// Router returns the eligible router with the given id.
func (o Options) Router(id string) (types.Addon, bool) { return find(o.Routers, id) }

// TVPackage returns the eligible TV package with the given id.
func (o Options) TVPackage(id string) (types.Addon, bool) { return find(o.TVPackages, id) }

// TVAddon returns the eligible TV add-on with the given id.
func (o Options) TVAddon(id string) (types.Addon, bool) { return find(o.TVAddons, id) }

// TVHardwareItem returns the eligible TV hardware with the given id.
func (o Options) TVHardwareItem(id string) (types.Addon, bool) { return find(o.TVHardware, id) }

// PhoneOption returns the eligible phone option with the given id.
func (o Options) PhoneOption(id string) (types.Addon, bool) { return find(o.PhoneOptions, id) }

// ExpressOption returns the eligible express option with the given id.
func (o Options) ExpressOption(id string) (types.Addon, bool) { return find(o.Express, id) }

// Extra returns the eligible service or installation item with the given id.
func (o Options) Extra(id string) (types.Addon, bool) {
	if a, ok := find(o.Services, id); ok {
		return a, true
	}
	return find(o.Installations, id)
}

// AllowsRouter reports whether c is a member of the router set. An undecided
// choice is always allowed; the explicit "no router" only while the selector
// is visible.
func (o Options) AllowsRouter(c types.RouterChoice) bool {
	switch c.Kind {
	case types.RouterNotSelected:
		return true
	case types.RouterNone:
		return o.RouterSelectorVisible
	case types.RouterSelected:
		if c.Router == nil {
			return false
		}
		_, ok := o.Router(c.Router.ID)
		return ok
	}
	return false
}

// ClampLines bounds a phone line count to [1,10].
func ClampLines(n int) int {
	return min(max(n, types.MinPhoneLines), types.MaxPhoneLines)
}

// ClampQuantity bounds an add-on quantity to [1,10].
func ClampQuantity(n int) int {
	return min(max(n, 1), types.MaxAddonQuantity)
}
