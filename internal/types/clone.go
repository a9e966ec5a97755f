package types

import (
	"slices"
	"time"
)

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(t *time.Time) *time.Time { return clonePtr(t) }

// Clone returns a deep copy of the addon.
func (a Addon) Clone() Addon {
	a.DiscountedCents = clonePtr(a.DiscountedCents)
	return a
}

func cloneAddonPtr(a *Addon) *Addon {
	if a == nil {
		return nil
	}
	c := a.Clone()
	return &c
}

func cloneAddons(in []Addon) []Addon {
	if in == nil {
		return nil
	}
	out := make([]Addon, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// Clone returns a deep copy of the tariff.
func (t *Tariff) Clone() *Tariff {
	if t == nil {
		return nil
	}
	c := *t
	c.Monthly12Cents = clonePtr(t.Monthly12Cents)
	return &c
}

// Clone returns a deep copy of the eligibility answer.
func (e *Eligibility) Clone() *Eligibility {
	if e == nil {
		return nil
	}
	c := *e
	c.Routers = cloneAddons(e.Routers)
	c.TVOptions = cloneAddons(e.TVOptions)
	c.PhoneOptions = cloneAddons(e.PhoneOptions)
	c.ServiceOptions = cloneAddons(e.ServiceOptions)
	c.InstallationOptions = cloneAddons(e.InstallationOptions)
	c.ExpressOptions = cloneAddons(e.ExpressOptions)
	return &c
}

// Clone returns a deep copy of the promo code.
func (p *PromoCode) Clone() *PromoCode {
	if p == nil {
		return nil
	}
	c := *p
	c.ValidAddresses = slices.Clone(p.ValidAddresses)
	return &c
}

func (c RouterChoice) clone() RouterChoice {
	c.Router = cloneAddonPtr(c.Router)
	return c
}

func (t TVSelection) clone() TVSelection {
	t.Package = cloneAddonPtr(t.Package)
	t.HDAddon = cloneAddonPtr(t.HDAddon)
	t.Hardware = cloneAddons(t.Hardware)
	return t
}

func (p PhoneSelection) clone() PhoneSelection {
	p.Option = cloneAddonPtr(p.Option)
	if p.Porting != nil {
		pd := *p.Porting
		pd.Numbers = slices.Clone(p.Porting.Numbers)
		p.Porting = &pd
	}
	return p
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	c.Address = clonePtr(c.Address)
	c.Tariff = c.Tariff.Clone()
	c.Router = c.Router.clone()
	c.TV = c.TV.clone()
	c.Phone = c.Phone.clone()
	if c.Addons != nil {
		addons := make([]SelectedAddon, len(c.Addons))
		for i, a := range c.Addons {
			addons[i] = SelectedAddon{Addon: a.Addon.Clone(), Quantity: a.Quantity}
		}
		c.Addons = addons
	}
	c.Express.Option = cloneAddonPtr(c.Express.Option)
	c.Promotions = slices.Clone(c.Promotions)
	c.PromoCode = c.PromoCode.Clone()
	return c
}

func clonePerson(p *Person) *Person {
	if p == nil {
		return nil
	}
	c := *p
	c.BirthDate = cloneTime(p.BirthDate)
	return &c
}

// Clone returns a deep copy of the order state. Callers may hold the copy
// while the original keeps changing.
func (s OrderState) Clone() OrderState {
	s.Configuration = s.Configuration.Clone()
	s.Eligibility = s.Eligibility.Clone()
	s.Customer = clonePerson(s.Customer)
	s.Bank = clonePtr(s.Bank)
	s.AlternateBilling = clonePerson(s.AlternateBilling)
	s.AlternatePayer = clonePerson(s.AlternatePayer)
	s.PreferredDate = cloneTime(s.PreferredDate)
	if s.ProviderCancellation != nil {
		pc := *s.ProviderCancellation
		pc.ContractEnd = cloneTime(pc.ContractEnd)
		s.ProviderCancellation = &pc
	}
	s.Apartment = clonePtr(s.Apartment)
	s.Confirmation.ConfirmedAt = cloneTime(s.Confirmation.ConfirmedAt)
	return s
}
