// Package types provides the shared value types of the ordering funnel: catalog
// records, the in-progress order configuration and the activity trail. These
// types are the Go representation of what the catalog store holds and what the
// contract summary consumes.
package types

import (
	"fmt"
	"strings"
)

// Currency is the only currency the funnel prices in.
const Currency = "EUR"

// Money represents a monetary amount using integer cents to eliminate
// floating-point errors in price calculations.
type Money struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"` // ISO 4217, always "EUR"
}

// EUR wraps a cent amount as Money.
func EUR(cents int64) Money {
	return Money{AmountCents: cents, Currency: Currency}
}

// String formats the amount as "53.89 EUR".
func (m Money) String() string {
	return FormatCents(m.AmountCents) + " " + m.Currency
}

// FormatCents renders cents with two decimals, e.g. 5389 → "53.89".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ConnectionType is the infrastructure class of an address.
type ConnectionType string

const (
	ConnectionFTTH         ConnectionType = "ftth"
	ConnectionLimited      ConnectionType = "limited" // FTTB
	ConnectionNotConnected ConnectionType = "not-connected"
)

// Valid reports whether c is a known connection type.
func (c ConnectionType) Valid() bool {
	switch c {
	case ConnectionFTTH, ConnectionLimited, ConnectionNotConnected:
		return true
	}
	return false
}

// CustomerType selects the private or business catalog.
type CustomerType string

const (
	CustomerPrivate  CustomerType = "private"
	CustomerBusiness CustomerType = "business"
)

// Address is the result of an address lookup. It is immutable once fetched;
// replacing it is a mutation of its own.
type Address struct {
	Street           string         `json:"street"`
	HouseNumber      string         `json:"house_number"`
	PostalCode       string         `json:"postal_code,omitempty"`
	City             string         `json:"city"`
	ConnectionType   ConnectionType `json:"connection_type"`
	BuildingID       string         `json:"building_id"`
	ResidentialUnits int            `json:"residential_units"`
	CableTVAvailable bool           `json:"cable_tv_available"`
}

// Connected reports whether the address can be ordered at all.
func (a *Address) Connected() bool {
	return a != nil && a.ConnectionType != "" && a.ConnectionType != ConnectionNotConnected
}

// LookupKey concatenates the inputs that identify an address lookup.
func LookupKey(street, houseNumber, city string, ct CustomerType) string {
	return strings.Join([]string{
		strings.TrimSpace(street), strings.TrimSpace(houseNumber), strings.TrimSpace(city), string(ct),
	}, "|")
}

// Tariff is the base internet product.
type Tariff struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MonthlyCents   int64  `json:"monthly_cents"`
	Monthly12Cents *int64 `json:"monthly12_cents,omitempty"` // only meaningful for the 12-month family
	SetupFeeCents  int64  `json:"setup_fee_cents"`
	ContractMonths int    `json:"contract_months"`
	IncludesPhone  bool   `json:"includes_phone"`
	Family         string `json:"family"`
}

// AddonCategory groups purchasable extras.
type AddonCategory string

const (
	CategoryRouter       AddonCategory = "router"
	CategoryTV           AddonCategory = "tv"
	CategoryTVAddon      AddonCategory = "tv-addon"
	CategoryTVHardware   AddonCategory = "tv-hardware"
	CategoryTVStick      AddonCategory = "tv-stick"
	CategoryPhone        AddonCategory = "phone"
	CategoryService      AddonCategory = "service"
	CategoryInstallation AddonCategory = "installation"
	CategoryExpress      AddonCategory = "express"
)

// Addon is any purchasable extra: router, TV package or hardware, phone
// option, service or installation item.
type Addon struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Category        AddonCategory `json:"category"`
	MonthlyCents    int64         `json:"monthly_cents"`
	OneTimeCents    int64         `json:"one_time_cents"`
	DiscountedCents *int64        `json:"discounted_cents,omitempty"` // catalog price with a discount-eligible tariff family
	FTTH            bool          `json:"ftth,omitempty"`
	FTTB            bool          `json:"fttb,omitempty"`
	CableBased      bool          `json:"cable_based,omitempty"`
}

// Eligibility is what the catalog allows for one tariff, building and
// customer type.
type Eligibility struct {
	TariffID            string       `json:"tariff_id"`
	BuildingID          string       `json:"building_id"`
	CustomerType        CustomerType `json:"customer_type"`
	Routers             []Addon      `json:"routers"`
	TVOptions           []Addon      `json:"tv_options"`
	PhoneOptions        []Addon      `json:"phone_options"`
	ServiceOptions      []Addon      `json:"service_options"`
	InstallationOptions []Addon      `json:"installation_options"`
	ExpressOptions      []Addon      `json:"express_options,omitempty"`
}

// PromotionScope describes how widely a promotion applies.
type PromotionScope string

const (
	ScopeAddress  PromotionScope = "address"
	ScopeBuilding PromotionScope = "building"
	ScopeGlobal   PromotionScope = "global"
)

// Promotion is an active discount rule returned by the promotion provider.
type Promotion struct {
	ID                         string         `json:"id"`
	Name                       string         `json:"name"`
	Scope                      PromotionScope `json:"scope"`
	RouterID                   string         `json:"router_id,omitempty"` // empty applies to any router
	RouterMonthlyDiscountCents int64          `json:"router_monthly_discount_cents"`
	RouterOneTimeDiscountCents int64          `json:"router_one_time_discount_cents"`
	SetupFeeWaived             bool           `json:"setup_fee_waived"`
}

// PromoCode is a code validated by the promo code registry.
type PromoCode struct {
	Code                       string   `json:"code"`
	ValidAddresses             []string `json:"valid_addresses,omitempty"`
	RouterDiscountCents        int64    `json:"router_discount_cents"`
	RouterOneTimeDiscountCents int64    `json:"router_one_time_discount_cents"`
	SetupFeeWaived             bool     `json:"setup_fee_waived"`
	Description                string   `json:"description"`
}

// ValidFor reports whether the code may be used at the given address. Codes
// without address restrictions are valid everywhere; otherwise one of the
// entries must be a case-insensitive substring of the street.
func (p *PromoCode) ValidFor(addr *Address) bool {
	if len(p.ValidAddresses) == 0 {
		return true
	}
	if addr == nil {
		return false
	}
	street := strings.ToLower(addr.Street)
	for _, v := range p.ValidAddresses {
		if v != "" && strings.Contains(street, strings.ToLower(v)) {
			return true
		}
	}
	return false
}
