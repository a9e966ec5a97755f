package types

import "time"

// Funnel steps.
const (
	StepAddress  = 1
	StepTariff   = 2
	StepCustomer = 3
	StepReview   = 4
)

// Phone line and add-on quantity bounds.
const (
	MinPhoneLines    = 1
	MaxPhoneLines    = 10
	MaxAddonQuantity = 10
)

// RouterChoiceKind tags the router selection.
type RouterChoiceKind string

const (
	RouterNotSelected RouterChoiceKind = "not_selected" // no decision yet
	RouterNone        RouterChoiceKind = "none"         // customer explicitly wants no router
	RouterSelected    RouterChoiceKind = "selected"
)

// NoRouterID is the identifier clients use for the explicit "no router" choice.
const NoRouterID = "none"

// RouterChoice is the tagged router selection. Router is set only for
// RouterSelected.
type RouterChoice struct {
	Kind   RouterChoiceKind `json:"kind"`
	Router *Addon           `json:"router,omitempty"`
}

// NotSelectedRouter is the zero decision.
func NotSelectedRouter() RouterChoice { return RouterChoice{Kind: RouterNotSelected} }

// NoRouter is the explicit "no router" choice.
func NoRouter() RouterChoice { return RouterChoice{Kind: RouterNone} }

// SelectRouter wraps a catalog router.
func SelectRouter(a Addon) RouterChoice {
	return RouterChoice{Kind: RouterSelected, Router: &a}
}

// ID returns the router id, NoRouterID for the sentinel, or "" when undecided.
func (c RouterChoice) ID() string {
	switch c.Kind {
	case RouterNone:
		return NoRouterID
	case RouterSelected:
		if c.Router != nil {
			return c.Router.ID
		}
	}
	return ""
}

// TVType classifies the chosen TV package.
type TVType string

const (
	TVNone      TVType = "none"
	TVCable     TVType = "cable"
	TVStreaming TVType = "streaming"
)

// TVSelection holds the TV package and its extras.
type TVSelection struct {
	Type            TVType  `json:"type"`
	Package         *Addon  `json:"package,omitempty"`
	HDAddon         *Addon  `json:"hd_addon,omitempty"`
	Hardware        []Addon `json:"hardware,omitempty"`
	StreamingStick  bool    `json:"streaming_stick"`
	StickPriceCents int64   `json:"stick_price_cents"`
}

// DefaultTV is the empty TV selection.
func DefaultTV() TVSelection { return TVSelection{Type: TVNone} }

// PortingData describes a number to be ported from the previous provider.
type PortingData struct {
	PreviousProvider string   `json:"previous_provider"`
	AreaCode         string   `json:"area_code"`
	Numbers          []string `json:"numbers"`
	HolderName       string   `json:"holder_name"`
}

// PhoneSelection holds the purchasable phone line configuration.
type PhoneSelection struct {
	Enabled         bool         `json:"enabled"`
	Option          *Addon       `json:"option,omitempty"`
	Lines           int          `json:"lines"`
	UnitPriceCents  int64        `json:"unit_price_cents"`
	PortingRequired bool         `json:"porting_required"`
	Porting         *PortingData `json:"porting,omitempty"`
}

// DefaultPhone is the disabled phone selection.
func DefaultPhone() PhoneSelection {
	return PhoneSelection{Lines: MinPhoneLines}
}

// SelectedAddon is a service or installation item with a quantity.
type SelectedAddon struct {
	Addon    Addon `json:"addon"`
	Quantity int   `json:"quantity,omitempty"`
}

// Count returns the effective quantity bounded to [1,MaxAddonQuantity].
func (s SelectedAddon) Count() int64 {
	return int64(min(max(s.Quantity, 1), MaxAddonQuantity))
}

// ExpressActivation is the optional paid fast-track activation.
type ExpressActivation struct {
	Enabled bool   `json:"enabled"`
	Option  *Addon `json:"option,omitempty"`
}

// ReferralType is the "how did you hear about us" source. Only one bonus
// mechanism applies per order.
type ReferralType string

const (
	ReferralNone        ReferralType = "none"
	ReferralInternet    ReferralType = "internet"
	ReferralSocialMedia ReferralType = "social-media"
	ReferralCustomer    ReferralType = "referral"
	ReferralPromoCode   ReferralType = "promo-code"
)

// Valid reports whether t is a known referral type.
func (t ReferralType) Valid() bool {
	switch t {
	case ReferralNone, ReferralInternet, ReferralSocialMedia, ReferralCustomer, ReferralPromoCode:
		return true
	}
	return false
}

// ReferralData holds the referral source and the registry validation result.
type ReferralData struct {
	Type           ReferralType `json:"type"`
	CustomerNumber string       `json:"customer_number,omitempty"`
	Validated      bool         `json:"validated"`
	Error          string       `json:"error,omitempty"`
}

// Configuration is every priced choice of an order. Pricing reads nothing
// else.
type Configuration struct {
	Address        *Address          `json:"address,omitempty"`
	CustomerType   CustomerType      `json:"customer_type"`
	Tariff         *Tariff           `json:"tariff,omitempty"`
	Router         RouterChoice      `json:"router"`
	TV             TVSelection       `json:"tv"`
	Phone          PhoneSelection    `json:"phone"`
	Addons         []SelectedAddon   `json:"addons,omitempty"`
	ContractMonths int               `json:"contract_months"`
	Express        ExpressActivation `json:"express"`
	Promotions     []Promotion       `json:"promotions,omitempty"`
	PromoCode      *PromoCode        `json:"promo_code,omitempty"`
	PromoCodeError string            `json:"promo_code_error,omitempty"`
	Referral       ReferralData      `json:"referral"`
}

// Person is a contact person on the order.
type Person struct {
	Salutation  string     `json:"salutation,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Company     string     `json:"company,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Street      string     `json:"street,omitempty"`
	HouseNumber string     `json:"house_number,omitempty"`
	PostalCode  string     `json:"postal_code,omitempty"`
	City        string     `json:"city,omitempty"`
}

// Present reports whether the minimum identifying fields are filled.
func (p *Person) Present() bool {
	return p != nil && p.FirstName != "" && p.LastName != ""
}

// BankData holds the SEPA direct debit details.
type BankData struct {
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic,omitempty"`
	SEPAMandate   bool   `json:"sepa_mandate"`
}

// Present reports whether the debit details are filled.
func (b *BankData) Present() bool {
	return b != nil && b.AccountHolder != "" && b.IBAN != ""
}

// ProviderCancellation asks the new provider to cancel the old contract.
type ProviderCancellation struct {
	PreviousProvider string     `json:"previous_provider"`
	CustomerNumber   string     `json:"customer_number,omitempty"`
	ContractHolder   string     `json:"contract_holder,omitempty"`
	ContractEnd      *time.Time `json:"contract_end,omitempty"`
	CancelOnBehalf   bool       `json:"cancel_on_behalf"`
}

// Consents are the legal checkboxes of the review step.
type Consents struct {
	Terms     bool `json:"terms"`
	Privacy   bool `json:"privacy"`
	Marketing bool `json:"marketing"`
}

// Apartment locates the unit inside a multi-dwelling building.
type Apartment struct {
	Floor      string `json:"floor,omitempty"`
	Position   string `json:"position,omitempty"`
	UnitNumber string `json:"unit_number,omitempty"`
}

// Confirmation is Confirmed while OrderNumber is non-empty.
type Confirmation struct {
	OrderNumber string     `json:"order_number,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Confirmed reports whether an order number has been minted.
func (c Confirmation) Confirmed() bool { return c.OrderNumber != "" }

// OrderState is the complete in-progress order of one session.
type OrderState struct {
	Step          int           `json:"step"`
	Configuration Configuration `json:"configuration"`
	// Eligibility is the last-known catalog answer for the active tariff.
	Eligibility *Eligibility `json:"eligibility,omitempty"`

	Customer             *Person               `json:"customer,omitempty"`
	Bank                 *BankData             `json:"bank,omitempty"`
	AlternateBilling     *Person               `json:"alternate_billing,omitempty"`
	AlternatePayer       *Person               `json:"alternate_payer,omitempty"`
	PreferredDate        *time.Time            `json:"preferred_date,omitempty"`
	ProviderCancellation *ProviderCancellation `json:"provider_cancellation,omitempty"`
	Consents             Consents              `json:"consents"`
	Apartment            *Apartment            `json:"apartment,omitempty"`

	Confirmation Confirmation `json:"confirmation"`
}

// NewOrderState returns the empty state a session starts with.
func NewOrderState() OrderState {
	return OrderState{
		Step: StepAddress,
		Configuration: Configuration{
			CustomerType:   CustomerPrivate,
			Router:         NotSelectedRouter(),
			TV:             DefaultTV(),
			Phone:          DefaultPhone(),
			ContractMonths: 24,
			Referral:       ReferralData{Type: ReferralNone},
		},
	}
}
