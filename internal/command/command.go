// Package command applies named order operations to a session. The REST
// routes and the websocket channel both dispatch through Apply so that every
// transport exposes the same operations with the same payloads.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matthewbaird/fiberorder/internal/cascade"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

var (
	// ErrUnknown is returned for an operation name that is not registered.
	ErrUnknown = errors.New("unknown operation")
	// ErrInvalid wraps payload decoding failures.
	ErrInvalid = errors.New("invalid payload")
)

// Operation names.
const (
	OpAddress              = "address"
	OpCustomerType         = "customer-type"
	OpTariff               = "tariff"
	OpRouter               = "router"
	OpTV                   = "tv"
	OpPhone                = "phone"
	OpAddons               = "addons"
	OpContract             = "contract"
	OpExpress              = "express"
	OpPromoCode            = "promo-code"
	OpReferral             = "referral"
	OpReferralValidate     = "referral-validate"
	OpCustomer             = "customer"
	OpBank                 = "bank"
	OpAlternateBilling     = "alternate-billing"
	OpAlternatePayer       = "alternate-payer"
	OpPreferredDate        = "preferred-date"
	OpProviderCancellation = "provider-cancellation"
	OpConsents             = "consents"
	OpApartment            = "apartment"
	OpStep                 = "step"
	OpRefresh              = "refresh"
	OpConfirm              = "confirm"
	OpReset                = "reset"
)

// Outcome is what an operation did to the order.
type Outcome struct {
	Result cascade.Result `json:"result"`
	// Moved is set by step changes; false means the navigation gate refused.
	Moved *bool `json:"moved,omitempty"`
	// OrderNumber is set by confirm.
	OrderNumber string `json:"order_number,omitempty"`
}

// Payloads.
type (
	AddressInput struct {
		Street      string `json:"street"`
		HouseNumber string `json:"house_number"`
		City        string `json:"city"`
	}
	CustomerTypeInput struct {
		CustomerType types.CustomerType `json:"customer_type"`
	}
	TariffInput struct {
		TariffID string `json:"tariff_id"`
	}
	RouterInput struct {
		RouterID string `json:"router_id"`
	}
	AddonsInput struct {
		Addons []order.AddonInput `json:"addons"`
	}
	ContractInput struct {
		Months int `json:"months"`
	}
	ExpressInput struct {
		Enabled  bool   `json:"enabled"`
		OptionID string `json:"option_id,omitempty"`
	}
	PromoCodeInput struct {
		Code string `json:"code"`
	}
	ReferralInput struct {
		Type           types.ReferralType `json:"type"`
		CustomerNumber string             `json:"customer_number,omitempty"`
	}
	ReferralValidateInput struct {
		CustomerNumber string `json:"customer_number"`
	}
	PreferredDateInput struct {
		Date *time.Time `json:"date"`
	}
	StepInput struct {
		Step int `json:"step"`
	}
)

type handlerFunc func(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error)

var registry = map[string]handlerFunc{
	OpAddress:              address,
	OpCustomerType:         customerType,
	OpTariff:               tariff,
	OpRouter:               mutate(func(o *order.Order, in RouterInput) cascade.Result { return o.SetRouter(in.RouterID) }),
	OpTV:                   mutate(func(o *order.Order, in order.TVInput) cascade.Result { return o.SetTV(in) }),
	OpPhone:                mutate(func(o *order.Order, in order.PhoneInput) cascade.Result { return o.SetPhone(in) }),
	OpAddons:               mutate(func(o *order.Order, in AddonsInput) cascade.Result { return o.SetAddons(in.Addons) }),
	OpContract:             mutate(func(o *order.Order, in ContractInput) cascade.Result { return o.SetContractDuration(in.Months) }),
	OpExpress:              mutate(func(o *order.Order, in ExpressInput) cascade.Result { return o.SetExpressActivation(in.Enabled, in.OptionID) }),
	OpPromoCode:            promoCode,
	OpReferral:             referral,
	OpReferralValidate:     referralValidate,
	OpCustomer:             mutate(func(o *order.Order, in *types.Person) cascade.Result { return o.SetCustomerData(in) }),
	OpBank:                 mutate(func(o *order.Order, in *types.BankData) cascade.Result { return o.SetBankData(in) }),
	OpAlternateBilling:     mutate(func(o *order.Order, in *types.Person) cascade.Result { return o.SetAlternateBilling(in) }),
	OpAlternatePayer:       mutate(func(o *order.Order, in *types.Person) cascade.Result { return o.SetAlternatePayer(in) }),
	OpPreferredDate:        mutate(func(o *order.Order, in PreferredDateInput) cascade.Result { return o.SetPreferredDate(in.Date) }),
	OpProviderCancellation: mutate(func(o *order.Order, in *types.ProviderCancellation) cascade.Result { return o.SetProviderCancellation(in) }),
	OpConsents:             mutate(func(o *order.Order, in types.Consents) cascade.Result { return o.SetConsents(in) }),
	OpApartment:            mutate(func(o *order.Order, in *types.Apartment) cascade.Result { return o.SetApartment(in) }),
	OpStep:                 step,
	OpRefresh:              refresh,
	OpConfirm:              confirm,
	OpReset:                reset,
}

// Names returns the registered operation names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply runs the named operation with its JSON payload against s.
func Apply(ctx context.Context, s *session.Session, name string, data json.RawMessage) (Outcome, error) {
	fn, ok := registry[name]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return fn(ctx, s, data)
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return v, nil
}

// mutate adapts a plain order mutation with a decoded payload.
func mutate[T any](fn func(o *order.Order, in T) cascade.Result) handlerFunc {
	return func(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
		in, err := decode[T](data)
		if err != nil {
			return Outcome{}, err
		}
		res := s.Update(ctx, func(o *order.Order) cascade.Result { return fn(o, in) })
		return Outcome{Result: res}, nil
	}
}

func address(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[AddressInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Lookups().ResolveAddress(ctx, in.Street, in.HouseNumber, in.City)
	return Outcome{Result: res}, err
}

func customerType(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[CustomerTypeInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Lookups().SetCustomerType(ctx, in.CustomerType)
	return Outcome{Result: res}, err
}

func tariff(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[TariffInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Lookups().SelectTariff(ctx, in.TariffID)
	return Outcome{Result: res}, err
}

func promoCode(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[PromoCodeInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Lookups().ApplyPromoCode(ctx, in.Code)
	return Outcome{Result: res}, err
}

// referral sets the referral type. A customer referral with a number is
// validated against the registry right away.
func referral(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[ReferralInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res := s.Update(ctx, func(o *order.Order) cascade.Result {
		return o.SetReferralType(in.Type, in.CustomerNumber)
	})
	if in.Type != types.ReferralCustomer || in.CustomerNumber == "" {
		return Outcome{Result: res}, nil
	}
	v, err := s.Lookups().ValidateReferral(ctx, in.CustomerNumber)
	res.Merge(v.Cleared...)
	return Outcome{Result: res}, err
}

func referralValidate(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[ReferralValidateInput](data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Lookups().ValidateReferral(ctx, in.CustomerNumber)
	return Outcome{Result: res}, err
}

func step(ctx context.Context, s *session.Session, data json.RawMessage) (Outcome, error) {
	in, err := decode[StepInput](data)
	if err != nil {
		return Outcome{}, err
	}
	var moved bool
	res := s.Update(ctx, func(o *order.Order) cascade.Result {
		var r cascade.Result
		r, moved = o.SetStep(in.Step)
		return r
	})
	return Outcome{Result: res, Moved: &moved}, nil
}

// refresh re-fetches eligibility and promotions for the current tariff.
func refresh(ctx context.Context, s *session.Session, _ json.RawMessage) (Outcome, error) {
	res, err := s.Lookups().RefreshEligibility(ctx)
	if err != nil {
		return Outcome{Result: res}, err
	}
	p, err := s.Lookups().RefreshPromotions(ctx)
	res.Combine(p)
	return Outcome{Result: res}, err
}

func confirm(ctx context.Context, s *session.Session, _ json.RawMessage) (Outcome, error) {
	num, err := s.Confirm(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{OrderNumber: num}, nil
}

func reset(ctx context.Context, s *session.Session, _ json.RawMessage) (Outcome, error) {
	s.Reset(ctx)
	return Outcome{}, nil
}
