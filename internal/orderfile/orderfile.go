// Package orderfile reads an order described in YAML and replays it through
// a session. Each top-level key is an operation name with the same payload
// the API accepts; keys are applied in funnel order, not file order.
//
//	address: {street: Hauptstrasse, house_number: "5", city: Kiel}
//	tariff: einfach-250
//	router: fritzbox-5590
//	phone: {enabled: true, option_id: voip, lines: 2}
//	promo-code: ROUTER2
package orderfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/session"
)

// funnelOrder is the order operations are applied in. Catalog lookups come
// first so that later selections see the eligibility of the chosen tariff.
var funnelOrder = []string{
	command.OpCustomerType,
	command.OpAddress,
	command.OpTariff,
	command.OpContract,
	command.OpRouter,
	command.OpTV,
	command.OpPhone,
	command.OpAddons,
	command.OpExpress,
	command.OpReferral,
	command.OpPromoCode,
	command.OpCustomer,
	command.OpBank,
	command.OpAlternateBilling,
	command.OpAlternatePayer,
	command.OpPreferredDate,
	command.OpProviderCancellation,
	command.OpConsents,
	command.OpApartment,
}

// shorthand names the payload field a scalar value stands for.
var shorthand = map[string]string{
	command.OpCustomerType: "customer_type",
	command.OpTariff:       "tariff_id",
	command.OpContract:     "months",
	command.OpRouter:       "router_id",
	command.OpPromoCode:    "code",
}

// Step is one operation with its JSON payload.
type Step struct {
	Op      string
	Payload json.RawMessage
}

// File is a parsed order file.
type File struct {
	Steps []Step
	// Confirm asks for an order number after the steps ran.
	Confirm bool
}

// Parse reads an order file.
func Parse(r io.Reader) (*File, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("parsing order file: %w", err)
	}

	f := &File{}
	if v, ok := raw["confirm"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, fmt.Errorf("confirm: want true or false, got %v", v)
		}
		f.Confirm = b
		delete(raw, "confirm")
	}

	var unknown []string
	for key := range raw {
		if !slices.Contains(funnelOrder, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown keys in order file: %v", unknown)
	}

	for _, op := range funnelOrder {
		v, ok := raw[op]
		if !ok {
			continue
		}
		if field, ok := shorthand[op]; ok {
			if _, isMap := v.(map[string]any); !isMap {
				v = map[string]any{field: v}
			}
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		f.Steps = append(f.Steps, Step{Op: op, Payload: payload})
	}
	return f, nil
}

// Apply replays the file against s and returns the order number when the
// file asks for confirmation.
func (f *File) Apply(ctx context.Context, s *session.Session) (string, error) {
	for _, st := range f.Steps {
		if _, err := command.Apply(ctx, s, st.Op, st.Payload); err != nil {
			return "", fmt.Errorf("%s: %w", st.Op, err)
		}
	}
	if !f.Confirm {
		return "", nil
	}
	out, err := command.Apply(ctx, s, command.OpConfirm, nil)
	if err != nil {
		return "", err
	}
	return out.OrderNumber, nil
}
