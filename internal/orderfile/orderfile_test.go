package orderfile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

const sample = `
promo-code: ROUTER2
router: fritzbox-5590
tariff: einfach-250
address:
  street: Hauptstrasse
  house_number: "5"
  city: Kiel
phone: {enabled: true, option_id: voip, lines: 2}
addons:
  addons: [{id: install}]
preferred-date: {date: 2026-05-04T00:00:00Z}
customer: {first_name: Ada, last_name: Lovelace}
bank: {account_holder: Ada Lovelace, iban: DE02120300000000202051}
confirm: true
`

func newSession(t *testing.T) *session.Session {
	t.Helper()
	c, err := catalog.LoadSeed("../catalog/testdata/catalog.cue")
	require.NoError(t, err)
	provider, err := catalog.NewMemoryCatalog(c)
	require.NoError(t, err)
	m := session.NewManager(session.Options{Policy: types.DefaultPolicy()}, provider, nil, nil)
	return m.Create(context.Background())
}

func TestParse_FunnelOrderAndShorthand(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.True(t, f.Confirm)

	ops := make([]string, len(f.Steps))
	for i, s := range f.Steps {
		ops[i] = s.Op
	}
	assert.Equal(t, []string{
		command.OpAddress, command.OpTariff, command.OpRouter, command.OpPhone, command.OpAddons,
		command.OpPromoCode, command.OpCustomer, command.OpBank, command.OpPreferredDate,
	}, ops)

	assert.JSONEq(t, `{"tariff_id":"einfach-250"}`, string(f.Steps[1].Payload))
	assert.JSONEq(t, `{"code":"ROUTER2"}`, string(f.Steps[5].Payload))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("warp: 9\ntariff: x\n"))
	assert.ErrorContains(t, err, "warp")

	_, err = Parse(strings.NewReader("confirm: maybe\n"))
	assert.ErrorContains(t, err, "confirm")

	_, err = Parse(strings.NewReader("tariff: [unclosed\n"))
	assert.Error(t, err)

	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Steps)
}

func TestApply(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	s := newSession(t)
	number, err := f.Apply(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, number)

	st := s.Snapshot()
	cfg := st.Configuration
	assert.Equal(t, "einfach-250", cfg.Tariff.ID)
	assert.Equal(t, "fritzbox-5590", cfg.Router.ID())
	assert.Equal(t, 2, cfg.Phone.Lines)
	require.NotNil(t, cfg.PromoCode)
	require.NotNil(t, st.PreferredDate)
	assert.Equal(t, 4, st.PreferredDate.Day())
	assert.Equal(t, number, st.Confirmation.OrderNumber)
}

func TestApply_StopsAtFirstError(t *testing.T) {
	f, err := Parse(strings.NewReader("tariff: warp-10000\nrouter: fritzbox-5590\n"))
	require.NoError(t, err)
	_, err = f.Apply(context.Background(), newSession(t))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.ErrorContains(t, err, "tariff")
}
