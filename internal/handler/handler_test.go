package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/fiberorder/internal/activity"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	store  *activity.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	c, err := catalog.LoadSeed("../catalog/testdata/catalog.cue")
	require.NoError(t, err)
	provider, err := catalog.NewMemoryCatalog(c)
	require.NoError(t, err)

	store := activity.NewMemoryStore()
	sessions := session.NewManager(session.Options{Policy: types.DefaultPolicy()}, provider, event.NewActivityRecorder(store), nil)

	r := chi.NewRouter()
	NewSessionHandler(sessions).RegisterRoutes(r)
	NewCatalogHandler(provider).RegisterRoutes(r)
	NewActivityHandler(store).RegisterRoutes(r)

	srv := httptest.NewServer(Recovery(Logging(r)))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv, store: store}
}

func (a *testAPI) do(method, path, body string, out any) int {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) createSession() command.View {
	a.t.Helper()
	var v command.View
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/v1/sessions", "", &v))
	require.NotEmpty(a.t, v.ID)
	return v
}

func (a *testAPI) op(id, name, body string) (OperationResponse, int) {
	a.t.Helper()
	var resp OperationResponse
	code := a.do(http.MethodPost, "/v1/sessions/"+id+"/"+name, body, &resp)
	return resp, code
}

func TestSessionAPI_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	v := api.createSession()
	assert.Equal(t, types.StepAddress, v.State.Step)
	assert.Equal(t, 24, v.State.Configuration.ContractMonths)

	var got command.View
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/sessions/"+v.ID, "", &got))
	assert.Equal(t, v.ID, got.ID)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/sessions/"+v.ID, "", nil))

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/sessions/"+v.ID, "", &errBody))
	assert.Equal(t, "SESSION_NOT_FOUND", errBody["code"])
}

func TestSessionAPI_ConfigureAndConfirm(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID

	resp, code := api.op(id, "address", `{"street":"Hauptstrasse","house_number":"5","city":"Kiel"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Session.State.Configuration.Address)
	assert.Equal(t, "B-1", resp.Session.State.Configuration.Address.BuildingID)

	resp, code = api.op(id, "tariff", `{"tariff_id":"einfach-250"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Session.Options.RouterSelectorVisible)
	assert.Equal(t, int64(4990), resp.Session.Quote.Monthly.TotalCents)

	api.op(id, "router", `{"router_id":"fritzbox-5590"}`)
	api.op(id, "customer", `{"first_name":"Ada","last_name":"Lovelace"}`)
	api.op(id, "bank", `{"account_holder":"Ada Lovelace","iban":"DE02120300000000202051"}`)

	resp, code = api.op(id, "step", `{"step":4}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Moved)
	assert.True(t, *resp.Moved)

	resp, code = api.op(id, "confirm", "")
	require.Equal(t, http.StatusOK, code)
	assert.Regexp(t, `^FO-\d{8}-[0-9A-F]{8}$`, resp.OrderNumber)
	number := resp.OrderNumber

	resp, _ = api.op(id, "contract", `{"months":24}`)
	assert.True(t, resp.Result.Invalidated)
	assert.Equal(t, number, resp.Result.RevokedOrderNumber)
	assert.False(t, resp.Session.State.Confirmation.Confirmed())

	var feed struct {
		Activities []types.ActivityEntry `json:"activities"`
		TotalCount int                   `json:"total_count"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/activity/entity/order/"+number, "", &feed))
	assert.Equal(t, 2, feed.TotalCount)
	assert.Equal(t, event.TypeConfirmationInvalidated, feed.Activities[0].EventType)
}

func TestSessionAPI_QuoteOptionsSummary(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID
	api.op(id, "address", `{"street":"Hauptstrasse","house_number":"5","city":"Kiel"}`)
	api.op(id, "tariff", `{"tariff_id":"einfach-250"}`)

	var quote struct {
		Monthly struct {
			TotalCents int64 `json:"total_cents"`
		} `json:"monthly"`
	}
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/sessions/"+id+"/quote", "", &quote))
	assert.Equal(t, int64(4990), quote.Monthly.TotalCents)

	var opts map[string]any
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/sessions/"+id+"/options", "", &opts))
	assert.Contains(t, opts, "routers")

	var summary map[string]any
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/sessions/"+id+"/summary", "", &summary))
	assert.Equal(t, false, summary["confirmed"])
	assert.NotEmpty(t, summary["lines"])
}

func TestSessionAPI_Errors(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/v1/sessions/"+id+"/address",
		`{"street":"Nowhere","house_number":"1","city":"Kiel"}`, &body))
	assert.Equal(t, "NOT_FOUND", body["code"])

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/v1/sessions/"+id+"/contract",
		`{"months":`, &body))
	assert.Equal(t, "INVALID_BODY", body["code"])

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/v1/sessions/"+id+"/confirm", "", &body))
	assert.Equal(t, "ORDER_INCOMPLETE", body["code"])

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/v1/sessions/missing/reset", "", &body))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/v1/sessions/missing", "", nil))
}

func TestSessionAPI_StepGateIsNoOp(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID
	resp, code := api.op(id, "step", `{"step":3}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Moved)
	assert.False(t, *resp.Moved)
	assert.Equal(t, types.StepAddress, resp.Session.State.Step)
}

func TestCatalogAPI(t *testing.T) {
	api := newTestAPI(t)

	var list struct {
		Tariffs []types.Tariff `json:"tariffs"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/tariffs", "", &list))
	for _, tr := range list.Tariffs {
		assert.NotEqual(t, "business-1000", tr.ID)
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/tariffs?customer_type=business", "", &list))
	ids := make([]string, len(list.Tariffs))
	for i, tr := range list.Tariffs {
		ids[i] = tr.ID
	}
	assert.Contains(t, ids, "business-1000")

	var tr types.Tariff
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/tariffs/basic-100", "", &tr))
	assert.Equal(t, int64(3490), tr.MonthlyCents)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/tariffs/nope", "", nil))

	var addr types.Address
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/addresses?street=Am+Hafen&house_number=2a&city=Kiel", "", &addr))
	assert.Equal(t, types.ConnectionLimited, addr.ConnectionType)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/addresses?street=Am+Hafen", "", nil))
}

func TestActivityAPI_Search(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID
	api.op(id, "referral", `{"type":"promo-code"}`)
	api.op(id, "promo-code", `{"code":"BOGUS"}`)

	var res struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/v1/activity/search", `{"query":"promo code","entity_type":"session"}`, &res))
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, event.TypePromoCodeRejected, res.Results[0].EventType)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/v1/activity/search", `{}`, nil))
}

func TestActivityAPI_Signals(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession().ID
	api.op(id, "address", `{"street":"Hauptstrasse","house_number":"5","city":"Kiel"}`)
	for _, code := range []string{"NOPE1", "NOPE2", "NOPE3"} {
		api.op(id, "promo-code", `{"code":"`+code+`"}`)
	}

	var sum types.SignalSummary
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/activity/entity/session/"+id+"/signals", "", &sum))
	assert.Equal(t, id, sum.EntityID)
	assert.Equal(t, 3, sum.Categories["friction"].SignalCount)
	require.Len(t, sum.Escalations, 1)
	assert.Equal(t, "promo_code_guessing", sum.Escalations[0].Rule.ID)
	assert.Equal(t, "struggling", sum.Health)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/activity/entity/session/"+id+"/signals?since=yesterday", "", nil))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
}
