package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// CatalogHandler exposes read-only catalog queries that need no session.
type CatalogHandler struct {
	catalog catalog.Provider
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(p catalog.Provider) *CatalogHandler {
	return &CatalogHandler{catalog: p}
}

// RegisterRoutes mounts the catalog routes on r.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/tariffs", h.ListTariffs)
	r.Get("/v1/tariffs/{id}", h.GetTariff)
	r.Get("/v1/addresses", h.LookupAddress)
}

func customerType(r *http.Request) types.CustomerType {
	if types.CustomerType(r.URL.Query().Get("customer_type")) == types.CustomerBusiness {
		return types.CustomerBusiness
	}
	return types.CustomerPrivate
}

// ListTariffs lists the tariffs offered to a customer type.
// GET /v1/tariffs?customer_type=private
func (h *CatalogHandler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs, err := h.catalog.Tariffs(r.Context(), customerType(r))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	if tariffs == nil {
		tariffs = []types.Tariff{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tariffs": tariffs})
}

// GetTariff returns one tariff.
// GET /v1/tariffs/{id}
func (h *CatalogHandler) GetTariff(w http.ResponseWriter, r *http.Request) {
	t, err := h.catalog.Tariff(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// LookupAddress checks availability at an address without starting a session.
// GET /v1/addresses?street=&house_number=&city=
func (h *CatalogHandler) LookupAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	street, no, city := q.Get("street"), q.Get("house_number"), q.Get("city")
	if street == "" || no == "" || city == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "street, house_number and city are required")
		return
	}
	addr, err := h.catalog.LookupAddress(r.Context(), street, no, city, customerType(r))
	if err != nil {
		domainErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}
