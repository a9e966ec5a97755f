package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/fiberorder/internal/types"
)

// Event types.
const (
	TypeSessionStarted          = "session_started"
	TypeSessionEnded            = "session_ended"
	TypeSessionReset            = "session_reset"
	TypeAddressResolved         = "address_resolved"
	TypeTariffSelected          = "tariff_selected"
	TypeConfirmationInvalidated = "confirmation_invalidated"
	TypeOrderConfirmed          = "order_confirmed"
	TypePromoCodeRejected       = "promo_code_rejected"
)

// Categories.
const (
	CategorySession       = "session"
	CategoryConfiguration = "configuration"
	CategoryConfirmation  = "confirmation"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string
	EventType        string
	OccurredAt       time.Time
	AffectedEntities []types.SourceRef
	Summary          string
	Category         string // "session", "configuration", "confirmation"
	Payload          json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionRef(id string) types.SourceRef {
	return types.SourceRef{EntityType: "session", EntityID: id, Role: "subject"}
}

func newEvent(eventType, category, summary string, refs []types.SourceRef, payload any) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        eventType,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         category,
		Payload:          mustJSON(payload),
	}
}

// ── Session events ───────────────────────────────────────────────────────────

// SessionPayload identifies the session of a lifecycle event.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func NewSessionStarted(p SessionPayload) DomainEvent {
	return newEvent(TypeSessionStarted, CategorySession,
		fmt.Sprintf("Session %s started", short(p.SessionID)),
		[]types.SourceRef{sessionRef(p.SessionID)}, p)
}

// NewSessionEnded records a logout or an expiry; Reason tells which.
func NewSessionEnded(p SessionPayload) DomainEvent {
	return newEvent(TypeSessionEnded, CategorySession,
		fmt.Sprintf("Session %s ended (%s)", short(p.SessionID), p.Reason),
		[]types.SourceRef{sessionRef(p.SessionID)}, p)
}

func NewSessionReset(p SessionPayload) DomainEvent {
	return newEvent(TypeSessionReset, CategorySession,
		fmt.Sprintf("Order of session %s reset", short(p.SessionID)),
		[]types.SourceRef{sessionRef(p.SessionID)}, p)
}

// ── Configuration events ─────────────────────────────────────────────────────

// AddressResolvedPayload carries the looked-up address.
type AddressResolvedPayload struct {
	SessionID      string               `json:"session_id"`
	Street         string               `json:"street"`
	HouseNumber    string               `json:"house_number"`
	City           string               `json:"city"`
	BuildingID     string               `json:"building_id"`
	ConnectionType types.ConnectionType `json:"connection_type"`
}

func NewAddressResolved(p AddressResolvedPayload) DomainEvent {
	refs := []types.SourceRef{sessionRef(p.SessionID)}
	if p.BuildingID != "" {
		refs = append(refs, types.SourceRef{EntityType: "building", EntityID: p.BuildingID, Role: "context"})
	}
	return newEvent(TypeAddressResolved, CategoryConfiguration,
		fmt.Sprintf("Address %s %s, %s resolved (%s)", p.Street, p.HouseNumber, p.City, p.ConnectionType),
		refs, p)
}

// TariffSelectedPayload carries the selected tariff.
type TariffSelectedPayload struct {
	SessionID string      `json:"session_id"`
	TariffID  string      `json:"tariff_id"`
	Monthly   types.Money `json:"monthly"`
}

func NewTariffSelected(p TariffSelectedPayload) DomainEvent {
	return newEvent(TypeTariffSelected, CategoryConfiguration,
		fmt.Sprintf("Tariff %s selected at %s", p.TariffID, p.Monthly),
		[]types.SourceRef{
			sessionRef(p.SessionID),
			{EntityType: "tariff", EntityID: p.TariffID, Role: "target"},
		}, p)
}

// PromoCodeRejectedPayload carries the rejection reason.
type PromoCodeRejectedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func NewPromoCodeRejected(p PromoCodeRejectedPayload) DomainEvent {
	return newEvent(TypePromoCodeRejected, CategoryConfiguration,
		fmt.Sprintf("Promo code rejected: %s", p.Reason),
		[]types.SourceRef{sessionRef(p.SessionID)}, p)
}

// ── Confirmation events ──────────────────────────────────────────────────────

// OrderConfirmedPayload carries the minted order number and the totals it
// was confirmed at.
type OrderConfirmedPayload struct {
	SessionID   string      `json:"session_id"`
	OrderNumber string      `json:"order_number"`
	Monthly     types.Money `json:"monthly"`
	OneTime     types.Money `json:"one_time"`
}

func NewOrderConfirmed(p OrderConfirmedPayload) DomainEvent {
	return newEvent(TypeOrderConfirmed, CategoryConfirmation,
		fmt.Sprintf("Order %s confirmed at %s monthly, %s once", p.OrderNumber, p.Monthly, p.OneTime),
		[]types.SourceRef{
			sessionRef(p.SessionID),
			{EntityType: "order", EntityID: p.OrderNumber, Role: "target"},
		}, p)
}

// ConfirmationInvalidatedPayload names the edit that revoked an order number.
type ConfirmationInvalidatedPayload struct {
	SessionID   string   `json:"session_id"`
	OrderNumber string   `json:"order_number"`
	Mutation    string   `json:"mutation"`
	Cleared     []string `json:"cleared,omitempty"`
}

func NewConfirmationInvalidated(p ConfirmationInvalidatedPayload) DomainEvent {
	return newEvent(TypeConfirmationInvalidated, CategoryConfirmation,
		fmt.Sprintf("Order %s revoked by %s", p.OrderNumber, p.Mutation),
		[]types.SourceRef{
			sessionRef(p.SessionID),
			{EntityType: "order", EntityID: p.OrderNumber, Role: "related"},
		}, p)
}
