package signals

import (
	"encoding/json"
	"testing"

	"github.com/matthewbaird/fiberorder/internal/event"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/types"
)

func entry(eventType, payload string) types.ActivityEntry {
	return types.ActivityEntry{EventID: "evt-1", EventType: eventType, Payload: json.RawMessage(payload)}
}

func TestClassify_AddressByConnection(t *testing.T) {
	tests := []struct {
		conn     types.ConnectionType
		wantID   string
		wantCat  string
		wantPole string
	}{
		{types.ConnectionFTTH, "address_connected", CategoryProgress, "positive"},
		{types.ConnectionLimited, "address_limited", CategoryProgress, "positive"},
		{types.ConnectionNotConnected, "address_not_connected", CategoryFriction, "negative"},
	}
	for _, tt := range tests {
		got, ok := Classify(entry(event.TypeAddressResolved, `{"connection_type":"`+string(tt.conn)+`"}`))
		if !ok {
			t.Fatalf("%s: expected classification", tt.conn)
		}
		if got.RegistrationID != tt.wantID || got.Category != tt.wantCat || got.Polarity != tt.wantPole {
			t.Errorf("%s: got %s/%s/%s, want %s/%s/%s", tt.conn,
				got.RegistrationID, got.Category, got.Polarity, tt.wantID, tt.wantCat, tt.wantPole)
		}
	}
}

func TestClassify_PromoCodeConditionBeforeFallback(t *testing.T) {
	got, ok := Classify(entry(event.TypePromoCodeRejected, `{"reason":"`+order.MsgPromoCodeNotFound+`"}`))
	if !ok || got.RegistrationID != "promo_code_unknown" {
		t.Errorf("not found: got %q, ok=%v", got.RegistrationID, ok)
	}
	if got.Weight != "moderate" {
		t.Errorf("weight = %q, want moderate", got.Weight)
	}

	got, ok = Classify(entry(event.TypePromoCodeRejected, `{"reason":"`+order.MsgPromoCodeWrongAddress+`"}`))
	if !ok || got.RegistrationID != "promo_code_rejected" {
		t.Errorf("wrong address: got %q, ok=%v", got.RegistrationID, ok)
	}
}

func TestClassify_ConditionOnlyRegistrations(t *testing.T) {
	if _, ok := Classify(entry(event.TypeSessionEnded, `{"reason":"logout"}`)); ok {
		t.Error("logout should not classify")
	}
	got, ok := Classify(entry(event.TypeSessionEnded, `{"reason":"expired"}`))
	if !ok || got.Category != CategoryAbandonment {
		t.Errorf("expired: got %q, ok=%v", got.Category, ok)
	}
}

func TestClassify_UnknownEventType(t *testing.T) {
	if _, ok := Classify(entry("session_teleported", `{}`)); ok {
		t.Error("expected no classification for unknown event type")
	}
}

func TestMatchCondition(t *testing.T) {
	payload := map[string]any{"lines": float64(2), "express": true, "reason": "expired"}
	tests := []struct {
		cond string
		want bool
	}{
		{"lines == 2", true},
		{"lines >= 2", true},
		{"lines > 2", false},
		{"lines < 3", true},
		{"lines <= 1", false},
		{"express == true", true},
		{"reason == expired", true},
		{"reason == logout", false},
		{"missing == 1", false},
		{"no operator", false},
	}
	for _, tt := range tests {
		if got := matchCondition(tt.cond, payload); got != tt.want {
			t.Errorf("matchCondition(%q) = %v, want %v", tt.cond, got, tt.want)
		}
	}
	if matchCondition("lines == 2", nil) {
		t.Error("nil payload should not match")
	}
}

func TestIsAtLeastWeight(t *testing.T) {
	if !IsAtLeastWeight("critical", "strong") {
		t.Error("critical should be at least strong")
	}
	if IsAtLeastWeight("weak", "moderate") {
		t.Error("weak should not be at least moderate")
	}
	if IsAtLeastWeight("bogus", "info") {
		t.Error("unknown weight should rank below info")
	}
}
