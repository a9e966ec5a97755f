// Package lookup coordinates the asynchronous catalog lookups of one order.
// Every call is tagged with the input it was made for; when several calls on
// the same channel overlap, only the latest one may write its result.
package lookup

import (
	"errors"
	"sync"
)

// ErrStale is returned when a lookup finished after a newer lookup on the
// same channel was started. Its result was discarded.
var ErrStale = errors.New("lookup superseded")

// Channel names an independent lookup stream.
type Channel string

const (
	ChannelAddress     Channel = "address"
	ChannelTariff      Channel = "tariff"
	ChannelEligibility Channel = "eligibility"
	ChannelPromotions  Channel = "promotions"
	ChannelPromoCode   Channel = "promo_code"
	ChannelReferral    Channel = "referral"
)

// Tag identifies one lookup call.
type Tag struct {
	Channel Channel
	Key     string
	seq     uint64
}

// Tracker hands out tags and remembers the latest per channel.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	latest map[Channel]uint64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[Channel]uint64)}
}

// Begin starts a lookup on ch for key and supersedes any lookup in flight.
func (t *Tracker) Begin(ch Channel, key string) Tag {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.latest[ch] = t.seq
	return Tag{Channel: ch, Key: key, seq: t.seq}
}

// Current reports whether tag is still the latest lookup on its channel.
func (t *Tracker) Current(tag Tag) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[tag.Channel] == tag.seq
}

// Forget drops every channel so that all lookups in flight become stale.
func (t *Tracker) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = make(map[Channel]uint64)
}
