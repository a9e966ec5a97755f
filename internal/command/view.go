package command

import (
	"time"

	"github.com/matthewbaird/fiberorder/internal/eligibility"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/pricing"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// View is the client's picture of a session: the order, what may be chosen
// next and what it costs.
type View struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	State     types.OrderState    `json:"state"`
	Options   eligibility.Options `json:"options"`
	Quote     pricing.Quote       `json:"quote"`
}

// ViewOf captures a consistent view of s.
func ViewOf(s *session.Session) View {
	v := View{ID: s.ID, CreatedAt: s.CreatedAt}
	s.View(func(o *order.Order) {
		v.State = o.Snapshot()
		v.Options = o.Options()
		v.Quote = o.Quote()
	})
	return v
}
