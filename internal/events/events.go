// Package events publishes workflow events. Publishing is best effort: a
// failed publish is logged by the caller and never changes workflow state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	OrderCreated      = "order.created"
	OrderCancelled    = "order.cancelled"
	OrderCancelFailed = "order.cancel_failed"
	OrderOrphaned     = "order.orphaned"
	MatchesQueried    = "matches.queried"
	PaymentSubmitted  = "payment.submitted"
)

type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Identity string    `json:"identity"`
	Role     string    `json:"role,omitempty"`
	OrderID  string    `json:"order_id,omitempty"`
	Count    int       `json:"count,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// New stamps an event with an id and the current time.
func New(typ, identity string) Event {
	return Event{ID: uuid.NewString(), Type: typ, Identity: identity, At: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
