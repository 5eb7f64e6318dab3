// Package workflow holds the session's ride workflow: the identity, one order
// slot per role with its form and match set, and the confirm-and-pay step.
//
// Intents may arrive concurrently. The mutex is never held across a
// collaborator call; each slot carries a cancel epoch so that a create which
// completes after the user cancelled is discarded instead of resurrecting the
// slot.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-share/internal/events"
	"github.com/example/ride-share/internal/geocode"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/payments"
)

// Locator is satisfied by *location.Resolver.
type Locator interface {
	CurrentPosition(ctx context.Context) (models.GeoPoint, error)
}

// Orders is satisfied by *orders.Service.
type Orders interface {
	CreateOrder(ctx context.Context, id models.Identity, role models.Role, w models.TimeWindow, addr models.Address) (models.OrderID, error)
	CancelOrder(ctx context.Context, id models.Identity, orderID models.OrderID) error
	QueryMatches(ctx context.Context, id models.Identity) (models.MatchSet, error)
}

// Observer is told about every state change, e.g. to push a re-render.
type Observer interface {
	StateChanged(v View)
}

// WindowSource picks which form fields build the customer order window.
type WindowSource int

const (
	// WindowFromOwner reuses the owner's start time and wait, as the
	// original app did.
	WindowFromOwner WindowSource = iota
	// WindowFromCustomer uses the customer's own start time and wait.
	WindowFromCustomer
)

func ParseWindowSource(s string) (WindowSource, error) {
	switch s {
	case "", "owner":
		return WindowFromOwner, nil
	case "own", "customer":
		return WindowFromCustomer, nil
	}
	return 0, fmt.Errorf("unknown customer window source %q", s)
}

type Deps struct {
	Locator  Locator
	Geocoder geocode.Lookup
	Orders   Orders
	Payments payments.Submitter
	Events   events.Publisher
	Observer Observer
	Logger   *slog.Logger

	CustomerWindow WindowSource
	// Now defaults to time.Now. Its location decides the calendar day of windows.
	Now func() time.Time
}

type Workflow struct {
	locator  Locator
	geocoder geocode.Lookup
	orders   Orders
	pay      payments.Submitter
	events   events.Publisher
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	custWin  WindowSource

	mu       sync.Mutex
	version  uint64
	identity models.Identity
	slots    [2]*slot
	payment  paymentState
	notice   *Notice
	noticeN  uint64

	bg sync.WaitGroup
}

func New(d Deps) *Workflow {
	w := &Workflow{
		locator:  d.Locator,
		geocoder: d.Geocoder,
		orders:   d.Orders,
		pay:      d.Payments,
		events:   d.Events,
		observer: d.Observer,
		logger:   logging.Component(d.Logger, "workflow"),
		now:      d.Now,
		custWin:  d.CustomerWindow,
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.events == nil {
		w.events = events.Nop{}
	}
	w.slots[models.Owner] = &slot{role: models.Owner}
	w.slots[models.Customer] = &slot{role: models.Customer}
	return w
}

// Notice is a user-visible message about the last failed (or noteworthy) intent.
type Notice struct {
	Seq     uint64    `json:"seq"`
	Level   string    `json:"level"`
	Intent  string    `json:"intent"`
	Role    string    `json:"role,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// View is the render model handed to the presentation layer.
type View struct {
	Version  uint64      `json:"version"`
	Identity string      `json:"identity"`
	Owner    SlotView    `json:"owner"`
	Customer SlotView    `json:"customer"`
	Payment  PaymentView `json:"payment"`
	Notice   *Notice     `json:"notice,omitempty"`
}

type SlotView struct {
	Role    string `json:"role"`
	State   string `json:"state"`
	OrderID string `json:"order_id"`
	Address string `json:"address"`
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Wait    int    `json:"wait"`
	// Matches is "" until the first query, then the JSON display of the set.
	Matches string `json:"matches"`
}

type PaymentView struct {
	State   string `json:"state"`
	Open    bool   `json:"open"`
	Details string `json:"details"`
}

// View returns a snapshot of the current state.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// Wait blocks until background cancellations have resolved.
func (w *Workflow) Wait() { w.bg.Wait() }

// DismissNotice clears the notice if it is still the one the user saw.
func (w *Workflow) DismissNotice(seq uint64) {
	w.update(func() {
		if w.notice != nil && w.notice.Seq == seq {
			w.notice = nil
		}
	})
}

func (w *Workflow) viewLocked() View {
	v := View{
		Version:  w.version,
		Identity: string(w.identity),
		Owner:    w.slots[models.Owner].view(),
		Customer: w.slots[models.Customer].view(),
		Payment: PaymentView{
			State:   w.payment.state.String(),
			Open:    w.payment.session.Open,
			Details: w.payment.session.Details,
		},
	}
	if w.notice != nil {
		n := *w.notice
		v.Notice = &n
	}
	return v
}

// update applies fn under the lock, bumps the version and notifies the observer.
func (w *Workflow) update(fn func()) View {
	w.mu.Lock()
	fn()
	w.version++
	v := w.viewLocked()
	w.mu.Unlock()
	if w.observer != nil {
		w.observer.StateChanged(v)
	}
	return v
}

// noticeLocked records a user-visible failure. Caller holds w.mu.
func (w *Workflow) noticeLocked(level, intent string, role *models.Role, err error) {
	w.noticeN++
	n := &Notice{Seq: w.noticeN, Level: level, Intent: intent, Message: err.Error(), At: w.now()}
	if role != nil {
		n.Role = role.String()
	}
	w.notice = n
}

func (w *Workflow) fail(intent string, role *models.Role, err error) error {
	w.update(func() { w.noticeLocked("error", intent, role, err) })
	w.count(intent, role, err)
	return err
}

func (w *Workflow) count(intent string, role *models.Role, err error) {
	r := ""
	if role != nil {
		r = role.String()
	}
	observability.IntentsTotal.WithLabelValues(intent, r, observability.Outcome(err)).Inc()
}

func (w *Workflow) publish(ctx context.Context, e events.Event) {
	if err := w.events.Publish(context.WithoutCancel(ctx), e); err != nil {
		w.logger.Warn("event publish failed", "type", e.Type, "error", err)
	}
}
