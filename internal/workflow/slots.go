package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/events"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
)

// ErrDiscarded is returned by Make when the slot was cancelled while the
// create was in flight. The late order is cancelled in the background.
var ErrDiscarded = errors.New("order discarded: cancelled while it was being created")

type SlotState int

const (
	Idle SlotState = iota
	Creating
	Active
	Cancelling
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Active:
		return "active"
	case Cancelling:
		return "cancelling"
	}
	return "unknown"
}

type form struct {
	address models.Address
	hours   int
	minutes int
	wait    int
}

type slot struct {
	role models.Role
	form form

	orderID    models.OrderID
	orderOwner models.Identity // identity the held order was created for

	epoch      uint64 // bumped by every cancel
	creating   int    // creates started in the current epoch and not yet resolved
	cancelling int    // remote cancels still in flight

	matches models.MatchSet
	queried bool
}

func (s *slot) state() SlotState {
	switch {
	case s.creating > 0:
		return Creating
	case s.orderID != "":
		return Active
	case s.cancelling > 0:
		return Cancelling
	}
	return Idle
}

func (s *slot) view() SlotView {
	v := SlotView{
		Role:    s.role.String(),
		State:   s.state().String(),
		OrderID: string(s.orderID),
		Address: string(s.form.address),
		Hours:   s.form.hours,
		Minutes: s.form.minutes,
		Wait:    s.form.wait,
	}
	if s.queried {
		v.Matches = s.matches.Display()
	}
	return v
}

func (w *Workflow) slotFor(role models.Role) (*slot, error) {
	if !role.Valid() {
		return nil, apperr.ErrInvalidRole
	}
	return w.slots[role], nil
}

// SetIdentity is the login step. Held orders keep the identity they were made with.
func (w *Workflow) SetIdentity(id models.Identity) View {
	return w.update(func() { w.identity = id })
}

func (w *Workflow) SetAddress(role models.Role, addr models.Address) (View, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return View{}, err
	}
	return w.update(func() { s.form.address = addr }), nil
}

func (w *Workflow) SetStartTime(role models.Role, hours, minutes int) (View, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return View{}, err
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return View{}, fmt.Errorf("%w: start %02d:%02d", apperr.ErrInvalidWindow, hours, minutes)
	}
	return w.update(func() { s.form.hours, s.form.minutes = hours, minutes }), nil
}

func (w *Workflow) SetWait(role models.Role, minutes int) (View, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return View{}, err
	}
	if minutes < 0 {
		return View{}, fmt.Errorf("%w: wait %d", apperr.ErrInvalidWindow, minutes)
	}
	return w.update(func() { s.form.wait = minutes }), nil
}

// LocateAddress fills the slot's address from the device's current position.
// Any failure leaves the address as it was and is recorded as a notice.
func (w *Workflow) LocateAddress(ctx context.Context, role models.Role) (models.Address, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return "", err
	}
	p, err := w.locator.CurrentPosition(ctx)
	if err != nil {
		return "", w.fail("locate", &role, err)
	}
	addr, err := w.geocoder.Resolve(ctx, p)
	if err != nil {
		w.update(func() { w.noticeLocked("warn", "locate", &role, err) })
		w.count("locate", &role, err)
		return "", err
	}
	w.update(func() { s.form.address = addr })
	w.count("locate", &role, nil)
	return addr, nil
}

// windowLocked builds the order window for role from the form. Caller holds w.mu.
func (w *Workflow) windowLocked(role models.Role) (models.TimeWindow, error) {
	f := w.slots[models.Owner].form
	if role == models.Customer && w.custWin == WindowFromCustomer {
		f = w.slots[models.Customer].form
	}
	win, err := models.WindowAt(w.now(), f.hours, f.minutes, f.wait)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("%w: %w", apperr.ErrInvalidWindow, err)
	}
	return win, nil
}

// Make creates an order for role. A held order is not cancelled first; the new
// id simply replaces it. On failure the slot keeps its previous state.
func (w *Workflow) Make(ctx context.Context, role models.Role) (models.OrderID, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return "", err
	}
	var (
		id     models.Identity
		win    models.TimeWindow
		addr   models.Address
		epoch  uint64
		preErr error
	)
	w.update(func() {
		id = w.identity
		if id == "" {
			preErr = apperr.ErrNoIdentity
			return
		}
		if win, preErr = w.windowLocked(role); preErr != nil {
			return
		}
		addr = s.form.address
		epoch = s.epoch
		s.creating++
	})
	if preErr != nil {
		return "", w.fail("make", &role, preErr)
	}

	orderID, err := w.orders.CreateOrder(ctx, id, role, win, addr)

	discarded := false
	w.update(func() {
		if s.epoch != epoch {
			discarded = err == nil
			return
		}
		s.creating--
		if err != nil {
			w.noticeLocked("error", "make", &role, err)
			return
		}
		s.orderID = orderID
		s.orderOwner = id
	})
	w.count("make", &role, err)
	if err != nil {
		return "", err
	}
	if discarded {
		w.orphaned(ctx, s, id, orderID)
		return "", ErrDiscarded
	}
	e := events.New(events.OrderCreated, string(id))
	e.Role, e.OrderID = role.String(), string(orderID)
	w.publish(ctx, e)
	return orderID, nil
}

func (w *Workflow) orphaned(ctx context.Context, s *slot, id models.Identity, orderID models.OrderID) {
	observability.OrphanedOrders.Inc()
	w.logger.Warn("create resolved after cancel, discarding", "identity", id, "role", s.role.String(), "order_id", orderID)
	e := events.New(events.OrderOrphaned, string(id))
	e.Role, e.OrderID = s.role.String(), string(orderID)
	w.publish(ctx, e)
	w.update(func() { s.cancelling++ })
	w.cancelInBackground(ctx, s, id, orderID)
}

// Cancel clears the slot immediately. The remote cancel is best effort: it runs
// in the background and its outcome never keeps the slot from reaching Idle.
// Without a held order (or a create in flight) the collaborator is not called.
func (w *Workflow) Cancel(ctx context.Context, role models.Role) error {
	s, err := w.slotFor(role)
	if err != nil {
		return err
	}
	var (
		orderID models.OrderID
		owner   models.Identity
		noop    bool
	)
	w.update(func() {
		if s.orderID == "" && s.creating == 0 {
			noop = true
			return
		}
		s.epoch++
		s.creating = 0
		orderID, owner = s.orderID, s.orderOwner
		s.orderID, s.orderOwner = "", ""
		if orderID != "" {
			s.cancelling++
		}
	})
	w.count("cancel", &role, nil)
	if noop || orderID == "" {
		return nil
	}
	w.cancelInBackground(ctx, s, owner, orderID)
	return nil
}

func (w *Workflow) cancelInBackground(ctx context.Context, s *slot, id models.Identity, orderID models.OrderID) {
	ctx = context.WithoutCancel(ctx)
	role := s.role
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		err := w.orders.CancelOrder(ctx, id, orderID)
		w.update(func() {
			s.cancelling--
			if err != nil {
				w.noticeLocked("warn", "cancel", &role, err)
			}
		})
		var e events.Event
		if err != nil {
			w.logger.Warn("remote cancel failed", "identity", id, "role", role.String(), "order_id", orderID, "error", err)
			e = events.New(events.OrderCancelFailed, string(id))
			e.Error = err.Error()
		} else {
			w.logger.Info("remote cancel acknowledged", "identity", id, "role", role.String(), "order_id", orderID)
			e = events.New(events.OrderCancelled, string(id))
		}
		e.Role, e.OrderID = role.String(), string(orderID)
		w.publish(ctx, e)
	}()
}

// QueryMatches replaces the slot's match set. Both slots query by identity;
// the collaborator decides what a match is.
func (w *Workflow) QueryMatches(ctx context.Context, role models.Role) (models.MatchSet, error) {
	s, err := w.slotFor(role)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	id := w.identity
	w.mu.Unlock()
	if id == "" {
		return nil, w.fail("matches", &role, apperr.ErrNoIdentity)
	}
	set, err := w.orders.QueryMatches(ctx, id)
	if err != nil {
		return nil, w.fail("matches", &role, err)
	}
	if set == nil {
		set = models.MatchSet{}
	}
	w.update(func() {
		s.matches = set
		s.queried = true
	})
	w.count("matches", &role, nil)
	e := events.New(events.MatchesQueried, string(id))
	e.Role, e.Count = role.String(), len(set)
	w.publish(ctx, e)
	return set, nil
}
