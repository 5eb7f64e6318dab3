package workflow

import (
	"context"
	"fmt"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/events"
	"github.com/example/ride-share/internal/models"
)

type PaymentState int

const (
	PaymentClosed PaymentState = iota
	AwaitingConfirmation
	ModalOpen
)

func (p PaymentState) String() string {
	switch p {
	case PaymentClosed:
		return "closed"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case ModalOpen:
		return "modal_open"
	}
	return "unknown"
}

type paymentState struct {
	state      PaymentState
	session    models.PaymentSession
	submitting bool
	opened     uint64 // bumped every time the modal opens
}

func (w *Workflow) payStep(step string, fn func(p *paymentState) error) (View, error) {
	var err error
	v := w.update(func() { err = fn(&w.payment) })
	w.count(step, nil, err)
	return v, err
}

func stateErr(p *paymentState, step string) error {
	return fmt.Errorf("%w: %s while %s", apperr.ErrPaymentState, step, p.state)
}

// ConfirmAndPay asks the user to confirm the match before payment.
func (w *Workflow) ConfirmAndPay() (View, error) {
	return w.payStep("confirm", func(p *paymentState) error {
		if p.state != PaymentClosed {
			return stateErr(p, "confirm")
		}
		p.state = AwaitingConfirmation
		return nil
	})
}

// Acknowledge answers the confirmation prompt. Declining goes straight back to
// closed and leaves the session untouched.
func (w *Workflow) Acknowledge(accept bool) (View, error) {
	return w.payStep("acknowledge", func(p *paymentState) error {
		if p.state != AwaitingConfirmation {
			return stateErr(p, "acknowledge")
		}
		if !accept {
			p.state = PaymentClosed
			return nil
		}
		p.state = ModalOpen
		p.session = models.PaymentSession{Open: true}
		p.opened++
		return nil
	})
}

func (w *Workflow) SetPaymentDetails(details string) (View, error) {
	return w.payStep("payment_details", func(p *paymentState) error {
		if p.state != ModalOpen || p.submitting {
			return stateErr(p, "edit details")
		}
		p.session.Details = details
		return nil
	})
}

// CancelPayment closes the modal and discards the session.
func (w *Workflow) CancelPayment() (View, error) {
	return w.payStep("payment_cancel", func(p *paymentState) error {
		if p.state != ModalOpen {
			return stateErr(p, "cancel payment")
		}
		p.state = PaymentClosed
		p.session = models.PaymentSession{}
		p.submitting = false
		return nil
	})
}

// Pay submits the modal's details. On success the modal closes and the session
// is discarded; on failure the modal stays open so the user can retry or cancel.
func (w *Workflow) Pay(ctx context.Context) error {
	var (
		details string
		opened  uint64
	)
	if _, err := w.payStep("pay", func(p *paymentState) error {
		if p.state != ModalOpen || p.submitting {
			return stateErr(p, "pay")
		}
		p.submitting = true
		details, opened = p.session.Details, p.opened
		return nil
	}); err != nil {
		return err
	}

	err := w.pay.Submit(ctx, details)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperr.ErrPaymentFailed, err)
	}
	var id models.Identity
	w.update(func() {
		id = w.identity
		p := &w.payment
		if p.opened != opened || p.state != ModalOpen {
			return
		}
		p.submitting = false
		if err != nil {
			w.noticeLocked("error", "pay", nil, err)
			return
		}
		p.state = PaymentClosed
		p.session = models.PaymentSession{}
	})
	w.count("pay_submit", nil, err)
	if err != nil {
		w.logger.Warn("payment failed", "error", err)
		return err
	}
	w.publish(ctx, events.New(events.PaymentSubmitted, string(id)))
	return nil
}
