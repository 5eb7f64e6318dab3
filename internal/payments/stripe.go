package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-share/internal/logging"
)

var ErrNoPaymentMethod = errors.New("payment details must be a stripe payment method id (pm_...)")

// StripeSubmitter charges a fixed ride fare with a PaymentIntent. The modal's
// details are the payment method id. Funds are held then captured, so a failed
// capture releases the hold.
type StripeSubmitter struct {
	Amount   int64
	Currency string
	logger   *slog.Logger
}

// NewStripeSubmitter sets the package-level stripe key.
func NewStripeSubmitter(apiKey string, amount int64, currency string, logger *slog.Logger) *StripeSubmitter {
	stripe.Key = apiKey
	return &StripeSubmitter{Amount: amount, Currency: currency, logger: logging.Component(logger, "payments")}
}

func (s *StripeSubmitter) Submit(ctx context.Context, details string) error {
	pm := strings.TrimSpace(details)
	if !strings.HasPrefix(pm, "pm_") {
		return ErrNoPaymentMethod
	}
	id, err := s.Hold(ctx, pm)
	if err != nil {
		return err
	}
	if err := s.Capture(ctx, id); err != nil {
		if cerr := s.Cancel(ctx, id); cerr != nil {
			s.logger.Warn("release hold failed", "payment_intent", id, "error", cerr)
		}
		return err
	}
	s.logger.Info("payment captured", "payment_intent", id, "amount", s.Amount, "currency", s.Currency)
	return nil
}

// Hold creates and confirms a PaymentIntent with capture_method=manual.
func (s *StripeSubmitter) Hold(ctx context.Context, paymentMethod string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(s.Amount),
		Currency:           stripe.String(s.Currency),
		PaymentMethod:      stripe.String(paymentMethod),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Confirm:            stripe.Bool(true),
		Description:        stripe.String("ride share match"),
	}
	params.Context = ctx
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeSubmitter) Capture(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(paymentIntentID, params)
	return err
}

func (s *StripeSubmitter) Cancel(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(paymentIntentID, params)
	return err
}
