package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/taxiapi"
)

// Collaborator is the subset of the matching service the order service needs.
// *taxiapi.Client satisfies it.
type Collaborator interface {
	CreateOrder(ctx context.Context, in taxiapi.CreateRequest) (taxiapi.CreateResponse, error)
	CancelOrder(ctx context.Context, userID, orderID string) error
	Matches(ctx context.Context, userID string) ([]json.RawMessage, error)
}

// Service creates, cancels and queries orders for one identity at a time.
// Nothing is retried; a repeated CreateOrder creates a second order.
type Service struct {
	api    Collaborator
	logger *slog.Logger
}

func NewService(api Collaborator, logger *slog.Logger) *Service {
	return &Service{api: api, logger: logging.Component(logger, "orders")}
}

func (s *Service) CreateOrder(ctx context.Context, id models.Identity, role models.Role, w models.TimeWindow, addr models.Address) (models.OrderID, error) {
	if id == "" {
		return "", apperr.ErrNoIdentity
	}
	if !role.Valid() {
		return "", apperr.ErrInvalidRole
	}
	var resp taxiapi.CreateResponse
	err := s.observe("create", func() error {
		var err error
		resp, err = s.api.CreateOrder(ctx, taxiapi.CreateRequest{
			UserID:  string(id),
			Start:   taxiapi.FormatTime(w.Start),
			End:     taxiapi.FormatTime(w.End),
			Type:    role.Discriminator(),
			Address: string(addr),
		})
		return err
	})
	if err != nil {
		s.logger.Warn("create order failed", "identity", id, "role", role.String(), "error", err)
		return "", fmt.Errorf("%w: %w", apperr.ErrCreateFailed, err)
	}
	s.logger.Info("order created", "identity", id, "role", role.String(), "order_id", resp.ID)
	return models.OrderID(resp.ID), nil
}

// CancelOrder with an empty order id does nothing and never reaches the service.
func (s *Service) CancelOrder(ctx context.Context, id models.Identity, orderID models.OrderID) error {
	if orderID == "" {
		return nil
	}
	if id == "" {
		return apperr.ErrNoIdentity
	}
	err := s.observe("cancel", func() error {
		return s.api.CancelOrder(ctx, string(id), string(orderID))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrCancelFailed, err)
	}
	return nil
}

// QueryMatches returns the current matches for id. The result is never nil.
func (s *Service) QueryMatches(ctx context.Context, id models.Identity) (models.MatchSet, error) {
	if id == "" {
		return nil, apperr.ErrNoIdentity
	}
	var raw []json.RawMessage
	err := s.observe("matches", func() error {
		var err error
		raw, err = s.api.Matches(ctx, string(id))
		return err
	})
	if err != nil {
		s.logger.Warn("match query failed", "identity", id, "error", err)
		return nil, fmt.Errorf("%w: %w", apperr.ErrQueryFailed, err)
	}
	if raw == nil {
		return models.MatchSet{}, nil
	}
	return models.MatchSet(raw), nil
}

func (s *Service) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.CollaboratorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	observability.CollaboratorCalls.WithLabelValues(op, observability.Outcome(err)).Inc()
	return err
}
