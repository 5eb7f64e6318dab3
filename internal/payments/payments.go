// Package payments holds the pluggable payment step behind "confirm and pay".
package payments

import (
	"context"
	"log/slog"

	"github.com/example/ride-share/internal/logging"
)

// Submitter takes the details typed into the payment modal.
type Submitter interface {
	Submit(ctx context.Context, details string) error
}

// Stub accepts every submission. Details are never logged, only their length.
type Stub struct {
	logger *slog.Logger
}

func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logging.Component(logger, "payments")}
}

func (s *Stub) Submit(_ context.Context, details string) error {
	s.logger.Debug("payment submitted", "provider", "stub", "details_len", len(details))
	return nil
}
