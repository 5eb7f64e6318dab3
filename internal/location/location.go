// Package location turns a device position source into the two-step
// permission/position contract the workflow relies on.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
)

// ErrNoFix is returned by providers that have no reading for the device yet.
var ErrNoFix = errors.New("no position fix")

// Provider is a platform position source.
type Provider interface {
	// RequestPermission reports whether the user allows position reads.
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context) (models.GeoPoint, error)
}

// Resolver gates position reads behind a granted permission and maps
// provider failures onto apperr.ErrPermissionDenied and
// apperr.ErrPositionUnavailable.
type Resolver struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.Mutex
	granted bool
}

func NewResolver(p Provider, logger *slog.Logger) *Resolver {
	return &Resolver{provider: p, logger: logging.Component(logger, "location")}
}

// RequestPermission asks the provider once; a grant is remembered for the session.
// A denial is not remembered so the user can change device settings and retry.
func (r *Resolver) RequestPermission(ctx context.Context) error {
	r.mu.Lock()
	granted := r.granted
	r.mu.Unlock()
	if granted {
		return nil
	}
	ok, err := r.provider.RequestPermission(ctx)
	if err != nil {
		r.logger.Warn("permission request failed", "error", err)
		return fmt.Errorf("%w: %w", apperr.ErrPermissionDenied, err)
	}
	if !ok {
		return apperr.ErrPermissionDenied
	}
	r.mu.Lock()
	r.granted = true
	r.mu.Unlock()
	return nil
}

// CurrentPosition is a single-shot read. Permission is requested first if it
// has not been granted yet.
func (r *Resolver) CurrentPosition(ctx context.Context) (models.GeoPoint, error) {
	if err := r.RequestPermission(ctx); err != nil {
		return models.GeoPoint{}, err
	}
	p, err := r.provider.CurrentPosition(ctx)
	if err != nil {
		r.logger.Warn("position read failed", "error", err)
		return models.GeoPoint{}, fmt.Errorf("%w: %w", apperr.ErrPositionUnavailable, err)
	}
	return p, nil
}

// Static always reports the same position. Used for local runs and tests.
type Static struct {
	Point   models.GeoPoint
	Granted bool
}

func (s Static) RequestPermission(context.Context) (bool, error) { return s.Granted, nil }

func (s Static) CurrentPosition(context.Context) (models.GeoPoint, error) { return s.Point, nil }
