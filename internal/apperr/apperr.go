package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrPermissionDenied    = errors.New("permission to access location was denied, please check your device settings")
	ErrPositionUnavailable = errors.New("current position unavailable")
	ErrLookupFailed        = errors.New("address lookup failed")
	ErrCreateFailed        = errors.New("create order failed")
	ErrCancelFailed        = errors.New("cancel order failed")
	ErrQueryFailed         = errors.New("match query failed")
	ErrPaymentFailed       = errors.New("payment failed")

	ErrNoIdentity    = errors.New("no user id set, log in first")
	ErrInvalidWindow = errors.New("invalid time window")
	ErrInvalidRole   = errors.New("invalid role")
	ErrPaymentState  = errors.New("payment step not allowed in current state")
)

// StatusCode maps workflow errors onto HTTP statuses for the intent API.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNoIdentity), errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrPaymentState):
		return http.StatusConflict
	case errors.Is(err, ErrPositionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrLookupFailed), errors.Is(err, ErrCreateFailed), errors.Is(err, ErrCancelFailed),
		errors.Is(err, ErrQueryFailed), errors.Is(err, ErrPaymentFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
