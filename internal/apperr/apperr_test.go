package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCodeWrapped(t *testing.T) {
	cases := map[error]int{
		nil:                                     http.StatusOK,
		fmt.Errorf("%w: boom", ErrCreateFailed): http.StatusBadGateway,
		fmt.Errorf("ctx: %w", ErrNoIdentity):    http.StatusBadRequest,
		ErrPermissionDenied:                     http.StatusForbidden,
		fmt.Errorf("x: %w", ErrPaymentState):    http.StatusConflict,
		ErrPositionUnavailable:                  http.StatusServiceUnavailable,
		errors.New("something else"):            http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusCode(err); got != want {
			t.Fatalf("StatusCode(%v)=%d want %d", err, got, want)
		}
	}
}
