package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/models"
)

func mustSetStart(t *testing.T, wf *Workflow, role models.Role, h, m, wait int) {
	t.Helper()
	if _, err := wf.SetStartTime(role, h, m); err != nil {
		t.Fatalf("SetStartTime: %v", err)
	}
	if _, err := wf.SetWait(role, wait); err != nil {
		t.Fatalf("SetWait: %v", err)
	}
}

func TestOwnerMakeThenCancelClearsIDDespiteNetworkError(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.ids = []models.OrderID{"42"}
	h.orders.cancelErr = errors.New("network unreachable")
	h.wf.SetIdentity("alice")
	mustSetStart(t, h.wf, models.Owner, 9, 0, 15)

	id, err := h.wf.Make(context.Background(), models.Owner)
	if err != nil || id != "42" {
		t.Fatalf("Make=%q,%v", id, err)
	}
	c := h.orders.creates[0]
	wantStart := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	if !c.window.Start.Equal(wantStart) || !c.window.End.Equal(wantStart.Add(15*time.Minute)) {
		t.Fatalf("window=%+v", c.window)
	}
	if c.id != "alice" || c.role != models.Owner {
		t.Fatalf("create call %+v", c)
	}
	if v := h.wf.View(); v.Owner.State != "active" || v.Owner.OrderID != "42" {
		t.Fatalf("after make: %+v", v.Owner)
	}

	if err := h.wf.Cancel(context.Background(), models.Owner); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if v := h.wf.View(); v.Owner.OrderID != "" {
		t.Fatalf("held id not cleared immediately: %+v", v.Owner)
	}
	h.wf.Wait()

	v := h.wf.View()
	if v.Owner.State != "idle" || v.Owner.OrderID != "" {
		t.Fatalf("after cancel: %+v", v.Owner)
	}
	if calls := h.orders.cancelCalls(); len(calls) != 1 || calls[0] != (cancelCall{"alice", "42"}) {
		t.Fatalf("cancel calls %+v", calls)
	}
	if v.Notice == nil || v.Notice.Intent != "cancel" {
		t.Fatalf("expected cancel notice, got %+v", v.Notice)
	}
}

func TestCancelWithoutOrderNeverCallsCollaborator(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.wf.SetIdentity("alice")
	for _, role := range []models.Role{models.Owner, models.Customer} {
		if err := h.wf.Cancel(context.Background(), role); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
	}
	h.wf.Wait()
	if len(h.orders.cancelCalls()) != 0 {
		t.Fatalf("collaborator invoked: %+v", h.orders.cancels)
	}
}

func TestSecondMakeOverwritesWithoutCancel(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.ids = []models.OrderID{"1", "2"}
	h.wf.SetIdentity("alice")
	for i := 0; i < 2; i++ {
		if _, err := h.wf.Make(context.Background(), models.Owner); err != nil {
			t.Fatalf("Make %d: %v", i, err)
		}
	}
	h.wf.Wait()
	if v := h.wf.View(); v.Owner.OrderID != "2" || v.Owner.State != "active" {
		t.Fatalf("owner=%+v", v.Owner)
	}
	if len(h.orders.cancelCalls()) != 0 {
		t.Fatalf("implicit cancel issued")
	}
}

func TestMakeFailureLeavesSlotUnchanged(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.ids = []models.OrderID{"1"}
	h.wf.SetIdentity("alice")
	if _, err := h.wf.Make(context.Background(), models.Owner); err != nil {
		t.Fatalf("Make: %v", err)
	}
	h.orders.createErr = apperr.ErrCreateFailed
	if _, err := h.wf.Make(context.Background(), models.Owner); !errors.Is(err, apperr.ErrCreateFailed) {
		t.Fatalf("expected create failure, got %v", err)
	}
	v := h.wf.View()
	if v.Owner.State != "active" || v.Owner.OrderID != "1" {
		t.Fatalf("owner=%+v", v.Owner)
	}
	if v.Notice == nil || v.Notice.Level != "error" || v.Notice.Intent != "make" {
		t.Fatalf("notice=%+v", v.Notice)
	}

	h2 := newHarness(WindowFromOwner)
	h2.orders.createErr = apperr.ErrCreateFailed
	h2.wf.SetIdentity("bob")
	h2.wf.Make(context.Background(), models.Customer)
	if v := h2.wf.View(); v.Customer.State != "idle" {
		t.Fatalf("customer=%+v", v.Customer)
	}
}

func TestMakeRequiresIdentityAndValidWindow(t *testing.T) {
	h := newHarness(WindowFromOwner)
	if _, err := h.wf.Make(context.Background(), models.Owner); !errors.Is(err, apperr.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if _, err := h.wf.QueryMatches(context.Background(), models.Owner); !errors.Is(err, apperr.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if len(h.orders.creates) != 0 || len(h.orders.matchIDs) != 0 {
		t.Fatalf("collaborator reached without identity")
	}
	if _, err := h.wf.SetStartTime(models.Owner, 25, 0); !errors.Is(err, apperr.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := h.wf.SetWait(models.Owner, -1); !errors.Is(err, apperr.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := h.wf.Make(context.Background(), models.Role(7)); !errors.Is(err, apperr.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestZeroWaitMakesZeroLengthWindow(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.ids = []models.OrderID{"1"}
	h.wf.SetIdentity("alice")
	mustSetStart(t, h.wf, models.Owner, 10, 30, 0)
	if _, err := h.wf.Make(context.Background(), models.Owner); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if d := h.orders.creates[0].window.Duration(); d != 0 {
		t.Fatalf("duration=%s", d)
	}
}

func TestCustomerWindowSource(t *testing.T) {
	cases := []struct {
		src       WindowSource
		wantStart time.Time
		wantWait  time.Duration
	}{
		{WindowFromOwner, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), 15 * time.Minute},
		{WindowFromCustomer, time.Date(2024, 3, 5, 11, 45, 0, 0, time.UTC), 5 * time.Minute},
	}
	for _, c := range cases {
		h := newHarness(c.src)
		h.orders.ids = []models.OrderID{"c1"}
		h.wf.SetIdentity("carol")
		mustSetStart(t, h.wf, models.Owner, 9, 0, 15)
		mustSetStart(t, h.wf, models.Customer, 11, 45, 5)
		h.wf.SetAddress(models.Customer, "Station Rd")
		if _, err := h.wf.Make(context.Background(), models.Customer); err != nil {
			t.Fatalf("Make: %v", err)
		}
		got := h.orders.creates[0]
		if !got.window.Start.Equal(c.wantStart) || got.window.Duration() != c.wantWait {
			t.Fatalf("src=%d window=%+v", c.src, got.window)
		}
		if got.role != models.Customer || got.addr != "Station Rd" {
			t.Fatalf("create=%+v", got)
		}
		if v := h.wf.View(); v.Customer.OrderID != "c1" || v.Identity != "carol" {
			t.Fatalf("view=%+v", v)
		}
	}
}

func TestCancelWhileCreatingDiscardsLateSuccess(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.ids = []models.OrderID{"late"}
	h.orders.gate = make(chan struct{})
	h.orders.started = make(chan struct{}, 1)
	h.wf.SetIdentity("alice")

	type result struct {
		id  models.OrderID
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := h.wf.Make(context.Background(), models.Owner)
		done <- result{id, err}
	}()
	<-h.orders.started
	if v := h.wf.View(); v.Owner.State != "creating" {
		t.Fatalf("expected creating, got %+v", v.Owner)
	}
	if err := h.wf.Cancel(context.Background(), models.Owner); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if v := h.wf.View(); v.Owner.State != "idle" {
		t.Fatalf("expected idle after cancel, got %+v", v.Owner)
	}
	close(h.orders.gate)
	r := <-done
	if !errors.Is(r.err, ErrDiscarded) || r.id != "" {
		t.Fatalf("Make=%q,%v", r.id, r.err)
	}
	h.wf.Wait()
	if v := h.wf.View(); v.Owner.State != "idle" || v.Owner.OrderID != "" {
		t.Fatalf("late success resurrected slot: %+v", v.Owner)
	}
	if calls := h.orders.cancelCalls(); len(calls) != 1 || calls[0].orderID != "late" {
		t.Fatalf("orphan not cancelled: %+v", calls)
	}
}

func TestQueryMatchesEmptyRendersBrackets(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.orders.matches = models.MatchSet{}
	h.wf.SetIdentity("alice")
	if v := h.wf.View(); v.Owner.Matches != "" {
		t.Fatalf("matches before query=%q", v.Owner.Matches)
	}
	set, err := h.wf.QueryMatches(context.Background(), models.Owner)
	if err != nil || set == nil {
		t.Fatalf("QueryMatches=%v,%v", set, err)
	}
	if v := h.wf.View(); v.Owner.Matches != "[]" {
		t.Fatalf("owner matches=%q", v.Owner.Matches)
	}

	h.orders.matches = nil
	if _, err := h.wf.QueryMatches(context.Background(), models.Customer); err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if v := h.wf.View(); v.Customer.Matches != "[]" {
		t.Fatalf("customer matches=%q", v.Customer.Matches)
	}
	if h.orders.matchIDs[0] != "alice" || h.orders.matchIDs[1] != "alice" {
		t.Fatalf("matches keyed by %v", h.orders.matchIDs)
	}
}

func TestQueryMatchesReplacesAndKeepsOnFailure(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.wf.SetIdentity("alice")
	h.orders.matches = models.MatchSet{json.RawMessage(`{"id":"m1"}`)}
	h.wf.QueryMatches(context.Background(), models.Customer)
	h.orders.matchErr = apperr.ErrQueryFailed
	if _, err := h.wf.QueryMatches(context.Background(), models.Customer); !errors.Is(err, apperr.ErrQueryFailed) {
		t.Fatalf("expected query failure, got %v", err)
	}
	if v := h.wf.View(); v.Customer.Matches != `[{"id":"m1"}]` {
		t.Fatalf("matches=%q", v.Customer.Matches)
	}
}

func TestLocateAddress(t *testing.T) {
	h := newHarness(WindowFromOwner)
	addr, err := h.wf.LocateAddress(context.Background(), models.Owner)
	if err != nil || addr != "1 High St" {
		t.Fatalf("LocateAddress=%q,%v", addr, err)
	}
	if v := h.wf.View(); v.Owner.Address != "1 High St" || v.Customer.Address != "" {
		t.Fatalf("view=%+v", v)
	}

	h.geo.err = apperr.ErrLookupFailed
	h.geo.addr = ""
	if _, err := h.wf.LocateAddress(context.Background(), models.Owner); !errors.Is(err, apperr.ErrLookupFailed) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	v := h.wf.View()
	if v.Owner.Address != "1 High St" {
		t.Fatalf("address cleared on lookup failure: %q", v.Owner.Address)
	}
	if v.Notice == nil || v.Notice.Level != "warn" {
		t.Fatalf("notice=%+v", v.Notice)
	}
}

func TestLocatePermissionDeniedIsSurfaced(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.loc.err = apperr.ErrPermissionDenied
	if _, err := h.wf.LocateAddress(context.Background(), models.Customer); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if h.geo.calls != 0 {
		t.Fatalf("geocoder called without a position")
	}
	v := h.wf.View()
	if v.Notice == nil || v.Notice.Role != "customer" || v.Notice.Level != "error" {
		t.Fatalf("notice=%+v", v.Notice)
	}
	h.wf.DismissNotice(v.Notice.Seq)
	if h.wf.View().Notice != nil {
		t.Fatalf("notice not dismissed")
	}
}

func TestDismissStaleNoticeKeepsNewer(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.loc.err = apperr.ErrPermissionDenied
	h.wf.LocateAddress(context.Background(), models.Owner)
	first := h.wf.View().Notice.Seq
	h.wf.DismissNotice(first)
	h.wf.LocateAddress(context.Background(), models.Owner)
	second := h.wf.View().Notice
	if second == nil || second.Seq == first {
		t.Fatalf("second notice=%+v first seq=%d", second, first)
	}
	h.wf.DismissNotice(first)
	if h.wf.View().Notice == nil {
		t.Fatalf("stale dismiss cleared the newer notice")
	}
}

func TestObserverSeesIncreasingVersions(t *testing.T) {
	h := newHarness(WindowFromOwner)
	h.wf.SetIdentity("a")
	h.wf.SetAddress(models.Owner, "x")
	if len(h.obs.views) != 2 {
		t.Fatalf("views=%d", len(h.obs.views))
	}
	if h.obs.views[1].Version <= h.obs.views[0].Version {
		t.Fatalf("versions not increasing")
	}
}

func TestParseWindowSource(t *testing.T) {
	if s, err := ParseWindowSource("own"); err != nil || s != WindowFromCustomer {
		t.Fatalf("got %v %v", s, err)
	}
	if _, err := ParseWindowSource("both"); err == nil {
		t.Fatal("expected error")
	}
}
