package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
)

type createCall struct {
	id     models.Identity
	role   models.Role
	window models.TimeWindow
	addr   models.Address
}

type cancelCall struct {
	id      models.Identity
	orderID models.OrderID
}

// fakeOrders implements Orders for tests
type fakeOrders struct {
	mu        sync.Mutex
	ids       []models.OrderID // returned in turn by CreateOrder
	createErr error
	cancelErr error
	gate      chan struct{} // when set, CreateOrder blocks until closed
	started   chan struct{} // signalled when CreateOrder is entered
	matches   models.MatchSet
	matchErr  error

	creates  []createCall
	cancels  []cancelCall
	matchIDs []models.Identity
}

func (f *fakeOrders) CreateOrder(ctx context.Context, id models.Identity, role models.Role, w models.TimeWindow, addr models.Address) (models.OrderID, error) {
	f.mu.Lock()
	f.creates = append(f.creates, createCall{id, role, w, addr})
	gate, started := f.gate, f.started
	var next models.OrderID
	if len(f.ids) > 0 {
		next, f.ids = f.ids[0], f.ids[1:]
	}
	err := f.createErr
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return next, nil
}

func (f *fakeOrders) CancelOrder(ctx context.Context, id models.Identity, orderID models.OrderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, cancelCall{id, orderID})
	return f.cancelErr
}

func (f *fakeOrders) QueryMatches(ctx context.Context, id models.Identity) (models.MatchSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchIDs = append(f.matchIDs, id)
	return f.matches, f.matchErr
}

func (f *fakeOrders) cancelCalls() []cancelCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cancelCall(nil), f.cancels...)
}

type fakeLocator struct {
	point models.GeoPoint
	err   error
}

func (f *fakeLocator) CurrentPosition(context.Context) (models.GeoPoint, error) {
	return f.point, f.err
}

type fakeGeocoder struct {
	addr  models.Address
	err   error
	calls int
}

func (f *fakeGeocoder) Resolve(context.Context, models.GeoPoint) (models.Address, error) {
	f.calls++
	return f.addr, f.err
}

type fakePayments struct {
	err     error
	details []string
}

func (f *fakePayments) Submit(_ context.Context, details string) error {
	f.details = append(f.details, details)
	return f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	views []View
}

func (r *recordingObserver) StateChanged(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

var testNow = time.Date(2024, 3, 5, 7, 30, 0, 0, time.UTC)

type harness struct {
	wf     *Workflow
	orders *fakeOrders
	loc    *fakeLocator
	geo    *fakeGeocoder
	pay    *fakePayments
	obs    *recordingObserver
}

func newHarness(src WindowSource) *harness {
	h := &harness{
		orders: &fakeOrders{},
		loc:    &fakeLocator{point: models.GeoPoint{Lat: 51.5, Lon: -0.12}},
		geo:    &fakeGeocoder{addr: "1 High St"},
		pay:    &fakePayments{},
		obs:    &recordingObserver{},
	}
	h.wf = New(Deps{
		Locator:        h.loc,
		Geocoder:       h.geo,
		Orders:         h.orders,
		Payments:       h.pay,
		Observer:       h.obs,
		Logger:         logging.Discard(),
		CustomerWindow: src,
		Now:            func() time.Time { return testNow },
	})
	return h
}
