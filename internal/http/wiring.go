package httpapi

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/ride-share/internal/config"
	"github.com/example/ride-share/internal/events"
	"github.com/example/ride-share/internal/geocode"
	"github.com/example/ride-share/internal/location"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/orders"
	"github.com/example/ride-share/internal/payments"
	"github.com/example/ride-share/internal/taxiapi"
	"github.com/example/ride-share/internal/workflow"
)

// NewServerFromConfig wires the workflow and its collaborators. The returned
// closers must be closed after the workflow has drained.
func NewServerFromConfig(cfg config.ServerConfig, logger *slog.Logger) (*Server, []io.Closer, error) {
	var closers []io.Closer

	var provider location.Provider
	switch cfg.LocationSource {
	case "redis":
		rp := location.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, cfg.DeviceID)
		closers = append(closers, rp)
		provider = rp
	default:
		provider = location.Static{Point: models.GeoPoint{Lat: cfg.StaticLat, Lon: cfg.StaticLon}, Granted: true}
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, kp)
		pub = kp
	}

	var pay payments.Submitter
	switch cfg.PaymentProvider {
	case "stripe":
		pay = payments.NewStripeSubmitter(cfg.StripeAPIKey, cfg.PaymentAmount, cfg.PaymentCurrency, logger)
	default:
		pay = payments.NewStub(logger)
	}

	win, err := workflow.ParseWindowSource(cfg.CustomerWindow)
	if err != nil {
		return nil, closers, err
	}
	loc := cfg.Location()

	hub := notify.NewHub(logger)
	wf := workflow.New(workflow.Deps{
		Locator:        location.NewResolver(provider, logger),
		Geocoder:       geocode.NewNominatimClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout),
		Orders:         orders.NewService(taxiapi.NewClient(cfg.TaxiAPIURL, cfg.TaxiAPITimeout), logger),
		Payments:       pay,
		Events:         pub,
		Observer:       hub,
		Logger:         logger,
		CustomerWindow: win,
		Now:            func() time.Time { return time.Now().In(loc) },
	})
	return NewServer(wf, hub, logger), closers, nil
}
