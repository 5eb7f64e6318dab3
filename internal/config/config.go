package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the workflow host.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally against the simulator without extra setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	TaxiAPIURL     string
	TaxiAPITimeout time.Duration

	NominatimURL       string
	NominatimUserAgent string
	GeocodeTimeout     time.Duration

	LocationSource string // static or redis
	StaticLat      float64
	StaticLon      float64
	DeviceID       string

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PaymentProvider string // stub or stripe
	StripeAPIKey    string
	PaymentAmount   int64
	PaymentCurrency string

	CustomerWindow string // owner, or own/customer
	Timezone       string

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:           ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		TaxiAPIURL:         "http://localhost:8090",
		TaxiAPITimeout:     5 * time.Second,
		NominatimURL:       "https://nominatim.openstreetmap.org",
		NominatimUserAgent: "ride-share/1.0",
		GeocodeTimeout:     5 * time.Second,
		LocationSource:     "static",
		RedisGeoKey:        "devices_geo",
		KafkaTopic:         "ride-share-events",
		PaymentProvider:    "stub",
		PaymentAmount:      1000,
		PaymentCurrency:    "gbp",
		CustomerWindow:     "owner",
		Timezone:           "Local",
		LogLevel:           "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.TaxiAPIURL, "TAXI_API_URL")
	setDurationFromEnv(&cfg.TaxiAPITimeout, "TAXI_API_TIMEOUT", &errs)

	setStringFromEnv(&cfg.NominatimURL, "NOMINATIM_URL")
	setStringFromEnv(&cfg.NominatimUserAgent, "NOMINATIM_USER_AGENT")
	setDurationFromEnv(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", &errs)

	if v := os.Getenv("LOCATION_SOURCE"); v != "" {
		cfg.LocationSource = strings.ToLower(strings.TrimSpace(v))
	}
	setFloatFromEnv(&cfg.StaticLat, "STATIC_LAT", &errs)
	setFloatFromEnv(&cfg.StaticLon, "STATIC_LON", &errs)
	setStringFromEnv(&cfg.DeviceID, "DEVICE_ID")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	if v := os.Getenv("PAYMENT_PROVIDER"); v != "" {
		cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	setInt64FromEnv(&cfg.PaymentAmount, "PAYMENT_AMOUNT", &errs)
	setStringFromEnv(&cfg.PaymentCurrency, "PAYMENT_CURRENCY")

	if v := os.Getenv("CUSTOMER_WINDOW"); v != "" {
		cfg.CustomerWindow = strings.ToLower(strings.TrimSpace(v))
	}
	setStringFromEnv(&cfg.Timezone, "TIMEZONE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	switch cfg.LocationSource {
	case "static":
	case "redis":
		if cfg.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("REDIS_ADDR is required when LOCATION_SOURCE=redis"))
		}
		if cfg.DeviceID == "" {
			errs = append(errs, fmt.Errorf("DEVICE_ID is required when LOCATION_SOURCE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("LOCATION_SOURCE must be static or redis, got %q", cfg.LocationSource))
	}
	switch cfg.PaymentProvider {
	case "stub":
	case "stripe":
		if cfg.StripeAPIKey == "" {
			errs = append(errs, fmt.Errorf("STRIPE_API_KEY is required when PAYMENT_PROVIDER=stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER must be stub or stripe, got %q", cfg.PaymentProvider))
	}
	if cfg.PaymentAmount <= 0 {
		errs = append(errs, fmt.Errorf("PAYMENT_AMOUNT must be > 0"))
	}
	switch cfg.CustomerWindow {
	case "owner", "own", "customer":
	default:
		errs = append(errs, fmt.Errorf("CUSTOMER_WINDOW must be owner, own or customer, got %q", cfg.CustomerWindow))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE: %w", err))
	}

	return cfg, errors.Join(errs...)
}

// Location resolves the configured time zone, falling back to local time.
func (c ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SimConfig configures the local matching service simulator.
type SimConfig struct {
	HTTPAddr      string
	PGDSN         string
	RunMigrations bool
	LogLevel      string
}

func LoadSimConfig() (SimConfig, error) {
	cfg := SimConfig{HTTPAddr: ":8090", LogLevel: "info"}
	setStringFromEnv(&cfg.HTTPAddr, "SIM_HTTP_ADDR")
	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if cfg.RunMigrations && cfg.PGDSN == "" {
		return cfg, errors.New("MIGRATE=true requires PG_DSN")
	}
	return cfg, nil
}

// ConsumerConfig configures the device location feed consumer.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "device-locations",
		KafkaGroup:   "ride-share-location-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "devices_geo",
		LogLevel:     "info",
	}
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "DEVICE_LOCATION_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, errors.New("KAFKA_BROKERS must name at least one broker")
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setInt64FromEnv(target *int64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
