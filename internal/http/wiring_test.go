package httpapi

import (
	"testing"

	"github.com/example/ride-share/internal/config"
	"github.com/example/ride-share/internal/logging"
)

func TestWiringAcceptsEveryConfiguredCustomerWindow(t *testing.T) {
	for _, v := range []string{"owner", "own", "customer"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("CUSTOMER_WINDOW", v)
			cfg, err := config.LoadServerConfig()
			if err != nil {
				t.Fatalf("config: %v", err)
			}
			srv, closers, err := NewServerFromConfig(cfg, logging.Discard())
			if err != nil || srv == nil {
				t.Fatalf("wiring: %v", err)
			}
			for _, c := range closers {
				c.Close()
			}
		})
	}
}
