package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/ride-share/internal/apperr"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
)

// Lookup resolves a display address for a point.
type Lookup interface {
	Resolve(ctx context.Context, p models.GeoPoint) (models.Address, error)
}

var ErrNoResult = errors.New("no address for location")

// NominatimClient performs reverse geocoding against a Nominatim HTTP server.
type NominatimClient struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewNominatimClient(endpoint, userAgent string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

// Resolve makes one /reverse request. No retry, no cache.
func (n *NominatimClient) Resolve(ctx context.Context, p models.GeoPoint) (models.Address, error) {
	start := time.Now()
	addr, err := n.reverse(ctx, p)
	observability.CollaboratorLatency.WithLabelValues("geocode").Observe(time.Since(start).Seconds())
	observability.CollaboratorCalls.WithLabelValues("geocode", observability.Outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrLookupFailed, err)
	}
	return addr, nil
}

func (n *NominatimClient) reverse(ctx context.Context, p models.GeoPoint) (models.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.Endpoint+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if n.UserAgent != "" {
		// Nominatim's usage policy rejects requests without an identifying agent.
		req.Header.Set("User-Agent", n.UserAgent)
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("nominatim status %d", resp.StatusCode)
	}
	var out struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrNoResult, out.Error)
	}
	if strings.TrimSpace(out.DisplayName) == "" {
		return "", ErrNoResult
	}
	return models.Address(out.DisplayName), nil
}
