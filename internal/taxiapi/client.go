// Package taxiapi speaks the matching service's HTTP contract. The same wire
// types are served by the local simulator in internal/taxisim.
package taxiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type CreateRequest struct {
	UserID  string `json:"userid"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

type CreateResponse struct {
	ID ID `json:"id"`
}

// ID accepts both string and numeric ids from the service.
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*i = ID(n.String())
	return nil
}

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("taxi api %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client is an HTTP client for the matching service.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{Endpoint: strings.TrimRight(endpoint, "/"), HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) CreateOrder(ctx context.Context, in CreateRequest) (CreateResponse, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return CreateResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/orders", bytes.NewReader(b))
	if err != nil {
		return CreateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out CreateResponse
	if err := c.do(req, "create", &out); err != nil {
		return CreateResponse{}, err
	}
	if out.ID == "" {
		return CreateResponse{}, fmt.Errorf("taxi api create: response has no id")
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, userID, orderID string) error {
	u := c.Endpoint + "/orders/" + url.PathEscape(orderID) + "?" + url.Values{"userid": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, "cancel", nil)
}

// Matches returns the raw match records for a user, in service order.
func (c *Client) Matches(ctx context.Context, userID string) ([]json.RawMessage, error) {
	u := c.Endpoint + "/matches?" + url.Values{"userid": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := c.do(req, "matches", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("taxi api %s: decode: %w", op, err)
	}
	return nil
}

// FormatTime renders instants the way the service expects them (ISO 8601, UTC, millis).
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseTime accepts RFC 3339 with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FormatID renders a numeric id.
func FormatID(n int64) ID { return ID(strconv.FormatInt(n, 10)) }
