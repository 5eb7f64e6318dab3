package taxiapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateOrderNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var in CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		if in.UserID != "alice" || in.Type != "0" || in.Start != "2024-03-05T09:00:00.000Z" {
			t.Errorf("unexpected body %+v", in)
		}
		w.Write([]byte(`{"id":42,"userid":"alice"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	out, err := c.CreateOrder(context.Background(), CreateRequest{
		UserID: "alice", Start: FormatTime(start), End: FormatTime(start.Add(15 * time.Minute)), Type: "0", Address: "here",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.ID != "42" {
		t.Fatalf("id=%q", out.ID)
	}
}

func TestCreateOrderMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	if _, err := NewClient(srv.URL, time.Second).CreateOrder(context.Background(), CreateRequest{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestCancelOrderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/orders/42" || r.URL.Query().Get("userid") != "alice" {
			t.Errorf("got %s %s", r.Method, r.URL.String())
		}
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()
	err := NewClient(srv.URL, time.Second).CancelOrder(context.Background(), "alice", "42")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestMatchesEmptyAndNull(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		out, err := NewClient(srv.URL, time.Second).Matches(context.Background(), "alice")
		srv.Close()
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if out == nil || len(out) != 0 {
			t.Fatalf("body %s: expected empty non-nil slice, got %#v", body, out)
		}
	}
}

func TestIDUnmarshal(t *testing.T) {
	var r CreateResponse
	if err := json.Unmarshal([]byte(`{"id":"abc"}`), &r); err != nil || r.ID != "abc" {
		t.Fatalf("got %q %v", r.ID, err)
	}
	if err := json.Unmarshal([]byte(`{"id":true}`), &r); err == nil {
		t.Fatal("expected error for bool id")
	}
}
