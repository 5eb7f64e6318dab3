package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	lastKey  string
	lastMeta map[string]interface{}
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	f.lastKey = key
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.lastMeta = values
	return nil
}

func fix() models.DeviceFix {
	return models.DeviceFix{DeviceID: "phone-1", Loc: models.GeoPoint{Lat: 51.5, Lon: -0.1}, Permission: "granted", At: time.Now()}
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	start := time.Now()
	if err := updateRedisWithRetry(context.Background(), f, "devices_geo", fix(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.lastKey != "devices_geo" || f.lastMeta["permission"] != "granted" {
		t.Fatalf("key=%s meta=%v", f.lastKey, f.lastMeta)
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5}
	if err := updateRedisWithRetry(context.Background(), f, "devices_geo", fix(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.geoCalls != 3 {
		t.Fatalf("geo calls=%d", f.geoCalls)
	}
}

func TestDecodeFix(t *testing.T) {
	if _, err := decodeFix([]byte(`{"loc":{"lat":1,"lon":2}}`)); err == nil {
		t.Fatal("expected missing device error")
	}
	if _, err := decodeFix([]byte(`{"device_id":"d","loc":{"lat":91,"lon":2}}`)); err == nil {
		t.Fatal("expected range error")
	}
	f, err := decodeFix([]byte(`{"device_id":"d","loc":{"lat":1,"lon":2},"permission":"maybe"}`))
	if err != nil || f.Permission != "denied" {
		t.Fatalf("got %+v, %v", f, err)
	}
}

// fakeReader replays messages then blocks until ctx is done.
type fakeReader struct{ msgs []kafka.Message }

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func TestConsumeSkipsInvalidMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Value: []byte(`not json`)},
		{Value: []byte(`{"device_id":"phone-1","loc":{"lat":51.5,"lon":-0.1},"permission":"granted"}`)},
	}}
	f := &fakeUpdater{}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	consume(ctx, r, f, "devices_geo", logging.Discard())
	if f.geoCalls != 1 || f.hCalls != 1 {
		t.Fatalf("geo=%d h=%d", f.geoCalls, f.hCalls)
	}
}
