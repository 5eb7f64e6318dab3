package location

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-share/internal/models"
)

// RedisProvider reads the device's last fix from a Redis GEO set. The device
// feed (cmd/consumer) writes positions with GEOADD and the permission flag
// into the device meta hash.
type RedisProvider struct {
	client GeoReader
	key    string
	device string
}

// GeoReader is the part of a redis client the provider reads with.
// redis.UniversalClient satisfies it.
type GeoReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	GeoPos(ctx context.Context, key string, members ...string) *redis.GeoPosCmd
	Close() error
}

func NewRedisProvider(addr, password, key, device string) *RedisProvider {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisProvider{client: c, key: key, device: device}
}

// NewRedisProviderWithClient wraps an existing client.
func NewRedisProviderWithClient(c GeoReader, key, device string) *RedisProvider {
	return &RedisProvider{client: c, key: key, device: device}
}

func (r *RedisProvider) RequestPermission(ctx context.Context) (bool, error) {
	v, err := r.client.HGet(ctx, MetaKey(r.device), "permission").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "granted", nil
}

func (r *RedisProvider) CurrentPosition(ctx context.Context) (models.GeoPoint, error) {
	res, err := r.client.GeoPos(ctx, r.key, r.device).Result()
	if err != nil {
		return models.GeoPoint{}, err
	}
	if len(res) == 0 || res[0] == nil {
		return models.GeoPoint{}, ErrNoFix
	}
	return models.GeoPoint{Lat: res[0].Latitude, Lon: res[0].Longitude}, nil
}

func (r *RedisProvider) Close() error { return r.client.Close() }

// MetaKey is the hash holding per-device flags.
func MetaKey(device string) string { return "device:meta:" + device }
