package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const availabilityKeyPrefix = "clinic:availability:"

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// kv is the subset of redis.Cmdable the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// versionTTL keeps a day's version counter well past the lifetime of any
// entry written under it.
const versionTTL = 7 * 24 * time.Hour

// Availability stores the free slot list of a calendar day under
// "clinic:availability:YYYY-MM-DD:v<N>" with a short TTL. N comes from the
// counter "clinic:availability:ver:YYYY-MM-DD", which Invalidate increments.
type Availability struct {
	client kv
	ttl    time.Duration
}

func NewAvailability(client kv, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Availability{client: client, ttl: ttl}
}

func availabilityKey(day string, version int64) string {
	return fmt.Sprintf("%s%s:v%d", availabilityKeyPrefix, day, version)
}

func versionKey(day string) string {
	return availabilityKeyPrefix + "ver:" + day
}

// Version returns the current version of day; an unset counter is 0.
func (a *Availability) Version(ctx context.Context, day string) (int64, error) {
	v, err := a.client.Get(ctx, versionKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get availability version %s: %w", day, err)
	}
	return v, nil
}

// Get returns the cached slots for day at version. A miss is (nil, false, nil).
func (a *Availability) Get(ctx context.Context, day string, version int64) ([]time.Time, bool, error) {
	val, err := a.client.Get(ctx, availabilityKey(day, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get availability %s: %w", day, err)
	}

	var slots []time.Time
	if err := json.Unmarshal(val, &slots); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		return nil, false, nil
	}
	return slots, true, nil
}

func (a *Availability) Set(ctx context.Context, day string, version int64, slots []time.Time) error {
	if slots == nil {
		slots = []time.Time{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	if err := a.client.Set(ctx, availabilityKey(day, version), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("set availability %s: %w", day, err)
	}
	return nil
}

// Invalidate moves day to a new version. Entries under older versions are
// left to expire.
func (a *Availability) Invalidate(ctx context.Context, day string) error {
	key := versionKey(day)
	if err := a.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate availability %s: %w", day, err)
	}
	if err := a.client.Expire(ctx, key, versionTTL).Err(); err != nil {
		return fmt.Errorf("expire availability version %s: %w", day, err)
	}
	return nil
}

// Noop satisfies the same contract and never hits; used when REDIS_URL is unset.
type Noop struct{}

func (Noop) Version(context.Context, string) (int64, error)                { return 0, nil }
func (Noop) Get(context.Context, string, int64) ([]time.Time, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, int64, []time.Time) error         { return nil }
func (Noop) Invalidate(context.Context, string) error                      { return nil }
