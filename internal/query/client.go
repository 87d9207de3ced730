package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prn_query_cache_lookups_total",
			Help: "Query cache lookups by result.",
		},
		[]string{"result"},
	)
	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prn_query_retries_total",
			Help: "Storage calls retried after a transient failure.",
		},
	)
)

// RetryPolicy decides how failed storage calls are retried
type RetryPolicy struct {
	// MaxAttempts counts the first call; 1 disables retries
	MaxAttempts int
	// Backoff returns the wait before retry number attempt (1-based)
	Backoff func(attempt int) time.Duration
	// Retryable reports whether err may succeed on another attempt
	Retryable func(err error) bool
}

// ExponentialBackoff doubles base on every attempt up to max
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= p.MaxAttempts {
			return 0, true
		}
		if p.Backoff == nil {
			return 0, false
		}
		return p.Backoff(attempt), false
	})
}

type entry struct {
	value   interface{}
	expires time.Time
}

// Client runs storage reads with a retry policy and caches results for a
// short TTL. A zero TTL disables caching.
type Client struct {
	policy RetryPolicy
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	// gen counts invalidations so a load that raced one is not cached
	gen   uint64
	group singleflight.Group
}

// NewClient creates a new Client
func NewClient(policy RetryPolicy, ttl time.Duration) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{
		policy:  policy,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts
func (c *Client) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	calls := 0
	return retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		calls++
		if calls > 1 {
			retriesTotal.Inc()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if c.policy.Retryable != nil && c.policy.Retryable(err) {
			zap.L().Warn("Retrying storage call", zap.Int("attempt", calls), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) lookup(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Client) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// store caches v unless the cache was invalidated after gen was read
func (c *Client) store(key string, v interface{}, gen uint64) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[key] = entry{value: v, expires: c.now().Add(c.ttl)}
}

// Invalidate drops cached entries whose key starts with prefix. An empty
// prefix clears the cache.
func (c *Client) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// ErrTypeMismatch is returned when a cached value has a different type than requested
var ErrTypeMismatch = errors.New("cached value has unexpected type")

// Fetch returns the cached value for key or loads it through the retry
// policy. Concurrent loads of the same key share one call. A load that
// overlaps an Invalidate is returned but not cached.
func Fetch[T any](ctx context.Context, c *Client, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.lookup(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		typed, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("%w: key %s", ErrTypeMismatch, key)
		}
		return typed, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation()
		var out T
		err := c.Retry(ctx, func(ctx context.Context) error {
			var err error
			out, err = load(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		c.store(key, out, gen)
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %s", ErrTypeMismatch, key)
	}
	return typed, nil
}
