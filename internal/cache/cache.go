// Package cache provides the bounded, expiring response cache that sits in
// front of the webhook client. Eviction is FIFO by insertion order; expiry is
// lazy, applied on lookup rather than by a background sweep.
package cache

import (
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"chatwidget/internal/domain"
)

const (
	// DefaultCapacity bounds the number of cached responses.
	DefaultCapacity = 100
	// DefaultExpiry is how long a cached response stays valid.
	DefaultExpiry = 5 * time.Minute
)

// Clock abstracts time for expiry checks so tests can advance it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	payload  domain.ResponsePayload
	storedAt time.Time
}

// Cache is a mutex-guarded insertion-ordered map of normalized message keys
// to webhook responses.
type Cache struct {
	mu       sync.Mutex
	entries  *orderedmap.OrderedMap[string, entry]
	capacity int
	expiry   time.Duration
	clock    Clock
	logger   zerolog.Logger
}

type Option func(*Cache)

func WithClock(c Clock) Option {
	return func(cc *Cache) {
		cc.clock = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(cc *Cache) {
		cc.logger = l
	}
}

// New creates a Cache. Non-positive capacity or expiry fall back to the
// defaults.
func New(capacity int, expiry time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	c := &Cache{
		entries:  orderedmap.New[string, entry](),
		capacity: capacity,
		expiry:   expiry,
		clock:    systemClock{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key normalizes a message into its cache key: the message is lower-cased,
// trimmed, base64-encoded, and stripped of non-alphanumerics. Deterministic
// and stable across sessions.
func Key(message string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(strings.ToLower(strings.TrimSpace(message))))
	var b strings.Builder
	b.Grow(len(encoded))
	for _, r := range encoded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Get returns the cached response for a message, if present and unexpired.
// An expired entry is evicted on the spot and reported as absent.
func (c *Cache) Get(message string) (domain.ResponsePayload, bool) {
	key := Key(message)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return domain.ResponsePayload{}, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.expiry {
		c.entries.Delete(key)
		c.logger.Debug().Str("key", key).Msg("cache: expired entry evicted")
		return domain.ResponsePayload{}, false
	}
	return e.payload, true
}

// Put stores a response under the message's key. When the cache is full and
// the key is new, the oldest-inserted entry is evicted first.
func (c *Cache) Put(message string, payload domain.ResponsePayload) {
	key := Key(message)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries.Get(key); !exists && c.entries.Len() >= c.capacity {
		if oldest := c.entries.Oldest(); oldest != nil {
			c.entries.Delete(oldest.Key)
			c.logger.Debug().Str("key", oldest.Key).Msg("cache: oldest entry evicted")
		}
	}
	c.entries.Set(key, entry{payload: payload, storedAt: c.clock.Now()})
}

// Clear empties the cache unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, entry]()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
