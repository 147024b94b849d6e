// Package viewurls keeps presigned read URLs for the keys an editor shows
// and re-signs them before they expire.
package viewurls

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// maxBatch matches the largest key list the server signs per request.
const maxBatch = 100

// ErrRefreshTooSlow rejects a refresh interval that would let URLs expire
// before they are re-signed.
var ErrRefreshTooSlow = errors.New("view url refresh interval must be shorter than the url lifetime")

// Signer returns read URLs for keys. Keys it cannot sign are absent from the
// map.
type Signer interface {
	SignViews(ctx context.Context, keys []string) (map[string]string, time.Time, error)
}

type SignerFunc func(ctx context.Context, keys []string) (map[string]string, time.Time, error)

func (f SignerFunc) SignViews(ctx context.Context, keys []string) (map[string]string, time.Time, error) {
	return f(ctx, keys)
}

type entry struct {
	url     string
	expires time.Time
}

type Option func(*Cache)

func WithLogger(l logging.Logger) Option { return func(c *Cache) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// Cache maps the current key set to read URLs. URLs past their expiry are
// never returned.
type Cache struct {
	mu   sync.Mutex
	keys []string
	urls *expirable.LRU[string, entry]

	signer   Signer
	interval time.Duration
	log      logging.Logger
	now      func() time.Time
}

// New returns a cache that re-signs every interval. ttl is the lifetime of
// a read URL; interval must be shorter.
func New(signer Signer, interval, ttl time.Duration, opts ...Option) (*Cache, error) {
	if interval <= 0 || interval >= ttl {
		return nil, fmt.Errorf("%w: interval %s, lifetime %s", ErrRefreshTooSlow, interval, ttl)
	}
	c := &Cache{
		urls:     expirable.NewLRU[string, entry](4*maxBatch, nil, ttl),
		signer:   signer,
		interval: interval,
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("module", "viewurls")
	return c, nil
}

// SetKeys replaces the key set. Empty keys and duplicates are dropped. When
// the set changed, URLs are signed right away.
func (c *Cache) SetKeys(ctx context.Context, keys ...string) error {
	keys = media.CompactKeys(keys...)

	c.mu.Lock()
	if slices.Equal(keys, c.keys) {
		c.mu.Unlock()
		return nil
	}
	c.keys = keys
	current := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		current[k] = struct{}{}
	}
	for _, k := range c.urls.Keys() {
		if _, ok := current[k]; !ok {
			c.urls.Remove(k)
		}
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh re-signs every current key. A failed batch keeps the URLs signed
// earlier; the error is logged and returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	keys := slices.Clone(c.keys)
	c.mu.Unlock()

	var errs []error
	for batch := range slices.Chunk(keys, maxBatch) {
		urls, expires, err := c.signer.SignViews(ctx, batch)
		if err != nil {
			c.log.Warn(ctx, "view url refresh failed", "keys", len(batch), "error", err)
			errs = append(errs, err)
			continue
		}

		c.mu.Lock()
		for _, k := range batch {
			if u, ok := urls[k]; ok && slices.Contains(c.keys, k) {
				c.urls.Add(k, entry{url: u, expires: expires})
			}
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Run refreshes on every tick until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = c.Refresh(ctx)
		}
	}
}

// URL returns the live read URL of key.
func (c *Cache) URL(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.urls.Get(key)
	if !ok || !c.now().Before(e.expires) {
		return "", false
	}
	return e.url, true
}

// Snapshot returns key -> URL for every current key with a live URL.
func (c *Cache) Snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make(map[string]string, len(c.keys))
	for _, k := range c.keys {
		if e, ok := c.urls.Get(k); ok && now.Before(e.expires) {
			out[k] = e.url
		}
	}
	return out
}
