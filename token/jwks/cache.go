package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/token/keys"
	"github.com/rs/zerolog/log"
)

const (
	defaultRefreshInterval = time.Hour
	defaultFetchTimeout    = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

type snapshot struct {
	keys    *keys.JWKS
	expires time.Time
}

// Cache holds the provider's signing keys. The key set is swapped wholesale
// on refresh; concurrent refreshes race harmlessly and the last one wins.
type Cache struct {
	url     string
	client  *http.Client
	refresh time.Duration
	timeout time.Duration
	nowTime func() time.Time
	metrics *metrics.Metrics
	current atomic.Pointer[snapshot]
}

type Option func(*Cache)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.client = client
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.refresh = d
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(url string, opts ...Option) *Cache {
	c := &Cache{
		url:     url,
		client:  &http.Client{},
		refresh: defaultRefreshInterval,
		timeout: defaultFetchTimeout,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetKeys returns the cached key set, refreshing it once the interval has
// passed. A failed refresh falls back to the stale set; nil means no keys
// have ever been fetched.
func (c *Cache) GetKeys(ctx context.Context) *keys.JWKS {
	snap := c.current.Load()
	now := c.nowTime()
	if snap != nil && now.Before(snap.expires) {
		return snap.keys
	}

	set, err := c.fetch(ctx)
	c.metrics.IncJWKSRefresh(err)
	if err != nil {
		if snap != nil {
			log.Warn().Err(err).Str("url", c.url).Msg("jwks refresh failed, serving stale keys")
			return snap.keys
		}
		log.Err(err).Str("url", c.url).Msg("jwks fetch failed")
		return nil
	}

	c.current.Store(&snapshot{keys: set, expires: now.Add(c.refresh)})
	log.Debug().Int("keys", len(set.Keys)).Msg("jwks refreshed")
	return set
}

// Warm fetches the key set ahead of the first verification.
func (c *Cache) Warm(ctx context.Context) error {
	if c.GetKeys(ctx) == nil {
		return fmt.Errorf("[jwks Warm] no keys available from %s", c.url)
	}
	return nil
}

// Close releases idle connections held by the fetch client.
func (c *Cache) Close() {
	c.client.CloseIdleConnections()
}

func (c *Cache) fetch(ctx context.Context) (*keys.JWKS, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var set keys.JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("empty key set")
	}
	return &set, nil
}

// FindKey looks up kid in set.
func FindKey(set *keys.JWKS, kid string) *keys.JWK {
	return set.FindKey(kid)
}
