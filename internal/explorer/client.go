// Package explorer fetches move statistics from the Lichess opening explorer.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/freeeve/repertoire/internal/metrics"
)

// ErrDataUnavailable is returned when the explorer cannot answer for a
// position. Throttling is retried and never surfaces as this error.
var ErrDataUnavailable = errors.New("explorer data unavailable")

const (
	DefaultBaseURL = "https://explorer.lichess.ovh"
	SourceLichess  = "lichess"
	SourceMasters  = "masters"
)

// Config configures the explorer client.
type Config struct {
	BaseURL string
	Source  string
	Token   string

	Variant string
	Speeds  []string
	Ratings []int
	Moves   int

	// Backoff is the wait after an HTTP 429 before retrying.
	Backoff time.Duration
	// RequestsPerSecond paces requests that reach the network.
	RequestsPerSecond float64

	// Cache is an optional persistent cache consulted after the in-process one.
	Cache      Cache
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client queries the opening explorer. It is not safe for concurrent use
// across goroutines that expect ordered pacing, but the caches are.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	memory  *MemoryCache
	log     zerolog.Logger
}

// New creates a client, applying defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Source == "" {
		cfg.Source = SourceLichess
	}
	if cfg.Variant == "" {
		cfg.Variant = "standard"
	}
	if cfg.Moves <= 0 {
		cfg.Moves = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		memory:  NewMemoryCache(),
		log:     cfg.Logger.With().Str("component", "explorer").Logger(),
	}
}

// QueryURL builds the request URL for a FEN. It doubles as the cache key.
func (c *Client) QueryURL(fen string) string {
	q := url.Values{}
	q.Set("fen", fen)
	q.Set("moves", strconv.Itoa(c.cfg.Moves))
	q.Set("topGames", "0")
	if c.cfg.Source != SourceMasters {
		q.Set("variant", c.cfg.Variant)
		q.Set("recentGames", "0")
		if len(c.cfg.Speeds) > 0 {
			q.Set("speeds", strings.Join(c.cfg.Speeds, ","))
		}
		if len(c.cfg.Ratings) > 0 {
			ratings := make([]string, len(c.cfg.Ratings))
			for i, r := range c.cfg.Ratings {
				ratings[i] = strconv.Itoa(r)
			}
			q.Set("ratings", strings.Join(ratings, ","))
		}
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.Source + "?" + q.Encode()
}

// Fetch returns the statistics for a FEN. HTTP 429 responses are retried
// after the configured backoff until the context is cancelled.
func (c *Client) Fetch(ctx context.Context, fen string) (*PositionStats, error) {
	key := c.QueryURL(fen)

	if body, ok := c.lookup(ctx, key); ok {
		stats, err := decode(body)
		if err == nil {
			metrics.ExplorerRequests.WithLabelValues("cache_hit").Inc()
			return stats, nil
		}
		c.log.Warn().Err(err).Str("fen", fen).Msg("discarding bad cached response")
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("explorer wait: %w", err)
		}
		body, status, err := c.get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.ExplorerRequests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}

		if status == http.StatusTooManyRequests {
			metrics.ExplorerRequests.WithLabelValues("throttled").Inc()
			c.log.Warn().Dur("backoff", c.cfg.Backoff).Str("fen", fen).Msg("explorer throttled, waiting")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.Backoff):
			}
			continue
		}
		if status != http.StatusOK {
			metrics.ExplorerRequests.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: status %d for %s", ErrDataUnavailable, status, fen)
		}

		stats, err := decode(body)
		if err != nil {
			metrics.ExplorerRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.ExplorerRequests.WithLabelValues("ok").Inc()
		c.store(ctx, key, body)
		c.log.Debug().Str("fen", fen).Int64("games", stats.Total).Int("moves", len(stats.Moves)).Msg("fetched")
		return stats, nil
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	metrics.ExplorerLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) lookup(ctx context.Context, key string) ([]byte, bool) {
	if body, ok, _ := c.memory.Get(ctx, key); ok {
		return body, true
	}
	if c.cfg.Cache == nil {
		return nil, false
	}
	body, ok, err := c.cfg.Cache.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache get failed")
		return nil, false
	}
	if ok {
		c.memory.Put(ctx, key, body)
	}
	return body, ok
}

func (c *Client) store(ctx context.Context, key string, body []byte) {
	c.memory.Put(ctx, key, body)
	if c.cfg.Cache == nil {
		return
	}
	if err := c.cfg.Cache.Put(ctx, key, body); err != nil {
		c.log.Warn().Err(err).Msg("cache put failed")
	}
}

func decode(body []byte) (*PositionStats, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDataUnavailable, err)
	}
	return r.parse()
}
