// Package client provides the HTTP client for the Art Institute of Chicago
// public catalog API, with quota gating, conditional caching and metrics.
//
// Every call sends exactly one request. Failures are classified and
// returned; the client never retries.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/artwork-browser/pkg/artwork"
	"github.com/Sternrassler/artwork-browser/pkg/cache"
	"github.com/Sternrassler/artwork-browser/pkg/logging"
	"github.com/Sternrassler/artwork-browser/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog client operations.
var (
	articRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	articRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artic_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	articErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})

	articRejectedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_rejected_items_total",
		Help: "Total listing items dropped because they did not match the artwork schema",
	})
)

const (
	// DefaultBaseURL is the public catalog API root.
	DefaultBaseURL = "https://api.artic.edu/api/v1"

	// ArtworksEndpoint is the paginated artwork listing.
	ArtworksEndpoint = "/artworks"
)

// Client is the catalog client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	quota      *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis enables the response cache and shares quota state between
	// processes. Nil disables caching and keeps quota state in memory.
	Redis *redis.Client

	// BaseURL is the API root, e.g. "https://api.artic.edu/api/v1".
	BaseURL string

	// UserAgent identifies the application to the catalog.
	UserAgent string

	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration
}

// DefaultConfig returns the configuration for the public catalog.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:     redis,
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	logger := logging.NewLogger("catalog-client")

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		quota:   ratelimit.NewTracker(cfg.Redis, logger),
		cache:   cacheManager,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do sends req once, gated by the catalog quota and made conditional when
// a cached copy exists. Non-2xx answers are returned with a nil error so
// the caller can inspect them; transport failures come back as *CatalogError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		articRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.quota.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Quota check failed")
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !allowed {
		articRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		articErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, ErrRateLimited
	}

	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}

	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		articErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		articRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &CatalogError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		articRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		if cache.Cacheable(&http.Response{StatusCode: http.StatusOK, Header: resp.Header}) {
			newExpires := time.Now().Add(cache.DefaultTTL)
			if entry, err := cache.ResponseToEntry(resp); err == nil {
				newExpires = entry.Expires
			}
			if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	articRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		articErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")
		return resp, nil
	}

	if c.cache != nil && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// Get performs a GET request to an endpoint below the base URL.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	u := c.baseURL.JoinPath(endpoint)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// FetchPage fetches one page of the artwork listing with
// GET {base}/artworks?page={page}&limit={rows}.
func (c *Client) FetchPage(ctx context.Context, page, rows int) (*artwork.Page, error) {
	if page < 1 || rows < 1 {
		return nil, fmt.Errorf("%w: page=%d rows=%d", ErrInvalidPageRequest, page, rows)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(rows))

	resp, err := c.Get(ctx, ArtworksEndpoint, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if class := classifyStatus(resp.StatusCode); class != "" || resp.StatusCode >= 300 {
		if class == "" {
			class = ErrorClassClient
		}
		return nil, &CatalogError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		articErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &CatalogError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	result, err := artwork.Decode(body)
	if err != nil {
		articErrorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
		return nil, fmt.Errorf("decode artworks page %d: %w", page, err)
	}

	for _, rejected := range result.Rejected {
		c.logger.Warn().
			Err(rejected.Err).
			Int("page", page).
			Int("index", rejected.Index).
			Msg("Dropped malformed artwork")
	}
	articRejectedItemsTotal.Add(float64(len(result.Rejected)))

	return result, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// Quota returns the quota tracker.
func (c *Client) Quota() *ratelimit.Tracker {
	return c.quota
}
