// Package client provides the SWAPI people search client: the fetch gateway
// behind the character browser, with retries, Redis response caching and a
// shared request quota.
package client

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

	"github.com/Sternrassler/swapi-search/pkg/cache"
	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for SWAPI client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_requests_total",
		Help: "Total SWAPI requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapi_request_duration_seconds",
		Help:    "SWAPI page fetch duration in seconds, retries and cache included",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_errors_total",
		Help: "Total SWAPI errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	fetchUnavailableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_fetch_unavailable_total",
		Help: "Page fetches collapsed to an empty result, by error class",
	}, []string{"error_class"})
)

// DefaultBaseURL is the public SWAPI people endpoint.
const DefaultBaseURL = "https://swapi.dev/api/people/"

// maxBodySize bounds how much of a response body is decoded.
const maxBodySize = 10 << 20

// Client is the SWAPI people search client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	quota      *ratelimit.Tracker // nil without Redis
	cache      *cache.Manager     // nil without Redis
	inflight   singleflight.Group
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the people endpoint. Must be absolute.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Redis enables response caching and the shared quota. Optional.
	Redis *redis.Client

	// Quota for requests when Redis is set.
	Quota ratelimit.Quota

	// Timeout of a single HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		Redis:          redis,
		Quota:          ratelimit.DefaultQuota(),
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
	}
}

// New creates a new SWAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "swapi-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.quota = ratelimit.NewTracker(cfg.Redis, cfg.Quota, logger)
		c.cache = cache.NewManager(cfg.Redis)
	} else {
		logger.Debug().Msg("No Redis configured - caching and quota disabled")
	}

	return c, nil
}

// PeopleURL builds base?search=<term>&page=<page>. The term is query-escaped.
func PeopleURL(base *url.URL, q character.SearchQuery) *url.URL {
	u := *base
	u.RawQuery = "search=" + url.QueryEscape(q.Term) + "&page=" + strconv.Itoa(q.Page)
	return &u
}

// FetchPage fetches one page and never fails: any error is logged, counted
// and collapsed into an empty PageResult. This is the gateway contract the
// browser relies on.
func (c *Client) FetchPage(ctx context.Context, q character.SearchQuery) character.PageResult {
	page, err := c.Search(ctx, q)
	if err != nil {
		class := ClassOf(err)
		fetchUnavailableTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Err(err).
			Str("term", q.Term).
			Int("page", q.Page).
			Str("error_class", string(class)).
			Msg("Page fetch unavailable - returning empty page")
		return character.PageResult{}
	}
	return page
}

// Search fetches and decodes one page of people matching q. Concurrent
// calls for the same query share a single request. The shared request does
// not follow any caller's context, so one caller giving up only ends its own
// wait; it is bounded by fetchBudget instead.
func (c *Client) Search(ctx context.Context, q character.SearchQuery) (character.PageResult, error) {
	if err := q.Validate(); err != nil {
		return character.PageResult{}, &APIError{ErrorClass: ErrorClassClient, Message: "invalid query", Err: err}
	}

	u := PeopleURL(c.baseURL, q)
	key := cache.KeyFor(u.Path, u.Query())

	ch := c.inflight.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchBudget())
		defer cancel()
		return c.fetch(fetchCtx, u, key)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug().Str("term", q.Term).Int("page", q.Page).Msg("Caller stopped waiting for page")
		return character.PageResult{}, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request abandoned",
			Err:        fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()),
		}
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("term", q.Term).Int("page", q.Page).Msg("Shared in-flight request")
		}
		if res.Err != nil {
			return character.PageResult{}, res.Err
		}
		return res.Val.(character.PageResult), nil
	}
}

// fetchBudget bounds a shared fetch: every attempt may take the full HTTP
// timeout plus the longest backoff of any retried class.
func (c *Client) fetchBudget() time.Duration {
	var longest time.Duration
	for _, class := range []ErrorClass{ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork} {
		longest = max(longest, c.retryPolicy(class).MaxBackoff)
	}
	return time.Duration(c.config.MaxRetries+1) * (c.config.Timeout + longest)
}

func (c *Client) fetch(ctx context.Context, u *url.URL, key cache.CacheKey) (character.PageResult, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	body, err := c.getBody(ctx, u, key)
	if err != nil {
		errorsTotal.WithLabelValues(string(ClassOf(err))).Inc()
		return character.PageResult{}, err
	}

	page, err := decodePage(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		if c.cache != nil {
			_ = c.cache.Delete(ctx, key)
		}
		return character.PageResult{}, err
	}
	return page, nil
}

// getBody returns the body of a 200 response for u, consulting the cache
// first and revalidating stale entries.
func (c *Client) getBody(ctx context.Context, u *url.URL, key cache.CacheKey) ([]byte, error) {
	var cached *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil && !entry.IsExpired():
			c.logger.Debug().Str("key", key.String()).Msg("Serving from cache")
			requestsTotal.WithLabelValues("cache").Inc()
			return entry.Data, nil
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
	}

	var body []byte
	retryErr := retryWithBackoff(ctx, c.logger, c.retryPolicy, func() (ErrorClass, error) {
		var err error
		body, err = c.attempt(ctx, u, key, cached)
		if err != nil {
			return ClassOf(err), err
		}
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return body, nil
}

func (c *Client) retryPolicy(class ErrorClass) RetryConfig {
	return RetryConfigForErrorClass(class).scaled(c.config.MaxRetries+1, c.config.InitialBackoff)
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, u *url.URL, key cache.CacheKey, cached *cache.CacheEntry) ([]byte, error) {
	if c.quota != nil {
		allowed, err := c.quota.ShouldAllowRequest(ctx)
		if err != nil {
			// Quota bookkeeping is best effort; Redis trouble must not stop searches.
			c.logger.Warn().Err(err).Msg("Quota check failed")
		} else if !allowed {
			requestsTotal.WithLabelValues("quota_refused").Inc()
			return nil, &APIError{ErrorClass: ErrorClassQuota, Message: "request refused", Err: ErrQuotaExceeded}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &APIError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if cache.ShouldMakeConditionalRequest(cached) {
		cache.AddConditionalHeaders(req, cached)
	}

	c.logger.Debug().Str("url", u.String()).Msg("Executing SWAPI request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Debug().Err(err).Str("url", u.String()).Msg("HTTP request failed")
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "transport", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if c.quota != nil {
		if err := c.quota.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record Retry-After")
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		c.logger.Debug().Str("key", key.String()).Msg("304 Not Modified - using cache")
		if err := c.cache.Refresh(ctx, key, cached, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		return cached.Data, nil

	case resp.StatusCode == http.StatusOK:
		if c.cache == nil {
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
			}
			return body, nil
		}
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
		return entry.Data, nil

	default:
		return nil, c.statusError(resp)
	}
}

// statusError converts a non-200 response into an APIError.
func (c *Client) statusError(resp *http.Response) error {
	class := classifyStatus(resp.StatusCode)
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("SWAPI request error")

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    resp.Status,
	}
	if class == ErrorClassRateLimit {
		if wait, ok := ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return &rateLimitedError{APIError: apiErr, wait: wait}
		}
	}
	return apiErr
}

// rateLimitedError carries the server's Retry-After into the retry loop.
type rateLimitedError struct {
	*APIError
	wait time.Duration
}

func (e *rateLimitedError) RetryAfter() time.Duration { return e.wait }

func (e *rateLimitedError) Unwrap() error { return e.APIError }

// classifyStatus categorizes a non-success HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		// 4xx, and 3xx that the transport did not follow
		return ErrorClassClient
	}
}

// peoplePayload is the SWAPI wire shape. Count is a pointer so an absent
// field can be told apart from zero.
type peoplePayload struct {
	Count   *int                  `json:"count"`
	Results []character.Character `json:"results"`
}

func decodePage(body []byte) (character.PageResult, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return character.PageResult{}, &APIError{StatusCode: http.StatusOK, ErrorClass: ErrorClassDecode, Message: "empty body", Err: ErrDecode}
	}

	var payload peoplePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return character.PageResult{}, &APIError{
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassDecode,
			Message:    "decode people page",
			Err:        fmt.Errorf("%w: %v", ErrDecode, err),
		}
	}

	page := character.PageResult{Characters: payload.Results}
	if payload.Count != nil && *payload.Count > 0 {
		page.TotalCount = *payload.Count
	}
	return page, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ping checks the Redis connection when one is configured.
func (c *Client) Ping(ctx context.Context) error {
	if c.config.Redis == nil {
		return nil
	}
	return c.config.Redis.Ping(ctx).Err()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
