package countries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/worldview-app/apiserver/internal/cache"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL  = "https://restcountries.com/v3.1"
	DefaultCacheTTL = 15 * time.Minute

	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 32 << 20
)

// Query shapes understood by the upstream API.
const (
	QueryAll    = "all"
	QueryName   = "name"
	QueryRegion = "region"
	QueryAlpha  = "alpha"
)

var (
	// ErrUpstream is returned when the upstream API call fails. Callers
	// should surface it as a generic retryable error.
	ErrUpstream = errors.New("country data upstream failure")

	// ErrMissingParam is returned when a query parameter is empty.
	ErrMissingParam = errors.New("query parameter is required")
)

var cacheRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worldview_country_cache_requests_total",
		Help: "Country API lookups served from cache (hit) or upstream (miss)",
	},
	[]string{"query", "result"},
)

var emptyList = json.RawMessage(`[]`)

// Client reads the public country API through a response cache.
// Payloads are treated as opaque JSON and cached verbatim.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
	flights    singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithCacheTTL sets how long fetched payloads stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// NewClient constructs a Client. A nil responseCache gets a fresh in-memory cache.
func NewClient(baseURL string, responseCache cache.Cache, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if responseCache == nil {
		responseCache = cache.NewMemory()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		cache:      responseCache,
		ttl:        DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// All returns every country.
func (c *Client) All(ctx context.Context) (json.RawMessage, error) {
	return c.fetch(ctx, QueryAll, "all-countries", "/all", false)
}

// ByName returns the countries matching name. An unknown name yields an
// empty list rather than an error.
func (c *Client) ByName(ctx context.Context, name string) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("country name: %w", ErrMissingParam)
	}
	return c.fetch(ctx, QueryName, "country-name-"+name, "/name/"+url.PathEscape(name), true)
}

// ByRegion returns the countries in region.
func (c *Client) ByRegion(ctx context.Context, region string) (json.RawMessage, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, fmt.Errorf("region: %w", ErrMissingParam)
	}
	return c.fetch(ctx, QueryRegion, "region-"+region, "/region/"+url.PathEscape(region), false)
}

// ByCode returns the country with the given alpha-2 or alpha-3 code. An
// unknown code yields an empty list rather than an error.
func (c *Client) ByCode(ctx context.Context, code string) (json.RawMessage, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("country code: %w", ErrMissingParam)
	}
	return c.fetch(ctx, QueryAlpha, "country-code-"+code, "/alpha/"+url.PathEscape(code), true)
}

// ClearCache drops every cached payload.
func (c *Client) ClearCache(ctx context.Context) {
	c.cache.Clear(ctx)
}

// fetch serves key from the cache or, on a miss, from upstream. Concurrent
// misses for the same key share a single upstream request.
func (c *Client) fetch(ctx context.Context, query, key, path string, emptyOnNotFound bool) (json.RawMessage, error) {
	if cached, ok := c.cache.Get(ctx, key); ok {
		cacheRequests.WithLabelValues(query, "hit").Inc()
		return json.RawMessage(cached), nil
	}

	result, err, _ := c.flights.Do(key, func() (interface{}, error) {
		// A flight that finished just before this one may have filled the entry.
		if cached, ok := c.cache.Get(ctx, key); ok {
			cacheRequests.WithLabelValues(query, "hit").Inc()
			return json.RawMessage(cached), nil
		}
		cacheRequests.WithLabelValues(query, "miss").Inc()
		return c.download(ctx, query, key, path, emptyOnNotFound)
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *Client) download(ctx context.Context, query, key, path string, emptyOnNotFound bool) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, query, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && emptyOnNotFound {
		return emptyList, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrUpstream, query, path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrUpstream, query, err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: %s response too large", ErrUpstream, query)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s response is not valid JSON", ErrUpstream, query)
	}

	c.cache.Set(ctx, key, body, c.ttl)
	return json.RawMessage(body), nil
}
