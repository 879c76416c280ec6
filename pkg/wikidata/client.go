// Package wikidata provides a client for the Wikidata wbgetentities API.
package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/ratelimit"
	"github.com/sells-group/county-api/internal/resilience"
)

const defaultBaseURL = "https://www.wikidata.org/w/api.php"

var (
	// ErrNotFound is returned when Wikidata reports the entity as missing.
	ErrNotFound = eris.New("wikidata: entity not found")
	// ErrAPI is returned when Wikidata answers with an error object.
	ErrAPI = eris.New("wikidata: api error")
)

// Client fetches entities from Wikidata.
type Client interface {
	// GetEntity fetches one entity, restricted to the given props
	// ("labels", "claims", ...). English is the only label language requested.
	GetEntity(ctx context.Context, id string, props ...string) (*Entity, error)
}

// Option configures the Wikidata client.
type Option func(*httpClient)

// WithBaseURL sets a custom API endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header. Wikimedia rejects anonymous clients.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithWaiter sets the rate limiter consulted before every request.
func WithWaiter(w ratelimit.Waiter) Option {
	return func(c *httpClient) {
		c.waiter = w
	}
}

// WithMaxRetries sets the number of attempts for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base and cap of the exponential retry backoff.
func WithBackoff(base, maxBackoff time.Duration) Option {
	return func(c *httpClient) {
		c.backoffBase = base
		c.backoffMax = maxBackoff
	}
}

// WithBreaker fails requests fast while b is open. Only transport failures
// (network errors, exhausted retries) count against it. Cancelled calls
// count as neither success nor failure.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

// WithRegisterer registers request metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *httpClient) {
		c.registerer = reg
	}
}

type httpClient struct {
	baseURL     string
	userAgent   string
	http        *http.Client
	waiter      ratelimit.Waiter
	breaker     *resilience.Breaker
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	registerer  prometheus.Registerer
	requests    *prometheus.CounterVec
}

// NewClient creates a new Wikidata client. By default it spaces requests one
// second apart.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     defaultBaseURL,
		userAgent:   "county-api/1.0",
		waiter:      ratelimit.NewSpacing(time.Second),
		maxRetries:  3,
		backoffBase: time.Second,
		backoffMax:  30 * time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.requests = newRequestCounter(c.registerer)
	return c
}

// GetEntity implements Client.
func (c *httpClient) GetEntity(ctx context.Context, id string, props ...string) (*Entity, error) {
	if id == "" {
		return nil, eris.New("wikidata: empty entity id")
	}
	if len(props) == 0 {
		props = []string{"labels", "claims"}
	}

	params := url.Values{
		"action":    {"wbgetentities"},
		"ids":       {id},
		"props":     {strings.Join(props, "|")},
		"languages": {"en"},
		"format":    {"json"},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	zap.L().Debug("wikidata: fetching entity",
		zap.String("id", id),
		zap.Strings("props", props),
	)

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			c.requests.WithLabelValues("rejected").Inc()
			return nil, eris.Wrapf(err, "wikidata: get entity %s", id)
		}
	}
	body, err := c.getWithRetry(ctx, reqURL)
	if c.breaker != nil {
		if ctx.Err() != nil {
			c.breaker.Release()
		} else {
			c.breaker.Done(err != nil)
		}
	}
	if err != nil {
		c.requests.WithLabelValues("error").Inc()
		return nil, eris.Wrapf(err, "wikidata: get entity %s", id)
	}

	var resp EntitiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.requests.WithLabelValues("malformed").Inc()
		return nil, eris.Wrapf(err, "wikidata: parse response for %s", id)
	}

	if resp.Error != nil {
		if resp.Error.Code == "no-such-entity" {
			c.requests.WithLabelValues("not_found").Inc()
			return nil, eris.Wrapf(ErrNotFound, "wikidata: %s", id)
		}
		c.requests.WithLabelValues("api_error").Inc()
		return nil, eris.Wrapf(ErrAPI, "wikidata: %s: %s", resp.Error.Code, resp.Error.Info)
	}

	ent, ok := resp.Entities[id]
	if !ok || ent.IsMissing() {
		c.requests.WithLabelValues("not_found").Inc()
		return nil, eris.Wrapf(ErrNotFound, "wikidata: %s", id)
	}

	c.requests.WithLabelValues("ok").Inc()
	return &ent, nil
}

// getWithRetry issues a GET, retrying network errors, 429 and 5xx responses.
func (c *httpClient) getWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.waiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		body, retry, err := c.get(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.maxRetries-1 {
			zap.L().Warn("wikidata: request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
		}
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// get performs a single request. The bool reports whether the failure is retryable.
func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, eris.Errorf("http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, eris.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, eris.Wrap(err, "read body")
	}
	return body, false, nil
}

func (c *httpClient) backoff(ctx context.Context, attempt int) {
	if c.backoffBase <= 0 {
		return
	}
	d := time.Duration(float64(c.backoffBase) * math.Pow(2, float64(attempt)))
	if d > c.backoffMax {
		d = c.backoffMax
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func newRequestCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "county_api",
		Subsystem: "wikidata",
		Name:      "requests_total",
		Help:      "Total number of Wikidata entity requests by outcome",
	}, []string{"outcome"})
	if reg == nil {
		return cv
	}
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		zap.L().Warn("wikidata: metrics registration failed", zap.Error(err))
	}
	return cv
}
