package wikidata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/county-api/internal/resilience"
)

func newTestClient(srvURL string, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srvURL),
		WithWaiter(noWait()),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
	}
	return NewClient(append(base, opts...)...)
}

func TestGetEntity_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "wbgetentities", q.Get("action"))
		assert.Equal(t, "Q26587", q.Get("ids"))
		assert.Equal(t, "claims|labels", q.Get("props"))
		assert.Equal(t, "en", q.Get("languages"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "county-test/0.1", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, WithUserAgent("county-test/0.1"))
	ent, err := c.GetEntity(context.Background(), "Q26587", "claims", "labels")
	require.NoError(t, err)

	assert.Equal(t, "Q26587", ent.ID)
	assert.Equal(t, "Travis County", ent.Label("en"))
	assert.Empty(t, ent.Label("de"))
	assert.Len(t, ent.Claims["P1082"], 2)
}

func TestGetEntity_DefaultProps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "labels|claims", r.URL.Query().Get("props"))
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
}

func TestGetEntity_DefaultBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	c := NewClient(
		WithHTTPClient(newRewriteClient(srv.URL, "https://www.wikidata.org")),
		WithWaiter(noWait()),
	)
	ent, err := c.GetEntity(context.Background(), "Q26587", "labels")
	require.NoError(t, err)
	assert.Equal(t, "Travis County", ent.Label("en"))
}

func TestGetEntity_EmptyID(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.GetEntity(context.Background(), "")
	assert.Error(t, err)
}

func TestGetEntity_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":{"Q999999999":{"id":"Q999999999","missing":""}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q999999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetEntity_NoSuchEntityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"no-such-entity","info":"Could not find an entity with the ID \"Q0\"."}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetEntity_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"param-illegal","info":"bad props"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
	assert.Contains(t, err.Error(), "param-illegal")
}

func TestGetEntity_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities": [`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestGetEntity_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	ent, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
	assert.Equal(t, "Q26587", ent.ID)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGetEntity_RetriesTooManyRequests(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGetEntity_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, WithMaxRetries(2)).GetEntity(context.Background(), "Q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGetEntity_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetEntity(context.Background(), "Q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.Equal(t, int32(1), attempts.Load())
}

type countingWaiter struct {
	calls atomic.Int32
}

func (w *countingWaiter) Wait(context.Context) error {
	w.calls.Add(1)
	return nil
}

func TestGetEntity_WaitsBeforeEveryAttempt(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	waiter := &countingWaiter{}
	_, err := newTestClient(srv.URL, WithWaiter(waiter)).GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
	assert.Equal(t, int32(2), waiter.calls.Load())
}

func TestGetEntity_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL).GetEntity(ctx, "Q26587")
	assert.Error(t, err)
}

func TestGetEntity_Metrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "Q0" {
			w.Write([]byte(`{"entities":{"Q0":{"id":"Q0","missing":""}}}`))
			return
		}
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := newTestClient(srv.URL, WithRegisterer(reg))
	_, err := c.GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
	_, err = c.GetEntity(context.Background(), "Q0")
	require.Error(t, err)

	impl := c.(*httpClient)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.requests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.requests.WithLabelValues("not_found")))

	// A second client on the same registry shares the counter.
	c2 := newTestClient(srv.URL, WithRegisterer(reg))
	assert.Same(t, impl.requests, c2.(*httpClient).requests)
}

func TestGetEntity_BreakerFailsFast(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := resilience.NewBreaker(2, time.Hour)
	c := newTestClient(srv.URL, WithMaxRetries(1), WithBreaker(b))

	for range 2 {
		_, err := c.GetEntity(context.Background(), "Q1")
		require.Error(t, err)
	}
	assert.Equal(t, resilience.Open, b.State())

	_, err := c.GetEntity(context.Background(), "Q1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrOpen))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGetEntity_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":{"Q0":{"id":"Q0","missing":""}}}`))
	}))
	defer srv.Close()

	b := resilience.NewBreaker(1, time.Hour)
	c := newTestClient(srv.URL, WithBreaker(b))
	for range 3 {
		_, err := c.GetEntity(context.Background(), "Q0")
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, resilience.Closed, b.State())
}

func TestGetEntity_CancelledProbeKeepsBreakerHalfOpen(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(travisCountyJSON))
	}))
	defer srv.Close()

	b := resilience.NewBreaker(1, 10*time.Millisecond)
	c := newTestClient(srv.URL, WithMaxRetries(1), WithBreaker(b))

	_, err := c.GetEntity(context.Background(), "Q26587")
	require.Error(t, err)
	require.Equal(t, resilience.Open, b.State())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetEntity(ctx, "Q26587")
	require.Error(t, err)
	assert.Equal(t, resilience.HalfOpen, b.State())

	healthy.Store(true)
	_, err = c.GetEntity(context.Background(), "Q26587")
	require.NoError(t, err)
	assert.Equal(t, resilience.Closed, b.State())
}
