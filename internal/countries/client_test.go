package countries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldview-app/apiserver/internal/cache"
)

const sampleCountries = `[
	{"name":{"common":"United States","official":"United States of America"},"cca3":"USA","region":"Americas","languages":{"eng":"English"}},
	{"name":{"common":"France","official":"French Republic"},"cca3":"FRA","region":"Europe","languages":{"fra":"French"}},
	{"name":{"common":"Canada","official":"Canada"},"cca3":"CAN","region":"Americas","languages":{"eng":"English","fra":"French"}}
]`

type upstream struct {
	server *httptest.Server
	hits   map[string]*atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{hits: map[string]*atomic.Int32{}}
	for _, p := range []string{"/all", "/name/France", "/name/Atlantis", "/region/Europe", "/alpha/USA", "/alpha/ZZZ", "/region/Broken"} {
		u.hits[p] = &atomic.Int32{}
	}

	mux := http.NewServeMux()
	handle := func(path string, status int, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			u.hits[path].Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		})
	}
	handle("/all", http.StatusOK, sampleCountries)
	handle("/name/France", http.StatusOK, `[{"cca3":"FRA"}]`)
	handle("/name/Atlantis", http.StatusNotFound, `{"status":404,"message":"Not Found"}`)
	handle("/region/Europe", http.StatusOK, `[{"cca3":"FRA"}]`)
	handle("/alpha/USA", http.StatusOK, `[{"cca3":"USA"}]`)
	handle("/alpha/ZZZ", http.StatusNotFound, `{"status":404}`)
	handle("/region/Broken", http.StatusInternalServerError, `oops`)

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) count(path string) int {
	return int(u.hits[path].Load())
}

func TestAllIsFetchedOnceWhileCached(t *testing.T) {
	up := newUpstream(t)
	client := NewClient(up.server.URL, cache.NewMemory(), WithCacheTTL(time.Minute))
	ctx := context.Background()

	first, err := client.All(ctx)
	require.NoError(t, err)
	second, err := client.All(ctx)
	require.NoError(t, err)

	assert.JSONEq(t, sampleCountries, string(first))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.count("/all"))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleCountries))
	}))
	t.Cleanup(slow.Close)

	client := NewClient(slow.URL, cache.NewMemory(), WithCacheTTL(time.Minute))

	const callers = 10
	start := make(chan struct{})
	results := make([][]byte, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = client.All(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.JSONEq(t, sampleCountries, string(results[i]))
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestConcurrentFailuresAreNotCached(t *testing.T) {
	up := newUpstream(t)
	client := NewClient(up.server.URL, cache.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ByRegion(context.Background(), "Broken")
			assert.ErrorIs(t, err, ErrUpstream)
		}()
	}
	wg.Wait()

	_, err := client.ByRegion(context.Background(), "Broken")
	require.ErrorIs(t, err, ErrUpstream)
	assert.GreaterOrEqual(t, up.count("/region/Broken"), 2, "a failed fetch is retried on the next call")
}

func TestExpiredEntryTriggersOneFreshFetch(t *testing.T) {
	up := newUpstream(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := cache.NewMemory(cache.WithClock(func() time.Time { return now }))
	client := NewClient(up.server.URL, mem, WithCacheTTL(time.Minute))
	ctx := context.Background()

	_, err := client.ByRegion(ctx, "Europe")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = client.ByRegion(ctx, "Europe")
	require.NoError(t, err)
	_, err = client.ByRegion(ctx, "Europe")
	require.NoError(t, err)

	assert.Equal(t, 2, up.count("/region/Europe"))
}

func TestClearCacheForcesRefetch(t *testing.T) {
	up := newUpstream(t)
	client := NewClient(up.server.URL, nil)
	ctx := context.Background()

	_, err := client.ByCode(ctx, "USA")
	require.NoError(t, err)
	client.ClearCache(ctx)
	_, err = client.ByCode(ctx, "USA")
	require.NoError(t, err)

	assert.Equal(t, 2, up.count("/alpha/USA"))
}

func TestNotFoundYieldsEmptyListForNameAndCode(t *testing.T) {
	up := newUpstream(t)
	client := NewClient(up.server.URL, cache.NewMemory())
	ctx := context.Background()

	byName, err := client.ByName(ctx, "Atlantis")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(byName))

	byCode, err := client.ByCode(ctx, "ZZZ")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(byCode))

	_, err = client.ByName(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, 2, up.count("/name/Atlantis"), "not-found results are not cached")
}

func TestUpstreamFailure(t *testing.T) {
	up := newUpstream(t)
	client := NewClient(up.server.URL, cache.NewMemory())

	_, err := client.ByRegion(context.Background(), "Broken")
	require.ErrorIs(t, err, ErrUpstream)
}

func TestUpstreamUnreachable(t *testing.T) {
	up := newUpstream(t)
	baseURL := up.server.URL
	up.server.Close()

	client := NewClient(baseURL, cache.NewMemory())
	_, err := client.All(context.Background())
	require.ErrorIs(t, err, ErrUpstream)
}

func TestMissingParams(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", cache.NewMemory())
	ctx := context.Background()

	_, err := client.ByName(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingParam)
	_, err = client.ByRegion(ctx, "")
	assert.ErrorIs(t, err, ErrMissingParam)
	_, err = client.ByCode(ctx, "")
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestDefaultBaseURL(t *testing.T) {
	client := NewClient("", nil)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}
