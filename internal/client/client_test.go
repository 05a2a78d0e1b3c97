package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"grepapp/internal/adapter/outbound/telemetry"
	"grepapp/internal/application/common/retry"
	"grepapp/internal/application/service"
	"grepapp/internal/client"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/domain/valueobject"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hit builds one grep.app search hit.
func hit(repo, path, snippet string) map[string]any {
	return map[string]any{
		"repo":          repo,
		"branch":        "main",
		"path":          path,
		"total_matches": "1",
		"content":       map[string]any{"snippet": snippet},
	}
}

// pageBody encodes a grep.app response document.
func pageBody(t *testing.T, total int, hits ...map[string]any) []byte {
	t.Helper()
	if hits == nil {
		hits = []map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"hits": map[string]any{"total": total, "hits": hits}})
	require.NoError(t, err)
	return body
}

type fakeService struct {
	mu       sync.Mutex
	requests []*http.Request
	pages    func(page int) (int, []byte)
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(context.Background()))
	s.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	status, body := s.pages(page)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *fakeService) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestClient(t *testing.T, svc *fakeService, opts ...client.Option) *client.Client {
	t.Helper()
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	cfg := client.DefaultConfig()
	cfg.APIURL = server.URL
	cfg.UserAgent = "gg/test (+https://grep.app)"

	noRetry := retry.DefaultRetryConfig()
	noRetry.MaxRetries = 0
	opts = append([]client.Option{client.WithRetryConfig(noRetry)}, opts...)

	c, err := client.NewClient(&cfg, opts...)
	require.NoError(t, err)
	return c
}

func mustQuery(t *testing.T, pattern string) valueobject.SearchQuery {
	t.Helper()
	q, err := valueobject.NewSearchQuery(pattern)
	require.NoError(t, err)
	return q
}

func mustLimits(t *testing.T, maxPages, concurrency int) valueobject.FetchLimits {
	t.Helper()
	limits, err := valueobject.NewFetchLimits(maxPages, concurrency)
	require.NoError(t, err)
	return limits
}

func TestNewClient_NilConfig(t *testing.T) {
	t.Parallel()

	c, err := client.NewClient(nil)

	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := client.DefaultConfig()
	cfg.APIURL = "ftp://grep.app"

	c, err := client.NewClient(&cfg)

	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "http:// or https:// scheme")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	cfg := client.DefaultConfig()
	c, err := client.NewClient(&cfg)

	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_SearchSendsWireParameters(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(int) (int, []byte) {
		return http.StatusOK, pageBody(t, 0)
	}}
	c := newTestClient(t, svc)

	query := mustQuery(t, "fn main").
		WithRegex(true).
		WithCaseSensitive(true).
		WithRepoFilter("rust-lang/").
		WithLanguages("Rust", "Go")
	for _, err := range c.Search(context.Background(), query, mustLimits(t, 1, 1), valueobject.SymmetricContext(0)) {
		require.NoError(t, err)
	}

	require.Equal(t, 1, svc.requestCount())
	req := svc.requests[0]
	assert.Equal(t, "/api/search", req.URL.Path)
	assert.Equal(t, "gg/test (+https://grep.app)", req.Header.Get("User-Agent"))
	values := req.URL.Query()
	assert.Equal(t, "fn main", values.Get("q"))
	assert.Equal(t, "true", values.Get("regexp"))
	assert.Equal(t, "true", values.Get("case"))
	assert.Equal(t, "rust-lang/", values.Get("f.repo.pattern"))
	assert.Equal(t, []string{"Rust", "Go"}, values["f.lang"])
	assert.Equal(t, "1", values.Get("page"))
}

func TestClient_SearchCustomMarker(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(int) (int, []byte) {
		return http.StatusOK, pageBody(t, 1, hit("org/repo", "a.txt", "<match>foo</match>bar"))
	}}
	c := newTestClient(t, svc, client.WithMarkerTag("match"))

	var results []valueobject.SearchResult
	for result, err := range c.Search(context.Background(), mustQuery(t, "foo"), mustLimits(t, 1, 1), valueobject.SymmetricContext(0)) {
		require.NoError(t, err)
		results = append(results, result)
	}

	require.Len(t, results, 1)
	require.Len(t, results[0].Lines, 1)
	assert.Equal(t, "foobar", results[0].Lines[0].Text)
	assert.Equal(t, []valueobject.MatchRange{{Start: 0, End: 3}}, results[0].Lines[0].Ranges)
	assert.Equal(t, "Text", results[0].Language)
}

func TestClient_SearchPaginatesInOrder(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(page int) (int, []byte) {
		// Later pages answer first.
		time.Sleep(time.Duration(4-page) * 20 * time.Millisecond)
		hits := make([]map[string]any, 0, 10)
		for i := range 10 {
			hits = append(hits, hit("org/repo", fmt.Sprintf("p%d/f%d.go", page, i), "<mark>foo</mark>"))
		}
		return http.StatusOK, pageBody(t, 30, hits...)
	}}
	c := newTestClient(t, svc)

	var paths []string
	for result, err := range c.Search(context.Background(), mustQuery(t, "foo"), mustLimits(t, 10, 3), valueobject.SymmetricContext(0)) {
		require.NoError(t, err)
		paths = append(paths, result.Path)
	}

	require.Len(t, paths, 30)
	assert.Equal(t, "p1/f0.go", paths[0])
	assert.Equal(t, "p2/f0.go", paths[10])
	assert.Equal(t, "p3/f9.go", paths[29])
	assert.Equal(t, 3, svc.requestCount(), "total of 30 hits fits in three pages")
}

func TestClient_SearchSurfacesHTTPStatus(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(page int) (int, []byte) {
		if page == 2 {
			return http.StatusInternalServerError, []byte(`{"message":"backend unavailable"}`)
		}
		return http.StatusOK, pageBody(t, 100, hit("org/repo", "a.go", "<mark>foo</mark>"))
	}}
	c := newTestClient(t, svc)

	var results int
	var errs []error
	for _, err := range c.Search(context.Background(), mustQuery(t, "foo"), mustLimits(t, 5, 1), valueobject.SymmetricContext(0)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results++
	}

	assert.Equal(t, 1, results)
	require.Len(t, errs, 1)
	var statusErr *domain.HTTPStatusError
	require.ErrorAs(t, errs[0], &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "backend unavailable", statusErr.Message)
}

func TestClient_FetchPage(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(page int) (int, []byte) {
		return http.StatusOK, pageBody(t, 95, hit("org/repo", fmt.Sprintf("page%d.go", page), "<mark>foo</mark>"))
	}}
	c := newTestClient(t, svc)

	page, err := c.FetchPage(context.Background(), mustQuery(t, "foo"), 3, valueobject.SymmetricContext(0))

	require.NoError(t, err)
	assert.Equal(t, 3, page.Index)
	assert.Equal(t, int64(95), page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "page3.go", page.Results[0].Path)
	assert.Equal(t, "Go", page.Results[0].Language)
}

func TestClient_WarningHandler(t *testing.T) {
	t.Parallel()

	svc := &fakeService{pages: func(int) (int, []byte) {
		return http.StatusOK, pageBody(t, 2,
			hit("org/repo", "bad.go", "<mark>unterminated"),
			hit("org/repo", "good.go", "<mark>foo</mark>"),
		)
	}}
	var warnings []service.Warning
	c := newTestClient(t, svc, client.WithWarningHandler(func(_ context.Context, w service.Warning) {
		warnings = append(warnings, w)
	}))

	page, err := c.FetchPage(context.Background(), mustQuery(t, "foo"), 1, valueobject.SymmetricContext(0))

	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "good.go", page.Results[0].Path)
	require.Len(t, warnings, 1)
	assert.Equal(t, "bad.go", warnings[0].Path)
	var snippetErr *domain.MalformedSnippetError
	assert.ErrorAs(t, warnings[0].Err, &snippetErr)
}

func TestClient_MeterProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	collector, err := telemetry.NewCollector(ctx, "gg", "test")
	require.NoError(t, err)

	svc := &fakeService{pages: func(int) (int, []byte) {
		return http.StatusOK, pageBody(t, 2,
			hit("org/repo", "a.go", "<mark>foo</mark>"),
			hit("org/repo", "b.go", "<mark>foo</mark>"),
		)
	}}
	c := newTestClient(t, svc, client.WithMeterProvider(collector.MeterProvider()))

	for _, err := range c.Search(ctx, mustQuery(t, "foo"), mustLimits(t, 1, 1), valueobject.SymmetricContext(0)) {
		require.NoError(t, err)
	}

	stats, err := collector.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Fetches[service.OutcomeOK])
	assert.Equal(t, int64(2), stats.Emitted)
}
