package service

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/application/common/logging"
	"grepapp/internal/application/common/retry"
	"grepapp/internal/application/common/slogger"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/domain/valueobject"
	"grepapp/internal/port/outbound"
	"iter"
	"time"

	"golang.org/x/sync/semaphore"
)

// Warning describes a non-fatal problem met while processing a page.
type Warning struct {
	Page int
	Repo string
	Path string
	Err  error
}

// WarningHandler receives warnings as they occur. It is called from the
// goroutine iterating the session, never concurrently.
type WarningHandler func(ctx context.Context, w Warning)

// SessionOption configures a SearchSession.
type SessionOption func(*SearchSession)

// WithRetryConfig sets the retry budget for transport failures.
func WithRetryConfig(cfg *retry.RetryConfig) SessionOption {
	return func(s *SearchSession) {
		if cfg != nil {
			s.retryConfig = cfg
		}
	}
}

// WithRetrySleep replaces the wait between retries.
func WithRetrySleep(sleep retry.SleepFunc) SessionOption {
	return func(s *SearchSession) {
		s.retrySleep = sleep
	}
}

// WithSessionMetrics records session activity on m.
func WithSessionMetrics(m *SearchMetrics) SessionOption {
	return func(s *SearchSession) {
		s.metrics = m
	}
}

// WithWarningHandler replaces the default handler, which logs at WARN.
func WithWarningHandler(h WarningHandler) SessionOption {
	return func(s *SearchSession) {
		if h != nil {
			s.onWarning = h
		}
	}
}

// SearchSession orchestrates a paginated search: it builds request
// parameters once, fetches pages concurrently within the fetch limits,
// parses each page's snippets and yields results strictly in page order.
type SearchSession struct {
	builder     outbound.QueryBuilder
	fetcher     outbound.PageFetcher
	parser      outbound.SnippetParser
	retryConfig *retry.RetryConfig
	retrySleep  retry.SleepFunc
	metrics     *SearchMetrics
	onWarning   WarningHandler
}

// NewSearchSession creates a SearchSession.
func NewSearchSession(
	builder outbound.QueryBuilder,
	fetcher outbound.PageFetcher,
	parser outbound.SnippetParser,
	opts ...SessionOption,
) *SearchSession {
	s := &SearchSession{
		builder:     builder,
		fetcher:     fetcher,
		parser:      parser,
		retryConfig: retry.DefaultRetryConfig(),
		onWarning:   logWarning,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func logWarning(ctx context.Context, w Warning) {
	slogger.Warn(ctx, "Skipping entry with malformed snippet", slogger.Fields{
		"page":  w.Page,
		"repo":  w.Repo,
		"path":  w.Path,
		"error": w.Err.Error(),
	})
}

// pageOutcome is what a fetch worker reports back to the orchestrator.
type pageOutcome struct {
	index int
	page  valueobject.RawPage
	err   error
}

// Run returns a lazy sequence of results. Nothing is fetched until the
// sequence is iterated, and every iteration performs a fresh search.
//
// Results are yielded in page order, then in service order within a page.
// A fetch failure is yielded as the final element, after every result from
// the pages before it. Stopping the iteration early cancels outstanding
// fetches without waiting for them.
func (s *SearchSession) Run(
	ctx context.Context,
	query valueobject.SearchQuery,
	limits valueobject.FetchLimits,
	window valueobject.ContextWindow,
) iter.Seq2[valueobject.SearchResult, error] {
	return func(yield func(valueobject.SearchResult, error) bool) {
		s.run(ctx, query, limits, window, yield)
	}
}

func (s *SearchSession) run(
	ctx context.Context,
	query valueobject.SearchQuery,
	limits valueobject.FetchLimits,
	window valueobject.ContextWindow,
	yield func(valueobject.SearchResult, error) bool,
) {
	params, err := s.builder.Build(query)
	if err != nil {
		yield(valueobject.SearchResult{}, err)
		return
	}

	ctx = logging.EnsureCorrelationID(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		maxPages = limits.MaxPages()
		pool     = limits.PoolSize()
		sem      = semaphore.NewWeighted(int64(pool))
		// Buffered to the pool size so that abandoned workers never block.
		done    = make(chan pageOutcome, pool)
		pending = make(map[int]pageOutcome, pool)
		cancels = make(map[int]context.CancelFunc, pool)
		next    = 1        // next page to dispatch
		want    = 1        // next page to emit
		last    = maxPages // highest page that may still be emitted
	)

	slogger.Debug(ctx, "Starting search session", slogger.Fields{
		"query":     query.String(),
		"max_pages": maxPages,
		"pool_size": pool,
	})

	// truncate forgets every page above limit and cancels its fetch.
	truncate := func(limit int) {
		if limit >= last {
			return
		}
		last = limit
		for index, cancelPage := range cancels {
			if index > last {
				cancelPage()
				delete(cancels, index)
			}
		}
		for index := range pending {
			if index > last {
				delete(pending, index)
			}
		}
	}

	for {
		for {
			out, ok := pending[want]
			if !ok {
				break
			}
			delete(pending, want)

			if out.err != nil {
				slogger.Debug(ctx, "Search session stopped by fetch failure", slogger.Fields{
					"page":  want,
					"error": out.err.Error(),
				})
				yield(valueobject.SearchResult{}, out.err)
				return
			}
			if !s.emitPage(ctx, out.page, window, yield) {
				return
			}
			if out.page.IsEmpty() || !out.page.HasMore || want >= last {
				slogger.Debug(ctx, "Search session complete", slogger.Fields{
					"pages":       want,
					"total":       out.page.Total,
					"page_budget": maxPages,
				})
				return
			}
			want++
		}

		// In-flight plus buffered pages never exceed the pool size.
		// Slots freed by the pages just emitted are refilled here.
		for next <= last && next < want+pool {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			pageCtx, cancelPage := context.WithCancel(ctx)
			cancels[next] = cancelPage
			go s.fetchPage(pageCtx, sem, params, next, done)
			next++
		}

		select {
		case <-ctx.Done():
			yield(valueobject.SearchResult{}, ctx.Err())
			return
		case out := <-done:
			if ctx.Err() != nil {
				yield(valueobject.SearchResult{}, ctx.Err())
				return
			}
			if cancelPage, ok := cancels[out.index]; ok {
				cancelPage()
				delete(cancels, out.index)
			}
			if out.index > last {
				continue
			}
			// Nothing past a failed or final page is ever emitted.
			if out.err != nil || out.page.IsEmpty() || !out.page.HasMore {
				truncate(out.index)
			}
			pending[out.index] = out
		}
	}
}

// fetchPage runs on its own goroutine. It fetches one page with retries and
// reports the outcome on done.
func (s *SearchSession) fetchPage(
	ctx context.Context,
	sem *semaphore.Weighted,
	params valueobject.ParameterSet,
	index int,
	done chan<- pageOutcome,
) {
	defer sem.Release(1)

	if s.metrics != nil {
		s.metrics.FetchStarted(ctx)
		defer s.metrics.FetchFinished(ctx)
	}

	page, err := s.fetchWithRetry(ctx, params, index)
	done <- pageOutcome{index: index, page: page, err: err}
}

// fetchWithRetry fetches one page, retrying transport failures within the
// retry budget.
func (s *SearchSession) fetchWithRetry(
	ctx context.Context,
	params valueobject.ParameterSet,
	index int,
) (valueobject.RawPage, error) {
	opts := []retry.Option{
		retry.WithOnRetry(func(ctx context.Context, attempt int, err error) {
			if s.metrics != nil {
				s.metrics.RecordRetry(ctx)
			}
			slogger.Info(ctx, "Retrying page fetch", slogger.Fields3("page", index, "attempt", attempt, "error", err.Error()))
		}),
	}
	if s.retrySleep != nil {
		opts = append(opts, retry.WithSleep(s.retrySleep))
	}
	executor := retry.NewRetryExecutor(s.retryConfig, retry.CheckerFunc(isTransportFailure), opts...)

	var page valueobject.RawPage
	err := executor.Execute(ctx, func(ctx context.Context) error {
		start := time.Now()
		var fetchErr error
		page, fetchErr = s.fetcher.FetchPage(ctx, params, index)
		if s.metrics != nil {
			s.metrics.RecordFetch(ctx, fetchErr, time.Since(start))
		}
		return fetchErr
	})
	return page, err
}

// isTransportFailure reports whether err is worth retrying. Only transport
// failures are; the service's own answers are final.
func isTransportFailure(err error) bool {
	var transportErr *domain.TransportError
	return errors.As(err, &transportErr) && !errors.Is(err, context.Canceled)
}

// PageResult is one parsed page fetched on its own.
type PageResult struct {
	Index   int
	Total   int64
	HasMore bool
	Results []valueobject.SearchResult
}

// FetchPage fetches and parses a single page without starting a session.
// Transport failures are retried like they are in Run, and entries with
// malformed snippets are reported to the warning handler and skipped.
func (s *SearchSession) FetchPage(
	ctx context.Context,
	query valueobject.SearchQuery,
	page int,
	window valueobject.ContextWindow,
) (PageResult, error) {
	if page < 1 {
		return PageResult{}, fmt.Errorf("%w: page must be at least 1, got %d", domain.ErrInvalidFetchLimits, page)
	}
	params, err := s.builder.Build(query)
	if err != nil {
		return PageResult{}, err
	}
	ctx = logging.EnsureCorrelationID(ctx)

	raw, err := s.fetchWithRetry(ctx, params, page)
	if err != nil {
		return PageResult{}, err
	}

	result := PageResult{Index: page, Total: raw.Total, HasMore: raw.HasMore}
	s.emitPage(ctx, raw, window, func(r valueobject.SearchResult, _ error) bool {
		result.Results = append(result.Results, r)
		return true
	})
	return result, nil
}

// emitPage parses and yields every entry of page. It returns false when the
// consumer stopped iterating.
func (s *SearchSession) emitPage(
	ctx context.Context,
	page valueobject.RawPage,
	window valueobject.ContextWindow,
	yield func(valueobject.SearchResult, error) bool,
) bool {
	for _, entry := range page.Entries {
		result, err := s.parseEntry(page.Index, entry, window)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordSkipped(ctx)
			}
			s.onWarning(ctx, Warning{Page: page.Index, Repo: entry.Repo, Path: entry.Path, Err: err})
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordEmitted(ctx)
		}
		if !yield(result, nil) {
			return false
		}
	}
	return true
}

func (s *SearchSession) parseEntry(
	pageIndex int,
	entry valueobject.RawEntry,
	window valueobject.ContextWindow,
) (valueobject.SearchResult, error) {
	result := valueobject.SearchResult{
		Page:         pageIndex,
		Repo:         entry.Repo,
		Path:         entry.Path,
		Branch:       entry.Branch,
		Language:     entry.Language,
		TotalMatches: entry.TotalMatches,
	}
	for _, snippet := range entry.Snippets {
		lines, err := s.parser.Parse(snippet.Fragment, snippet.StartLine, window)
		if err != nil {
			return valueobject.SearchResult{}, err
		}
		result.Lines = append(result.Lines, lines...)
	}
	result.SortLines()
	return result, nil
}
