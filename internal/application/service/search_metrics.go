package service

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/domain/errors/domain"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by a search session.
const (
	PageFetchCounterName       = "gg_page_fetches_total"
	PageFetchRetryCounterName  = "gg_page_fetch_retries_total"
	PageFetchDurationName      = "gg_page_fetch_duration_seconds"
	ResultsEmittedCounterName  = "gg_results_emitted_total"
	SnippetsSkippedCounterName = "gg_snippets_skipped_total"
	PageFetchInFlightName      = "gg_page_fetches_in_flight"
)

// AttrOutcome labels page fetches by how they ended.
const AttrOutcome = "outcome"

// Fetch outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport_error"
	OutcomeHTTPStatus = "http_status"
	OutcomeMalformed  = "malformed_response"
	OutcomeCancelled  = "cancelled"
	OutcomeOther      = "error"
)

const meterName = "grepapp/search-session"

// SearchMetrics records search session activity with OpenTelemetry.
type SearchMetrics struct {
	fetchCounter    metric.Int64Counter
	retryCounter    metric.Int64Counter
	fetchDuration   metric.Float64Histogram
	emittedCounter  metric.Int64Counter
	skippedCounter  metric.Int64Counter
	inFlightCounter metric.Int64UpDownCounter
}

// NewSearchMetrics creates the session instruments from provider.
// A nil provider uses the global one.
func NewSearchMetrics(provider metric.MeterProvider) (*SearchMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	fetchCounter, err := meter.Int64Counter(
		PageFetchCounterName,
		metric.WithDescription("Total number of page fetch attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", PageFetchCounterName, err)
	}

	retryCounter, err := meter.Int64Counter(
		PageFetchRetryCounterName,
		metric.WithDescription("Total number of page fetch retries after transport failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", PageFetchRetryCounterName, err)
	}

	fetchDuration, err := meter.Float64Histogram(
		PageFetchDurationName,
		metric.WithDescription("Duration of individual page fetch attempts"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", PageFetchDurationName, err)
	}

	emittedCounter, err := meter.Int64Counter(
		ResultsEmittedCounterName,
		metric.WithDescription("Total number of file results emitted to the caller"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", ResultsEmittedCounterName, err)
	}

	skippedCounter, err := meter.Int64Counter(
		SnippetsSkippedCounterName,
		metric.WithDescription("Total number of entries skipped because their snippet could not be parsed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", SnippetsSkippedCounterName, err)
	}

	inFlightCounter, err := meter.Int64UpDownCounter(
		PageFetchInFlightName,
		metric.WithDescription("Number of page fetches currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", PageFetchInFlightName, err)
	}

	return &SearchMetrics{
		fetchCounter:    fetchCounter,
		retryCounter:    retryCounter,
		fetchDuration:   fetchDuration,
		emittedCounter:  emittedCounter,
		skippedCounter:  skippedCounter,
		inFlightCounter: inFlightCounter,
	}, nil
}

// RecordFetch records one fetch attempt.
func (m *SearchMetrics) RecordFetch(ctx context.Context, err error, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, FetchOutcome(err)))
	m.fetchCounter.Add(ctx, 1, attrs)
	m.fetchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetry records one retry of a page fetch.
func (m *SearchMetrics) RecordRetry(ctx context.Context) {
	m.retryCounter.Add(ctx, 1)
}

// RecordEmitted records a file result handed to the caller.
func (m *SearchMetrics) RecordEmitted(ctx context.Context) {
	m.emittedCounter.Add(ctx, 1)
}

// RecordSkipped records an entry dropped because of a malformed snippet.
func (m *SearchMetrics) RecordSkipped(ctx context.Context) {
	m.skippedCounter.Add(ctx, 1)
}

// FetchStarted and FetchFinished bracket an in-flight fetch.
func (m *SearchMetrics) FetchStarted(ctx context.Context) {
	m.inFlightCounter.Add(ctx, 1)
}

// FetchFinished marks the end of a fetch started with FetchStarted.
func (m *SearchMetrics) FetchFinished(ctx context.Context) {
	m.inFlightCounter.Add(ctx, -1)
}

// FetchOutcome classifies a fetch error into an outcome label.
func FetchOutcome(err error) string {
	var (
		transportErr *domain.TransportError
		statusErr    *domain.HTTPStatusError
		malformedErr *domain.MalformedResponseError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.As(err, &statusErr):
		return OutcomeHTTPStatus
	case errors.As(err, &malformedErr):
		return OutcomeMalformed
	case errors.As(err, &transportErr):
		return OutcomeTransport
	default:
		return OutcomeOther
	}
}
