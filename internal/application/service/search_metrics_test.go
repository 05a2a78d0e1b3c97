package service

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/domain/errors/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

func newTestMetrics(t *testing.T) (*SearchMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewWithAttributes("test")),
	)
	metrics, err := NewSearchMetrics(provider)
	require.NoError(t, err)
	return metrics, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumByOutcome(t *testing.T, m metricdata.Metrics) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64] data type")
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(AttrOutcome))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestFetchOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: OutcomeOK},
		{name: "transport", err: &domain.TransportError{Page: 1, Err: errors.New("reset")}, want: OutcomeTransport},
		{name: "http status", err: &domain.HTTPStatusError{Page: 2, StatusCode: 503}, want: OutcomeHTTPStatus},
		{name: "malformed", err: &domain.MalformedResponseError{Page: 3, Err: errors.New("eof")}, want: OutcomeMalformed},
		{
			name: "wrapped status",
			err:  fmt.Errorf("operation failed after 2 retries: %w", &domain.HTTPStatusError{Page: 1, StatusCode: 500}),
			want: OutcomeHTTPStatus,
		},
		{name: "cancelled transport", err: &domain.TransportError{Page: 1, Err: context.Canceled}, want: OutcomeCancelled},
		{name: "other", err: errors.New("boom"), want: OutcomeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FetchOutcome(tt.err))
		})
	}
}

func TestSearchMetrics_RecordFetch(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	ctx := context.Background()

	metrics.RecordFetch(ctx, nil, 120*time.Millisecond)
	metrics.RecordFetch(ctx, nil, 80*time.Millisecond)
	metrics.RecordFetch(ctx, &domain.TransportError{Page: 3, Err: errors.New("reset")}, time.Second)

	counter, ok := findMetric(t, reader, PageFetchCounterName)
	require.True(t, ok, "expected %s", PageFetchCounterName)
	assert.Equal(t, map[string]int64{OutcomeOK: 2, OutcomeTransport: 1}, sumByOutcome(t, counter))

	durations, ok := findMetric(t, reader, PageFetchDurationName)
	require.True(t, ok, "expected %s", PageFetchDurationName)
	hist, ok := durations.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram[float64] data type")
	var count uint64
	var total float64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(3), count)
	assert.InDelta(t, 1.2, total, 0.001)
}

func TestSearchMetrics_Counters(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	ctx := context.Background()

	metrics.RecordRetry(ctx)
	metrics.RecordRetry(ctx)
	metrics.RecordEmitted(ctx)
	metrics.RecordEmitted(ctx)
	metrics.RecordEmitted(ctx)
	metrics.RecordSkipped(ctx)

	tests := []struct {
		name string
		want int64
	}{
		{PageFetchRetryCounterName, 2},
		{ResultsEmittedCounterName, 3},
		{SnippetsSkippedCounterName, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := findMetric(t, reader, tt.name)
			require.True(t, ok)
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, tt.want, sum.DataPoints[0].Value)
		})
	}
}

func TestSearchMetrics_InFlight(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	ctx := context.Background()

	metrics.FetchStarted(ctx)
	metrics.FetchStarted(ctx)
	metrics.FetchFinished(ctx)

	m, ok := findMetric(t, reader, PageFetchInFlightName)
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	assert.False(t, sum.IsMonotonic)
}

func TestNewSearchMetrics_NilProviderUsesGlobal(t *testing.T) {
	metrics, err := NewSearchMetrics(nil)

	require.NoError(t, err)
	assert.NotPanics(t, func() {
		metrics.RecordFetch(context.Background(), nil, time.Millisecond)
	})
}
