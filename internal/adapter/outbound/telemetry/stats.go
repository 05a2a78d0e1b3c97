// Package telemetry owns the in-process OpenTelemetry meter provider used to
// summarize a search run. Nothing is exported over the network; the manual
// reader is collected once when the run finishes.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/application/service"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Collector wraps a meter provider backed by a manual reader.
type Collector struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewCollector creates a Collector whose resource carries the service name
// and version.
func NewCollector(ctx context.Context, serviceName, serviceVersion string) (*Collector, error) {
	if serviceName == "" {
		return nil, errors.New("service name cannot be empty")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return &Collector{reader: reader, provider: provider}, nil
}

// MeterProvider returns the provider instruments should be created from.
func (c *Collector) MeterProvider() metric.MeterProvider {
	return c.provider
}

// Shutdown releases the provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

// Stats summarizes one search run.
type Stats struct {
	Fetches       map[string]int64
	Retries       int64
	Emitted       int64
	Skipped       int64
	fetchCount    uint64
	fetchDuration float64
}

// TotalFetches returns the number of fetch attempts of any outcome.
func (s Stats) TotalFetches() int64 {
	var total int64
	for _, n := range s.Fetches {
		total += n
	}
	return total
}

// MeanFetchDuration returns the average duration of a fetch attempt.
func (s Stats) MeanFetchDuration() time.Duration {
	if s.fetchCount == 0 {
		return 0
	}
	return time.Duration(s.fetchDuration / float64(s.fetchCount) * float64(time.Second))
}

// String renders the summary on one line, outcomes in name order.
func (s Stats) String() string {
	outcomes := make([]string, 0, len(s.Fetches))
	for outcome := range s.Fetches {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	var b strings.Builder
	fmt.Fprintf(&b, "fetches=%d", s.TotalFetches())
	for _, outcome := range outcomes {
		fmt.Fprintf(&b, " %s=%d", outcome, s.Fetches[outcome])
	}
	fmt.Fprintf(&b, " retries=%d results=%d skipped=%d mean_fetch=%s",
		s.Retries, s.Emitted, s.Skipped, s.MeanFetchDuration().Round(time.Millisecond))
	return b.String()
}

// Snapshot collects the current values of the search session instruments.
func (c *Collector) Snapshot(ctx context.Context) (Stats, error) {
	var data metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &data); err != nil {
		return Stats{}, fmt.Errorf("failed to collect metrics: %w", err)
	}

	stats := Stats{Fetches: make(map[string]int64)}
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch m.Name {
			case service.PageFetchCounterName:
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, dp := range sum.DataPoints {
						outcome, _ := dp.Attributes.Value(attribute.Key(service.AttrOutcome))
						stats.Fetches[outcome.AsString()] += dp.Value
					}
				}
			case service.PageFetchRetryCounterName:
				stats.Retries += sumInt64(m)
			case service.ResultsEmittedCounterName:
				stats.Emitted += sumInt64(m)
			case service.SnippetsSkippedCounterName:
				stats.Skipped += sumInt64(m)
			case service.PageFetchDurationName:
				if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
					for _, dp := range hist.DataPoints {
						stats.fetchCount += dp.Count
						stats.fetchDuration += dp.Sum
					}
				}
			}
		}
	}
	return stats, nil
}

func sumInt64(m metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}
