// Package client is the SDK façade over the grep.app search pipeline. A
// Client wires the query builder, page fetcher and snippet parser into a
// search session, and output.go renders its results for the command line.
package client

import (
	"context"
	"errors"
	"grepapp/internal/adapter/outbound/grepapp"
	"grepapp/internal/adapter/outbound/snippet"
	"grepapp/internal/application/common/retry"
	"grepapp/internal/application/service"
	"grepapp/internal/domain/valueobject"
	"iter"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

// Option customizes a Client.
type Option func(*options)

type options struct {
	httpClient    *http.Client
	retryConfig   *retry.RetryConfig
	meterProvider metric.MeterProvider
	onWarning     service.WarningHandler
	markerTag     string
}

// WithHTTPClient replaces the HTTP client. Its own timeout, if any, applies
// in addition to the configured per-request timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithRetryConfig sets the retry budget for transport failures.
func WithRetryConfig(cfg *retry.RetryConfig) Option {
	return func(o *options) {
		o.retryConfig = cfg
	}
}

// WithMeterProvider records session metrics on provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = provider
	}
}

// WithWarningHandler receives entries skipped because of malformed snippets.
func WithWarningHandler(h service.WarningHandler) Option {
	return func(o *options) {
		o.onWarning = h
	}
}

// WithMarkerTag sets the tag that delimits matches in snippet fragments.
func WithMarkerTag(tag string) Option {
	return func(o *options) {
		o.markerTag = tag
	}
}

// Client searches grep.app.
type Client struct {
	session *service.SearchSession
}

// NewClient creates a new client with the given configuration.
// Returns an error if the configuration is nil or invalid.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	fetcher, err := grepapp.NewFetcher(grepapp.FetcherConfig{
		BaseURL:   config.APIURL,
		UserAgent: config.UserAgent,
		RateLimit: config.RateLimit,
		RateBurst: config.RateBurst,
	}, httpClient)
	if err != nil {
		return nil, err
	}

	var parserOpts []snippet.Option
	if o.markerTag != "" {
		parserOpts = append(parserOpts, snippet.WithMarkerTag(o.markerTag))
	}

	sessionOpts := []service.SessionOption{
		service.WithRetryConfig(o.retryConfig),
		service.WithWarningHandler(o.onWarning),
	}
	if o.meterProvider != nil {
		metrics, err := service.NewSearchMetrics(o.meterProvider)
		if err != nil {
			return nil, err
		}
		sessionOpts = append(sessionOpts, service.WithSessionMetrics(metrics))
	}

	return &Client{
		session: service.NewSearchSession(
			grepapp.NewParamBuilder(),
			fetcher,
			snippet.NewParser(parserOpts...),
			sessionOpts...,
		),
	}, nil
}

// Search returns a lazy, page-ordered sequence of results. A fetch failure
// is the last element of the sequence. Breaking out of the loop cancels the
// fetches still in flight.
func (c *Client) Search(
	ctx context.Context,
	query valueobject.SearchQuery,
	limits valueobject.FetchLimits,
	window valueobject.ContextWindow,
) iter.Seq2[valueobject.SearchResult, error] {
	return c.session.Run(ctx, query, limits, window)
}

// FetchPage fetches and parses a single page of results.
func (c *Client) FetchPage(
	ctx context.Context,
	query valueobject.SearchQuery,
	page int,
	window valueobject.ContextWindow,
) (service.PageResult, error) {
	return c.session.FetchPage(ctx, query, page, window)
}
