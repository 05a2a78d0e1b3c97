// Package grepapp implements the outbound search ports against the grep.app
// HTTP API: ParamBuilder encodes queries into request parameters and Fetcher
// retrieves one page of raw hits per call.
package grepapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"grepapp/internal/adapter/outbound/language"
	"grepapp/internal/application/common/slogger"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/domain/valueobject"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public grep.app endpoint.
	DefaultBaseURL = "https://grep.app"

	// PageSize is the number of hits the service returns per page.
	PageSize = 10

	// MaxPagesCap is the deepest page the service will serve.
	MaxPagesCap = 100

	searchPath      = "/api/search"
	contentTypeJSON = "application/json"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 8 << 20

	// maxErrorMessageLen bounds the body excerpt used in HTTP status errors.
	maxErrorMessageLen = 200
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// BaseURL is the service root, e.g. "https://grep.app".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// RateLimit is the maximum number of requests per second. Zero disables throttling.
	RateLimit float64

	// RateBurst is the token bucket size used with RateLimit.
	RateBurst int
}

// Fetcher implements outbound.PageFetcher over HTTP.
type Fetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	languages  *language.Registry
	tracer     trace.Tracer
}

// NewFetcher creates a Fetcher. A nil httpClient gets a client with no
// timeout of its own; per-page deadlines then come from the caller's context.
func NewFetcher(cfg FetcherConfig, httpClient *http.Client) (*Fetcher, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("base URL must have http:// or https:// scheme, got %q", cfg.BaseURL)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Fetcher{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		limiter:    newLimiter(cfg.RateLimit, cfg.RateBurst),
		languages:  language.Default(),
		tracer:     otel.Tracer("grepapp-fetcher"),
	}, nil
}

// newLimiter returns nil when throttling is disabled.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}

// PageURL returns the request URL for the given parameters and page.
func (f *Fetcher) PageURL(params valueobject.ParameterSet, page int) string {
	return f.baseURL + searchPath + "?" + params.With(ParamPage, fmt.Sprint(page)).Encode()
}

// FetchPage performs exactly one GET for page and decodes the hits.
// It never retries.
func (f *Fetcher) FetchPage(
	ctx context.Context,
	params valueobject.ParameterSet,
	page int,
) (valueobject.RawPage, error) {
	ctx, span := f.tracer.Start(ctx, "grepapp.FetchPage", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	rawPage, err := f.fetchPage(ctx, params, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return valueobject.RawPage{}, err
	}
	span.SetAttributes(attribute.Int("entries", len(rawPage.Entries)), attribute.Int64("total", rawPage.Total))
	return rawPage, nil
}

func (f *Fetcher) fetchPage(
	ctx context.Context,
	params valueobject.ParameterSet,
	page int,
) (valueobject.RawPage, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return valueobject.RawPage{}, &domain.TransportError{Page: page, Err: err}
		}
	}

	pageURL := f.PageURL(params, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return valueobject.RawPage{}, fmt.Errorf("failed to build request for page %d: %w", page, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", contentTypeJSON)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return valueobject.RawPage{}, &domain.TransportError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return valueobject.RawPage{}, &domain.TransportError{Page: page, Err: err}
	}

	slogger.Debug(ctx, "Fetched search page", slogger.Fields{
		"page":        page,
		"status":      resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return valueobject.RawPage{}, &domain.HTTPStatusError{
			Page:       page,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	return f.decodePage(body, page)
}

func (f *Fetcher) decodePage(body []byte, page int) (valueobject.RawPage, error) {
	var doc searchResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return valueobject.RawPage{}, &domain.MalformedResponseError{Page: page, Err: err}
	}
	if doc.Hits == nil {
		return valueobject.RawPage{}, &domain.MalformedResponseError{
			Page: page,
			Err:  errors.New(`missing "hits" object`),
		}
	}

	total := int64(doc.Hits.Total)
	rawPage := valueobject.RawPage{
		Index:   page,
		Total:   total,
		HasMore: page < MaxPagesCap && int64(page)*PageSize < total,
		Entries: make([]valueobject.RawEntry, 0, len(doc.Hits.Hits)),
	}
	for _, hit := range doc.Hits.Hits {
		entry := valueobject.RawEntry{
			Repo:         string(hit.Repo),
			Path:         string(hit.Path),
			Branch:       string(hit.Branch),
			Language:     string(hit.Lang),
			TotalMatches: int64(hit.TotalMatches),
		}
		if entry.Language == "" {
			entry.Language = f.languages.DetectFromPath(entry.Path)
		}
		if hit.Content.Snippet != "" {
			entry.Snippets = []valueobject.RawSnippet{{Fragment: hit.Content.Snippet, StartLine: 1}}
		}
		rawPage.Entries = append(rawPage.Entries, entry)
	}
	return rawPage, nil
}

// errorMessage extracts a human-readable message from an error response body.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}

	msg := strings.Join(strings.Fields(string(bytes.ToValidUTF8(body, nil))), " ")
	if len(msg) > maxErrorMessageLen {
		msg = strings.ToValidUTF8(msg[:maxErrorMessageLen], "") + "..."
	}
	return msg
}
