package outbound

import (
	"context"
	"grepapp/internal/domain/valueobject"
)

// QueryBuilder translates a search query into wire-level request parameters.
// Implementations must be pure: equal queries always yield equal parameter sets.
type QueryBuilder interface {
	Build(query valueobject.SearchQuery) (valueobject.ParameterSet, error)
}

// PageFetcher retrieves a single page of raw search hits.
// Each call performs exactly one request and never retries on its own.
// Failures are reported as *domain.TransportError, *domain.HTTPStatusError
// or *domain.MalformedResponseError.
type PageFetcher interface {
	FetchPage(ctx context.Context, params valueobject.ParameterSet, page int) (valueobject.RawPage, error)
}

// SnippetParser converts a highlighted snippet fragment into matched lines.
// Unbalanced markers are reported as *domain.MalformedSnippetError.
type SnippetParser interface {
	Parse(fragment string, baseLine int, window valueobject.ContextWindow) ([]valueobject.LineMatch, error)
}
