package valueobject

import (
	"fmt"
	"grepapp/internal/domain/errors/domain"
	"slices"
)

// SearchQuery represents a code search request against the remote service.
// It is immutable: every With* method returns a modified copy and the
// receiver is never changed.
type SearchQuery struct {
	pattern       string
	regex         bool
	caseSensitive bool
	wholeWords    bool
	repoFilter    string
	pathFilter    string
	languages     []string
}

// NewSearchQuery creates a new SearchQuery value object.
// The pattern is required; an empty pattern yields domain.ErrInvalidQuery.
func NewSearchQuery(pattern string) (SearchQuery, error) {
	if pattern == "" {
		return SearchQuery{}, fmt.Errorf("%w: pattern cannot be empty", domain.ErrInvalidQuery)
	}
	return SearchQuery{pattern: pattern}, nil
}

// WithRegex returns a copy that treats the pattern as a regular expression.
func (q SearchQuery) WithRegex(regex bool) SearchQuery {
	q.regex = regex
	return q
}

// WithCaseSensitive returns a copy with case sensitivity set.
func (q SearchQuery) WithCaseSensitive(caseSensitive bool) SearchQuery {
	q.caseSensitive = caseSensitive
	return q
}

// WithWholeWords returns a copy that only matches on word boundaries.
func (q SearchQuery) WithWholeWords(wholeWords bool) SearchQuery {
	q.wholeWords = wholeWords
	return q
}

// WithRepoFilter returns a copy restricted to repositories matching filter.
func (q SearchQuery) WithRepoFilter(filter string) SearchQuery {
	q.repoFilter = filter
	return q
}

// WithPathFilter returns a copy restricted to file paths matching filter.
func (q SearchQuery) WithPathFilter(filter string) SearchQuery {
	q.pathFilter = filter
	return q
}

// WithLanguages returns a copy restricted to the given languages.
// Empty names are ignored.
func (q SearchQuery) WithLanguages(languages ...string) SearchQuery {
	merged := slices.Clone(q.languages)
	for _, lang := range languages {
		if lang != "" {
			merged = append(merged, lang)
		}
	}
	q.languages = merged
	return q
}

// Pattern returns the search pattern.
func (q SearchQuery) Pattern() string {
	return q.pattern
}

// IsRegex returns true if the pattern is a regular expression.
func (q SearchQuery) IsRegex() bool {
	return q.regex
}

// IsCaseSensitive returns true if matching is case sensitive.
func (q SearchQuery) IsCaseSensitive() bool {
	return q.caseSensitive
}

// IsWholeWords returns true if matches must fall on word boundaries.
func (q SearchQuery) IsWholeWords() bool {
	return q.wholeWords
}

// RepoFilter returns the repository filter (empty means none).
func (q SearchQuery) RepoFilter() string {
	return q.repoFilter
}

// PathFilter returns the path filter (empty means none).
func (q SearchQuery) PathFilter() string {
	return q.pathFilter
}

// Languages returns a copy of the language filters.
func (q SearchQuery) Languages() []string {
	return slices.Clone(q.languages)
}

// Equal reports whether two queries describe the same search.
func (q SearchQuery) Equal(other SearchQuery) bool {
	return q.pattern == other.pattern &&
		q.regex == other.regex &&
		q.caseSensitive == other.caseSensitive &&
		q.wholeWords == other.wholeWords &&
		q.repoFilter == other.repoFilter &&
		q.pathFilter == other.pathFilter &&
		slices.Equal(q.languages, other.languages)
}

// String returns a human-readable representation of the query.
func (q SearchQuery) String() string {
	return fmt.Sprintf(
		"SearchQuery{pattern: %q, regex: %t, case: %t, words: %t, repo: %q, path: %q, langs: %v}",
		q.pattern, q.regex, q.caseSensitive, q.wholeWords, q.repoFilter, q.pathFilter, q.languages,
	)
}
