package grepapp

import (
	"fmt"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/domain/valueobject"
)

// Wire parameter names understood by the /api/search endpoint.
const (
	ParamQuery       = "q"
	ParamRegexp      = "regexp"
	ParamWords       = "words"
	ParamCase        = "case"
	ParamRepoPattern = "f.repo.pattern"
	ParamPathPattern = "f.path.pattern"
	ParamLanguage    = "f.lang"
	ParamPage        = "page"

	paramTrue = "true"
)

// ParamBuilder translates a SearchQuery into grep.app request parameters.
type ParamBuilder struct{}

// NewParamBuilder creates a ParamBuilder.
func NewParamBuilder() *ParamBuilder {
	return &ParamBuilder{}
}

// Build returns the parameters for query. It never includes the page number.
// Regex and whole-word matching are mutually exclusive on the wire; when both
// are requested regex wins.
func (b *ParamBuilder) Build(query valueobject.SearchQuery) (valueobject.ParameterSet, error) {
	if query.Pattern() == "" {
		return valueobject.ParameterSet{}, fmt.Errorf("%w: pattern cannot be empty", domain.ErrInvalidQuery)
	}

	params := valueobject.NewParameterSet().With(ParamQuery, query.Pattern())
	switch {
	case query.IsRegex():
		params = params.With(ParamRegexp, paramTrue)
	case query.IsWholeWords():
		params = params.With(ParamWords, paramTrue)
	}
	if query.IsCaseSensitive() {
		params = params.With(ParamCase, paramTrue)
	}
	if repo := query.RepoFilter(); repo != "" {
		params = params.With(ParamRepoPattern, repo)
	}
	if path := query.PathFilter(); path != "" {
		params = params.With(ParamPathPattern, path)
	}
	for _, lang := range query.Languages() {
		params = params.With(ParamLanguage, lang)
	}
	return params, nil
}
