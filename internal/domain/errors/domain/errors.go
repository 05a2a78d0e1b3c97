// Package domain provides domain-specific error definitions and utilities.
package domain

import (
	"errors"
	"fmt"
)

// Query-related errors.
var (
	ErrInvalidQuery        = errors.New("invalid query")
	ErrInvalidFetchLimits  = errors.New("invalid fetch limits")
	ErrInvalidContextRange = errors.New("invalid context window")
)

// TransportError reports a failed round trip to the search service:
// connection refused, reset, timeout or an interrupted body read.
// It is the only fetch failure that is retried.
type TransportError struct {
	Page int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure fetching page %d: %v", e.Page, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-2xx response. It is never retried.
type HTTPStatusError struct {
	Page       int
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("search service returned HTTP %d for page %d", e.StatusCode, e.Page)
	}
	return fmt.Sprintf("search service returned HTTP %d for page %d: %s", e.StatusCode, e.Page, e.Message)
}

// MalformedResponseError reports a response body that could not be decoded
// into a result page.
type MalformedResponseError struct {
	Page int
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response for page %d: %v", e.Page, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// MalformedSnippetError reports unbalanced match markers in a snippet
// fragment. It is scoped to a single entry and never aborts a search.
type MalformedSnippetError struct {
	Reason string
	Line   int
}

func (e *MalformedSnippetError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed snippet at line %d: %s", e.Line, e.Reason)
	}
	return "malformed snippet: " + e.Reason
}

// IsFetchFailure reports whether err belongs to the fetch-layer taxonomy.
func IsFetchFailure(err error) bool {
	var transportErr *TransportError
	var statusErr *HTTPStatusError
	var malformedErr *MalformedResponseError
	return errors.As(err, &transportErr) || errors.As(err, &statusErr) || errors.As(err, &malformedErr)
}
