package valueobject

import (
	"fmt"
	"grepapp/internal/domain/errors/domain"
)

// Default fetch budget values.
const (
	DefaultMaxPages    = 10
	DefaultConcurrency = 8
)

// FetchLimits bounds how many result pages a search may fetch and how many
// fetches may be in flight at once.
type FetchLimits struct {
	maxPages    int
	concurrency int
}

// NewFetchLimits creates a new FetchLimits value object.
// Both values must be positive.
func NewFetchLimits(maxPages, concurrency int) (FetchLimits, error) {
	if maxPages < 1 {
		return FetchLimits{}, fmt.Errorf("%w: max pages must be positive, got %d", domain.ErrInvalidFetchLimits, maxPages)
	}
	if concurrency < 1 {
		return FetchLimits{}, fmt.Errorf(
			"%w: concurrency must be positive, got %d",
			domain.ErrInvalidFetchLimits,
			concurrency,
		)
	}
	return FetchLimits{maxPages: maxPages, concurrency: concurrency}, nil
}

// DefaultFetchLimits returns limits of 10 pages with 8 concurrent fetches.
func DefaultFetchLimits() FetchLimits {
	return FetchLimits{maxPages: DefaultMaxPages, concurrency: DefaultConcurrency}
}

// MaxPages returns the page budget. A zero value falls back to the default.
func (l FetchLimits) MaxPages() int {
	if l.maxPages < 1 {
		return DefaultMaxPages
	}
	return l.maxPages
}

// Concurrency returns the requested number of concurrent fetches.
func (l FetchLimits) Concurrency() int {
	if l.concurrency < 1 {
		return DefaultConcurrency
	}
	return l.concurrency
}

// PoolSize returns the effective number of fetch slots: min(concurrency, maxPages).
func (l FetchLimits) PoolSize() int {
	return min(l.Concurrency(), l.MaxPages())
}

// ContextWindow is the number of context lines requested around each match.
type ContextWindow struct {
	before int
	after  int
}

// NewContextWindow creates a ContextWindow. Negative counts are rejected.
func NewContextWindow(before, after int) (ContextWindow, error) {
	if before < 0 || after < 0 {
		return ContextWindow{}, fmt.Errorf(
			"%w: context counts must not be negative, got before=%d after=%d",
			domain.ErrInvalidContextRange,
			before,
			after,
		)
	}
	return ContextWindow{before: before, after: after}, nil
}

// SymmetricContext returns a window with n lines on both sides, clamping
// negative values to zero.
func SymmetricContext(n int) ContextWindow {
	n = max(n, 0)
	return ContextWindow{before: n, after: n}
}

// Before returns the number of lines requested before a match.
func (w ContextWindow) Before() int {
	return w.before
}

// After returns the number of lines requested after a match.
func (w ContextWindow) After() int {
	return w.after
}
