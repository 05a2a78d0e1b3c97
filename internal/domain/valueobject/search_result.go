package valueobject

import (
	"slices"
	"strings"
)

// RawSnippet is one highlighted snippet fragment as returned by the service.
// StartLine is the line number of the fragment's first line, used when the
// fragment itself carries no line numbers.
type RawSnippet struct {
	Fragment  string
	StartLine int
}

// RawEntry is one unparsed search hit.
type RawEntry struct {
	Repo         string
	Path         string
	Branch       string
	Language     string
	TotalMatches int64
	Snippets     []RawSnippet
}

// RawPage is one page of unparsed search hits.
type RawPage struct {
	Index   int
	Total   int64
	HasMore bool
	Entries []RawEntry
}

// IsEmpty reports whether the page carries no entries.
func (p RawPage) IsEmpty() bool {
	return len(p.Entries) == 0
}

// MatchRange is a half-open [Start, End) byte range of matched text within a line.
type MatchRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r MatchRange) Len() int {
	return r.End - r.Start
}

// ContextLine is a source line shown next to a match.
type ContextLine struct {
	Number int    `json:"line_number"`
	Text   string `json:"line"`
}

// LineMatch is a single matched source line with its match ranges and context.
type LineMatch struct {
	Number int
	Text   string
	Ranges []MatchRange
	Before []ContextLine
	After  []ContextLine
}

// Valid reports whether every range is non-empty, ordered, non-overlapping
// and within the bounds of the line text.
func (m LineMatch) Valid() bool {
	prevEnd := 0
	for _, r := range m.Ranges {
		if r.Start < prevEnd || r.Start >= r.End || r.End > len(m.Text) {
			return false
		}
		prevEnd = r.End
	}
	return true
}

// Highlight returns the line text with every matched range wrapped in start and end.
func (m LineMatch) Highlight(start, end string) string {
	return m.HighlightFunc(func(s string) string { return start + s + end })
}

// HighlightFunc returns the line text with every matched range passed through style.
func (m LineMatch) HighlightFunc(style func(string) string) string {
	if len(m.Ranges) == 0 {
		return m.Text
	}
	var b strings.Builder
	cursor := 0
	for _, r := range m.Ranges {
		if r.Start > cursor {
			b.WriteString(m.Text[cursor:r.Start])
		}
		b.WriteString(style(m.Text[r.Start:r.End]))
		cursor = r.End
	}
	if cursor < len(m.Text) {
		b.WriteString(m.Text[cursor:])
	}
	return b.String()
}

// MatchedText returns the matched substrings in order.
func (m LineMatch) MatchedText() []string {
	out := make([]string, 0, len(m.Ranges))
	for _, r := range m.Ranges {
		out = append(out, m.Text[r.Start:r.End])
	}
	return out
}

// SearchResult holds the parsed matches for one file hit.
type SearchResult struct {
	Page         int
	Repo         string
	Path         string
	Branch       string
	Language     string
	TotalMatches int64
	Lines        []LineMatch
}

// Location returns "repo/path".
func (r SearchResult) Location() string {
	return r.Repo + "/" + r.Path
}

// SortLines orders Lines by line number, keeping the service order for equal numbers.
func (r *SearchResult) SortLines() {
	slices.SortStableFunc(r.Lines, func(a, b LineMatch) int { return a.Number - b.Number })
}
