package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineMatch_Highlight(t *testing.T) {
	m := LineMatch{
		Number: 3,
		Text:   "let foo = foo();",
		Ranges: []MatchRange{{Start: 4, End: 7}, {Start: 10, End: 13}},
	}

	assert.Equal(t, "let [foo] = [foo]();", m.Highlight("[", "]"))
	assert.Equal(t, []string{"foo", "foo"}, m.MatchedText())
	assert.True(t, m.Valid())
}

func TestLineMatch_HighlightWithoutRanges(t *testing.T) {
	m := LineMatch{Number: 1, Text: "plain"}

	assert.Equal(t, "plain", m.Highlight("<", ">"))
	assert.Empty(t, m.MatchedText())
	assert.True(t, m.Valid())
}

func TestLineMatch_Valid(t *testing.T) {
	tests := []struct {
		name   string
		ranges []MatchRange
		want   bool
	}{
		{name: "range at end of line", ranges: []MatchRange{{Start: 3, End: 6}}, want: true},
		{name: "range past end of line", ranges: []MatchRange{{Start: 3, End: 7}}, want: false},
		{name: "empty range", ranges: []MatchRange{{Start: 2, End: 2}}, want: false},
		{name: "overlapping ranges", ranges: []MatchRange{{Start: 0, End: 3}, {Start: 2, End: 4}}, want: false},
		{name: "adjacent ranges", ranges: []MatchRange{{Start: 0, End: 3}, {Start: 3, End: 4}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineMatch{Text: "foobar", Ranges: tt.ranges}.Valid())
		})
	}
}

func TestSearchResult_SortLinesIsStable(t *testing.T) {
	r := SearchResult{
		Repo: "owner/repo",
		Path: "main.go",
		Lines: []LineMatch{
			{Number: 9, Text: "c"},
			{Number: 2, Text: "a"},
			{Number: 9, Text: "d"},
			{Number: 4, Text: "b"},
		},
	}

	r.SortLines()

	var texts []string
	for _, l := range r.Lines {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts)
	assert.Equal(t, "owner/repo/main.go", r.Location())
}

func TestRawPage_IsEmpty(t *testing.T) {
	assert.True(t, RawPage{Index: 1}.IsEmpty())
	assert.False(t, RawPage{Index: 1, Entries: []RawEntry{{Repo: "a/b"}}}.IsEmpty())
}
