// Package snippet converts the highlighted HTML fragments returned by the
// code search service into matched lines with byte-accurate match ranges.
//
// Two layouts are understood. grep.app returns a table with one <tr> per
// source line, the line number in a <div class="lineno"> and the line text in
// a <pre>. Any other fragment is treated as plain text, one line per "\n",
// numbered from the caller-supplied base line. In both layouts the match
// boundaries are marker elements (<mark> by default) that are removed from
// the text; every other tag is stripped and HTML entities are decoded, so
// escaped marker-like text such as "&lt;mark&gt;" survives as literal text.
package snippet

import (
	"errors"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/domain/valueobject"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// DefaultMarkerTag is the element grep.app wraps matched text in.
const DefaultMarkerTag = "mark"

const (
	tagRow    = "tr"
	tagPre    = "pre"
	tagDiv    = "div"
	classLine = "lineno"
)

// Option configures a Parser.
type Option func(*Parser)

// WithMarkerTag sets the element name that delimits matched text.
func WithMarkerTag(tag string) Option {
	return func(p *Parser) {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			p.markerTag = tag
		}
	}
}

// Parser extracts LineMatch values from snippet fragments. It holds no
// mutable state and is safe for concurrent use.
type Parser struct {
	markerTag string
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{markerTag: DefaultMarkerTag}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts fragment into the lines that contain at least one match.
// baseLine numbers the first line of fragments that carry no line numbers.
// Up to window.Before()/window.After() neighbouring lines from the fragment
// are attached as context, provided they are contiguous with the match.
func (p *Parser) Parse(
	fragment string,
	baseLine int,
	window valueobject.ContextWindow,
) ([]valueobject.LineMatch, error) {
	lines, err := p.parseLines(fragment, baseLine)
	if err != nil {
		return nil, err
	}
	return attachContext(lines, window), nil
}

func (p *Parser) parseLines(fragment string, baseLine int) ([]parsedLine, error) {
	tokens, err := tokenize(fragment)
	if err != nil {
		return nil, err
	}
	if hasRows(tokens) {
		return p.parseRows(tokens, baseLine)
	}
	return p.parsePlain(tokens, baseLine)
}

type token struct {
	kind  html.TokenType
	name  string
	class string
	text  string
}

type parsedLine struct {
	number int
	text   string
	ranges []valueobject.MatchRange
}

func tokenize(fragment string) ([]token, error) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var tokens []token
	for {
		kind := z.Next()
		switch kind {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return tokens, nil
			}
			return nil, &domain.MalformedSnippetError{Reason: z.Err().Error()}
		case html.TextToken:
			// Text() folds \r and \r\n into \n; Raw() keeps them.
			tokens = append(tokens, token{kind: kind, text: html.UnescapeString(string(z.Raw()))})
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			t := token{kind: kind, name: string(name)}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "class" {
					t.class = string(val)
				}
			}
			tokens = append(tokens, t)
		case html.CommentToken, html.DoctypeToken:
		}
	}
}

func hasRows(tokens []token) bool {
	for _, t := range tokens {
		if t.kind == html.StartTagToken && t.name == tagRow {
			return true
		}
	}
	return false
}

// lineBuilder accumulates the text and ranges of one line while markers open and close.
type lineBuilder struct {
	text      strings.Builder
	ranges    []valueobject.MatchRange
	open      bool
	openStart int
}

func (b *lineBuilder) openMarker(line int) error {
	if b.open {
		return &domain.MalformedSnippetError{Reason: "nested opening marker", Line: line}
	}
	b.open = true
	b.openStart = b.text.Len()
	return nil
}

func (b *lineBuilder) closeMarker(line int) error {
	if !b.open {
		return &domain.MalformedSnippetError{Reason: "closing marker without opening marker", Line: line}
	}
	b.open = false
	b.addRange(b.openStart, b.text.Len())
	return nil
}

func (b *lineBuilder) addRange(start, end int) {
	if end <= start {
		return
	}
	// Markers that abut merge into one range.
	if n := len(b.ranges); n > 0 && b.ranges[n-1].End == start {
		b.ranges[n-1].End = end
		return
	}
	b.ranges = append(b.ranges, valueobject.MatchRange{Start: start, End: end})
}

func (b *lineBuilder) finish(number int) parsedLine {
	return parsedLine{number: number, text: b.text.String(), ranges: b.ranges}
}

func (p *Parser) isMarker(t token) bool {
	return t.name == p.markerTag
}

func (p *Parser) parseRows(tokens []token, baseLine int) ([]parsedLine, error) {
	var (
		lines    []parsedLine
		row      *lineBuilder
		rowIndex int
		hasPre   bool
		preDepth int
		inLineno bool
		lineno   strings.Builder
	)

	rowNumber := func() int {
		if n, err := strconv.Atoi(strings.TrimSpace(lineno.String())); err == nil && n > 0 {
			return n
		}
		return baseLine + rowIndex
	}

	finishRow := func() error {
		if row == nil {
			return nil
		}
		number := rowNumber()
		if row.open {
			return &domain.MalformedSnippetError{Reason: "opening marker without closing marker", Line: number}
		}
		if hasPre {
			lines = append(lines, row.finish(number))
			rowIndex++
		}
		row = nil
		return nil
	}

	for _, t := range tokens {
		switch t.kind {
		case html.StartTagToken:
			switch {
			case t.name == tagRow:
				if err := finishRow(); err != nil {
					return nil, err
				}
				row = &lineBuilder{}
				hasPre, preDepth, inLineno = false, 0, false
				lineno.Reset()
			case row == nil:
			case t.name == tagPre:
				hasPre = true
				preDepth++
			case t.name == tagDiv && hasClass(t.class, classLine):
				inLineno = true
			case p.isMarker(t) && preDepth > 0:
				if err := row.openMarker(rowNumber()); err != nil {
					return nil, err
				}
			}
		case html.EndTagToken:
			switch {
			case t.name == tagRow:
				if err := finishRow(); err != nil {
					return nil, err
				}
			case row == nil:
			case t.name == tagPre && preDepth > 0:
				preDepth--
			case t.name == tagDiv:
				inLineno = false
			case p.isMarker(t) && preDepth > 0:
				if err := row.closeMarker(rowNumber()); err != nil {
					return nil, err
				}
			}
		case html.TextToken:
			switch {
			case row == nil:
			case inLineno:
				lineno.WriteString(t.text)
			case preDepth > 0:
				row.text.WriteString(t.text)
			}
		}
	}

	if err := finishRow(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (p *Parser) parsePlain(tokens []token, baseLine int) ([]parsedLine, error) {
	var lines []parsedLine
	cur := &lineBuilder{}
	number := func() int { return baseLine + len(lines) }

	for _, t := range tokens {
		switch {
		case t.kind == html.StartTagToken && p.isMarker(t):
			if err := cur.openMarker(number()); err != nil {
				return nil, err
			}
		case t.kind == html.EndTagToken && p.isMarker(t):
			if err := cur.closeMarker(number()); err != nil {
				return nil, err
			}
		case t.kind == html.TextToken:
			parts := strings.Split(t.text, "\n")
			for i, part := range parts {
				if i > 0 {
					// A match that spans a line break is split at the break.
					open := cur.open
					if open {
						cur.addRange(cur.openStart, cur.text.Len())
					}
					lines = append(lines, cur.finish(number()))
					cur = &lineBuilder{open: open}
				}
				cur.text.WriteString(part)
			}
		}
	}

	if cur.open {
		return nil, &domain.MalformedSnippetError{Reason: "opening marker without closing marker", Line: number()}
	}
	// A trailing newline terminates the last line rather than starting an empty one.
	if cur.text.Len() > 0 || len(cur.ranges) > 0 {
		lines = append(lines, cur.finish(number()))
	}
	return lines, nil
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func attachContext(lines []parsedLine, window valueobject.ContextWindow) []valueobject.LineMatch {
	var matches []valueobject.LineMatch
	for i, l := range lines {
		if len(l.ranges) == 0 {
			continue
		}
		m := valueobject.LineMatch{Number: l.number, Text: l.text, Ranges: l.ranges}

		want := l.number - 1
		for j := i - 1; j >= 0 && len(m.Before) < window.Before(); j-- {
			if lines[j].number != want {
				break
			}
			m.Before = append(m.Before, valueobject.ContextLine{Number: lines[j].number, Text: lines[j].text})
			want--
		}
		slices.Reverse(m.Before)

		want = l.number + 1
		for j := i + 1; j < len(lines) && len(m.After) < window.After(); j++ {
			if lines[j].number != want {
				break
			}
			m.After = append(m.After, valueobject.ContextLine{Number: lines[j].number, Text: lines[j].text})
			want++
		}

		matches = append(matches, m)
	}
	return matches
}
