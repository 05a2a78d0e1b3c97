package client

import (
	"encoding/json"
	"fmt"
	"grepapp/internal/domain/valueobject"
	"grepapp/internal/version"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputFormat selects how results are written.
type OutputFormat int

const (
	// FormatText writes grep-style "repo/path:line:content" lines.
	FormatText OutputFormat = iota
	// FormatHeading groups lines under repository and path headings.
	FormatHeading
	// FormatJSON writes one JSON object per matched line.
	FormatJSON
)

// Colour modes accepted by UseColor.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// matchColor is ANSI green.
const matchColor = lipgloss.Color("2")

// ValidColorMode reports whether mode is a known colour mode.
func ValidColorMode(mode string) bool {
	return mode == ColorAuto || mode == ColorAlways || mode == ColorNever
}

// UseColor resolves mode for w. In auto mode colour is used only when w is
// a terminal and NO_COLOR is unset.
func UseColor(mode string, w io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if termenv.EnvNoColor() {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// OutputOptions configures a Renderer.
type OutputOptions struct {
	Format OutputFormat
	Color  bool
	// Limit caps the number of output lines (JSON: objects). Zero means no limit.
	Limit int
}

// Record is the JSON shape of one matched line.
type Record struct {
	Repo        string         `json:"repo"`
	Path        string         `json:"path"`
	Branch      string         `json:"branch"`
	Language    string         `json:"language,omitempty"`
	LineNumber  int            `json:"line_number"`
	Line        string         `json:"line"`
	MatchRanges [][2]int       `json:"match_ranges"`
	Context     *RecordContext `json:"context,omitempty"`
}

// RecordContext carries the context lines of a Record.
type RecordContext struct {
	Before []valueobject.ContextLine `json:"before"`
	After  []valueobject.ContextLine `json:"after"`
}

// NewRecord converts one matched line of result into a Record.
func NewRecord(result valueobject.SearchResult, line valueobject.LineMatch) Record {
	ranges := make([][2]int, 0, len(line.Ranges))
	for _, r := range line.Ranges {
		ranges = append(ranges, [2]int{r.Start, r.End})
	}
	record := Record{
		Repo:        result.Repo,
		Path:        result.Path,
		Branch:      result.Branch,
		Language:    result.Language,
		LineNumber:  line.Number,
		Line:        line.Text,
		MatchRanges: ranges,
	}
	if len(line.Before) > 0 || len(line.After) > 0 {
		record.Context = &RecordContext{
			Before: nonNil(line.Before),
			After:  nonNil(line.After),
		}
	}
	return record
}

func nonNil(lines []valueobject.ContextLine) []valueobject.ContextLine {
	if lines == nil {
		return []valueobject.ContextLine{}
	}
	return lines
}

// outputLine is one source line of a file as printed in text formats.
type outputLine struct {
	number int
	text   string
	match  *valueobject.LineMatch
}

// fileLines merges matched lines and their context into a single ordered
// list in which every source line appears once. A line that is both
// context and a match is printed as a match.
func fileLines(result valueobject.SearchResult) []outputLine {
	byNumber := make(map[int]outputLine)
	for i := range result.Lines {
		line := &result.Lines[i]
		for _, c := range slices.Concat(line.Before, line.After) {
			if _, seen := byNumber[c.Number]; !seen {
				byNumber[c.Number] = outputLine{number: c.Number, text: c.Text}
			}
		}
		if existing, seen := byNumber[line.Number]; !seen || existing.match == nil {
			byNumber[line.Number] = outputLine{number: line.Number, text: line.Text, match: line}
		}
	}

	out := make([]outputLine, 0, len(byNumber))
	for _, l := range byNumber {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b outputLine) int { return a.number - b.number })
	return out
}

// Renderer writes search results to an io.Writer.
type Renderer struct {
	w         io.Writer
	opts      OutputOptions
	highlight func(string) string
	encoder   *json.Encoder
	written   int
	repo      string
	path      string
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts OutputOptions) *Renderer {
	r := &Renderer{
		w:         w,
		opts:      opts,
		highlight: func(s string) string { return s },
		encoder:   json.NewEncoder(w),
	}
	r.encoder.SetEscapeHTML(false)
	if opts.Color {
		lr := lipgloss.NewRenderer(w)
		lr.SetColorProfile(termenv.ANSI)
		style := lr.NewStyle().Foreground(matchColor).TabWidth(lipgloss.NoTabConversion)
		r.highlight = func(s string) string { return style.Render(s) }
	}
	return r
}

// Written returns the number of lines (JSON: objects) written so far.
func (r *Renderer) Written() int {
	return r.written
}

// Done reports whether the output limit has been reached.
func (r *Renderer) Done() bool {
	return r.opts.Limit > 0 && r.written >= r.opts.Limit
}

// Render writes one result. It returns false once the limit is reached, at
// which point the caller should stop searching.
func (r *Renderer) Render(result valueobject.SearchResult) (bool, error) {
	var err error
	switch r.opts.Format {
	case FormatJSON:
		err = r.renderJSON(result)
	case FormatHeading:
		err = r.renderHeading(result)
	default:
		err = r.renderText(result)
	}
	if err != nil {
		return false, err
	}
	return !r.Done(), nil
}

func (r *Renderer) renderJSON(result valueobject.SearchResult) error {
	for _, line := range result.Lines {
		if r.Done() {
			return nil
		}
		if err := r.encoder.Encode(NewRecord(result, line)); err != nil {
			return fmt.Errorf("failed to write JSON record: %w", err)
		}
		r.written++
	}
	return nil
}

func (r *Renderer) renderText(result valueobject.SearchResult) error {
	location := result.Location()
	for _, line := range fileLines(result) {
		if r.Done() {
			return nil
		}
		var err error
		if line.match != nil {
			_, err = fmt.Fprintf(r.w, "%s:%d:%s\n", location, line.number, line.match.HighlightFunc(r.highlight))
		} else {
			_, err = fmt.Fprintf(r.w, "%s-%d-%s\n", location, line.number, line.text)
		}
		if err != nil {
			return err
		}
		r.written++
	}
	return nil
}

func (r *Renderer) renderHeading(result valueobject.SearchResult) error {
	for _, line := range fileLines(result) {
		if r.Done() {
			return nil
		}
		if result.Repo != r.repo {
			r.repo, r.path = result.Repo, ""
			if _, err := fmt.Fprintln(r.w, result.Repo); err != nil {
				return err
			}
		}
		if result.Path != r.path {
			r.path = result.Path
			if _, err := fmt.Fprintf(r.w, "  /%s\n", result.Path); err != nil {
				return err
			}
		}
		var err error
		if line.match != nil {
			_, err = fmt.Fprintf(r.w, "    %d: %s\n", line.number, line.match.HighlightFunc(r.highlight))
		} else {
			_, err = fmt.Fprintf(r.w, "    %d- %s\n", line.number, line.text)
		}
		if err != nil {
			return err
		}
		r.written++
	}
	return nil
}

// WriteError writes err as a single "gg: <message>" line.
func WriteError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s: %v\n", version.ApplicationName, err)
}

// WriteWarning writes a "gg: warning: <message>" line.
func WriteWarning(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s: warning: %s\n", version.ApplicationName, fmt.Sprintf(format, args...))
}
