// Package commands provides the gg command line. The root command is the
// search itself: gg PATTERN [flags].
package commands

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/client"
	"grepapp/internal/domain/errors/domain"
	"grepapp/internal/version"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Flag names.
const (
	flagRegex         = "regex"
	flagWord          = "word"
	flagCaseSensitive = "case-sensitive"
	flagRepo          = "repo"
	flagPath          = "path"
	flagLang          = "lang"
	flagJSON          = "json"
	flagNoColor       = "no-color"
	flagHeading       = "heading"
	flagMaxPages      = "max-pages"
	flagConcurrency   = "concurrency"
	flagLimit         = "limit"
	flagContext       = "context"
	flagTimeout       = "timeout"
	flagConfig        = "config"
	flagLogLevel      = "log-level"
	flagStats         = "stats"
	flagListLanguages = "list-languages"
	flagBaseURL       = "base-url"
)

// flagKeys maps flags onto configuration keys. A flag given on the command
// line overrides the environment and the config file.
var flagKeys = map[string]string{ //nolint:gochecknoglobals // static lookup table
	flagMaxPages:    "search.max_pages",
	flagConcurrency: "search.concurrency",
	flagContext:     "search.context",
	flagTimeout:     "api.timeout",
	flagBaseURL:     "api.base_url",
	flagLogLevel:    "log.level",
}

// usageError marks failures caused by how gg was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// NewRootCmd creates the gg command.
func NewRootCmd() *cobra.Command {
	info := version.GetVersion()
	cmd := &cobra.Command{
		Use:   "gg PATTERN [flags]",
		Short: "Search public code on grep.app",
		Long: `gg searches source code indexed by grep.app and prints matching lines
grep-style, grouped under headings, or as JSON objects.

Results arrive in the service's ranking order. Up to --max-pages pages of
10 files each are fetched, --concurrency at a time.`,
		Example: `  gg 'func main' --lang Go
  gg -r 'fn\s+\w+_test' --repo rust-lang/ --heading
  gg TODO --path '\.py$' --json --limit 20`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool(flagListLanguages); list {
				return nil
			}
			if len(args) != 1 {
				return usageErrorf("expected exactly one PATTERN argument, got %d", len(args))
			}
			return nil
		},
		RunE: runSearch,
	}
	cmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}}\n", version.ApplicationName))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := cmd.Flags()
	flags.BoolP(flagRegex, "r", false, "Treat PATTERN as a regular expression")
	flags.BoolP(flagWord, "w", false, "Match whole words only")
	flags.BoolP(flagCaseSensitive, "s", false, "Match case exactly")
	flags.String(flagRepo, "", "Only search repositories matching this pattern")
	flags.String(flagPath, "", "Only search file paths matching this pattern")
	flags.StringSlice(flagLang, nil, "Only search these languages (repeat or comma-separate)")
	flags.Bool(flagJSON, false, "Print one JSON object per matched line")
	flags.Bool(flagNoColor, false, "Disable match highlighting")
	flags.Bool(flagHeading, false, "Group matches under repository and file headings")
	flags.Int(flagMaxPages, 10, "Maximum number of pages to fetch (10 files per page, at most 100)")
	flags.Int(flagConcurrency, 8, "Maximum number of concurrent page requests")
	flags.Int(flagLimit, 0, "Stop after this many output lines (0 for no limit)")
	flags.IntP(flagContext, "C", 0, "Show up to N lines of context around matches, as far as the snippet allows")
	flags.Duration(flagTimeout, client.DefaultTimeout, "Timeout for each page request")
	flags.String(flagConfig, "", "Config file (default $XDG_CONFIG_HOME/gg/config.yaml)")
	flags.String(flagLogLevel, "warn", "Log level (debug, info, warn, error)")
	flags.Bool(flagStats, false, "Print request statistics to stderr when done")
	flags.Bool(flagListLanguages, false, "List the language names accepted by --lang and exit")
	flags.String(flagBaseURL, client.DefaultAPIURL, "Search service base URL")
	_ = flags.MarkHidden(flagBaseURL)

	return cmd
}

// bindFlags attaches the command's flags to v.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding %s flag: %w", flag, err)
		}
	}
	return nil
}

// Execute runs gg with args and returns the process exit code. Errors are
// reported on stderr as a single "gg: <message>" line.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	client.WriteError(stderr, err)
	return exitCode(err)
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case errors.As(err, &usage),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidFetchLimits),
		errors.Is(err, domain.ErrInvalidContextRange):
		return ExitUsage
	default:
		return ExitFailure
	}
}
