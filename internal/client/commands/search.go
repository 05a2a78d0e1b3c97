package commands

import (
	"context"
	"fmt"
	"grepapp/internal/adapter/outbound/grepapp"
	"grepapp/internal/adapter/outbound/language"
	"grepapp/internal/adapter/outbound/telemetry"
	"grepapp/internal/application/common/slogger"
	"grepapp/internal/application/service"
	"grepapp/internal/client"
	"grepapp/internal/config"
	"grepapp/internal/domain/valueobject"
	"grepapp/internal/version"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// searchFlags holds the flags that are not configuration keys.
type searchFlags struct {
	regex, word, caseSensitive bool
	repo, path                 string
	languages                  []string
	json, noColor, heading     bool
	limit                      int
	configFile                 string
	stats, listLanguages       bool
}

func readSearchFlags(cmd *cobra.Command) searchFlags {
	flags := cmd.Flags()
	var f searchFlags
	f.regex, _ = flags.GetBool(flagRegex)
	f.word, _ = flags.GetBool(flagWord)
	f.caseSensitive, _ = flags.GetBool(flagCaseSensitive)
	f.repo, _ = flags.GetString(flagRepo)
	f.path, _ = flags.GetString(flagPath)
	f.languages, _ = flags.GetStringSlice(flagLang)
	f.json, _ = flags.GetBool(flagJSON)
	f.noColor, _ = flags.GetBool(flagNoColor)
	f.heading, _ = flags.GetBool(flagHeading)
	f.limit, _ = flags.GetInt(flagLimit)
	f.configFile, _ = flags.GetString(flagConfig)
	f.stats, _ = flags.GetBool(flagStats)
	f.listLanguages, _ = flags.GetBool(flagListLanguages)
	return f
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	f := readSearchFlags(cmd)

	v := viper.New()
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	cfg, err := config.Load(v, f.configFile)
	if err != nil {
		return usageError{err: err}
	}
	logConfig := cfg.Logging()
	logConfig.Writer = stderr
	if err := slogger.Configure(logConfig); err != nil {
		return usageError{err: err}
	}

	registry := language.Default()
	if f.listLanguages {
		for _, name := range registry.Names() {
			if _, err := fmt.Fprintln(stdout, name); err != nil {
				return err
			}
		}
		return nil
	}

	query, err := buildQuery(args[0], f, registry, stderr)
	if err != nil {
		return err
	}

	if f.limit < 0 {
		return usageErrorf("--limit must not be negative, got %d", f.limit)
	}
	if f.json && f.heading {
		return usageErrorf("--json and --heading cannot be used together")
	}
	maxPages := min(cfg.Search.MaxPages, grepapp.MaxPagesCap)
	limits, err := valueobject.NewFetchLimits(maxPages, cfg.Search.Concurrency)
	if err != nil {
		return err
	}
	window := valueobject.SymmetricContext(cfg.Search.Context)

	opts := []client.Option{
		client.WithRetryConfig(&cfg.Retry),
		client.WithWarningHandler(func(_ context.Context, w service.Warning) {
			client.WriteWarning(stderr, "skipping %s/%s: %v", w.Repo, w.Path, w.Err)
		}),
	}
	var collector *telemetry.Collector
	if f.stats {
		collector, err = telemetry.NewCollector(ctx, version.ApplicationName, version.GetVersion().Version)
		if err != nil {
			return err
		}
		defer func() { _ = collector.Shutdown(context.WithoutCancel(ctx)) }()
		opts = append(opts, client.WithMeterProvider(collector.MeterProvider()))
	}

	c, err := client.NewClient(clientConfig(cfg), opts...)
	if err != nil {
		return usageError{err: err}
	}

	renderer := client.NewRenderer(stdout, outputOptions(f, cfg, stdout))
	searchErr := render(ctx, c, renderer, query, limits, window)

	if collector != nil {
		stats, err := collector.Snapshot(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "%s: stats: %s\n", version.ApplicationName, stats)
	}
	return searchErr
}

// render streams results into renderer until the search ends, fails or the
// output limit is reached. Leaving the loop early cancels pending fetches.
func render(
	ctx context.Context,
	c *client.Client,
	renderer *client.Renderer,
	query valueobject.SearchQuery,
	limits valueobject.FetchLimits,
	window valueobject.ContextWindow,
) error {
	for result, err := range c.Search(ctx, query, limits, window) {
		if err != nil {
			return err
		}
		more, err := renderer.Render(result)
		if err != nil {
			return err
		}
		if !more {
			slogger.Debug(ctx, "Output limit reached", slogger.Field("lines", renderer.Written()))
			return nil
		}
	}
	return nil
}

func buildQuery(pattern string, f searchFlags, registry *language.Registry, stderr io.Writer) (valueobject.SearchQuery, error) {
	if f.regex && f.word {
		return valueobject.SearchQuery{}, usageErrorf("--regex and --word cannot be used together")
	}
	query, err := valueobject.NewSearchQuery(pattern)
	if err != nil {
		return valueobject.SearchQuery{}, err
	}

	languages := make([]string, 0, len(f.languages))
	for _, lang := range f.languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if !registry.IsSupported(lang) {
			if suggestion, ok := registry.Suggest(lang); ok {
				client.WriteWarning(stderr, "unknown language %q, did you mean %q?", lang, suggestion)
			} else {
				client.WriteWarning(stderr, "unknown language %q, see --list-languages", lang)
			}
		}
		languages = append(languages, lang)
	}

	return query.
		WithRegex(f.regex).
		WithWholeWords(f.word).
		WithCaseSensitive(f.caseSensitive).
		WithRepoFilter(f.repo).
		WithPathFilter(f.path).
		WithLanguages(languages...), nil
}

func clientConfig(cfg *config.Config) *client.Config {
	cc := client.DefaultConfig()
	cc.APIURL = cfg.API.BaseURL
	cc.Timeout = cfg.API.Timeout
	cc.RateLimit = cfg.API.RateLimit
	cc.RateBurst = cfg.API.RateBurst
	if cfg.API.UserAgent != "" {
		cc.UserAgent = cfg.API.UserAgent
	}
	return &cc
}

func outputOptions(f searchFlags, cfg *config.Config, stdout io.Writer) client.OutputOptions {
	opts := client.OutputOptions{Format: client.FormatText, Limit: f.limit}
	switch {
	case f.json:
		opts.Format = client.FormatJSON
	case f.heading:
		opts.Format = client.FormatHeading
	}
	opts.Color = !f.json && !f.noColor && client.UseColor(cfg.Output.Color, stdout)
	return opts
}
