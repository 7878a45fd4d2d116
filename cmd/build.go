package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/builder"
	"github.com/sells-group/citycache/internal/cachefile"
	"github.com/sells-group/citycache/internal/config"
	"github.com/sells-group/citycache/internal/pacer"
	"github.com/sells-group/citycache/internal/resilience"
	"github.com/sells-group/citycache/pkg/nominatim"
)

// buildOpts are the build settings after flags are applied over config.
type buildOpts struct {
	CachePath  string
	MinDelay   time.Duration
	GroupPause time.Duration
	SkipMode   builder.SkipMode
	Sinks      []string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Resolve every uncached name in a group table",
	Long: `Resolve every name in the group table that the cache does not hold yet.

Groups are processed in table order and the cache is saved after each one, so
an interrupted build resumes where it stopped. Lookups are spaced at least
--min-delay apart with an extra --group-pause between groups. Names that
cannot be resolved are logged, written to the failure ledger and retried on
the next run. After the last group the cache is copied to every --sink.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("build"); err != nil {
			return err
		}

		opts, err := parseBuildOpts(cmd, cfg)
		if err != nil {
			return err
		}

		table, err := loadTable(cmd, cfg)
		if err != nil {
			return err
		}

		metrics, reg, err := newMetrics()
		if err != nil {
			return err
		}
		defer flushMetrics(cfg, reg)

		client := nominatim.NewClient(cfg.Nominatim.UserAgent,
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithRateLimit(cfg.Nominatim.RateLimit),
			nominatim.WithEmail(cfg.Nominatim.Email),
			nominatim.WithLanguage(cfg.Nominatim.Language),
		)

		bopts := []builder.Option{
			builder.WithRetry(retryConfig(cfg)),
			builder.WithSkipMode(opts.SkipMode),
			builder.WithMetrics(metrics),
			builder.WithSinks(opts.Sinks...),
		}

		led, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		if led != nil {
			defer led.Close() //nolint:errcheck
			bopts = append(bopts, builder.WithLedger(led))
		}

		b := builder.New(
			cachefile.New(opts.CachePath),
			builder.NewNominatimLookup(client),
			pacer.New(opts.MinDelay, opts.GroupPause),
			bopts...,
		)

		zap.L().Info("starting build",
			zap.String("cache", opts.CachePath),
			zap.Int("groups", len(table)),
			zap.Int("names", table.NameCount()),
			zap.Duration("min_delay", opts.MinDelay),
			zap.Duration("group_pause", opts.GroupPause),
			zap.String("skip_mode", string(opts.SkipMode)),
		)

		if _, err := b.Run(ctx, table); err != nil {
			return eris.Wrap(err, "build")
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().String("groups", "", "group table file (.yaml, .json or .js)")
	buildCmd.Flags().String("cache", "", "cache file (default cache.path)")
	buildCmd.Flags().String("country", "", "country for groups that do not name one, e.g. \"United States\" for a state table")
	buildCmd.Flags().String("only", "", "comma-separated group keys to process")
	buildCmd.Flags().Duration("min-delay", 0, "minimum delay between lookups (default throttle.min_delay)")
	buildCmd.Flags().Duration("group-pause", 0, "extra pause before each new group (default throttle.group_pause)")
	buildCmd.Flags().String("skip-mode", "", "precise or count (default builder.skip_mode)")
	buildCmd.Flags().StringSlice("sink", nil, "copy the finished cache here (repeatable, default cache.sinks)")
	rootCmd.AddCommand(buildCmd)
}

// parseBuildOpts applies the build flags over the configured values.
func parseBuildOpts(cmd *cobra.Command, c *config.Config) (buildOpts, error) {
	opts := buildOpts{
		CachePath:  cachePath(cmd, c),
		MinDelay:   c.Throttle.MinDelay,
		GroupPause: c.Throttle.GroupPause,
		Sinks:      sinkPaths(cmd, c),
	}

	if cmd.Flags().Changed("min-delay") {
		opts.MinDelay, _ = cmd.Flags().GetDuration("min-delay")
	}
	if cmd.Flags().Changed("group-pause") {
		opts.GroupPause, _ = cmd.Flags().GetDuration("group-pause")
	}
	if opts.MinDelay < 0 || opts.GroupPause < 0 {
		return buildOpts{}, eris.New("build: delays must be >= 0")
	}

	mode := c.Builder.SkipMode
	if cmd.Flags().Changed("skip-mode") {
		mode, _ = cmd.Flags().GetString("skip-mode")
	}
	sm, err := builder.ParseSkipMode(mode)
	if err != nil {
		return buildOpts{}, err
	}
	opts.SkipMode = sm

	return opts, nil
}

// retryConfig layers the retry.* settings over the default policy.
func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromConfig(resilience.DefaultRetryConfig(),
		c.Retry.MaxAttempts, c.Retry.InitialBackoff, c.Retry.MaxBackoff, c.Retry.Multiplier)
}
