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
	"github.com/sells-group/citycache/pkg/overpass"
)

// expandOpts are the expand settings after flags are applied over config.
type expandOpts struct {
	CachePath  string
	Target     int
	AdminLevel int
	GroupPause time.Duration
	Sinks      []string
}

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Top groups up to a target size from OpenStreetMap places",
	Long: `Query Overpass for the cities, towns and villages inside each group's
administrative area and append the most important ones until the group holds
--target records. Existing records are kept. Places are ranked by type, then
population, then name. The cache is saved after every group that grew.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("expand"); err != nil {
			return err
		}

		opts, err := parseExpandOpts(cmd, cfg)
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

		client := overpass.NewClient(cfg.Nominatim.UserAgent,
			overpass.WithURL(cfg.Overpass.URL),
			overpass.WithAdminLevel(opts.AdminLevel),
		)
		store := cachefile.New(opts.CachePath)
		e := builder.NewExpander(store, client,
			pacer.New(0, opts.GroupPause),
			builder.WithMetrics(metrics),
		)

		zap.L().Info("starting expansion",
			zap.String("cache", opts.CachePath),
			zap.Int("groups", len(table)),
			zap.Int("target", opts.Target),
			zap.Int("admin_level", opts.AdminLevel),
		)

		if _, err := e.Run(ctx, table, opts.Target); err != nil {
			return eris.Wrap(err, "expand")
		}

		if len(opts.Sinks) > 0 {
			written, err := cachefile.Distribute(ctx, store.Path(), opts.Sinks)
			if err != nil {
				return eris.Wrap(err, "expand: distribute")
			}
			zap.L().Info("cache distributed", zap.Strings("sinks", written))
		}
		return nil
	},
}

func init() {
	expandCmd.Flags().String("groups", "", "group table file (.yaml, .json or .js)")
	expandCmd.Flags().String("cache", "", "cache file (default cache.path)")
	expandCmd.Flags().String("country", "", "country for groups that do not name one")
	expandCmd.Flags().String("only", "", "comma-separated group keys to process")
	expandCmd.Flags().Int("target", 0, "records wanted per group")
	expandCmd.Flags().Int("admin-level", 0, "OSM admin_level of the group areas (default overpass.admin_level)")
	expandCmd.Flags().Duration("group-pause", 0, "pause between place queries (default throttle.group_pause)")
	expandCmd.Flags().StringSlice("sink", nil, "copy the expanded cache here (repeatable)")
	_ = expandCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(expandCmd)
}

// parseExpandOpts applies the expand flags over the configured values.
func parseExpandOpts(cmd *cobra.Command, c *config.Config) (expandOpts, error) {
	target, _ := cmd.Flags().GetInt("target")
	if target < 1 {
		return expandOpts{}, eris.Errorf("expand: --target must be >= 1, got %d", target)
	}

	opts := expandOpts{
		CachePath:  cachePath(cmd, c),
		Target:     target,
		AdminLevel: c.Overpass.AdminLevel,
		GroupPause: c.Throttle.GroupPause,
	}
	if cmd.Flags().Changed("admin-level") {
		opts.AdminLevel, _ = cmd.Flags().GetInt("admin-level")
	}
	if cmd.Flags().Changed("group-pause") {
		opts.GroupPause, _ = cmd.Flags().GetDuration("group-pause")
	}
	if cmd.Flags().Changed("sink") {
		opts.Sinks, _ = cmd.Flags().GetStringSlice("sink")
	}
	if opts.AdminLevel < 1 {
		return expandOpts{}, eris.Errorf("expand: admin level must be >= 1, got %d", opts.AdminLevel)
	}
	return opts, nil
}
