package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/cachefile"
	"github.com/sells-group/citycache/internal/config"
	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/ledger"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/monitoring"
)

// cachePath returns the --cache flag when set, else the configured path.
func cachePath(cmd *cobra.Command, c *config.Config) string {
	if f := cmd.Flags().Lookup("cache"); f != nil && f.Changed {
		return f.Value.String()
	}
	return c.Cache.Path
}

// sinkPaths returns the --sink flags when set, else the configured sinks.
func sinkPaths(cmd *cobra.Command, c *config.Config) []string {
	if cmd.Flags().Changed("sink") {
		sinks, _ := cmd.Flags().GetStringSlice("sink")
		return sinks
	}
	return c.Cache.Sinks
}

// loadCache reads the cache at path.
func loadCache(path string) (*model.Cache, error) {
	return cachefile.New(path).Load()
}

// loadTable reads the group table named by --groups (or groups.path) and
// narrows it to --only when given.
func loadTable(cmd *cobra.Command, c *config.Config) (groups.Table, error) {
	path, _ := cmd.Flags().GetString("groups")
	if path == "" {
		path = c.Groups.Path
	}
	if path == "" {
		return nil, eris.New("a group table is required (--groups or groups.path)")
	}

	country, _ := cmd.Flags().GetString("country")
	if country == "" {
		country = c.Groups.Country
	}

	table, err := groups.Load(path, groups.Options{Country: country})
	if err != nil {
		return nil, err
	}

	if only, _ := cmd.Flags().GetString("only"); only != "" {
		return table.Select(splitAndTrim(only))
	}
	return table, nil
}

// openLedger opens the failure ledger. It returns nil when no ledger path is
// configured.
func openLedger(ctx context.Context, c *config.Config) (*ledger.Ledger, error) {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return nil, nil
	}
	return ledger.Open(ctx, c.Ledger.Path)
}

// openLedgerIfExists opens the ledger only if its database file is already
// there, so read-only commands never create one.
func openLedgerIfExists(ctx context.Context, c *config.Config) (*ledger.Ledger, error) {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return nil, nil
	}
	if _, err := os.Stat(c.Ledger.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ledger.Open(ctx, c.Ledger.Path)
}

// newMetrics registers the builder metrics on a fresh registry.
func newMetrics() (*monitoring.Metrics, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	m, err := monitoring.New(reg)
	if err != nil {
		return nil, nil, err
	}
	return m, reg, nil
}

// flushMetrics writes the metrics textfile if one is configured. Failures
// are logged, not returned.
func flushMetrics(c *config.Config, reg prometheus.Gatherer) {
	if c.Metrics.Textfile == "" {
		return
	}
	if err := monitoring.WriteTextfile(c.Metrics.Textfile, reg); err != nil {
		zap.L().Warn("write metrics textfile failed", zap.Error(err))
		return
	}
	zap.L().Debug("metrics written", zap.String("path", c.Metrics.Textfile))
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
