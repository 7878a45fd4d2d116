package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citycache/internal/cachefile"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Copy the cache file to every sink",
	Long: `Copy the cache file to each configured sink (cache.sinks or --sink).
Sinks whose directory does not exist are skipped with a warning.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("distribute"); err != nil {
			return err
		}

		return runDistribute(ctx, os.Stdout, cachePath(cmd, cfg), sinkPaths(cmd, cfg))
	},
}

func init() {
	distributeCmd.Flags().String("cache", "", "cache file (default cache.path)")
	distributeCmd.Flags().StringSlice("sink", nil, "destination path (repeatable, default cache.sinks)")
	rootCmd.AddCommand(distributeCmd)
}

func runDistribute(ctx context.Context, out io.Writer, src string, sinks []string) error {
	if len(sinks) == 0 {
		return eris.New("distribute: no sinks (set cache.sinks or pass --sink)")
	}
	// Refuse to copy a cache that would not load.
	if _, err := cachefile.New(src).Load(); err != nil {
		return eris.Wrap(err, "distribute")
	}

	written, err := cachefile.Distribute(ctx, src, sinks)
	for _, w := range written {
		_, _ = fmt.Fprintf(out, "✓ %s\n", w)
	}
	if err != nil {
		return eris.Wrap(err, "distribute")
	}
	_, _ = fmt.Fprintf(out, "copied %s to %d of %d sinks\n", src, len(written), len(sinks))
	return nil
}
