package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/monitoring"
	"github.com/sells-group/citycache/internal/resilience"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-group record counts",
	Long: `Summarize the cache: records per group and in total. With --groups the
names still pending per group are shown too, and failure counts are read from
the ledger when it exists.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		cache, err := loadCache(cachePath(cmd, cfg))
		if err != nil {
			return err
		}

		var table groups.Table
		if path, _ := cmd.Flags().GetString("groups"); path != "" {
			if table, err = loadTable(cmd, cfg); err != nil {
				return err
			}
		}

		snap, err := collectStatus(ctx, cache, table)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(snap), "status: encode")
		}
		formatStatus(os.Stdout, snap)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("cache", "", "cache file (default cache.path)")
	statusCmd.Flags().String("groups", "", "group table to compare against")
	statusCmd.Flags().String("country", "", "country for groups that do not name one")
	statusCmd.Flags().String("only", "", "comma-separated group keys to compare")
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

// collectStatus builds a snapshot, adding ledger failure counts when a
// ledger database exists.
func collectStatus(ctx context.Context, cache *model.Cache, table groups.Table) (*monitoring.Snapshot, error) {
	led, err := openLedgerIfExists(ctx, cfg)
	if err != nil {
		return nil, err
	}

	collector := monitoring.NewCollector(nil)
	if led != nil {
		defer led.Close() //nolint:errcheck
		collector = monitoring.NewCollector(led)
	}

	snap, err := collector.Collect(ctx, cache, table)
	if err != nil {
		return nil, eris.Wrap(err, "status")
	}
	return snap, nil
}

// formatStatus writes a per-group table followed by totals to out.
func formatStatus(out io.Writer, snap *monitoring.Snapshot) {
	withPending := len(snap.Groups) > 0 && snap.Groups[0].Pending >= 0

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withPending {
		_, _ = fmt.Fprintln(w, "GROUP\tRECORDS\tPENDING")
		_, _ = fmt.Fprintln(w, "-----\t-------\t-------")
	} else {
		_, _ = fmt.Fprintln(w, "GROUP\tRECORDS")
		_, _ = fmt.Fprintln(w, "-----\t-------")
	}
	for _, g := range snap.Groups {
		if withPending {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", g.Key, g.Records, g.Pending)
		} else {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", g.Key, g.Records)
		}
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "Groups:   %d\n", snap.GroupCount)
	_, _ = fmt.Fprintf(out, "Records:  %d\n", snap.RecordCount)
	if withPending {
		_, _ = fmt.Fprintf(out, "Pending:  %d\n", snap.PendingCount)
	}
	if len(snap.Failures) > 0 {
		_, _ = fmt.Fprintln(out, "Failures:")
		for _, k := range []resilience.Kind{resilience.KindNotFound, resilience.KindTransient, resilience.KindPermanent} {
			if n := snap.Failures[k]; n > 0 {
				_, _ = fmt.Fprintf(out, "  %-10s %d\n", k, n)
			}
		}
	}
}
