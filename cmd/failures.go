package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/ledger"
	"github.com/sells-group/citycache/internal/resilience"
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List or clear names that failed to resolve",
	Long: `Show the failure ledger: names a build attempted but could not cache,
with the kind of failure, the last error and how many runs tried them.
Entries disappear once a later build resolves the name. --clear deletes the
matching entries instead of listing them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("failures"); err != nil {
			return err
		}

		f, err := parseFailureFilter(cmd)
		if err != nil {
			return err
		}

		led, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			n, err := led.Clear(ctx, f)
			if err != nil {
				return eris.Wrap(err, "failures")
			}
			zap.L().Info("failure entries cleared", zap.Int64("count", n))
			return nil
		}

		entries, err := led.List(ctx, f)
		if err != nil {
			return eris.Wrap(err, "failures")
		}
		if len(entries) == 0 {
			zap.L().Info("no failures recorded")
			return nil
		}

		formatFailures(os.Stdout, entries)
		return nil
	},
}

func init() {
	failuresCmd.Flags().String("group", "", "only this group key")
	failuresCmd.Flags().String("kind", "", "only this kind: not_found, transient, permanent")
	failuresCmd.Flags().Int("limit", 50, "maximum entries to list (0 for all)")
	failuresCmd.Flags().Bool("clear", false, "delete the matching entries")
	rootCmd.AddCommand(failuresCmd)
}

// parseFailureFilter builds a ledger filter from the failures flags.
func parseFailureFilter(cmd *cobra.Command) (ledger.Filter, error) {
	group, _ := cmd.Flags().GetString("group")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	if limit < 0 {
		return ledger.Filter{}, eris.Errorf("failures: --limit must be >= 0, got %d", limit)
	}

	f := ledger.Filter{GroupKey: group, Limit: limit}
	switch k := resilience.Kind(kind); k {
	case "", resilience.KindNotFound, resilience.KindTransient, resilience.KindPermanent:
		f.Kind = k
	default:
		return ledger.Filter{}, eris.Errorf("failures: unknown kind %q", kind)
	}
	return f, nil
}

// formatFailures writes a tabular representation of ledger entries to out.
func formatFailures(out io.Writer, entries []ledger.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROUP\tNAME\tKIND\tATTEMPTS\tLAST SEEN\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t----\t----\t--------\t---------\t-----")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.GroupKey,
			e.Name,
			e.Kind,
			e.Attempts,
			e.LastSeen.Format("2006-01-02 15:04"),
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
