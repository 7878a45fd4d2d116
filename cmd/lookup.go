package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citycache/internal/model"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup NAME",
	Short: "Look a city up in the cache without touching the network",
	Long: `Find NAME in the cache. Names are matched the way the builder dedups
them: case, surrounding space and Unicode composition are ignored. Without
--group the first match in cache order is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		cache, err := loadCache(cachePath(cmd, cfg))
		if err != nil {
			return err
		}

		group, _ := cmd.Flags().GetString("group")
		return runLookup(os.Stdout, cache, strings.Join(args, " "), group)
	},
}

func init() {
	lookupCmd.Flags().String("cache", "", "cache file (default cache.path)")
	lookupCmd.Flags().String("group", "", "search only this group key")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(out io.Writer, cache *model.Cache, name, group string) error {
	key, rec, ok := findRecord(cache, name, group)
	if !ok {
		if group != "" {
			return eris.Errorf("lookup: %q is not cached under %q", name, group)
		}
		return eris.Errorf("lookup: %q is not cached", name)
	}
	_, _ = fmt.Fprintf(out, "%s\t%s\n", key, formatRecord(rec))
	return nil
}

func findRecord(cache *model.Cache, name, group string) (string, model.EntityRecord, bool) {
	if group == "" {
		return cache.Find(name)
	}
	k := model.NormalizeName(name)
	for _, r := range cache.Records(group) {
		if r.Key() == k {
			return group, r, true
		}
	}
	return "", model.EntityRecord{}, false
}

// formatRecord renders "Name, State, Country (lat, lon)", leaving out an
// empty state.
func formatRecord(r model.EntityRecord) string {
	parts := []string{r.Name}
	if r.State != "" && r.State != r.Name {
		parts = append(parts, r.State)
	}
	if r.Country != "" {
		parts = append(parts, r.Country)
	}
	return fmt.Sprintf("%s (%.4f, %.4f)", strings.Join(parts, ", "), r.Lat, r.Lon)
}
