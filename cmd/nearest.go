package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/nearest"
)

// nearestOpts holds the parsed nearest arguments.
type nearestOpts struct {
	Lat   float64
	Lon   float64
	MaxKm float64
	Limit int
}

var nearestCmd = &cobra.Command{
	Use:   "nearest LAT LON",
	Short: "Find the cached cities closest to a point",
	Long: `List the cached places closest to LAT LON, nearest first, within --max-km
(0 for no limit).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("nearest"); err != nil {
			return err
		}

		opts, err := parseNearestOpts(cmd, args)
		if err != nil {
			return err
		}

		cache, err := loadCache(cachePath(cmd, cfg))
		if err != nil {
			return err
		}

		return runNearest(os.Stdout, cache, opts)
	},
}

func init() {
	nearestCmd.Flags().String("cache", "", "cache file (default cache.path)")
	nearestCmd.Flags().Float64("max-km", 50, "search radius in kilometres (0 for no limit)")
	nearestCmd.Flags().Int("limit", 1, "number of places to list")
	rootCmd.AddCommand(nearestCmd)
}

// parseNearestOpts reads the coordinates and search flags.
func parseNearestOpts(cmd *cobra.Command, args []string) (nearestOpts, error) {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		return nearestOpts{}, eris.Errorf("nearest: invalid latitude %q", args[0])
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil || lon < -180 || lon > 180 {
		return nearestOpts{}, eris.Errorf("nearest: invalid longitude %q", args[1])
	}

	maxKm, _ := cmd.Flags().GetFloat64("max-km")
	limit, _ := cmd.Flags().GetInt("limit")
	if maxKm < 0 {
		return nearestOpts{}, eris.New("nearest: --max-km must be >= 0")
	}
	if limit < 1 {
		return nearestOpts{}, eris.New("nearest: --limit must be >= 1")
	}
	return nearestOpts{Lat: lat, Lon: lon, MaxKm: maxKm, Limit: limit}, nil
}

func runNearest(out io.Writer, cache *model.Cache, opts nearestOpts) error {
	matches := nearest.New(cache).Within(opts.Lat, opts.Lon, opts.MaxKm, opts.Limit)
	if len(matches) == 0 {
		return eris.Errorf("nearest: no cached place within %g km of %g, %g", opts.MaxKm, opts.Lat, opts.Lon)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KM\tGROUP\tPLACE")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%.1f\t%s\t%s\n", m.DistanceKm, m.Group, formatRecord(m.Record))
	}
	return eris.Wrap(w.Flush(), "nearest: write")
}
