package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/export"
	"github.com/sells-group/citycache/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the cache as GeoJSON or XLSX",
	Long: `Export every cached place as a GeoJSON FeatureCollection of points or as a
spreadsheet with one row per place. --out - writes GeoJSON to stdout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		formatStr, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		cache, err := loadCache(cachePath(cmd, cfg))
		if err != nil {
			return err
		}

		if err := runExport(cache, format, out, os.Stdout); err != nil {
			return err
		}
		if out != "-" {
			zap.L().Info("cache exported",
				zap.String("format", string(format)),
				zap.String("out", out),
				zap.Int("records", cache.TotalRecords()),
			)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("cache", "", "cache file (default cache.path)")
	exportCmd.Flags().String("format", "geojson", "geojson or xlsx")
	exportCmd.Flags().String("out", "", "output file, or - for stdout")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cache *model.Cache, format export.Format, out string, stdout io.Writer) error {
	switch format {
	case export.FormatXLSX:
		if out == "-" {
			return eris.New("export: xlsx needs a file for --out")
		}
		return export.WriteXLSX(out, cache)
	default:
		if out == "-" {
			return export.WriteGeoJSON(stdout, cache)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", out)
		}
		if err := export.WriteGeoJSON(f, cache); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrapf(f.Close(), "export: close %s", out)
	}
}
