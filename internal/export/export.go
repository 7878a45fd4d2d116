// Package export writes the city cache in formats other tools can open.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format names an export file format.
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatXLSX    Format = "xlsx"
)

// ParseFormat maps a --format value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGeoJSON, "json":
		return FormatGeoJSON, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q (want geojson or xlsx)", s)
}
