package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EntityRecord is a resolved place. Name is the name as it was supplied to
// the lookup, not the geocoder's canonical spelling.
type EntityRecord struct {
	Name    string  `json:"name"`
	State   string  `json:"state"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Key returns the normalized form of the record name used for dedup.
func (r EntityRecord) Key() string {
	return NormalizeName(r.Name)
}

// Valid reports whether the coordinates are plausible WGS84 degrees.
func (r EntityRecord) Valid() bool {
	return strings.TrimSpace(r.Name) != "" &&
		r.Lat >= -90 && r.Lat <= 90 &&
		r.Lon >= -180 && r.Lon <= 180
}

// NormalizeName maps a place name to its comparison key: surrounding space
// trimmed, NFC composed, case folded. "São Paulo" and "SÃO PAULO " compare equal.
func NormalizeName(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))
	// A Caser carries state and must not be shared across goroutines.
	return cases.Fold().String(s)
}
