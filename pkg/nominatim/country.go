package nominatim

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// EnglishCountryName returns the English name for an ISO 3166-1 alpha-2
// code, or "" if the code is unknown.
func EnglishCountryName(code string) string {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil || !region.IsCountry() {
		return ""
	}
	return display.English.Regions().Name(region)
}

// CountryName picks the country to record for a place. A place inside the
// expected country keeps the caller's spelling so records match the group
// they are filed under. Anything else is normalized to English, falling back
// to the returned name and then to fallback.
func CountryName(p *Place, expectedCode, fallback string) string {
	if p == nil {
		return fallback
	}
	if expectedCode != "" && fallback != "" && strings.EqualFold(p.CountryCode, expectedCode) {
		return fallback
	}
	if name := EnglishCountryName(p.CountryCode); name != "" {
		return name
	}
	if p.Country != "" {
		return p.Country
	}
	return fallback
}
