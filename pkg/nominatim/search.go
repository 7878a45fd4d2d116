package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citycache/internal/resilience"
)

// ErrNotFound is returned when a search yields no results.
var ErrNotFound = eris.New("nominatim: no results")

// Query is one free-form search.
type Query struct {
	Name string
	// Qualifier narrows the search, e.g. a country or state name. It is
	// appended to Name as "Name, Qualifier".
	Qualifier string
	// CountryCode restricts results to one ISO 3166-1 alpha-2 country.
	CountryCode string
}

func (q Query) text() string {
	if q.Qualifier == "" {
		return q.Name
	}
	return q.Name + ", " + q.Qualifier
}

// Place is the best match for a query.
type Place struct {
	Lat         float64
	Lon         float64
	DisplayName string
	// State is the first-level subdivision: state, province or region.
	State string
	// Country is the country name as returned, usually in the local language.
	Country string
	// CountryCode is upper case.
	CountryCode string
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		State       string `json:"state"`
		Province    string `json:"province"`
		Region      string `json:"region"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Search returns the top result for q. It returns ErrNotFound when the
// service has no match, and a resilience.TransientError for rate-limit and
// server-side failures.
func (c *Client) Search(ctx context.Context, q Query) (*Place, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, eris.New("nominatim: empty query")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"q":              {q.text()},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {"1"},
	}
	if q.CountryCode != "" {
		params.Set("countrycodes", strings.ToLower(q.CountryCode))
	}
	if c.language != "" {
		params.Set("accept-language", c.language)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: search %q", q.text())
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		statusErr := eris.Errorf("nominatim: search %q returned status %d: %s", q.text(), resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse response")
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	top := results[0]
	lat, err := strconv.ParseFloat(top.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: parse lat %q", top.Lat)
	}
	lon, err := strconv.ParseFloat(top.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: parse lon %q", top.Lon)
	}

	return &Place{
		Lat:         lat,
		Lon:         lon,
		DisplayName: top.DisplayName,
		State:       firstNonEmpty(top.Address.State, top.Address.Province, top.Address.Region),
		Country:     top.Address.Country,
		CountryCode: strings.ToUpper(top.Address.CountryCode),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
