// Package overpass queries the OpenStreetMap Overpass API for named
// populated places inside an administrative area.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citycache/internal/resilience"
)

// DefaultURL is the main public Overpass interpreter.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Option configures the client.
type Option func(*Client)

// WithURL points the client at another interpreter endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAdminLevel sets the OSM admin_level of the areas searched. 4 is a
// state or province, 2 a country.
func WithAdminLevel(level int) Option {
	return func(c *Client) { c.adminLevel = level }
}

// Client runs place queries. It does not retry; callers wrap Places in a
// resilience policy.
type Client struct {
	url        string
	userAgent  string
	adminLevel int
	httpClient *http.Client
}

// NewClient returns a client identifying itself with userAgent.
func NewClient(userAgent string, opts ...Option) *Client {
	c := &Client{
		url:        DefaultURL,
		userAgent:  userAgent,
		adminLevel: 4,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Place is a populated place node.
type Place struct {
	Name       string
	Lat        float64
	Lon        float64
	Population int
	// PlaceType is the OSM place tag: city, town, village or hamlet.
	PlaceType string
}

type response struct {
	Elements []struct {
		Lat  float64           `json:"lat"`
		Lon  float64           `json:"lon"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Query builds the Overpass QL for every named city, town, village and
// hamlet node inside the administrative area called area.
func (c *Client) Query(area string) string {
	return fmt.Sprintf(`[out:json][timeout:60];
area["name"=%s]["admin_level"="%d"]["boundary"="administrative"]->.a;
(
  node["place"~"^(city|town|village|hamlet)$"]["name"](area.a);
);
out body;
`, quote(area), c.adminLevel)
}

// quote renders s as an Overpass QL string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// Places returns the named places inside area in response order. Rate-limit
// (429) and overload (503 and 504) responses come back as
// resilience.TransientError.
func (c *Client) Places(ctx context.Context, area string) ([]Place, error) {
	form := url.Values{"data": {c.Query(area)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "overpass: query %q", area)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("overpass: query %q returned status %d", area, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read body")
	}
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}

	places := make([]Place, 0, len(r.Elements))
	for _, el := range r.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}
		places = append(places, Place{
			Name:       name,
			Lat:        el.Lat,
			Lon:        el.Lon,
			Population: parsePopulation(el.Tags["population"]),
			PlaceType:  el.Tags["place"],
		})
	}
	return places, nil
}

// parsePopulation accepts "12,345" style values; anything unparsable is 0.
func parsePopulation(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
