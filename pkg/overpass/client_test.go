package overpass

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citycache/internal/resilience"
)

func TestPlaces(t *testing.T) {
	var gotQuery, gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("data")
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"elements": [
			{"type": "node", "lat": 30.2672, "lon": -97.7431, "tags": {"name": "Austin", "place": "city", "population": "961,855"}},
			{"type": "node", "lat": 31.0, "lon": -98.0, "tags": {"place": "hamlet"}},
			{"type": "node", "lat": 29.9, "lon": -97.9, "tags": {"name": " Kyle ", "place": "town", "population": "about 50k"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient("citycache-test/1.0", WithURL(srv.URL), WithHTTPClient(srv.Client()))
	places, err := c.Places(context.Background(), "Texas")
	require.NoError(t, err)

	require.Len(t, places, 2)
	assert.Equal(t, Place{Name: "Austin", Lat: 30.2672, Lon: -97.7431, Population: 961855, PlaceType: "city"}, places[0])
	assert.Equal(t, "Kyle", places[1].Name)
	assert.Equal(t, 0, places[1].Population)

	assert.Contains(t, gotQuery, `area["name"="Texas"]["admin_level"="4"]`)
	assert.Contains(t, gotQuery, `node["place"~"^(city|town|village|hamlet)$"]["name"](area.a);`)
	assert.Equal(t, "citycache-test/1.0", gotUA)
	assert.Equal(t, "application/x-www-form-urlencoded", gotCT)
}

func TestQuery_EscapesAreaName(t *testing.T) {
	c := NewClient("ua", WithAdminLevel(2))
	q := c.Query(`Côte "d'Ivoire" \ test`)
	assert.Contains(t, q, `area["name"="Côte \"d'Ivoire\" \\ test"]["admin_level"="2"]`)
}

func TestPlaces_TransientStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))
		_, err := NewClient("ua", WithURL(srv.URL)).Places(context.Background(), "Ohio")

		var te *resilience.TransientError
		require.True(t, errors.As(err, &te), code)
		assert.Equal(t, code, te.StatusCode)
		srv.Close()
	}
}

func TestPlaces_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient("ua", WithURL(srv.URL)).Places(context.Background(), "Ohio")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestPlaces_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>runtime error</html>`)
	}))
	defer srv.Close()

	_, err := NewClient("ua", WithURL(srv.URL)).Places(context.Background(), "Ohio")
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	in := []Place{
		{Name: "Hamletville", PlaceType: "hamlet", Population: 1_000_000},
		{Name: "Small Town", PlaceType: "town", Population: 500},
		{Name: "Bigtown", PlaceType: "town", Population: 90_000},
		{Name: "Odd", PlaceType: "suburb"},
		{Name: "Beta City", PlaceType: "city"},
		{Name: "Alpha City", PlaceType: "city"},
		{Name: "Village", PlaceType: "village", Population: 10},
	}

	got := Rank(in)
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Alpha City", "Beta City", "Bigtown", "Small Town", "Village", "Hamletville", "Odd"}, names)
	assert.Equal(t, "Hamletville", in[0].Name, "input untouched")
}

func TestParsePopulation(t *testing.T) {
	assert.Equal(t, 12345, parsePopulation("12,345"))
	assert.Equal(t, 0, parsePopulation(""))
	assert.Equal(t, 0, parsePopulation("-5"))
	assert.Equal(t, 0, parsePopulation("approx 10"))
}
