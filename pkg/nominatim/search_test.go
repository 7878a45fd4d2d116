package nominatim

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citycache/internal/resilience"
)

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	base := []Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(0)}
	return NewClient("citycache-test/1.0", append(base, opts...)...)
}

func TestSearch_Success(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"lat": "-35.4264", "lon": "-71.6554",
			"display_name": "Talca, Provincia de Talca, Región del Maule, Chile",
			"address": {"region": "Región del Maule", "country": "Chile", "country_code": "cl"}
		}]`)
	}))
	defer srv.Close()

	c := newTestClient(srv, WithEmail("ops@example.com"))
	p, err := c.Search(context.Background(), Query{Name: "Talca", Qualifier: "Chile", CountryCode: "CL"})
	require.NoError(t, err)

	assert.InDelta(t, -35.4264, p.Lat, 1e-9)
	assert.InDelta(t, -71.6554, p.Lon, 1e-9)
	assert.Equal(t, "Región del Maule", p.State)
	assert.Equal(t, "Chile", p.Country)
	assert.Equal(t, "CL", p.CountryCode)

	require.NotNil(t, got)
	assert.Equal(t, "/search", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "Talca, Chile", q.Get("q"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "1", q.Get("addressdetails"))
	assert.Equal(t, "1", q.Get("limit"))
	assert.Equal(t, "cl", q.Get("countrycodes"))
	assert.Equal(t, "en", q.Get("accept-language"))
	assert.Equal(t, "ops@example.com", q.Get("email"))
	assert.Equal(t, "citycache-test/1.0", got.Header.Get("User-Agent"))
}

func TestSearch_StatePrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat": "1", "lon": "2",
			"address": {"state": "Ontario", "province": "ignored", "region": "ignored"}}]`)
	}))
	defer srv.Close()

	p, err := newTestClient(srv).Search(context.Background(), Query{Name: "Ottawa"})
	require.NoError(t, err)
	assert.Equal(t, "Ontario", p.State)
}

func TestSearch_NoCountryFilterWithoutCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("countrycodes"))
		assert.Equal(t, "Birnin Zana", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `[{"lat": "0", "lon": "0"}]`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), Query{Name: "Birnin Zana"})
	require.NoError(t, err)
}

func TestSearch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), Query{Name: "Atlantis"})
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.False(t, resilience.IsTransient(err))
}

func TestSearch_TransientStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := newTestClient(srv).Search(context.Background(), Query{Name: "Lima"})
		var te *resilience.TransientError
		require.True(t, errors.As(err, &te), code)
		assert.Equal(t, code, te.StatusCode)
		srv.Close()
	}
}

func TestSearch_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "blocked: missing user agent")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), Query{Name: "Lima"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "403")
}

func TestSearch_BadPayload(t *testing.T) {
	for _, body := range []string{`{"error": "x"}`, `[{"lat": "north", "lon": "1"}]`, `[{"lat": "1", "lon": ""}]`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		_, err := newTestClient(srv).Search(context.Background(), Query{Name: "Lima"})
		assert.Error(t, err, body)
		assert.False(t, eris.Is(err, ErrNotFound), body)
		srv.Close()
	}
}

func TestSearch_EmptyName(t *testing.T) {
	c := NewClient("ua")
	_, err := c.Search(context.Background(), Query{Name: "  "})
	assert.Error(t, err)
}

func TestSearch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).Search(ctx, Query{Name: "Lima"})
	assert.Error(t, err)
	assert.False(t, eris.Is(err, ErrNotFound))
}
