package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/pkg/nominatim"
)

type fakeSearch struct {
	place *nominatim.Place
	err   error
	got   nominatim.Query
}

func (f *fakeSearch) Search(_ context.Context, q nominatim.Query) (*nominatim.Place, error) {
	f.got = q
	return f.place, f.err
}

func TestNominatimLookup(t *testing.T) {
	s := &fakeSearch{place: &nominatim.Place{Lat: 48.1, Lon: 11.6, State: "Bayern", Country: "Deutschland", CountryCode: "DE"}}
	g := groups.Group{Key: "Germany", Qualifier: "Germany", Country: "Germany", CountryCode: "de"}

	rec, err := NewNominatimLookup(s).Lookup(context.Background(), "München", g)
	require.NoError(t, err)
	assert.Equal(t, nominatim.Query{Name: "München", Qualifier: "Germany", CountryCode: "de"}, s.got)
	assert.Equal(t, "München", rec.Name)
	assert.Equal(t, "Bayern", rec.State)
	assert.Equal(t, "Germany", rec.Country)
	assert.Equal(t, 48.1, rec.Lat)
}

func TestNominatimLookup_ForeignResultNormalized(t *testing.T) {
	s := &fakeSearch{place: &nominatim.Place{Lat: 1, Lon: 1, Country: "Deutschland", CountryCode: "DE"}}
	g := groups.Group{Key: "Austria", Qualifier: "Austria", Country: "Austria", CountryCode: "at"}

	rec, err := NewNominatimLookup(s).Lookup(context.Background(), "Kaiserslautern", g)
	require.NoError(t, err)
	assert.Equal(t, "Germany", rec.Country)
}

func TestNominatimLookup_NotFound(t *testing.T) {
	s := &fakeSearch{err: nominatim.ErrNotFound}
	_, err := NewNominatimLookup(s).Lookup(context.Background(), "Warrior Falls", groups.Group{Key: "Wakanda"})
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestNominatimLookup_OtherErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	s := &fakeSearch{err: boom}
	_, err := NewNominatimLookup(s).Lookup(context.Background(), "x", groups.Group{Key: "y"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, eris.Is(err, ErrNotFound))
}
