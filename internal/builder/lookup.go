package builder

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citycache/internal/groups"
	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/pkg/nominatim"
)

// ErrNotFound is returned by a Lookup when the service has no result for a
// name. It is recorded and never retried.
var ErrNotFound = eris.New("builder: place not found")

// Lookup resolves one name within a group.
type Lookup interface {
	Lookup(ctx context.Context, name string, g groups.Group) (model.EntityRecord, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, name string, g groups.Group) (model.EntityRecord, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, name string, g groups.Group) (model.EntityRecord, error) {
	return f(ctx, name, g)
}

// Searcher is the part of the Nominatim client the builder uses.
type Searcher interface {
	Search(ctx context.Context, q nominatim.Query) (*nominatim.Place, error)
}

// NominatimLookup resolves names through Nominatim free-form search.
type NominatimLookup struct {
	search Searcher
}

// NewNominatimLookup wraps a Nominatim client.
func NewNominatimLookup(s Searcher) *NominatimLookup {
	return &NominatimLookup{search: s}
}

// Lookup searches "name, qualifier" restricted to the group's country code.
func (l *NominatimLookup) Lookup(ctx context.Context, name string, g groups.Group) (model.EntityRecord, error) {
	p, err := l.search.Search(ctx, nominatim.Query{
		Name:        name,
		Qualifier:   g.Qualifier,
		CountryCode: g.CountryCode,
	})
	if eris.Is(err, nominatim.ErrNotFound) {
		return model.EntityRecord{}, eris.Wrapf(ErrNotFound, "builder: lookup %q in %s", name, g.Key)
	}
	if err != nil {
		return model.EntityRecord{}, err
	}
	return model.EntityRecord{
		Name:    name,
		State:   p.State,
		Country: nominatim.CountryName(p, g.CountryCode, g.Country),
		Lat:     p.Lat,
		Lon:     p.Lon,
	}, nil
}
