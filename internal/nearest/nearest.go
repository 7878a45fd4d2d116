// Package nearest answers offline "which cached place is closest to this
// point" queries over the city cache with an S2 cell index.
package nearest

import (
	"cmp"
	"math"
	"slices"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/sells-group/citycache/internal/model"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// cellLevel gives cells roughly 10 km across.
const cellLevel = 10

// Radii above this are answered with a full scan instead of a covering.
const maxCoveringKm = 250

// Match is a cached place and its distance from the query point.
type Match struct {
	Group      string
	Record     model.EntityRecord
	DistanceKm float64
}

type entry struct {
	group string
	rec   model.EntityRecord
	ll    s2.LatLng
}

// Index is an immutable spatial index over a cache snapshot.
type Index struct {
	entries []entry
	cells   map[s2.CellID][]int
}

// New indexes every record in c.
func New(c *model.Cache) *Index {
	idx := &Index{cells: make(map[s2.CellID][]int)}
	for _, key := range c.Keys() {
		for _, r := range c.Records(key) {
			ll := s2.LatLngFromDegrees(r.Lat, r.Lon)
			cell := s2.CellIDFromLatLng(ll).Parent(cellLevel)
			idx.cells[cell] = append(idx.cells[cell], len(idx.entries))
			idx.entries = append(idx.entries, entry{group: key, rec: r, ll: ll})
		}
	}
	return idx
}

// Len returns the number of indexed places.
func (x *Index) Len() int { return len(x.entries) }

// Nearest returns the closest place within maxKm of lat/lon. A maxKm of zero
// or less means no limit.
func (x *Index) Nearest(lat, lon, maxKm float64) (Match, bool) {
	got := x.Within(lat, lon, maxKm, 1)
	if len(got) == 0 {
		return Match{}, false
	}
	return got[0], true
}

// Within returns up to limit places within maxKm of lat/lon, closest first.
// Equal distances are ordered by name. A limit of zero or less returns every
// match; a maxKm of zero or less means no distance limit.
func (x *Index) Within(lat, lon, maxKm float64, limit int) []Match {
	if !validPoint(lat, lon) || len(x.entries) == 0 {
		return nil
	}
	q := s2.LatLngFromDegrees(lat, lon)

	var out []Match
	for _, i := range x.candidates(q, maxKm) {
		e := x.entries[i]
		d := angleKm(q.Distance(e.ll))
		if maxKm > 0 && d > maxKm {
			continue
		}
		out = append(out, Match{Group: e.group, Record: e.rec, DistanceKm: d})
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Or(
			cmp.Compare(a.DistanceKm, b.DistanceKm),
			cmp.Compare(a.Record.Name, b.Record.Name),
		)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// candidates lists entry indices that may lie within maxKm of q.
func (x *Index) candidates(q s2.LatLng, maxKm float64) []int {
	if maxKm <= 0 || maxKm > maxCoveringKm {
		all := make([]int, len(x.entries))
		for i := range all {
			all[i] = i
		}
		return all
	}

	region := s2.CapFromCenterAngle(s2.PointFromLatLng(q), kmAngle(maxKm))
	coverer := &s2.RegionCoverer{MinLevel: cellLevel, MaxLevel: cellLevel, LevelMod: 1, MaxCells: 64}

	var out []int
	for _, cell := range coverer.Covering(region) {
		out = append(out, x.cells[cell]...)
	}
	return out
}

func angleKm(a s1.Angle) float64 {
	return a.Radians() * EarthRadiusKm
}

func kmAngle(km float64) s1.Angle {
	return s1.Angle(km / EarthRadiusKm)
}

func validPoint(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
