package overpass

import (
	"cmp"
	"slices"
)

var placeRank = map[string]int{
	"city":    0,
	"town":    1,
	"village": 2,
	"hamlet":  3,
}

func rankOf(placeType string) int {
	if r, ok := placeRank[placeType]; ok {
		return r
	}
	return 9
}

// Rank sorts places by importance: place type (city first), then population
// descending, then name. The input is not modified.
func Rank(places []Place) []Place {
	out := slices.Clone(places)
	slices.SortStableFunc(out, func(a, b Place) int {
		return cmp.Or(
			cmp.Compare(rankOf(a.PlaceType), rankOf(b.PlaceType)),
			cmp.Compare(b.Population, a.Population),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out
}
