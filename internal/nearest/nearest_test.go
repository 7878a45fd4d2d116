package nearest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citycache/internal/model"
)

func testIndex() *Index {
	c := model.NewCache()
	c.Add("Texas", model.EntityRecord{Name: "Austin", State: "Texas", Country: "United States", Lat: 30.2672, Lon: -97.7431})
	c.Add("Texas", model.EntityRecord{Name: "Round Rock", State: "Texas", Country: "United States", Lat: 30.5083, Lon: -97.6789})
	c.Add("Texas", model.EntityRecord{Name: "Dallas", State: "Texas", Country: "United States", Lat: 32.7767, Lon: -96.797})
	c.Add("France", model.EntityRecord{Name: "Paris", State: "Île-de-France", Country: "France", Lat: 48.8566, Lon: 2.3522})
	c.Add("Fiji", model.EntityRecord{Name: "Suva", State: "Central", Country: "Fiji", Lat: -18.1416, Lon: 178.4419})
	return New(c)
}

func TestNew(t *testing.T) {
	assert.Equal(t, 5, testIndex().Len())
	assert.Equal(t, 0, New(model.NewCache()).Len())
}

func TestNearest(t *testing.T) {
	idx := testIndex()

	m, ok := idx.Nearest(30.3, -97.75, 50)
	require.True(t, ok)
	assert.Equal(t, "Austin", m.Record.Name)
	assert.Equal(t, "Texas", m.Group)
	assert.InDelta(t, 3.7, m.DistanceKm, 0.5)
}

func TestNearest_OutOfRange(t *testing.T) {
	_, ok := testIndex().Nearest(0, 0, 50)
	assert.False(t, ok)
}

func TestNearest_Unlimited(t *testing.T) {
	m, ok := testIndex().Nearest(51.5074, -0.1278, 0)
	require.True(t, ok)
	assert.Equal(t, "Paris", m.Record.Name)
	assert.InDelta(t, 344, m.DistanceKm, 5)
}

func TestNearest_LargeRadiusScans(t *testing.T) {
	m, ok := testIndex().Nearest(51.5074, -0.1278, 500)
	require.True(t, ok)
	assert.Equal(t, "Paris", m.Record.Name)
}

func TestNearest_AcrossAntimeridian(t *testing.T) {
	m, ok := testIndex().Nearest(-18.2, -179.9, 200)
	require.True(t, ok)
	assert.Equal(t, "Suva", m.Record.Name)
}

func TestNearest_InvalidPoint(t *testing.T) {
	idx := testIndex()
	for _, p := range [][2]float64{{math.NaN(), 0}, {0, math.Inf(1)}, {91, 0}, {0, -181}} {
		_, ok := idx.Nearest(p[0], p[1], 0)
		assert.False(t, ok, "%v", p)
	}
}

func TestWithin_SortedAndLimited(t *testing.T) {
	idx := testIndex()

	got := idx.Within(30.4, -97.7, 100, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "Round Rock", got[0].Record.Name)
	assert.Equal(t, "Austin", got[1].Record.Name)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)

	got = idx.Within(30.4, -97.7, 0, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "Dallas", got[2].Record.Name)
}

func TestWithin_TiesOrderedByName(t *testing.T) {
	c := model.NewCache()
	c.Add("X", model.EntityRecord{Name: "Beta", Lat: 10, Lon: 10})
	c.Add("X", model.EntityRecord{Name: "Alpha", Lat: 10, Lon: 10})

	got := New(c).Within(10, 10, 1, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Record.Name)
	assert.Equal(t, "Beta", got[1].Record.Name)
}
