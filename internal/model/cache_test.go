package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"case", "Austin", "AUSTIN", true},
		{"surrounding space", "  Austin ", "austin", true},
		{"accents kept", "São Paulo", "SÃO PAULO", true},
		{"decomposed accent", "Bogota\u0301", "Bogot\u00e1", true},
		{"different names", "Austin", "Dallas", false},
		{"accent is significant", "Leon", "León", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, NormalizeName(tt.a) == NormalizeName(tt.b))
		})
	}
}

func TestCache_AddRejectsDuplicateNames(t *testing.T) {
	c := NewCache()

	assert.True(t, c.Add("Texas", EntityRecord{Name: "Austin", Lat: 30.2, Lon: -97.7}))
	assert.False(t, c.Add("Texas", EntityRecord{Name: "austin", Lat: 1, Lon: 1}))
	assert.True(t, c.Add("Texas", EntityRecord{Name: "Dallas"}))
	assert.True(t, c.Add("Minnesota", EntityRecord{Name: "Austin"}), "dedup is per group")

	assert.Equal(t, 2, c.Count("Texas"))
	assert.Equal(t, 30.2, c.Records("Texas")[0].Lat, "first record wins")
	assert.Equal(t, 3, c.TotalRecords())
	assert.Equal(t, []string{"Texas", "Minnesota"}, c.Keys())
}

func TestCache_Contains(t *testing.T) {
	c := NewCache()
	c.Add("France", EntityRecord{Name: "Besançon"})

	assert.True(t, c.Contains("France", "BESANÇON"))
	assert.False(t, c.Contains("France", "Lyon"))
	assert.False(t, c.Contains("Spain", "Besançon"))
}

func TestCache_EnsureGroupKeepsEmptyGroup(t *testing.T) {
	c := NewCache()
	c.EnsureGroup("Greenland")

	assert.True(t, c.Has("Greenland"))
	assert.Equal(t, 0, c.Count("Greenland"))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Greenland": []}`, string(data))
}

func TestCache_Find(t *testing.T) {
	c := NewCache()
	c.Add("Texas", EntityRecord{Name: "Paris", State: "Texas", Country: "United States"})
	c.Add("France", EntityRecord{Name: "Paris", Country: "France"})

	group, rec, ok := c.Find("paris")
	require.True(t, ok)
	assert.Equal(t, "Texas", group)
	assert.Equal(t, "United States", rec.Country)

	_, _, ok = c.Find("Lyon")
	assert.False(t, ok)
}

func TestCache_JSONPreservesOrder(t *testing.T) {
	c := NewCache()
	c.Add("Zimbabwe", EntityRecord{Name: "Harare", State: "Harare Province", Country: "Zimbabwe", Lat: -17.83, Lon: 31.05})
	c.Add("Algeria", EntityRecord{Name: "Algiers", Country: "Algeria", Lat: 36.75, Lon: 3.06})
	c.Add("Zimbabwe", EntityRecord{Name: "Bulawayo", Country: "Zimbabwe", Lat: -20.15, Lon: 28.58})

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Zimbabwe":[{"name":"Harare","state":"Harare Province","country":"Zimbabwe","lat":-17.83,"lon":31.05},`+
			`{"name":"Bulawayo","state":"","country":"Zimbabwe","lat":-20.15,"lon":28.58}],`+
			`"Algeria":[{"name":"Algiers","state":"","country":"Algeria","lat":36.75,"lon":3.06}]}`,
		string(data))

	var back Cache
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, c.Equal(&back))
	assert.Equal(t, []string{"Zimbabwe", "Algeria"}, back.Keys())
}

func TestCache_MarshalLeavesHTMLAndUnicodeUnescaped(t *testing.T) {
	c := NewCache()
	c.Add("Trinidad & Tobago", EntityRecord{Name: "Port of Spain"})
	c.Add("Côte d'Ivoire", EntityRecord{Name: "Yamoussoukro"})

	data, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Trinidad & Tobago"`)
	assert.Contains(t, string(data), `"Côte d'Ivoire"`)
}

func TestCache_UnmarshalDedupsAndMergesRepeatedKeys(t *testing.T) {
	raw := `{
		"Chile": [{"name": "Talca", "lat": 1, "lon": 2}, {"name": "TALCA", "lat": 3, "lon": 4}],
		"Peru": [],
		"Chile": [{"name": "Arica", "lat": 5, "lon": 6}]
	}`

	var c Cache
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, []string{"Chile", "Peru"}, c.Keys())
	recs := c.Records("Chile")
	require.Len(t, recs, 2)
	assert.Equal(t, "Talca", recs[0].Name)
	assert.Equal(t, 1.0, recs[0].Lat)
	assert.Equal(t, "Arica", recs[1].Name)
}

func TestCache_UnmarshalRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"array", `[]`},
		{"null", `null`},
		{"truncated", `{"Chile": [{"name": "Talca"`},
		{"records not array", `{"Chile": {"name": "Talca"}}`},
		{"trailing garbage", `{"Chile": []} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache()
			assert.Error(t, c.UnmarshalJSON([]byte(tt.raw)))
		})
	}
}

func TestEntityRecord_Valid(t *testing.T) {
	assert.True(t, EntityRecord{Name: "Quito", Lat: -0.18, Lon: -78.47}.Valid())
	assert.False(t, EntityRecord{Name: " ", Lat: 0, Lon: 0}.Valid())
	assert.False(t, EntityRecord{Name: "Nowhere", Lat: 91, Lon: 0}.Valid())
	assert.False(t, EntityRecord{Name: "Nowhere", Lat: 0, Lon: -181}.Valid())
}
