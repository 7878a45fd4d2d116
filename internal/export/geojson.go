package export

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/citycache/internal/model"
)

// FeatureCollection converts the cache to one point feature per record, in
// group order. Properties carry the group key and the record fields.
func FeatureCollection(c *model.Cache) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, c.TotalRecords())}
	for _, key := range c.Keys() {
		for _, r := range c.Records(key) {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry: geom.NewPointFlat(geom.XY, []float64{r.Lon, r.Lat}).SetSRID(4326),
				Properties: map[string]interface{}{
					"group":   key,
					"name":    r.Name,
					"state":   r.State,
					"country": r.Country,
				},
			})
		}
	}
	return fc
}

// WriteGeoJSON writes the cache to w as an indented GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, c *model.Cache) error {
	raw, err := FeatureCollection(c).MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return eris.Wrap(err, "export: indent geojson")
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
