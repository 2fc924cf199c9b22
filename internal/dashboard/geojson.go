package dashboard

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSON returns the located rows as a FeatureCollection of points for an
// external map renderer. Rows without coordinates are left out.
func GeoJSON(rows []Row) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	bounds := geom.NewBounds(geom.XY)

	for _, r := range rows {
		loc := r.Equipment.Location
		if loc == nil || !loc.Valid() {
			continue
		}
		// GeoJSON positions are lon, lat.
		pt := geom.NewPointFlat(geom.XY, []float64{loc.Lon, loc.Lat})
		bounds.Extend(pt)

		props := map[string]interface{}{
			"company": r.Equipment.Company,
			"type":    r.Equipment.DisplayType(),
			"score":   r.Score,
			"status":  string(r.Match.Status),
		}
		if r.Equipment.Country != "" {
			props["country"] = r.Equipment.Country
		}
		if r.Age != nil {
			props["age"] = *r.Age
		}
		if r.Customer != nil {
			props["customer"] = r.Customer.Name
			props["rating"] = string(r.Customer.Rating)
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Equipment.ID,
			Geometry:   pt,
			Properties: props,
		})
	}

	if len(fc.Features) > 0 {
		fc.BBox = bounds
	}
	return fc
}
