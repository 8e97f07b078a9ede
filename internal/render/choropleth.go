package render

import (
	"github.com/passbi/od_dashboard/internal/matrix"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Choropleth returns every registered zone as a GeoJSON feature carrying its
// totals and the fill color of the selected metric
func Choropleth(reg *zones.Registry, totals matrix.ZoneTotals, metric models.Metric) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	maxValue := LegendMax(totals, metric)

	for _, id := range reg.IDs() {
		z, _ := reg.Zone(id)
		t, _ := totals.Get(id)

		f := geojson.NewFeature(z.Geometry)
		f.ID = int64(id)
		for k, v := range z.Properties {
			f.Properties[k] = v
		}
		f.Properties["id"] = int64(id)
		f.Properties["generation"] = t.Generation
		f.Properties["attraction"] = t.Attraction
		f.Properties["total"] = t.Total()
		f.Properties["fill_color"] = ColorScale(metric.Value(t), maxValue)

		fc.Append(f)
	}

	return fc
}

// Label is a zone id drawn at the zone centroid
type Label struct {
	Position orb.Point `json:"position"`
	Text     string    `json:"text"`
	Size     int       `json:"size"`
	Color    RGBA      `json:"color"`
}

// Labels returns one label per registered zone
func Labels(reg *zones.Registry) []Label {
	ids := reg.IDs()
	labels := make([]Label, 0, len(ids))
	for _, id := range ids {
		z, _ := reg.Zone(id)
		labels = append(labels, Label{
			Position: point(z.Centroid),
			Text:     formatID(id),
			Size:     LabelSize,
			Color:    LabelColor,
		})
	}
	return labels
}

func point(c models.LatLon) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}
