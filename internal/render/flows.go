package render

import (
	"github.com/golang/geo/s2"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean earth radius
const EarthRadiusKm = 6371.0088

// FlowSegment is one origin to destination line on the map.
// Points are [lon, lat].
type FlowSegment struct {
	From        orb.Point     `json:"from"`
	To          orb.Point     `json:"to"`
	Origin      models.ZoneID `json:"origem"`
	Destination models.ZoneID `json:"destino"`
	Volume      float64       `json:"volume"`
	Mode        models.Mode   `json:"modo,omitempty"`
	DistanceKm  float64       `json:"distance_km"`
}

// FlowSegments turns the display subset into line segments.
// Records with an unresolved end are not drawn.
func FlowSegments(display []models.EnrichedRecord) []FlowSegment {
	segments := make([]FlowSegment, 0, len(display))
	for _, r := range display {
		from, okFrom := r.OriginCoord()
		to, okTo := r.DestinationCoord()
		if !okFrom || !okTo {
			continue
		}

		segments = append(segments, FlowSegment{
			From:        point(from),
			To:          point(to),
			Origin:      r.Origin,
			Destination: r.Destination,
			Volume:      r.Volume,
			Mode:        r.Mode,
			DistanceKm:  DistanceKm(from, to),
		})
	}
	return segments
}

// DistanceKm returns the great-circle distance between two coordinates
func DistanceKm(a, b models.LatLon) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}
