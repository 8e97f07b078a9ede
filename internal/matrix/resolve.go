package matrix

import (
	"github.com/passbi/od_dashboard/internal/models"
)

// Locator resolves a zone id to its centroid
type Locator interface {
	Lookup(id models.ZoneID) (models.LatLon, bool)
}

// Enrich attaches origin and destination centroids to every record.
// Records whose zones are unknown are kept with nil coordinates and reported
// as unresolved references. The input slice is not modified.
func Enrich(records []models.ODRecord, zones Locator) ([]models.EnrichedRecord, []models.UnresolvedReference) {
	enriched := make([]models.EnrichedRecord, len(records))
	var unresolved []models.UnresolvedReference

	for i, r := range records {
		e := models.EnrichedRecord{ODRecord: r}

		if c, ok := zones.Lookup(r.Origin); ok {
			e.OrigLat, e.OrigLon = coord(c)
		} else {
			unresolved = append(unresolved, models.UnresolvedReference{Index: i, ZoneID: r.Origin, End: "origin"})
		}

		if c, ok := zones.Lookup(r.Destination); ok {
			e.DestLat, e.DestLon = coord(c)
		} else {
			unresolved = append(unresolved, models.UnresolvedReference{Index: i, ZoneID: r.Destination, End: "destination"})
		}

		enriched[i] = e
	}

	return enriched, unresolved
}

func coord(c models.LatLon) (*float64, *float64) {
	lat, lon := c.Lat, c.Lon
	return &lat, &lon
}
