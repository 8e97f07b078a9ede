package matrix

import (
	"github.com/passbi/od_dashboard/internal/models"
)

// ZoneSet is the part of the zone registry the aggregator needs
type ZoneSet interface {
	IDs() []models.ZoneID
}

// ZoneTotals holds generation and attraction per zone.
// Zones has exactly one entry per registered zone (zero-filled);
// references to zones outside the registry accumulate in Unregistered.
type ZoneTotals struct {
	Zones        map[models.ZoneID]models.Totals
	Unregistered map[models.ZoneID]models.Totals
}

// ComputeZoneTotals sums outgoing volume (generation) by origin and incoming
// volume (attraction) by destination in a single pass
func ComputeZoneTotals(records []models.ODRecord, zones ZoneSet) ZoneTotals {
	ids := zones.IDs()
	totals := ZoneTotals{
		Zones:        make(map[models.ZoneID]models.Totals, len(ids)),
		Unregistered: make(map[models.ZoneID]models.Totals),
	}
	for _, id := range ids {
		totals.Zones[id] = models.Totals{}
	}

	for _, r := range records {
		totals.add(r.Origin, r.Volume, 0)
		totals.add(r.Destination, 0, r.Volume)
	}

	return totals
}

func (t ZoneTotals) add(id models.ZoneID, generation, attraction float64) {
	bucket := t.Zones
	if _, ok := bucket[id]; !ok {
		bucket = t.Unregistered
	}
	cur := bucket[id]
	cur.Generation += generation
	cur.Attraction += attraction
	bucket[id] = cur
}

// Get returns the totals of a registered zone
func (t ZoneTotals) Get(id models.ZoneID) (models.Totals, bool) {
	v, ok := t.Zones[id]
	return v, ok
}

// Max returns the largest metric value over registered zones
func (t ZoneTotals) Max(metric models.Metric) float64 {
	maxValue := 0.0
	for _, v := range t.Zones {
		if m := metric.Value(v); m > maxValue {
			maxValue = m
		}
	}
	return maxValue
}

// SumGeneration sums generation over registered and unregistered zones
func (t ZoneTotals) SumGeneration() float64 {
	sum := 0.0
	for _, v := range t.Zones {
		sum += v.Generation
	}
	for _, v := range t.Unregistered {
		sum += v.Generation
	}
	return sum
}

// SumAttraction sums attraction over registered and unregistered zones
func (t ZoneTotals) SumAttraction() float64 {
	sum := 0.0
	for _, v := range t.Zones {
		sum += v.Attraction
	}
	for _, v := range t.Unregistered {
		sum += v.Attraction
	}
	return sum
}
