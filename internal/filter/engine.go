package filter

import (
	"math"
	"sort"

	"github.com/passbi/od_dashboard/internal/models"
)

// DefaultDisplayCap is the number of flow lines drawn on the map
const DefaultDisplayCap = 500

// FilteredView is the result of applying a filter state to the active table
type FilteredView struct {
	Records     []models.EnrichedRecord
	State       models.FilterState // selections expanded to literal ids
	Count       int
	TotalVolume float64
}

// RoundedTotal returns the total volume rounded to the nearest integer
func (v FilteredView) RoundedTotal() int64 {
	return int64(math.Round(v.TotalVolume))
}

// Options are the values offered by the origin and destination widgets
type Options struct {
	Origins      []models.ZoneID `json:"origins"`
	Destinations []models.ZoneID `json:"destinations"`
}

// Observed returns the sorted unique origins and destinations of the records
func Observed(records []models.EnrichedRecord) Options {
	origins := make(map[models.ZoneID]struct{})
	destinations := make(map[models.ZoneID]struct{})
	for _, r := range records {
		origins[r.Origin] = struct{}{}
		destinations[r.Destination] = struct{}{}
	}
	return Options{
		Origins:      sortedIDs(origins),
		Destinations: sortedIDs(destinations),
	}
}

func sortedIDs(set map[models.ZoneID]struct{}) []models.ZoneID {
	ids := make([]models.ZoneID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VolumeBounds returns [0, max observed volume] for the slider
func VolumeBounds(records []models.EnrichedRecord) models.VolumeRange {
	bounds := models.VolumeRange{}
	for _, r := range records {
		if r.Volume > bounds.Max {
			bounds.Max = r.Volume
		}
	}
	return bounds
}

// DefaultState selects every origin and destination over the full volume range
func DefaultState(records []models.EnrichedRecord) models.FilterState {
	return models.FilterState{
		Origins:      models.SelectAll(),
		Destinations: models.SelectAll(),
		Volume:       VolumeBounds(records),
		Metric:       models.MetricTotal,
	}
}

// Expand replaces "all" selections with the observed ids of the records
func Expand(state models.FilterState, records []models.EnrichedRecord) models.FilterState {
	if !state.Origins.All && !state.Destinations.All {
		return state
	}

	observed := Observed(records)
	if state.Origins.All {
		state.Origins = models.SelectIDs(observed.Origins...)
	}
	if state.Destinations.All {
		state.Destinations = models.SelectIDs(observed.Destinations...)
	}
	return state
}

// Apply filters the records with the state's predicates. Arrival order is kept
// and the input is not modified.
func Apply(records []models.EnrichedRecord, state models.FilterState) FilteredView {
	expanded := Expand(state, records)
	preds := Predicates(expanded)

	view := FilteredView{State: expanded}
	for _, r := range records {
		if !MatchAll(preds, r) {
			continue
		}
		view.Records = append(view.Records, r)
		view.TotalVolume += r.Volume
	}
	view.Count = len(view.Records)

	return view
}

// DisplaySubset returns the first limit records of the view in arrival order.
// A limit <= 0 disables the cap.
func DisplaySubset(view FilteredView, limit int) []models.EnrichedRecord {
	if limit <= 0 || limit >= len(view.Records) {
		return view.Records
	}
	return view.Records[:limit:limit]
}
