package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ZoneID identifies a traffic zone
type ZoneID int64

// ZoneIDFromFloat converts an integral float to a zone id.
// Fractions, NaN, infinities and values outside the int64 range report false.
func ZoneIDFromFloat(f float64) (ZoneID, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return ZoneID(f), true
}

// Mode is the transport category an OD volume belongs to
type Mode string

const (
	ModeColetivo   Mode = "Coletivo"
	ModeIndividual Mode = "Individual"
)

// LatLon is a geographic coordinate in degrees
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ODRecord is one row of an origin-destination table
type ODRecord struct {
	Origin      ZoneID  `json:"origem"`
	Destination ZoneID  `json:"destino"`
	Volume      float64 `json:"volume"`
	Mode        Mode    `json:"modo,omitempty"`
}

// Pair returns the "origin - destination" label used by the bar chart
func (r ODRecord) Pair() string {
	return fmt.Sprintf("%d - %d", r.Origin, r.Destination)
}

// EnrichedRecord is an OD record with the centroids of both ends.
// A nil coordinate means the zone id was not found in the registry.
type EnrichedRecord struct {
	ODRecord
	OrigLat *float64 `json:"orig_lat"`
	OrigLon *float64 `json:"orig_lon"`
	DestLat *float64 `json:"dest_lat"`
	DestLon *float64 `json:"dest_lon"`
}

// OriginCoord returns the origin centroid if it was resolved
func (r EnrichedRecord) OriginCoord() (LatLon, bool) {
	if r.OrigLat == nil || r.OrigLon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *r.OrigLat, Lon: *r.OrigLon}, true
}

// DestinationCoord returns the destination centroid if it was resolved
func (r EnrichedRecord) DestinationCoord() (LatLon, bool) {
	if r.DestLat == nil || r.DestLon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *r.DestLat, Lon: *r.DestLon}, true
}

// Resolved reports whether both ends have coordinates
func (r EnrichedRecord) Resolved() bool {
	_, okOrig := r.OriginCoord()
	_, okDest := r.DestinationCoord()
	return okOrig && okDest
}

// Totals holds the aggregated trip volume of a zone
type Totals struct {
	Generation float64 `json:"generation"`
	Attraction float64 `json:"attraction"`
}

// Total returns generation + attraction
func (t Totals) Total() float64 {
	return t.Generation + t.Attraction
}

// Metric selects which aggregate colors the choropleth
type Metric string

const (
	MetricTotal      Metric = "total"
	MetricGeneration Metric = "generation"
	MetricAttraction Metric = "attraction"
)

// Metrics lists the supported metrics in display order
var Metrics = []Metric{MetricTotal, MetricGeneration, MetricAttraction}

// ParseMetric accepts the English names and the Portuguese "geracao"/"atracao"
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "total":
		return MetricTotal, nil
	case "generation", "geracao", "geração":
		return MetricGeneration, nil
	case "attraction", "atracao", "atração":
		return MetricAttraction, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Value extracts the metric from zone totals
func (m Metric) Value(t Totals) float64 {
	switch m {
	case MetricGeneration:
		return t.Generation
	case MetricAttraction:
		return t.Attraction
	default:
		return t.Total()
	}
}

// SortModes orders modes Coletivo, Individual, then alphabetically
func SortModes(modes []Mode) {
	rank := func(m Mode) int {
		switch m {
		case ModeColetivo:
			return 0
		case ModeIndividual:
			return 1
		}
		return 2
	}
	sort.Slice(modes, func(i, j int) bool {
		ri, rj := rank(modes[i]), rank(modes[j])
		if ri != rj {
			return ri < rj
		}
		return modes[i] < modes[j]
	})
}

// UnresolvedReference is an OD record end pointing at an unknown zone
type UnresolvedReference struct {
	Index  int    `json:"index"`
	ZoneID ZoneID `json:"zone_id"`
	End    string `json:"end"` // "origin" or "destination"
}

// Selection is a set of zone ids, or every observed id when All is set
type Selection struct {
	All bool     `json:"all"`
	IDs []ZoneID `json:"ids,omitempty"`
}

// SelectAll returns the "all" selection
func SelectAll() Selection {
	return Selection{All: true}
}

// SelectIDs returns a selection of the given ids
func SelectIDs(ids ...ZoneID) Selection {
	return Selection{IDs: ids}
}

// VolumeRange is an inclusive [Min, Max] volume interval
type VolumeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in the range
func (r VolumeRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// FilterState is the current value of every dashboard widget.
// It is rebuilt on each interaction and never persisted.
type FilterState struct {
	Origins      Selection   `json:"origins"`
	Destinations Selection   `json:"destinations"`
	Volume       VolumeRange `json:"volume"`
	Modes        []Mode      `json:"modes,omitempty"` // empty keeps every mode
	Metric       Metric      `json:"metric"`
}

// Dataset describes an imported zone geometry + OD tables bundle
type Dataset struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	ZonesCount   int        `json:"zones_count"`
	RecordsCount int        `json:"records_count"`
	Modes        []Mode     `json:"modes"`
	Message      string     `json:"message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
