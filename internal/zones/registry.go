package zones

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/passbi/od_dashboard/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DuplicatePolicy decides what happens when two features share an id
type DuplicatePolicy int

const (
	// RejectDuplicates fails the build with a *DuplicateZoneError
	RejectDuplicates DuplicatePolicy = iota
	// LastWriteWins keeps the later feature and records the overwritten id
	LastWriteWins
)

// ParseDuplicatePolicy parses "reject" or "last-write-wins"
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectDuplicates, nil
	case "last-write-wins", "lww":
		return LastWriteWins, nil
	}
	return RejectDuplicates, fmt.Errorf("invalid duplicate zone policy: %q", s)
}

// Options configures a registry build
type Options struct {
	Duplicates DuplicatePolicy
	IDProperty string // feature property holding the zone id, "id" when empty
}

// Zone is a registered traffic zone
type Zone struct {
	ID         models.ZoneID
	Geometry   orb.Geometry
	Centroid   models.LatLon
	Properties map[string]interface{}
}

// Registry maps zone ids to their geometry and centroid.
// It is immutable once built.
type Registry struct {
	zones       map[models.ZoneID]*Zone
	ids         []models.ZoneID
	overwritten []models.ZoneID
}

// Build registers every feature of the collection.
// Structural problems abort the whole build: a missing zone would corrupt every total.
func Build(features []*geojson.Feature, opts Options) (*Registry, error) {
	idProp := opts.IDProperty
	if idProp == "" {
		idProp = "id"
	}

	r := &Registry{zones: make(map[models.ZoneID]*Zone, len(features))}
	seenAt := make(map[models.ZoneID]int, len(features))

	for i, f := range features {
		if f == nil {
			return nil, &MalformedGeometryError{Index: i, Reason: "null feature"}
		}

		id, err := FeatureZoneID(f, idProp)
		if err != nil {
			return nil, &MalformedGeometryError{Index: i, Reason: err.Error()}
		}

		centroid, reason := polygonCentroid(f.Geometry)
		if reason != "" {
			return nil, &MalformedGeometryError{Index: i, ZoneID: id, HasID: true, Reason: reason}
		}

		if first, dup := seenAt[id]; dup {
			if opts.Duplicates != LastWriteWins {
				return nil, &DuplicateZoneError{ID: id, FirstIndex: first, SecondIndex: i}
			}
			log.Printf("Warning: zone %d redefined by feature %d (was feature %d), keeping the later one", id, i, first)
			r.overwritten = append(r.overwritten, id)
		}
		seenAt[id] = i

		props := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}

		r.zones[id] = &Zone{
			ID:         id,
			Geometry:   f.Geometry,
			Centroid:   centroid,
			Properties: props,
		}
	}

	if len(r.zones) == 0 {
		return nil, ErrEmptyRegistry
	}

	r.ids = make([]models.ZoneID, 0, len(r.zones))
	for id := range r.zones {
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })

	return r, nil
}

// Lookup returns the centroid of a zone. Unknown ids report false.
func (r *Registry) Lookup(id models.ZoneID) (models.LatLon, bool) {
	z, ok := r.zones[id]
	if !ok {
		return models.LatLon{}, false
	}
	return z.Centroid, true
}

// Zone returns a registered zone
func (r *Registry) Zone(id models.ZoneID) (*Zone, bool) {
	z, ok := r.zones[id]
	return z, ok
}

// IDs returns every zone id in ascending order
func (r *Registry) IDs() []models.ZoneID {
	out := make([]models.ZoneID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of registered zones
func (r *Registry) Len() int {
	return len(r.zones)
}

// Overwritten lists ids replaced under LastWriteWins, in encounter order
func (r *Registry) Overwritten() []models.ZoneID {
	return r.overwritten
}

// MeanCenter returns the arithmetic mean of all centroids, used as the map anchor
func (r *Registry) MeanCenter() (models.LatLon, error) {
	if r == nil || len(r.zones) == 0 {
		return models.LatLon{}, ErrEmptyRegistry
	}

	var sumLat, sumLon float64
	for _, id := range r.ids {
		c := r.zones[id].Centroid
		sumLat += c.Lat
		sumLon += c.Lon
	}

	n := float64(len(r.ids))
	return models.LatLon{Lat: sumLat / n, Lon: sumLon / n}, nil
}

// FeatureZoneID reads the integer zone id from a feature property,
// falling back to the feature id
func FeatureZoneID(f *geojson.Feature, prop string) (models.ZoneID, error) {
	if v, ok := f.Properties[prop]; ok && v != nil {
		return toZoneID(v)
	}
	if f.ID != nil {
		return toZoneID(f.ID)
	}
	return 0, fmt.Errorf("missing zone id property %q", prop)
}

func toZoneID(v interface{}) (models.ZoneID, error) {
	switch id := v.(type) {
	case float64:
		zid, ok := models.ZoneIDFromFloat(id)
		if !ok {
			return 0, fmt.Errorf("zone id %v is not an int64 integer", id)
		}
		return zid, nil
	case int:
		return models.ZoneID(id), nil
	case int64:
		return models.ZoneID(id), nil
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0, fmt.Errorf("zone id %q is not an integer", id.String())
		}
		return models.ZoneID(n), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("zone id %q is not an integer", id)
		}
		return models.ZoneID(n), nil
	}
	return 0, fmt.Errorf("unsupported zone id type %T", v)
}

// polygonCentroid returns the planar centroid, or a non-empty reason when
// the geometry cannot serve as a zone
func polygonCentroid(g orb.Geometry) (models.LatLon, string) {
	switch geom := g.(type) {
	case nil:
		return models.LatLon{}, "missing geometry"
	case orb.Polygon:
		if !usablePolygon(geom) {
			return models.LatLon{}, "polygon has no usable outer ring"
		}
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return models.LatLon{}, "empty multipolygon"
		}
		for _, p := range geom {
			if !usablePolygon(p) {
				return models.LatLon{}, "multipolygon member has no usable outer ring"
			}
		}
	default:
		return models.LatLon{}, fmt.Sprintf("geometry type %s is not polygonal", g.GeoJSONType())
	}

	pt, _ := planar.CentroidArea(g)
	if !finite(pt.X()) || !finite(pt.Y()) {
		return models.LatLon{}, "centroid is not finite"
	}

	// GeoJSON positions are [lon, lat]
	return models.LatLon{Lat: pt.Y(), Lon: pt.X()}, ""
}

func usablePolygon(p orb.Polygon) bool {
	return len(p) > 0 && len(p[0]) >= 3
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
