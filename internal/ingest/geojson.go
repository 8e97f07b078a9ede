package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/paulmach/orb/geojson"
)

// ParseZonesFile parses a zone GeoJSON FeatureCollection file
func ParseZonesFile(filePath string) ([]*geojson.Feature, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseZones(file)
}

// ParseZones decodes a FeatureCollection one feature at a time so that a
// broken geometry is reported with its feature index
func ParseZones(reader io.Reader) ([]*geojson.Feature, error) {
	var collection struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}

	if err := json.NewDecoder(reader).Decode(&collection); err != nil {
		return nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}
	if collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected a FeatureCollection, got type %q", collection.Type)
	}

	features := make([]*geojson.Feature, 0, len(collection.Features))
	for i, raw := range collection.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, &zones.MalformedGeometryError{Index: i, Reason: err.Error()}
		}
		features = append(features, f)
	}

	return features, nil
}
