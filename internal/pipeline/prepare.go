package pipeline

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/passbi/od_dashboard/internal/filter"
	"github.com/passbi/od_dashboard/internal/matrix"
	"github.com/passbi/od_dashboard/internal/models"
)

// Prepared is everything derived from a dataset and a mode selection that
// does not depend on the filter widgets. It is shared between requests and
// must not be modified.
type Prepared struct {
	Dataset    *Dataset
	Modes      []models.Mode
	Records    []models.ODRecord
	Totals     matrix.ZoneTotals
	Enriched   []models.EnrichedRecord
	Unresolved []models.UnresolvedReference
	Bounds     models.VolumeRange
	Options    filter.Options
}

// Combined reports whether the active table is the union of several modes
func (p *Prepared) Combined() bool {
	return len(p.Modes) > 1
}

// Preparer memoizes Prepared values by dataset and mode selection
type Preparer struct {
	cache gcache.Cache
}

// NewPreparer builds an LRU of the given size; ttl <= 0 keeps entries until evicted
func NewPreparer(size int, ttl time.Duration) *Preparer {
	if size <= 0 {
		size = 64
	}
	builder := gcache.New(size).LRU()
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}
	return &Preparer{cache: builder.Build()}
}

// Prepare returns the memoized preparation of the dataset for the modes.
// An empty mode list selects the dataset default mode.
func (p *Preparer) Prepare(ds *Dataset, modes []models.Mode) (*Prepared, error) {
	modes = normalizeModes(ds, modes)
	key := prepareKey(ds.Info.ID, modes)

	if cached, err := p.cache.Get(key); err == nil {
		return cached.(*Prepared), nil
	}

	prepared, err := Prepare(ds, modes)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(key, prepared); err != nil {
		log.Printf("Warning: failed to memoize %s: %v", key, err)
	}
	return prepared, nil
}

// Len returns the number of memoized preparations
func (p *Preparer) Len() int {
	return p.cache.Len(false)
}

// Prepare runs the selection, aggregation and resolution stages
func Prepare(ds *Dataset, modes []models.Mode) (*Prepared, error) {
	modes = normalizeModes(ds, modes)

	records, err := matrix.SelectTables(ds.Tables, modes)
	if err != nil {
		return nil, fmt.Errorf("failed to select tables: %w", err)
	}

	enriched, unresolved := matrix.Enrich(records, ds.Registry)
	if len(unresolved) > 0 {
		log.Printf("Warning: dataset %s mode %s: %d OD ends reference unknown zones (first: zone %d)",
			ds.Info.ID, joinModes(modes), len(unresolved), unresolved[0].ZoneID)
	}

	return &Prepared{
		Dataset:    ds,
		Modes:      modes,
		Records:    records,
		Totals:     matrix.ComputeZoneTotals(records, ds.Registry),
		Enriched:   enriched,
		Unresolved: unresolved,
		Bounds:     filter.VolumeBounds(enriched),
		Options:    filter.Observed(enriched),
	}, nil
}

// normalizeModes dedupes and orders the selection so equal selections share a key
func normalizeModes(ds *Dataset, modes []models.Mode) []models.Mode {
	if len(modes) == 0 {
		if m := ds.DefaultMode(); m != "" {
			return []models.Mode{m}
		}
		return nil
	}

	seen := make(map[models.Mode]struct{}, len(modes))
	out := make([]models.Mode, 0, len(modes))
	for _, m := range modes {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	models.SortModes(out)
	return out
}

func prepareKey(datasetID string, modes []models.Mode) string {
	return datasetID + "|" + joinModes(modes)
}

func joinModes(modes []models.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}
