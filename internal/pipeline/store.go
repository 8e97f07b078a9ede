package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/od_dashboard/internal/ingest"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/paulmach/orb/geojson"
)

// ErrDatasetNotFound is returned for unknown dataset ids
var ErrDatasetNotFound = errors.New("dataset not found")

// datasetNamespace scopes the content-derived ids of file datasets
var datasetNamespace = uuid.MustParse("6f1d3c2a-8e4b-5a7f-9c0d-2b3e4f5a6b7c")

// Dataset is a zone registry plus one OD table per mode
type Dataset struct {
	Info     models.Dataset
	Registry *zones.Registry
	Tables   map[models.Mode][]models.ODRecord
}

// Modes returns the dataset modes, Coletivo first
func (d *Dataset) Modes() []models.Mode {
	modes := make([]models.Mode, 0, len(d.Tables))
	for m := range d.Tables {
		modes = append(modes, m)
	}
	models.SortModes(modes)
	return modes
}

// DefaultMode is the mode shown before the user picks one
func (d *Dataset) DefaultMode() models.Mode {
	modes := d.Modes()
	if len(modes) == 0 {
		return ""
	}
	return modes[0]
}

// Source is where completed datasets are read from
type Source interface {
	ListDatasets(ctx context.Context) ([]models.Dataset, error)
	LoadZones(ctx context.Context, datasetID string) ([]*geojson.Feature, error)
	LoadTables(ctx context.Context, datasetID string) (map[models.Mode][]models.ODRecord, error)
}

// Store holds every loaded dataset in memory.
// Datasets are immutable once added.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	order    []string
	loaded   bool
}

var (
	globalStore     *Store
	globalStoreOnce sync.Once
)

// GetStore returns the singleton dataset store
func GetStore() *Store {
	globalStoreOnce.Do(func() {
		globalStore = NewStore()
	})
	return globalStore
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{datasets: make(map[string]*Dataset)}
}

// Add registers a dataset, replacing one with the same id
func (s *Store) Add(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[ds.Info.ID]; !exists {
		s.order = append(s.order, ds.Info.ID)
	}
	s.datasets[ds.Info.ID] = ds
	s.loaded = true
}

// Get returns a dataset by id
func (s *Store) Get(id string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return ds, nil
}

// List returns dataset descriptions in load order
func (s *Store) List() []models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Dataset, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.datasets[id].Info)
	}
	return out
}

// IsLoaded returns true once a dataset has been added
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadFromDB loads every completed dataset from the source.
// Any dataset that fails to load or build aborts the whole load.
func (s *Store) LoadFromDB(ctx context.Context, src Source, opts zones.Options) error {
	startTime := time.Now()
	log.Println("Loading datasets into memory...")

	infos, err := src.ListDatasets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}

	loaded := 0
	for _, info := range infos {
		if info.Status != "completed" {
			continue
		}

		features, err := src.LoadZones(ctx, info.ID)
		if err != nil {
			return fmt.Errorf("failed to load zones of %s: %w", info.ID, err)
		}

		reg, err := zones.Build(features, opts)
		if err != nil {
			return fmt.Errorf("failed to build zone registry of %s (%s): %w", info.ID, info.Name, err)
		}

		tables, err := src.LoadTables(ctx, info.ID)
		if err != nil {
			return fmt.Errorf("failed to load OD tables of %s: %w", info.ID, err)
		}

		ds := &Dataset{Info: info, Registry: reg, Tables: tables}
		ds.Info.Modes = ds.Modes()
		s.Add(ds)
		log.Printf("  Loaded dataset %s: %d zones, %d modes", info.Name, reg.Len(), len(tables))
		loaded++
	}

	log.Printf("Datasets loaded in %v (%d of %d)", time.Since(startTime), loaded, len(infos))
	return nil
}

// LoadFiles builds a dataset from a GeoJSON zone file and one CSV per mode.
// The dataset id is derived from the file contents.
func (s *Store) LoadFiles(name, zonesPath string, sources []ingest.TableSource, opts zones.Options) (*Dataset, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no OD tables given")
	}

	digest := sha256.New()

	raw, err := os.ReadFile(zonesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones: %w", err)
	}
	digest.Write(raw)

	features, err := ingest.ParseZones(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", zonesPath, err)
	}

	reg, err := zones.Build(features, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build zone registry: %w", err)
	}

	sorted := append([]ingest.TableSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Mode < sorted[j].Mode })

	tables := make(map[models.Mode][]models.ODRecord, len(sorted))
	recordsCount := 0
	for _, src := range sorted {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
		}
		fmt.Fprintf(digest, "\x00%s\x00", src.Mode)
		digest.Write(data)

		records, err := ingest.ParseODTable(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", src.Path, err)
		}
		tables[src.Mode] = records
		recordsCount += len(records)
	}

	now := time.Now()
	ds := &Dataset{
		Info: models.Dataset{
			ID:           uuid.NewSHA1(datasetNamespace, digest.Sum(nil)).String(),
			Name:         name,
			Status:       "completed",
			ZonesCount:   reg.Len(),
			RecordsCount: recordsCount,
			CreatedAt:    now,
			CompletedAt:  &now,
		},
		Registry: reg,
		Tables:   tables,
	}
	ds.Info.Modes = ds.Modes()

	s.Add(ds)
	log.Printf("Loaded dataset %s from files: %d zones, %d records", ds.Info.ID, reg.Len(), recordsCount)

	return ds, nil
}
