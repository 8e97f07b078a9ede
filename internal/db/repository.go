package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/paulmach/orb/geojson"
)

const batchSize = 1000

// Dataset statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Repository reads and writes datasets
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin starts a transaction for InsertZones and InsertRecords
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateDataset inserts a running dataset row and returns its id
func (r *Repository) CreateDataset(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dataset (id, name, status)
		VALUES ($1, $2, $3)
	`, id, name, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset: %w", err)
	}
	return id, nil
}

// FinishDataset records the outcome of an import
func (r *Repository) FinishDataset(ctx context.Context, id, status string, zonesCount, recordsCount int, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dataset
		SET completed_at = NOW(),
		    status = $2,
		    zones_count = $3,
		    records_count = $4,
		    message = $5
		WHERE id = $1
	`, id, status, zonesCount, recordsCount, message)
	if err != nil {
		return fmt.Errorf("failed to update dataset %s: %w", id, err)
	}
	return nil
}

// InsertZones stores every zone of a built registry
func InsertZones(ctx context.Context, tx pgx.Tx, datasetID string, reg *zones.Registry) error {
	batch := &pgx.Batch{}

	for _, id := range reg.IDs() {
		z, _ := reg.Zone(id)

		geometry, err := json.Marshal(geojson.NewGeometry(z.Geometry))
		if err != nil {
			return fmt.Errorf("failed to encode geometry of zone %d: %w", id, err)
		}
		properties, err := json.Marshal(z.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode properties of zone %d: %w", id, err)
		}

		batch.Queue(`
			INSERT INTO zone (dataset_id, id, geometry, properties)
			VALUES ($1, $2, $3, $4)
		`, datasetID, int64(id), geometry, properties)

		if batch.Len() >= batchSize {
			if err := sendBatch(ctx, tx, batch); err != nil {
				return fmt.Errorf("failed to insert zone batch: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to insert zone final batch: %w", err)
	}

	log.Printf("Imported %d zones", reg.Len())
	return nil
}

// InsertRecords stores one mode table; seq keeps the file order
func InsertRecords(ctx context.Context, tx pgx.Tx, datasetID string, mode models.Mode, records []models.ODRecord) error {
	batch := &pgx.Batch{}

	for seq, rec := range records {
		batch.Queue(`
			INSERT INTO od_record (dataset_id, mode, seq, origin, destination, volume)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, datasetID, string(mode), seq, int64(rec.Origin), int64(rec.Destination), rec.Volume)

		if batch.Len() >= batchSize {
			if err := sendBatch(ctx, tx, batch); err != nil {
				return fmt.Errorf("failed to insert %s batch at %d: %w", mode, seq, err)
			}
			batch = &pgx.Batch{}
		}
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to insert %s final batch: %w", mode, err)
	}

	log.Printf("Imported %d %s records", len(records), mode)
	return nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

// ListDatasets returns every dataset, newest first
func (r *Repository) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id::text, d.name, d.status, d.zones_count, d.records_count, d.message,
		       d.created_at, d.completed_at,
		       COALESCE(ARRAY(SELECT DISTINCT mode FROM od_record o WHERE o.dataset_id = d.id), '{}')
		FROM dataset d
		ORDER BY d.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []models.Dataset
	for rows.Next() {
		var (
			ds          models.Dataset
			completedAt *time.Time
			modes       []string
		)
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Status, &ds.ZonesCount, &ds.RecordsCount,
			&ds.Message, &ds.CreatedAt, &completedAt, &modes); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		ds.CompletedAt = completedAt
		for _, m := range modes {
			ds.Modes = append(ds.Modes, models.Mode(m))
		}
		models.SortModes(ds.Modes)
		datasets = append(datasets, ds)
	}

	return datasets, rows.Err()
}

// LoadZones rebuilds the zone features of a dataset
func (r *Repository) LoadZones(ctx context.Context, datasetID string) ([]*geojson.Feature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, geometry, properties
		FROM zone
		WHERE dataset_id = $1
		ORDER BY id
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	defer rows.Close()

	var features []*geojson.Feature
	for rows.Next() {
		var (
			id                   int64
			geometry, properties []byte
		)
		if err := rows.Scan(&id, &geometry, &properties); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}

		g, err := geojson.UnmarshalGeometry(geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry of zone %d: %w", id, err)
		}

		f := geojson.NewFeature(g.Geometry())
		if err := json.Unmarshal(properties, &f.Properties); err != nil {
			return nil, fmt.Errorf("failed to decode properties of zone %d: %w", id, err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["id"] = id
		features = append(features, f)
	}

	return features, rows.Err()
}

// LoadTables returns every mode table of a dataset in file order
func (r *Repository) LoadTables(ctx context.Context, datasetID string) (map[models.Mode][]models.ODRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mode, origin, destination, volume
		FROM od_record
		WHERE dataset_id = $1
		ORDER BY mode, seq
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load OD records: %w", err)
	}
	defer rows.Close()

	tables := make(map[models.Mode][]models.ODRecord)
	for rows.Next() {
		var (
			mode                string
			origin, destination int64
			volume              float64
		)
		if err := rows.Scan(&mode, &origin, &destination, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan OD record of %s: %w", datasetID, err)
		}
		m := models.Mode(mode)
		tables[m] = append(tables[m], models.ODRecord{
			Origin:      models.ZoneID(origin),
			Destination: models.ZoneID(destination),
			Volume:      volume,
		})
	}

	return tables, rows.Err()
}
