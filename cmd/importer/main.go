package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/passbi/od_dashboard/internal/db"
	"github.com/passbi/od_dashboard/internal/ingest"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
)

// tableFlags collects repeated --table values
type tableFlags []string

func (t *tableFlags) String() string {
	return strings.Join(*t, ",")
}

func (t *tableFlags) Set(value string) error {
	*t = append(*t, value)
	return nil
}

func main() {
	name := flag.String("name", "", "Dataset name (required)")
	zonesPath := flag.String("zones", "", "Path to the zone GeoJSON FeatureCollection (required)")
	duplicates := flag.String("duplicates", "reject", "Duplicate zone policy: reject or last-write-wins")
	idProperty := flag.String("id-property", "id", "Feature property holding the zone id")
	var tables tableFlags
	flag.Var(&tables, "table", "OD table as Mode=path.csv or path.csv (repeatable, required)")

	flag.Parse()

	if *name == "" || *zonesPath == "" || len(tables) == 0 {
		fmt.Println("Usage: od-import --name=<name> --zones=<zonas.geojson> --table=Coletivo=<a.csv> [--table=Individual=<b.csv>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	sources, err := ingest.ParseTableList(tables.String())
	if err != nil {
		log.Fatalf("Invalid --table: %v", err)
	}

	policy, err := zones.ParseDuplicatePolicy(*duplicates)
	if err != nil {
		log.Fatalf("Invalid --duplicates: %v", err)
	}

	log.Println("Starting OD dataset import...")
	log.Printf("Dataset: %s", *name)
	log.Printf("Zones file: %s", *zonesPath)

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	repo := db.NewRepository(pool)

	datasetID, err := repo.CreateDataset(ctx, *name)
	if err != nil {
		log.Fatalf("Failed to create dataset: %v", err)
	}

	opts := zones.Options{Duplicates: policy, IDProperty: *idProperty}
	zonesCount, recordsCount, err := runImport(ctx, repo, datasetID, *zonesPath, sources, opts)
	if err != nil {
		if ferr := repo.FinishDataset(ctx, datasetID, db.StatusFailed, 0, 0, err.Error()); ferr != nil {
			log.Printf("Warning: %v", ferr)
		}
		log.Fatalf("Import failed: %v", err)
	}

	message := fmt.Sprintf("Imported %d zones, %d OD records", zonesCount, recordsCount)
	if err := repo.FinishDataset(ctx, datasetID, db.StatusCompleted, zonesCount, recordsCount, message); err != nil {
		log.Fatalf("Failed to update dataset: %v", err)
	}

	log.Printf("Import completed successfully! Dataset id: %s", datasetID)
}

func runImport(ctx context.Context, repo *db.Repository, datasetID, zonesPath string, sources []ingest.TableSource, opts zones.Options) (int, int, error) {
	startTime := time.Now()

	log.Println("Step 1/3: Parsing zones...")
	features, err := ingest.ParseZonesFile(zonesPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse zones: %w", err)
	}

	// the registry is built before writing so broken geometry never reaches the database
	reg, err := zones.Build(features, opts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build zone registry: %w", err)
	}

	log.Println("Step 2/3: Parsing OD tables...")
	tables := make(map[models.Mode][]models.ODRecord, len(sources))
	for _, src := range sources {
		records, err := ingest.ParseODFile(src.Path)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to parse %s: %w", src.Path, err)
		}
		tables[src.Mode] = records
		log.Printf("  %s: %d records from %s", src.Mode, len(records), src.Path)
	}

	log.Println("Step 3/3: Writing to database...")
	tx, err := repo.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.InsertZones(ctx, tx, datasetID, reg); err != nil {
		return 0, 0, fmt.Errorf("failed to import zones: %w", err)
	}

	recordsCount := 0
	for mode, records := range tables {
		if err := db.InsertRecords(ctx, tx, datasetID, mode, records); err != nil {
			return 0, 0, fmt.Errorf("failed to import %s records: %w", mode, err)
		}
		recordsCount += len(records)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Import completed in %s", time.Since(startTime))
	return reg.Len(), recordsCount, nil
}
