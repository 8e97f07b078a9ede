package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/passbi/od_dashboard/internal/cache"
	"github.com/passbi/od_dashboard/internal/config"
	"github.com/passbi/od_dashboard/internal/db"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/pipeline"
	"github.com/passbi/od_dashboard/internal/zones"
)

func main() {
	ttl := flag.Duration("ttl", 0, "Cache TTL (defaults to CACHE_TTL)")
	flag.Parse()

	log.Println("🔄 OD Dashboard - Cache Warmer")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if _, err := cache.GetClient(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	store := pipeline.NewStore()
	zoneOpts := zones.Options{Duplicates: cfg.Duplicates}

	if cfg.DataSource == config.SourceDB {
		pool, err := db.GetDB()
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := store.LoadFromDB(ctx, db.NewRepository(pool), zoneOpts); err != nil {
			log.Fatalf("❌ Failed to load datasets: %v", err)
		}
	} else if _, err := store.LoadFiles(cfg.DatasetName, cfg.ZonesPath, cfg.Tables, zoneOpts); err != nil {
		log.Fatalf("❌ Failed to load dataset from files: %v", err)
	}

	cacheTTL := *ttl
	if cacheTTL <= 0 {
		cacheTTL = cfg.CacheTTL
	}

	opts := pipeline.BuildOptions{DisplayCap: cfg.DisplayCap, Zoom: cfg.MapZoom}
	startTime := time.Now()
	warmed := 0

	for _, info := range store.List() {
		ds, err := store.Get(info.ID)
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}

		for _, modes := range selections(ds.Modes()) {
			prepared, err := pipeline.Prepare(ds, modes)
			if err != nil {
				log.Printf("Warning: dataset %s modes %v: %v", info.ID, modes, err)
				continue
			}

			req := pipeline.DefaultRequest()
			req.Modes = prepared.Modes

			view, err := pipeline.Build(prepared, req, opts)
			if err != nil {
				log.Printf("Warning: dataset %s modes %v: %v", info.ID, modes, err)
				continue
			}

			data, err := json.Marshal(view)
			if err != nil {
				log.Printf("Warning: failed to encode dashboard: %v", err)
				continue
			}

			key := cache.DashboardKey(info.ID, req.CanonicalKey())
			if err := cache.SetView(ctx, key, data, cacheTTL); err != nil {
				log.Printf("Warning: failed to cache %s: %v", key, err)
				continue
			}

			log.Printf("   %s %v: %d pairs, %d bytes", info.Name, prepared.Modes, view.Summary.Count, len(data))
			warmed++
		}
	}

	log.Printf("✅ Warmed %d dashboards in %v", warmed, time.Since(startTime))
}

// selections returns every single mode plus the combination of all modes
func selections(modes []models.Mode) [][]models.Mode {
	out := make([][]models.Mode, 0, len(modes)+1)
	for _, m := range modes {
		out = append(out, []models.Mode{m})
	}
	if len(modes) > 1 {
		out = append(out, modes)
	}
	return out
}
