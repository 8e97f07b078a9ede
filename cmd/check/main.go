package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/passbi/od_dashboard/internal/cache"
	"github.com/passbi/od_dashboard/internal/db"
)

func main() {
	withRedis := flag.Bool("redis", false, "Also check the Redis connection")
	flag.Parse()

	cfg := db.LoadConfigFromEnv()

	fmt.Println("🔗 Testing database connection...")
	fmt.Printf("   Host: %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("   User: %s\n", cfg.User)
	fmt.Printf("   Database: %s\n\n", cfg.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v\n", err)
	}
	defer db.Close()

	fmt.Println("✅ Connection successful!")

	var pgVersion string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&pgVersion); err != nil {
		log.Printf("⚠️  Could not get PostgreSQL version: %v\n", err)
	} else {
		fmt.Printf("\n📊 PostgreSQL Version:\n   %s\n", pgVersion)
	}

	if err := db.HealthCheck(ctx); err != nil {
		fmt.Printf("\n⚠️  %v\n", err)
		fmt.Println("   → Run od-import once or start the API with DATA_SOURCE=db to create the tables")
	} else {
		fmt.Println("\n✅ Schema present")

		datasets, err := db.NewRepository(pool).ListDatasets(ctx)
		if err != nil {
			log.Printf("⚠️  Could not list datasets: %v\n", err)
		} else {
			fmt.Printf("\n📋 Datasets (%d):\n", len(datasets))
			for _, ds := range datasets {
				fmt.Printf("   - %s %s [%s] %d zones, %d records, modes %v\n",
					ds.ID, ds.Name, ds.Status, ds.ZonesCount, ds.RecordsCount, ds.Modes)
			}
		}
	}

	if !*withRedis {
		return
	}

	fmt.Println("\n🔗 Testing Redis connection...")
	if _, err := cache.GetClient(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v\n", err)
	}
	defer cache.Close()

	stats, err := cache.Stats(ctx)
	if err != nil {
		log.Printf("⚠️  Could not read Redis stats: %v\n", err)
		return
	}
	fmt.Println("✅ Redis reachable")
	for k, v := range stats {
		fmt.Printf("   %s: %v\n", k, v)
	}
}
