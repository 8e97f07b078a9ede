package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Grid origin near central São Paulo
const (
	baseLat  = -23.60
	baseLon  = -46.70
	cellSize = 0.02
)

func main() {
	out := flag.String("out", "data", "Output directory")
	rows := flag.Int("rows", 4, "Zone grid rows")
	cols := flag.Int("cols", 5, "Zone grid columns")
	pairs := flag.Int("pairs", 120, "OD rows per mode table")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if *rows <= 0 || *cols <= 0 || *pairs <= 0 {
		fmt.Println("Error: rows, cols and pairs must be positive")
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	zonesCount := *rows * *cols
	if err := writeZones(filepath.Join(*out, "zonas.geojson"), *rows, *cols); err != nil {
		fmt.Printf("Error: failed to write zones: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	tables := []struct {
		file  string
		scale float64
	}{
		{"matriz_od_coletivo.csv", 400},
		{"matriz_od_individual.csv", 150},
	}
	for _, t := range tables {
		path := filepath.Join(*out, t.file)
		if err := writeTable(path, rng, zonesCount, *pairs, t.scale); err != nil {
			fmt.Printf("Error: failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("═══════════════════════════════════════════════════")
	fmt.Println("🗺️  Sample OD data generated")
	fmt.Println("═══════════════════════════════════════════════════")
	fmt.Printf("Zones:   %d (%dx%d grid)\n", zonesCount, *rows, *cols)
	fmt.Printf("Pairs:   %d per mode\n", *pairs)
	fmt.Printf("Output:  %s\n", *out)
	fmt.Println("\nTo run the API against these files:")
	fmt.Printf("DATA_SOURCE=files ZONES_PATH=%s/zonas.geojson \\\n", *out)
	fmt.Printf("OD_TABLES=Coletivo=%s/matriz_od_coletivo.csv,Individual=%s/matriz_od_individual.csv go run ./cmd/api\n", *out, *out)
	fmt.Println("═══════════════════════════════════════════════════")
}

// writeZones writes a grid of square zones numbered from 1, row by row
func writeZones(path string, rows, cols int) error {
	fc := geojson.NewFeatureCollection()

	id := 1
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			minLon := baseLon + float64(c)*cellSize
			minLat := baseLat + float64(r)*cellSize
			ring := orb.Ring{
				{minLon, minLat},
				{minLon + cellSize, minLat},
				{minLon + cellSize, minLat + cellSize},
				{minLon, minLat + cellSize},
				{minLon, minLat},
			}

			f := geojson.NewFeature(orb.Polygon{ring})
			f.Properties["id"] = id
			f.Properties["nome"] = fmt.Sprintf("Zona %d", id)
			fc.Append(f)
			id++
		}
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeTable writes random OD rows; repeated pairs are kept as separate rows
func writeTable(path string, rng *rand.Rand, zonesCount, pairs int, scale float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"origem", "destino", "volume"}); err != nil {
		return err
	}

	for i := 0; i < pairs; i++ {
		origin := rng.Intn(zonesCount) + 1
		dest := rng.Intn(zonesCount) + 1
		volume := rng.ExpFloat64() * scale

		err := w.Write([]string{
			strconv.Itoa(origin),
			strconv.Itoa(dest),
			strconv.FormatFloat(volume, 'f', 2, 64),
		})
		if err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
