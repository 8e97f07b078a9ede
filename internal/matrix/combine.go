package matrix

import (
	"errors"
	"fmt"
	"sort"

	"github.com/passbi/od_dashboard/internal/models"
)

// ErrUnknownMode is returned when a requested mode has no table
var ErrUnknownMode = errors.New("unknown mode")

// Combine labels each table with its mode, concatenates them and sums volume
// by (origin, destination, mode). Duplicate pairs inside one table collapse
// into a single record. The result is ordered by origin, destination, mode.
func Combine(tables map[models.Mode][]models.ODRecord) []models.ODRecord {
	type key struct {
		origin      models.ZoneID
		destination models.ZoneID
		mode        models.Mode
	}

	sums := make(map[key]float64)
	for mode, records := range tables {
		for _, r := range records {
			sums[key{r.Origin, r.Destination, mode}] += r.Volume
		}
	}

	combined := make([]models.ODRecord, 0, len(sums))
	for k, volume := range sums {
		combined = append(combined, models.ODRecord{
			Origin:      k.origin,
			Destination: k.destination,
			Volume:      volume,
			Mode:        k.mode,
		})
	}

	sort.Slice(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		if a.Destination != b.Destination {
			return a.Destination < b.Destination
		}
		return a.Mode < b.Mode
	})

	return combined
}

// SelectTables returns the active table for a mode selection.
// A single mode bypasses the combiner and its table is returned as is.
func SelectTables(tables map[models.Mode][]models.ODRecord, modes []models.Mode) ([]models.ODRecord, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("%w: no mode selected", ErrUnknownMode)
	}

	selected := make(map[models.Mode][]models.ODRecord, len(modes))
	for _, m := range modes {
		records, ok := tables[m]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMode, m)
		}
		selected[m] = records
	}

	if len(selected) == 1 {
		return selected[modes[0]], nil
	}

	return Combine(selected), nil
}
