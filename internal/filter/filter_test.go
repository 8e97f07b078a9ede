package filter

import (
	"testing"

	"github.com/passbi/od_dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(o, d models.ZoneID, v float64, mode models.Mode) models.EnrichedRecord {
	return models.EnrichedRecord{ODRecord: models.ODRecord{Origin: o, Destination: d, Volume: v, Mode: mode}}
}

func TestPredicates(t *testing.T) {
	r := rec(1, 2, 10, models.ModeColetivo)

	t.Run("Origin", func(t *testing.T) {
		p := &OriginIn{IDs: idSet([]models.ZoneID{1, 3})}
		assert.Equal(t, "origin", p.Name())
		assert.True(t, p.Match(r))
		assert.False(t, p.Match(rec(2, 2, 1, "")))
	})

	t.Run("Destination", func(t *testing.T) {
		p := &DestinationIn{IDs: idSet([]models.ZoneID{1})}
		assert.Equal(t, "destination", p.Name())
		assert.False(t, p.Match(r))
	})

	t.Run("Volume bounds are inclusive", func(t *testing.T) {
		p := &VolumeBetween{Range: models.VolumeRange{Min: 10, Max: 20}}
		assert.Equal(t, "volume", p.Name())
		assert.True(t, p.Match(r))
		assert.True(t, p.Match(rec(1, 2, 20, "")))
		assert.False(t, p.Match(rec(1, 2, 9.99, "")))
	})

	t.Run("Mode", func(t *testing.T) {
		p := &ModeIn{Modes: map[models.Mode]struct{}{models.ModeIndividual: {}}}
		assert.Equal(t, "mode", p.Name())
		assert.False(t, p.Match(r))
		assert.True(t, p.Match(rec(1, 2, 1, models.ModeIndividual)))
		assert.True(t, p.Match(rec(1, 2, 1, "")), "unlabelled records match")
	})

	t.Run("Empty selection matches nothing", func(t *testing.T) {
		preds := Predicates(models.FilterState{
			Origins:      models.SelectIDs(),
			Destinations: models.SelectIDs(1, 2),
			Volume:       models.VolumeRange{Max: 100},
		})
		assert.False(t, MatchAll(preds, r))
	})
}

func TestApplyVolumeRange(t *testing.T) {
	records := []models.EnrichedRecord{
		rec(1, 2, 3, ""),
		rec(1, 3, 7, ""),
		rec(2, 3, 12, ""),
	}

	state := DefaultState(records)
	state.Volume = models.VolumeRange{Min: 5, Max: 10}

	view := Apply(records, state)

	require.Equal(t, 1, view.Count)
	assert.Equal(t, records[1], view.Records[0])
	assert.Equal(t, 7.0, view.TotalVolume)
	assert.Equal(t, int64(7), view.RoundedTotal())
}

func TestApplyExpandsAll(t *testing.T) {
	records := []models.EnrichedRecord{
		rec(3, 1, 1, ""),
		rec(1, 2, 1, ""),
		rec(3, 2, 1, ""),
	}

	view := Apply(records, DefaultState(records))

	assert.Equal(t, 3, view.Count)
	assert.Equal(t, models.SelectIDs(1, 3), view.State.Origins)
	assert.Equal(t, models.SelectIDs(1, 2), view.State.Destinations)
	assert.False(t, view.State.Origins.All)
}

func TestApplyKeepsArrivalOrder(t *testing.T) {
	records := []models.EnrichedRecord{
		rec(5, 1, 9, ""),
		rec(1, 1, 2, ""),
		rec(3, 1, 4, ""),
	}

	view := Apply(records, DefaultState(records))

	assert.Equal(t, records, view.Records)
}

func TestApplyIsIdempotent(t *testing.T) {
	records := []models.EnrichedRecord{
		rec(1, 2, 10, ""), rec(2, 1, 5, ""), rec(1, 1, 3, ""), rec(2, 3, 8, ""),
	}
	state := DefaultState(records)
	state.Origins = models.SelectIDs(1, 2)
	state.Destinations = models.SelectIDs(1, 2)
	state.Volume = models.VolumeRange{Min: 4, Max: 10}

	assert.Equal(t, Apply(records, state), Apply(records, state))

	// filtering an already filtered view changes nothing
	once := Apply(records, state)
	twice := Apply(once.Records, state)

	assert.Equal(t, once.Records, twice.Records)
	assert.Equal(t, once.TotalVolume, twice.TotalVolume)
}

func TestApplyIsMonotonic(t *testing.T) {
	records := []models.EnrichedRecord{
		rec(1, 2, 10, ""), rec(2, 1, 5, ""), rec(1, 1, 3, ""), rec(2, 3, 8, ""), rec(3, 3, 1, ""),
	}

	wide := DefaultState(records)
	wide.Origins = models.SelectIDs(1, 2, 3)
	wide.Destinations = models.SelectIDs(1, 2, 3)

	narrow := wide
	narrow.Origins = models.SelectIDs(1, 2)
	narrow.Volume = models.VolumeRange{Min: 4, Max: wide.Volume.Max}

	wideView := Apply(records, wide)
	narrowView := Apply(records, narrow)

	assert.LessOrEqual(t, narrowView.Count, wideView.Count)
	assert.LessOrEqual(t, narrowView.TotalVolume, wideView.TotalVolume)
	for _, r := range narrowView.Records {
		assert.Contains(t, wideView.Records, r)
	}
}

func TestVolumeBounds(t *testing.T) {
	assert.Equal(t, models.VolumeRange{}, VolumeBounds(nil))

	bounds := VolumeBounds([]models.EnrichedRecord{rec(1, 2, 3.5, ""), rec(1, 2, 12.25, "")})
	assert.Equal(t, models.VolumeRange{Min: 0, Max: 12.25}, bounds)
}

func TestDisplaySubset(t *testing.T) {
	records := make([]models.EnrichedRecord, 0, 750)
	for i := 0; i < 750; i++ {
		records = append(records, rec(models.ZoneID(i%7), models.ZoneID(i%11), float64(i), ""))
	}

	view := Apply(records, DefaultState(records))
	require.Equal(t, 750, view.Count)

	display := DisplaySubset(view, DefaultDisplayCap)
	require.Len(t, display, 500)
	assert.Equal(t, view.Records[:500], display)

	// the cap never changes the totals
	assert.Equal(t, 750, view.Count)

	small := DisplaySubset(Apply(records[:10], DefaultState(records[:10])), DefaultDisplayCap)
	assert.Len(t, small, 10)

	assert.Len(t, DisplaySubset(view, 0), 750)
}

func TestObserved(t *testing.T) {
	tests := []struct {
		name     string
		records  []models.EnrichedRecord
		expected Options
	}{
		{
			name:     "Empty",
			expected: Options{Origins: []models.ZoneID{}, Destinations: []models.ZoneID{}},
		},
		{
			name:    "Sorted and unique",
			records: []models.EnrichedRecord{rec(3, 1, 1, ""), rec(1, 2, 1, ""), rec(3, 2, 1, "")},
			expected: Options{
				Origins:      []models.ZoneID{1, 3},
				Destinations: []models.ZoneID{1, 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Observed(tt.records))
		})
	}
}
