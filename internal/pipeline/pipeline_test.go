package pipeline

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/passbi/od_dashboard/internal/ingest"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zonesJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"id":1},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
	{"type":"Feature","properties":{"id":2},"geometry":{"type":"Polygon","coordinates":[[[4,0],[6,0],[6,2],[4,2],[4,0]]]}}
]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	f1 := geojson.NewFeature(orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}})
	f1.Properties["id"] = 1
	f2 := geojson.NewFeature(orb.Polygon{{{4, 0}, {6, 0}, {6, 2}, {4, 2}, {4, 0}}})
	f2.Properties["id"] = 2
	reg, err := zones.Build([]*geojson.Feature{f1, f2}, zones.Options{})
	require.NoError(t, err)

	return &Dataset{
		Info:     models.Dataset{ID: "test", Name: "test", Status: "completed"},
		Registry: reg,
		Tables: map[models.Mode][]models.ODRecord{
			models.ModeColetivo: {
				{Origin: 1, Destination: 2, Volume: 10},
				{Origin: 2, Destination: 1, Volume: 5},
				{Origin: 1, Destination: 1, Volume: 3},
				{Origin: 1, Destination: 99, Volume: 4},
			},
			models.ModeIndividual: {
				{Origin: 1, Destination: 2, Volume: 6},
			},
		},
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	zonesPath := writeFile(t, dir, "zonas.geojson", zonesJSON)
	coletivo := writeFile(t, dir, "matriz_od_coletivo.csv", "origem,destino,volume\n1,2,10\n2,1,5\n")
	individual := writeFile(t, dir, "matriz_od_individual.csv", "origem,destino,volume\n1,2,7\n")

	sources := []ingest.TableSource{
		{Mode: models.ModeIndividual, Path: individual},
		{Mode: models.ModeColetivo, Path: coletivo},
	}

	store := NewStore()
	ds, err := store.LoadFiles("sample", zonesPath, sources, zones.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Info.ZonesCount)
	assert.Equal(t, 3, ds.Info.RecordsCount)
	assert.Equal(t, []models.Mode{models.ModeColetivo, models.ModeIndividual}, ds.Info.Modes)
	assert.Equal(t, models.ModeColetivo, ds.DefaultMode())
	assert.True(t, store.IsLoaded())

	got, err := store.Get(ds.Info.ID)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	t.Run("Same content gives the same id", func(t *testing.T) {
		other := NewStore()
		reversed := []ingest.TableSource{sources[1], sources[0]}
		again, err := other.LoadFiles("sample", zonesPath, reversed, zones.Options{})
		require.NoError(t, err)
		assert.Equal(t, ds.Info.ID, again.Info.ID)
	})

	t.Run("Different content gives another id", func(t *testing.T) {
		changed := writeFile(t, dir, "other.csv", "origem,destino,volume\n1,2,8\n")
		other, err := NewStore().LoadFiles("sample", zonesPath, []ingest.TableSource{
			{Mode: models.ModeColetivo, Path: changed},
		}, zones.Options{})
		require.NoError(t, err)
		assert.NotEqual(t, ds.Info.ID, other.Info.ID)
	})

	t.Run("Broken geometry aborts the load", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.geojson", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"id":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`)
		_, err := NewStore().LoadFiles("bad", bad, sources, zones.Options{})
		assert.True(t, errors.Is(err, zones.ErrMalformedGeometry))
	})

	t.Run("Unknown dataset", func(t *testing.T) {
		_, err := store.Get("missing")
		assert.True(t, errors.Is(err, ErrDatasetNotFound))
	})
}

type fakeSource struct {
	infos     []models.Dataset
	features  map[string][]*geojson.Feature
	tables    map[string]map[models.Mode][]models.ODRecord
	tablesErr error
}

func (f *fakeSource) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	return f.infos, nil
}

func (f *fakeSource) LoadZones(ctx context.Context, id string) ([]*geojson.Feature, error) {
	return f.features[id], nil
}

func (f *fakeSource) LoadTables(ctx context.Context, id string) (map[models.Mode][]models.ODRecord, error) {
	if f.tablesErr != nil {
		return nil, f.tablesErr
	}
	return f.tables[id], nil
}

func TestLoadFromDB(t *testing.T) {
	features, err := ingest.ParseZones(strings.NewReader(zonesJSON))
	require.NoError(t, err)

	newSource := func() *fakeSource {
		return &fakeSource{
			infos: []models.Dataset{
				{ID: "a", Name: "ok", Status: "completed"},
				{ID: "b", Name: "running", Status: "running"},
			},
			features: map[string][]*geojson.Feature{"a": features},
			tables: map[string]map[models.Mode][]models.ODRecord{
				"a": {models.ModeColetivo: {{Origin: 1, Destination: 2, Volume: 1}}},
			},
		}
	}

	t.Run("Completed datasets only", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.LoadFromDB(context.Background(), newSource(), zones.Options{}))

		list := store.List()
		require.Len(t, list, 1)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, []models.Mode{models.ModeColetivo}, list[0].Modes)
	})

	t.Run("Dataset without zones aborts", func(t *testing.T) {
		src := newSource()
		src.infos = append(src.infos, models.Dataset{ID: "c", Name: "empty", Status: "completed"})

		err := NewStore().LoadFromDB(context.Background(), src, zones.Options{})
		assert.ErrorIs(t, err, zones.ErrEmptyRegistry)
	})

	t.Run("Table read failure aborts", func(t *testing.T) {
		src := newSource()
		src.tablesErr = errors.New("failed to scan OD record")

		store := NewStore()
		err := store.LoadFromDB(context.Background(), src, zones.Options{})
		assert.ErrorContains(t, err, "failed to scan OD record")
		assert.False(t, store.IsLoaded())
	})
}

func TestPreparer(t *testing.T) {
	ds := testDataset(t)
	p := NewPreparer(8, time.Minute)

	first, err := p.Prepare(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Mode{models.ModeColetivo}, first.Modes)
	assert.False(t, first.Combined())

	again, err := p.Prepare(ds, []models.Mode{models.ModeColetivo})
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, p.Len())

	both, err := p.Prepare(ds, []models.Mode{models.ModeIndividual, models.ModeColetivo})
	require.NoError(t, err)
	assert.True(t, both.Combined())
	reordered, err := p.Prepare(ds, []models.Mode{models.ModeColetivo, models.ModeIndividual, models.ModeColetivo})
	require.NoError(t, err)
	assert.Same(t, both, reordered)

	_, err = p.Prepare(ds, []models.Mode{"Bicicleta"})
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	p, err := Prepare(testDataset(t), []models.Mode{models.ModeColetivo})
	require.NoError(t, err)

	z1, _ := p.Totals.Get(1)
	assert.Equal(t, models.Totals{Generation: 17, Attraction: 8}, z1)
	assert.Equal(t, 22.0, p.Totals.SumGeneration())
	assert.Equal(t, 22.0, p.Totals.SumAttraction())

	require.Len(t, p.Unresolved, 1)
	assert.Equal(t, models.ZoneID(99), p.Unresolved[0].ZoneID)
	assert.Equal(t, models.VolumeRange{Min: 0, Max: 10}, p.Bounds)
	assert.Equal(t, []models.ZoneID{1, 2}, p.Options.Origins)
	assert.Equal(t, []models.ZoneID{1, 2, 99}, p.Options.Destinations)
}

func TestParseRequest(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		req, err := ParseRequest(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, DefaultRequest(), req)
	})

	t.Run("Every field", func(t *testing.T) {
		q := url.Values{}
		q.Set("modes", "coletivo,individual")
		q.Set("origins", "3, 1")
		q.Set("destinations", "Todos")
		q.Set("volume_min", "5")
		q.Set("volume_max", "10.5")
		q.Set("metric", "geracao")
		q.Set("mode", "Individual")

		req, err := ParseRequest(q)
		require.NoError(t, err)
		assert.Equal(t, []models.Mode{models.ModeColetivo, models.ModeIndividual}, req.Modes)
		assert.Equal(t, models.SelectIDs(3, 1), req.Origins)
		assert.True(t, req.Destinations.All)
		require.NotNil(t, req.VolumeMin)
		assert.Equal(t, 5.0, *req.VolumeMin)
		assert.Equal(t, 10.5, *req.VolumeMax)
		assert.Equal(t, models.MetricGeneration, req.Metric)
		assert.Equal(t, []models.Mode{models.ModeIndividual}, req.ModeFilter)
	})

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Bad origin", key: "origins", value: "1,x"},
		{name: "Bad volume", key: "volume_min", value: "abc"},
		{name: "Infinite volume", key: "volume_max", value: "Inf"},
		{name: "Bad metric", key: "metric", value: "density"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(url.Values{tt.key: []string{tt.value}})
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}

	t.Run("Inverted range", func(t *testing.T) {
		_, err := ParseRequest(url.Values{"volume_min": {"10"}, "volume_max": {"5"}})
		assert.True(t, errors.Is(err, ErrInvalidRequest))
	})
}

func TestCanonicalKey(t *testing.T) {
	a, err := ParseRequest(url.Values{"origins": {"3,1,3"}, "modes": {"individual,coletivo"}})
	require.NoError(t, err)
	b, err := ParseRequest(url.Values{"origins": {"1,3"}, "modes": {"Coletivo,Individual"}, "metric": {"total"}})
	require.NoError(t, err)
	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())

	c, err := ParseRequest(url.Values{"origins": {"1"}})
	require.NoError(t, err)
	assert.NotEqual(t, a.CanonicalKey(), c.CanonicalKey())

	assert.Equal(t, "modes=*&o=all&d=all&vmin=*&vmax=*&metric=total&mode=*", DefaultRequest().CanonicalKey())
}

func TestBuild(t *testing.T) {
	p, err := Prepare(testDataset(t), nil)
	require.NoError(t, err)

	view, err := Build(p, DefaultRequest(), DefaultBuildOptions())
	require.NoError(t, err)

	// the record to zone 99 counts toward totals but is not drawn
	assert.Equal(t, 22.0, view.Summary.TotalVolume)
	assert.Equal(t, "22", view.Summary.TotalFormatted)
	assert.Equal(t, 4, view.Summary.Count)
	assert.Equal(t, 3, view.Summary.Displayed)
	assert.Equal(t, 1, view.Summary.Unresolved)
	assert.Len(t, view.Flows, 3)
	assert.Len(t, view.Chart, 4)
	assert.Equal(t, models.ModeColetivo, view.Chart[0].Mode)
	assert.Len(t, view.Zones.Features, 2)
	assert.Len(t, view.Labels, 2)
	assert.Equal(t, 25.0, view.LegendMax)
	assert.Equal(t, float64(11), view.View.Zoom)
	assert.InDelta(t, 3.0, view.View.Longitude, 1e-9)
	assert.Equal(t, models.SelectIDs(1, 2), view.State.Origins)

	t.Run("Volume range", func(t *testing.T) {
		lo, hi := 5.0, 10.0
		req := DefaultRequest()
		req.VolumeMin, req.VolumeMax = &lo, &hi

		view, err := Build(p, req, DefaultBuildOptions())
		require.NoError(t, err)
		assert.Equal(t, 15.0, view.Summary.TotalVolume)
		assert.Equal(t, 2, view.Summary.Count)
	})

	t.Run("Display cap", func(t *testing.T) {
		view, err := Build(p, DefaultRequest(), BuildOptions{DisplayCap: 1})
		require.NoError(t, err)
		assert.Len(t, view.Flows, 1)
		assert.Equal(t, 4, view.Summary.Count)
	})

	t.Run("Combined modes filtered back to one", func(t *testing.T) {
		combined, err := Prepare(testDataset(t), []models.Mode{models.ModeColetivo, models.ModeIndividual})
		require.NoError(t, err)

		req := DefaultRequest()
		req.ModeFilter = []models.Mode{models.ModeIndividual}
		view, err := Build(combined, req, DefaultBuildOptions())
		require.NoError(t, err)
		assert.Equal(t, 6.0, view.Summary.TotalVolume)
		require.Len(t, view.Chart, 1)
		assert.Equal(t, models.ModeIndividual, view.Chart[0].Mode)
	})
}
