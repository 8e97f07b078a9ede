package config

import (
	"testing"
	"time"

	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SourceFiles, cfg.DataSource)
	assert.Equal(t, 500, cfg.DisplayCap)
	assert.Equal(t, 11.0, cfg.MapZoom)
	assert.Equal(t, zones.RejectDuplicates, cfg.Duplicates)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.EnableCache)
	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, models.ModeColetivo, cfg.Tables[0].Mode)
	assert.Equal(t, models.ModeIndividual, cfg.Tables[1].Mode)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATA_SOURCE", "DB")
	t.Setenv("DISPLAY_CAP", "100")
	t.Setenv("MAP_ZOOM", "12.5")
	t.Setenv("DUPLICATE_ZONES", "last-write-wins")
	t.Setenv("ENABLE_CACHE", "true")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("PREPARED_CACHE_TTL", "1h")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, SourceDB, cfg.DataSource)
	assert.Empty(t, cfg.Tables)
	assert.Equal(t, 100, cfg.DisplayCap)
	assert.Equal(t, 12.5, cfg.MapZoom)
	assert.Equal(t, zones.LastWriteWins, cfg.Duplicates)
	assert.True(t, cfg.EnableCache)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.PreparedCacheTTL)
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Bad display cap", key: "DISPLAY_CAP", value: "many"},
		{name: "Zero display cap", key: "DISPLAY_CAP", value: "0"},
		{name: "Bad zoom", key: "MAP_ZOOM", value: "30"},
		{name: "Bad duplicate policy", key: "DUPLICATE_ZONES", value: "merge"},
		{name: "Bad data source", key: "DATA_SOURCE", value: "s3"},
		{name: "Bad duration", key: "CACHE_TTL", value: "soon"},
		{name: "Duplicate table mode", key: "OD_TABLES", value: "Coletivo=a.csv,Coletivo=b.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
