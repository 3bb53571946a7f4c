package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "file", cfg.CatalogSource)
	assert.Equal(t, "relative", cfg.SearchToleranceMode)
	assert.InDelta(t, 0.10, cfg.SearchTolerance, 1e-12)
	assert.Equal(t, 250000, cfg.SearchMaxNodes)
	assert.Equal(t, 3, cfg.SearchMaxAlternatives)
	assert.Equal(t, 15*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://multi-frontend-mu.vercel.app"}, cfg.CorsOrigins)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SEARCH_TOLERANCE_MODE", "absolute")
	t.Setenv("SEARCH_TOLERANCE", "2.5")
	t.Setenv("SEARCH_MAX_NODES", "1000")
	t.Setenv("CATALOG_CACHE_TTL", "1m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
	assert.Equal(t, "absolute", cfg.SearchToleranceMode)
	assert.InDelta(t, 2.5, cfg.SearchTolerance, 1e-12)
	assert.Equal(t, 1000, cfg.SearchMaxNodes)
	assert.Equal(t, time.Minute, cfg.CatalogCacheTTL)
}

func TestLoadConfig_RejectsInvalidToleranceMode(t *testing.T) {
	t.Setenv("SEARCH_TOLERANCE_MODE", "fuzzy")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestMaxLegsForSport(t *testing.T) {
	cfg := &Config{SearchDefaultMaxLegs: 8, SearchCombinedMaxLegs: 17}

	assert.Equal(t, 8, cfg.MaxLegsForSport("nrl"))
	assert.Equal(t, 8, cfg.MaxLegsForSport(""))
	assert.Equal(t, 17, cfg.MaxLegsForSport("Combined"))
}
