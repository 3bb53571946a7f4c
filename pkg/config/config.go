package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Catalog
	CatalogSource            string        `mapstructure:"CATALOG_SOURCE"` // "file", "database", "feed"
	CatalogDataDir           string        `mapstructure:"CATALOG_DATA_DIR"`
	CatalogFixtureFile       string        `mapstructure:"CATALOG_FIXTURE_FILE"`
	CatalogFeedURL           string        `mapstructure:"CATALOG_FEED_URL"`
	CatalogFeedRatePerMinute int           `mapstructure:"CATALOG_FEED_RATE_PER_MINUTE"`
	CatalogRefreshSchedule   string        `mapstructure:"CATALOG_REFRESH_SCHEDULE"`
	CatalogCacheTTL          time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	ExternalAPITimeout       time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold  int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// Search
	SearchToleranceMode       string        `mapstructure:"SEARCH_TOLERANCE_MODE"` // "relative", "absolute"
	SearchTolerance           float64       `mapstructure:"SEARCH_TOLERANCE"`
	SearchMaxNodes            int           `mapstructure:"SEARCH_MAX_NODES"`
	SearchMaxResults          int           `mapstructure:"SEARCH_MAX_RESULTS"`
	SearchMaxAlternatives     int           `mapstructure:"SEARCH_MAX_ALTERNATIVES"`
	SearchAlternativeOddsBand float64       `mapstructure:"SEARCH_ALTERNATIVE_ODDS_BAND"`
	SearchPreferOver          bool          `mapstructure:"SEARCH_PREFER_OVER"`
	SearchDefaultMinLegs      int           `mapstructure:"SEARCH_DEFAULT_MIN_LEGS"`
	SearchDefaultMaxLegs      int           `mapstructure:"SEARCH_DEFAULT_MAX_LEGS"`
	SearchCombinedMaxLegs     int           `mapstructure:"SEARCH_COMBINED_MAX_LEGS"`
	SearchMaxTargetOdds       float64       `mapstructure:"SEARCH_MAX_TARGET_ODDS"`
	SearchTimeout             time.Duration `mapstructure:"SEARCH_TIMEOUT"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	// Set defaults
	v.SetDefault("PORT", "5001")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,https://multi-frontend-mu.vercel.app")

	v.SetDefault("CATALOG_SOURCE", "file")
	v.SetDefault("CATALOG_DATA_DIR", "data")
	v.SetDefault("CATALOG_FIXTURE_FILE", "mock_nrl_data.json")
	v.SetDefault("CATALOG_FEED_URL", "")
	v.SetDefault("CATALOG_FEED_RATE_PER_MINUTE", 30)
	v.SetDefault("CATALOG_REFRESH_SCHEDULE", "@every 15m")
	v.SetDefault("CATALOG_CACHE_TTL", "15m")
	v.SetDefault("EXTERNAL_API_TIMEOUT", "10s")
	v.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")

	v.SetDefault("SEARCH_TOLERANCE_MODE", "relative")
	v.SetDefault("SEARCH_TOLERANCE", 0.10)
	v.SetDefault("SEARCH_MAX_NODES", 250000)
	v.SetDefault("SEARCH_MAX_RESULTS", 3)
	v.SetDefault("SEARCH_MAX_ALTERNATIVES", 3)
	v.SetDefault("SEARCH_ALTERNATIVE_ODDS_BAND", 0.0)
	v.SetDefault("SEARCH_PREFER_OVER", false)
	v.SetDefault("SEARCH_DEFAULT_MIN_LEGS", 2)
	v.SetDefault("SEARCH_DEFAULT_MAX_LEGS", 8)
	v.SetDefault("SEARCH_COMBINED_MAX_LEGS", 17)
	v.SetDefault("SEARCH_MAX_TARGET_ODDS", 1000.0)
	v.SetDefault("SEARCH_TIMEOUT", "10s")

	// Read from environment
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := v.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = splitList(corsStr)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the search engine cannot run with.
func (c *Config) Validate() error {
	switch c.SearchToleranceMode {
	case "relative", "absolute":
	default:
		return fmt.Errorf("invalid SEARCH_TOLERANCE_MODE %q", c.SearchToleranceMode)
	}
	if c.SearchTolerance < 0 {
		return fmt.Errorf("SEARCH_TOLERANCE must not be negative")
	}
	if c.SearchDefaultMinLegs < 1 || c.SearchDefaultMinLegs > c.SearchDefaultMaxLegs {
		return fmt.Errorf("invalid default leg bounds %d..%d", c.SearchDefaultMinLegs, c.SearchDefaultMaxLegs)
	}
	switch c.CatalogSource {
	case "file", "database", "feed":
	default:
		return fmt.Errorf("invalid CATALOG_SOURCE %q", c.CatalogSource)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxLegsForSport returns the leg cap used when a request omits maxLegs.
func (c *Config) MaxLegsForSport(sport string) int {
	if strings.EqualFold(sport, "combined") {
		return c.SearchCombinedMaxLegs
	}
	return c.SearchDefaultMaxLegs
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
