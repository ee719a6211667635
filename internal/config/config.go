package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Incident store backends
const (
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config is the process configuration, read from .env, an optional config
// file and the environment (highest precedence).
type Config struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"go_env"`

	IncidentStore       string `mapstructure:"incident_store"`
	DatabaseURL         string `mapstructure:"database_url"`
	FirebaseCredentials string `mapstructure:"firebase_credentials"` // base64 service account JSON
	FirestoreCollection string `mapstructure:"firestore_collection"`

	OSRMURL         string        `mapstructure:"osrm_url"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	ProviderRetries int           `mapstructure:"provider_retries"`
	SearchRadii     []int         `mapstructure:"search_radii"`
	Alternatives    int           `mapstructure:"alternatives"`

	MapsAPIKey   string `mapstructure:"maps_api_key"`
	NominatimURL string `mapstructure:"nominatim_url"`

	ZoneRadiusUnitKm float64 `mapstructure:"zone_radius_unit_km"` // km per unit of danger-zone radius

	IncidentRefreshCron string        `mapstructure:"incident_refresh_cron"`
	IncidentCacheTTL    time.Duration `mapstructure:"incident_cache_ttl"`

	OTELEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
	LogJSON      bool   `mapstructure:"log_json"`
	LogLevel     string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("go_env", "development")
	v.SetDefault("incident_store", StorePostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("firebase_credentials", "")
	v.SetDefault("firestore_collection", "crimes")
	v.SetDefault("osrm_url", "http://router.project-osrm.org")
	v.SetDefault("provider_timeout", 10*time.Second)
	v.SetDefault("provider_retries", 0)
	v.SetDefault("search_radii", []int{5000, 10000, 20000})
	v.SetDefault("alternatives", 2)
	v.SetDefault("maps_api_key", "")
	v.SetDefault("nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("zone_radius_unit_km", 111.32)
	v.SetDefault("incident_refresh_cron", "*/5 * * * *")
	v.SetDefault("incident_cache_ttl", 5*time.Minute)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
}

// Load reads configuration. cfgFile may be empty.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if cfg.IsProduction() {
		cfg.LogJSON = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at request time
func (c *Config) Validate() error {
	switch c.IncidentStore {
	case StorePostgres, StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("config: unknown incident_store %q", c.IncidentStore)
	}
	if len(c.SearchRadii) == 0 {
		return fmt.Errorf("config: search_radii must not be empty")
	}
	for _, r := range c.SearchRadii {
		if r <= 0 {
			return fmt.Errorf("config: search radius %d must be positive", r)
		}
	}
	if c.Alternatives < 1 {
		return fmt.Errorf("config: alternatives must be at least 1, got %d", c.Alternatives)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("config: provider_timeout must be positive")
	}
	if c.ZoneRadiusUnitKm <= 0 {
		return fmt.Errorf("config: zone_radius_unit_km must be positive")
	}
	if c.ProviderRetries < 0 {
		return fmt.Errorf("config: provider_retries must not be negative")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
