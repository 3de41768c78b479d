// Package config loads application configuration from file and environment
// and owns the global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cities  CitiesConfig  `yaml:"cities" mapstructure:"cities"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Process ProcessConfig `yaml:"process" mapstructure:"process"`
	Demand  DemandConfig  `yaml:"demand" mapstructure:"demand"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CitiesConfig points at the city list.
type CitiesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TileSizeConfig holds per-dataset tile edges in degrees.
type TileSizeConfig struct {
	Roads     float64 `yaml:"roads" mapstructure:"roads"`
	Buildings float64 `yaml:"buildings" mapstructure:"buildings"`
	Places    float64 `yaml:"places" mapstructure:"places"`
}

// RetryConfig configures fetch retry behavior.
type RetryConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSecs  int     `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
	MaxBackoffSecs      int     `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	RateLimitMultiplier float64 `yaml:"rate_limit_multiplier" mapstructure:"rate_limit_multiplier"`
}

// FetchConfig configures the tile fetcher.
type FetchConfig struct {
	Endpoint            string         `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent           string         `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs         int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec          float64        `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst               int            `yaml:"burst" mapstructure:"burst"`
	TileSizes           TileSizeConfig `yaml:"tile_sizes" mapstructure:"tile_sizes"`
	TryFullBBox         bool           `yaml:"try_full_bbox" mapstructure:"try_full_bbox"`
	FullBBoxCutoff      float64        `yaml:"full_bbox_cutoff" mapstructure:"full_bbox_cutoff"`
	MaxSplitDepth       int            `yaml:"max_split_depth" mapstructure:"max_split_depth"`
	MinSplitArea        float64        `yaml:"min_split_area" mapstructure:"min_split_area"`
	InterRequestDelayMS int            `yaml:"inter_request_delay_ms" mapstructure:"inter_request_delay_ms"`
	Retry               RetryConfig    `yaml:"retry" mapstructure:"retry"`
}

// InterRequestDelay returns the configured pause between tile requests.
func (c FetchConfig) InterRequestDelay() time.Duration {
	return time.Duration(c.InterRequestDelayMS) * time.Millisecond
}

// ProcessConfig configures building simplification and assignment.
type ProcessConfig struct {
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	BuildingBatch      int     `yaml:"building_batch" mapstructure:"building_batch"`
	GridCellMeters     float64 `yaml:"grid_cell_meters" mapstructure:"grid_cell_meters"`
	SearchRadiusMeters float64 `yaml:"search_radius_meters" mapstructure:"search_radius_meters"`
}

// DemandConfig configures demand synthesis.
type DemandConfig struct {
	MinConnection         float64 `yaml:"min_connection" mapstructure:"min_connection"`
	MaxConnectionSize     int     `yaml:"max_connection_size" mapstructure:"max_connection_size"`
	ConservationTolerance int     `yaml:"conservation_tolerance" mapstructure:"conservation_tolerance"`
	OriginBatch           int     `yaml:"origin_batch" mapstructure:"origin_batch"`
}

// OutputConfig configures the dataset store location.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CatalogConfig configures the optional run catalog.
type CatalogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the inspection server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEMANDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cities.path", "cities.yaml")

	v.SetDefault("fetch.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("fetch.user_agent", "demandgen/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.tile_sizes.roads", 0.5)
	v.SetDefault("fetch.tile_sizes.buildings", 0.25)
	v.SetDefault("fetch.tile_sizes.places", 1.0)
	v.SetDefault("fetch.try_full_bbox", true)
	v.SetDefault("fetch.full_bbox_cutoff", 1.5)
	v.SetDefault("fetch.max_split_depth", 3)
	v.SetDefault("fetch.min_split_area", 0.01)
	v.SetDefault("fetch.inter_request_delay_ms", 200)
	v.SetDefault("fetch.retry.max_attempts", 4)
	v.SetDefault("fetch.retry.initial_backoff_secs", 2)
	v.SetDefault("fetch.retry.max_backoff_secs", 60)
	v.SetDefault("fetch.retry.multiplier", 2.0)
	v.SetDefault("fetch.retry.rate_limit_multiplier", 3.0)

	v.SetDefault("process.workers", 0)
	v.SetDefault("process.building_batch", 5000)
	v.SetDefault("process.grid_cell_meters", 200)
	v.SetDefault("process.search_radius_meters", 5000)

	v.SetDefault("demand.min_connection", 1)
	v.SetDefault("demand.max_connection_size", 400)
	v.SetDefault("demand.conservation_tolerance", 5)
	v.SetDefault("demand.origin_batch", 64)

	v.SetDefault("output.dir", "data")
	v.SetDefault("catalog.driver", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
