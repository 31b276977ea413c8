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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Watershed WatershedConfig `yaml:"watershed" mapstructure:"watershed"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig describes the catalog being harvested.
type SourceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// IndexPath is the top-level country index under BaseURL.
	IndexPath string `yaml:"index_path" mapstructure:"index_path"`
	// RateLimitMarker is the literal substring the source embeds in throttled
	// responses, even ones served with HTTP 200.
	RateLimitMarker string `yaml:"rate_limit_marker" mapstructure:"rate_limit_marker"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CrawlConfig configures the crawl driver.
type CrawlConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Per-level pacing. The city level uses a larger delay because the source
	// throttles harder deeper in the hierarchy.
	StateDelay time.Duration `yaml:"state_delay" mapstructure:"state_delay"`
	CityDelay  time.Duration `yaml:"city_delay" mapstructure:"city_delay"`
	// FrontierDir holds the per-node frontier files (one URL per line).
	FrontierDir string `yaml:"frontier_dir" mapstructure:"frontier_dir"`
}

// WatershedConfig configures the HUC12 point-lookup service.
type WatershedConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Delay       time.Duration `yaml:"delay" mapstructure:"delay"`
	// ShapefilePath, when set, resolves watersheds against a local WBD HUC12
	// shapefile instead of the remote API.
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
}

// OutputConfig configures tabular export targets.
type OutputConfig struct {
	FacilitiesPath string `yaml:"facilities_path" mapstructure:"facilities_path"`
	EnrichedPath   string `yaml:"enriched_path" mapstructure:"enriched_path"`
	Format         string `yaml:"format" mapstructure:"format"` // csv or xlsx
}

// ServerConfig configures the status API server.
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
	v.SetEnvPrefix("DCHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dcharvest.db")
	v.SetDefault("source.base_url", "https://www.datacentermap.com")
	v.SetDefault("source.index_path", "/usa/")
	v.SetDefault("source.rate_limit_marker", "Page View Limit Reached")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.state_delay", 500*time.Millisecond)
	v.SetDefault("crawl.city_delay", 5*time.Second)
	v.SetDefault("crawl.frontier_dir", "frontier")
	v.SetDefault("watershed.base_url", "https://hydro.nationalmap.gov/arcgis/rest/services/wbd/MapServer/6/query")
	v.SetDefault("watershed.timeout_secs", 30)
	v.SetDefault("watershed.delay", 300*time.Millisecond)
	v.SetDefault("output.facilities_path", "facilities.csv")
	v.SetDefault("output.enriched_path", "facilities_huc12.csv")
	v.SetDefault("output.format", "csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
