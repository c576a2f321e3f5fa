package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	WebDir       string `mapstructure:"web_dir"`
}

// UpstreamConfig points at the hydrology service hosting the delineation,
// priority-water-resource, and zonal-statistics endpoints.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds, per call
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// MapConfig controls the drawing map: initial view, zoom bounds, and the
// stroke/fill styling applied to shapes as the user draws them.
type MapConfig struct {
	CenterLat       float64 `mapstructure:"center_lat"`
	CenterLon       float64 `mapstructure:"center_lon"`
	Zoom            int     `mapstructure:"zoom"`
	MinZoom         int     `mapstructure:"min_zoom"`
	MaxZoom         int     `mapstructure:"max_zoom"`
	DrawColor       string  `mapstructure:"draw_color"`
	DrawFillColor   string  `mapstructure:"draw_fill_color"`
	DrawFillOpacity float64 `mapstructure:"draw_fill_opacity"`
}

type CacheConfig struct {
	DelineationTTL int `mapstructure:"delineation_ttl"` // seconds
	SketchTTL      int `mapstructure:"sketch_ttl"`      // seconds
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.web_dir", "./web")
	v.SetDefault("upstream.base_url", "https://watersheds.ansp.org")
	v.SetDefault("upstream.timeout", 120)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "basinscope")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "basinscope")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "analysis-queue")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("map.center_lat", 40.19)
	v.SetDefault("map.center_lon", -75.45)
	v.SetDefault("map.zoom", 13)
	v.SetDefault("map.min_zoom", 2)
	v.SetDefault("map.max_zoom", 18)
	v.SetDefault("map.draw_color", "#226688")
	v.SetDefault("map.draw_fill_color", "#226688")
	v.SetDefault("map.draw_fill_opacity", 0.15)
	v.SetDefault("cache.delineation_ttl", 3600)
	v.SetDefault("cache.sketch_ttl", 7200)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BASINSCOPE_UPSTREAM_BASE_URL → upstream.base_url
	v.SetEnvPrefix("BASINSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required")
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream.base_url is not a valid URL: %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Map.MinZoom < 0 || c.Map.MaxZoom < c.Map.MinZoom {
		errs = append(errs, fmt.Sprintf("map zoom bounds invalid: min %d, max %d", c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Map.Zoom < c.Map.MinZoom || c.Map.Zoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.zoom %d outside bounds [%d, %d]", c.Map.Zoom, c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Cache.DelineationTTL <= 0 {
		errs = append(errs, "cache.delineation_ttl must be positive")
	}
	if c.Cache.SketchTTL <= 0 {
		errs = append(errs, "cache.sketch_ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
