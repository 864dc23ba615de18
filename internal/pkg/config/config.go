package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/usecases"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tiling    TilingConfig    `mapstructure:"tiling"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Location  LocationConfig  `mapstructure:"location"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	NMEA      NMEAConfig      `mapstructure:"nmea"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TilingConfig carries the tile geometry constants.
type TilingConfig struct {
	TileSize       float64 `mapstructure:"tile_size"`
	GridSize       int     `mapstructure:"grid_size"`
	TileDecimals   uint    `mapstructure:"tile_decimals"`
	BaseDecimals   uint    `mapstructure:"base_decimals"`
	LongitudeDelta float64 `mapstructure:"longitude_delta"`
	AspectRatio    float64 `mapstructure:"aspect_ratio"` // screen width / height
}

// Spec converts the section into a domain.TileSpec.
func (t TilingConfig) Spec() domain.TileSpec {
	return domain.NewTileSpec(t.TileSize, t.GridSize, t.TileDecimals, t.BaseDecimals, t.LongitudeDelta, t.AspectRatio)
}

type TrackerConfig struct {
	HeadingThreshold float64       `mapstructure:"heading_threshold"`
	FollowDuration   time.Duration `mapstructure:"follow_duration"`
	LocateDuration   time.Duration `mapstructure:"locate_duration"`
	HeadingDuration  time.Duration `mapstructure:"heading_duration"`
	Journal          bool          `mapstructure:"journal"`
}

// Usecase converts the section into the tracker's own config.
func (t TrackerConfig) Usecase() usecases.TrackerConfig {
	return usecases.TrackerConfig{
		HeadingThreshold: t.HeadingThreshold,
		FollowDuration:   t.FollowDuration,
		LocateDuration:   t.LocateDuration,
		HeadingDuration:  t.HeadingDuration,
	}
}

// LocationConfig picks the location collaborator.
type LocationConfig struct {
	Source      string        `mapstructure:"source"` // "mqtt" | "nmea" | "nats" | "journal"
	FixTimeout  time.Duration `mapstructure:"fix_timeout"`
	ReplaySince time.Duration `mapstructure:"replay_since"`
	ReplaySpeed float64       `mapstructure:"replay_speed"`
}

type MQTTConfig struct {
	Broker        string `mapstructure:"broker"`
	ClientID      string `mapstructure:"client_id"`
	PositionTopic string `mapstructure:"position_topic"`
	HeadingTopic  string `mapstructure:"heading_topic"`
}

type NMEAConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate uint   `mapstructure:"baud_rate"`
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

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PLACES_TILING_GRID_SIZE → tiling.grid_size
	v.SetEnvPrefix("PLACES")
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

func setDefaults(v *viper.Viper, service string) {
	spec := domain.DefaultTileSpec()
	tracker := usecases.DefaultTrackerConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tiling.tile_size", spec.TileSize)
	v.SetDefault("tiling.grid_size", spec.GridSize)
	v.SetDefault("tiling.tile_decimals", spec.TileDecimals)
	v.SetDefault("tiling.base_decimals", spec.BaseDecimals)
	v.SetDefault("tiling.longitude_delta", spec.LongitudeDelta)
	v.SetDefault("tiling.aspect_ratio", 1.0)
	v.SetDefault("tracker.heading_threshold", tracker.HeadingThreshold)
	v.SetDefault("tracker.follow_duration", tracker.FollowDuration)
	v.SetDefault("tracker.locate_duration", tracker.LocateDuration)
	v.SetDefault("tracker.heading_duration", tracker.HeadingDuration)
	v.SetDefault("tracker.journal", false)
	v.SetDefault("location.source", "mqtt")
	v.SetDefault("location.fix_timeout", 15*time.Second)
	v.SetDefault("location.replay_since", time.Hour)
	v.SetDefault("location.replay_speed", 1.0)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", service)
	v.SetDefault("mqtt.position_topic", "places/observer/position")
	v.SetDefault("mqtt.heading_topic", "places/observer/heading")
	v.SetDefault("nmea.port", "/dev/serial0")
	v.SetDefault("nmea.baud_rate", 9600)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "places")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "places")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
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
	if err := c.Tiling.Spec().Validate(); err != nil {
		errs = append(errs, "tiling: "+err.Error())
	}
	if c.Tiling.AspectRatio <= 0 {
		errs = append(errs, fmt.Sprintf("tiling.aspect_ratio must be positive, got %g", c.Tiling.AspectRatio))
	}
	if c.Tracker.HeadingThreshold < 0 || c.Tracker.HeadingThreshold >= 180 {
		errs = append(errs, fmt.Sprintf("tracker.heading_threshold must be in [0, 180), got %g", c.Tracker.HeadingThreshold))
	}
	if c.Tracker.FollowDuration < 0 || c.Tracker.LocateDuration < 0 || c.Tracker.HeadingDuration < 0 {
		errs = append(errs, "tracker animation durations must not be negative")
	}

	switch c.Location.Source {
	case "mqtt":
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required")
		}
		if c.MQTT.PositionTopic == "" {
			errs = append(errs, "mqtt.position_topic is required")
		}
	case "nmea":
		if c.NMEA.Port == "" {
			errs = append(errs, "nmea.port is required")
		}
	case "nats":
		// nats.url is checked below
	case "journal":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for journal replay")
		}
	default:
		errs = append(errs, fmt.Sprintf("location.source must be mqtt, nmea, nats or journal, got %q", c.Location.Source))
	}
	if c.Location.FixTimeout <= 0 {
		errs = append(errs, "location.fix_timeout must be positive")
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

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
