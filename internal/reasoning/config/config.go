// Package config loads reasoning-core's process configuration: server
// ports, pipeline thresholds, zone definitions, and optional storage
// backends, following the donor's viper-based Load()/setDefaults() shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

// Config is the top-level process configuration.
type Config struct {
	Environment string         `mapstructure:"environment" yaml:"environment"`
	Server      ServerConfig   `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis       RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Pipeline    PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Store       StoreConfig    `mapstructure:"store" yaml:"store"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	WebSocket   WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Zones       []ZoneConfig     `mapstructure:"zones" yaml:"zones"`
}

// ServerConfig is the REST/WS HTTP server's own tunables.
type ServerConfig struct {
	Port         int `mapstructure:"port" yaml:"port"`
	ReadTimeout  int `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  int `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	Production   bool `mapstructure:"production" yaml:"production"`
}

// DatabaseConfig configures the optional Postgres durable archive.
type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	User            string `mapstructure:"user" yaml:"user"`
	Password        string `mapstructure:"password" yaml:"password"`
	Database        string `mapstructure:"database" yaml:"database"`
	SSLMode         string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RedisConfig configures the optional hot-mirror cache.
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	Database     int    `mapstructure:"database" yaml:"database"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	MirrorKey    string `mapstructure:"mirror_key" yaml:"mirror_key"`
}

// PipelineConfig holds every stage's tunable thresholds (§4.1-§4.6).
type PipelineConfig struct {
	FPS float64 `mapstructure:"fps" yaml:"fps"`

	StabilizerWindow          int     `mapstructure:"stabilizer_window" yaml:"stabilizer_window"`
	StabilizerAlpha           float64 `mapstructure:"stabilizer_alpha" yaml:"stabilizer_alpha"`
	StabilizerLockThreshold   int     `mapstructure:"stabilizer_lock_threshold" yaml:"stabilizer_lock_threshold"`
	StabilizerUnlockThreshold int     `mapstructure:"stabilizer_unlock_threshold" yaml:"stabilizer_unlock_threshold"`

	ContextForgetFrames int `mapstructure:"context_forget_frames" yaml:"context_forget_frames"`

	SeverityWeights map[string]float64 `mapstructure:"severity_weights" yaml:"severity_weights"`

	CleanupEveryFrames uint64 `mapstructure:"cleanup_every_frames" yaml:"cleanup_every_frames"`
}

// StoreConfig configures the in-memory event store (§4.7).
type StoreConfig struct {
	Capacity          int           `mapstructure:"capacity" yaml:"capacity"`
	DedupWindow       time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
	BroadcastCapacity int           `mapstructure:"broadcast_capacity" yaml:"broadcast_capacity"`
}

// MonitoringConfig configures logging and Prometheus.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPort int    `mapstructure:"metrics_port" yaml:"metrics_port"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
}

// WebSocketConfig configures the live event feed.
type WebSocketConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Path            string        `mapstructure:"path" yaml:"path"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	HeartbeatEvery  time.Duration `mapstructure:"heartbeat_every" yaml:"heartbeat_every"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
}

// ZoneConfig is the YAML-facing shape of a domain.Zone (§6.5). Also the
// document shape accepted by the zone-admin REST surface's validate
// endpoint, so it carries json tags alongside its viper ones.
type ZoneConfig struct {
	ID             string            `mapstructure:"id" yaml:"id" json:"id"`
	Name           string            `mapstructure:"name" yaml:"name" json:"name"`
	Type           string            `mapstructure:"type" yaml:"type" json:"type"`
	Points         []PointConfig     `mapstructure:"points" yaml:"points" json:"points"`
	TimeWindow     *TimeWindowConfig `mapstructure:"time_window" yaml:"time_window" json:"time_window,omitempty"`
	MaxOccupancy   int               `mapstructure:"max_occupancy" yaml:"max_occupancy" json:"max_occupancy,omitempty"`
	AllowedClasses []string          `mapstructure:"allowed_classes" yaml:"allowed_classes" json:"allowed_classes,omitempty"`
	DeniedClasses  []string          `mapstructure:"denied_classes" yaml:"denied_classes" json:"denied_classes,omitempty"`
	SeverityWeight float64           `mapstructure:"severity_weight" yaml:"severity_weight" json:"severity_weight,omitempty"`
	UseCenter      bool              `mapstructure:"use_center" yaml:"use_center" json:"use_center,omitempty"`
	AlertOnEntry   bool              `mapstructure:"alert_on_entry" yaml:"alert_on_entry" json:"alert_on_entry,omitempty"`
	EntryDirection *PointConfig      `mapstructure:"entry_direction" yaml:"entry_direction" json:"entry_direction,omitempty"`
}

// PointConfig is one (x, y) vertex.
type PointConfig struct {
	X float64 `mapstructure:"x" yaml:"x" json:"x"`
	Y float64 `mapstructure:"y" yaml:"y" json:"y"`
}

// TimeWindowConfig is a minute-of-day window, HH:MM formatted in YAML.
type TimeWindowConfig struct {
	Start string `mapstructure:"start" yaml:"start" json:"start"`
	End   string `mapstructure:"end"   yaml:"end" json:"end"`
}

// Load reads reasoning-core.yaml from the standard search paths, applies
// environment overrides under the RC_ prefix, validates zone definitions,
// and returns the parsed Config alongside the domain zones it describes.
func Load() (*Config, []*domain.Zone, error) {
	cfg := &Config{}

	setDefaults()

	viper.SetConfigName("reasoning-core")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/reasoning-core")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home + "/.reasoning-core")
	}
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadFromEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	domainZones, err := ToDomainZones(cfg.Zones)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrZoneConfig, err)
	}
	if err := zones.Validate(domainZones); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrZoneConfig, err)
	}

	return cfg, domainZones, nil
}

// WatchZones re-parses and re-validates the zone list on every config file
// write, invoking onChange with the new zones. The callback receives only
// the zone list and pipeline thresholds; server/database/redis settings
// are not passed to it.
func WatchZones(onChange func([]*domain.Zone, PipelineConfig)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return
		}
		domainZones, err := ToDomainZones(cfg.Zones)
		if err != nil {
			return
		}
		if err := zones.Validate(domainZones); err != nil {
			return
		}
		onChange(domainZones, cfg.Pipeline)
	})
	viper.WatchConfig()
}

func setDefaults() {
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.production", false)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.database", "reasoning_core")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("redis.mirror_key", "reasoning_core:recent_events")

	viper.SetDefault("pipeline.fps", 30.0)
	viper.SetDefault("pipeline.stabilizer_window", 10)
	viper.SetDefault("pipeline.stabilizer_alpha", 0.3)
	viper.SetDefault("pipeline.stabilizer_lock_threshold", 5)
	viper.SetDefault("pipeline.stabilizer_unlock_threshold", 8)
	viper.SetDefault("pipeline.context_forget_frames", 90)
	viper.SetDefault("pipeline.cleanup_every_frames", 300)

	viper.SetDefault("store.capacity", 100)
	viper.SetDefault("store.dedup_window", "5s")
	viper.SetDefault("store.broadcast_capacity", 256)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.log_level", "info")

	viper.SetDefault("websocket.enabled", true)
	viper.SetDefault("websocket.path", "/ws/reasoning")
	viper.SetDefault("websocket.max_connections", 100)
	viper.SetDefault("websocket.read_buffer_size", 1024)
	viper.SetDefault("websocket.write_buffer_size", 1024)
	viper.SetDefault("websocket.heartbeat_every", "20s")
	viper.SetDefault("websocket.rate_limit_per_sec", 20.0)

	viper.SetDefault("environment", "development")
}

func loadFromEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		cfg.Redis.Host = redisHost
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Pipeline.StabilizerAlpha < 0 || cfg.Pipeline.StabilizerAlpha > 1 {
		return fmt.Errorf("invalid stabilizer alpha: %f", cfg.Pipeline.StabilizerAlpha)
	}
	if cfg.Store.Capacity <= 0 {
		return fmt.Errorf("invalid store capacity: %d", cfg.Store.Capacity)
	}
	return nil
}

// GetDatabaseDSN returns the archive's Postgres connection string.
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

// GetRedisAddr returns the cache's Redis connection address.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ToDomainZones converts the YAML-facing zone documents into validated-shape
// domain.Zone values. Exported so the zone-admin REST surface can dry-run a
// submitted zone document through the exact same conversion Load() uses.
func ToDomainZones(zoneConfigs []ZoneConfig) ([]*domain.Zone, error) {
	out := make([]*domain.Zone, 0, len(zoneConfigs))
	for _, zc := range zoneConfigs {
		pts := make([]domain.Point, 0, len(zc.Points))
		for _, p := range zc.Points {
			pts = append(pts, domain.Point{X: p.X, Y: p.Y})
		}

		z := &domain.Zone{
			ID:             zc.ID,
			Name:           zc.Name,
			Polygon:        domain.Polygon{Points: pts},
			Type:           domain.ZoneType(zc.Type),
			MaxOccupancy:   zc.MaxOccupancy,
			SeverityWeight: zc.SeverityWeight,
			UseCenter:      zc.UseCenter,
			AlertOnEntry:   zc.AlertOnEntry,
		}
		if z.SeverityWeight == 0 {
			z.SeverityWeight = 1.0
		}
		if len(zc.AllowedClasses) > 0 {
			z.AllowedClasses = make(map[string]bool, len(zc.AllowedClasses))
			for _, c := range zc.AllowedClasses {
				z.AllowedClasses[c] = true
			}
		}
		if len(zc.DeniedClasses) > 0 {
			z.DeniedClasses = make(map[string]bool, len(zc.DeniedClasses))
			for _, c := range zc.DeniedClasses {
				z.DeniedClasses[c] = true
			}
		}
		if zc.EntryDirection != nil {
			z.AllowedEntryDir = domain.Point{X: zc.EntryDirection.X, Y: zc.EntryDirection.Y}
		}
		if zc.TimeWindow != nil {
			tw, err := parseTimeWindow(*zc.TimeWindow)
			if err != nil {
				return nil, fmt.Errorf("zone %q: %w", zc.ID, err)
			}
			z.TimeWindow = tw
		}

		out = append(out, z)
	}
	return out, nil
}

func parseTimeWindow(tw TimeWindowConfig) (*domain.TimeWindow, error) {
	start, err := parseHHMM(tw.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid time_window.start %q: %w", tw.Start, err)
	}
	end, err := parseHHMM(tw.End)
	if err != nil {
		return nil, fmt.Errorf("invalid time_window.end %q: %w", tw.End, err)
	}
	return &domain.TimeWindow{StartMinute: start, EndMinute: end}, nil
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*60 + m, nil
}
