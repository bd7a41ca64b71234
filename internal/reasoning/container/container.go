// Package container wires every reasoning-core component into a single
// dependency graph: the pipeline stages, the event store, the optional
// durable archive and hot cache, metrics, and the logger.
package container

import (
	gocontext "context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	appcontext "github.com/reasoning-core/reasoning-core/internal/reasoning/context"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/coordinator"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/intelligence"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/stabilizer"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store/archive"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store/cache"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

// Container holds every wired dependency for one running process.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sql.DB
	Redis   *redis.Client
	Metrics *monitoring.Metrics

	Coordinator *coordinator.Coordinator
	Store       *store.Store
	Zones       *zones.Engine

	Archive *archive.Repository // nil unless database.enabled
	Cache   *cache.Mirror       // nil unless redis.enabled
}

// New builds the full dependency graph from a loaded Config and its
// parsed zone list.
func New(cfg *config.Config, zoneList []*domain.Zone, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: monitoring.NewMetrics(),
	}

	if cfg.Database.Enabled {
		if err := c.initDatabase(); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	if cfg.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	}

	if err := c.initPipeline(zoneList); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	logger.Info("container initialized",
		zap.Bool("database_enabled", cfg.Database.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Int("zone_count", len(zoneList)))
	return c, nil
}

func (c *Container) initDatabase() error {
	dsn := c.Config.GetDatabaseDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.Config.Database.ConnMaxLifetime) * time.Second)

	ctx := gocontext.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.DB = db
	c.Archive = archive.New(db, c.Logger)
	c.Logger.Info("database connection established",
		zap.String("host", c.Config.Database.Host),
		zap.Int("port", c.Config.Database.Port),
		zap.String("database", c.Config.Database.Database))
	return nil
}

func (c *Container) initRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Config.GetRedisAddr(),
		Password:     c.Config.Redis.Password,
		DB:           c.Config.Redis.Database,
		PoolSize:     c.Config.Redis.PoolSize,
		MinIdleConns: c.Config.Redis.MinIdleConns,
	})

	ctx := gocontext.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	c.Redis = rdb
	c.Cache = cache.New(rdb, c.Config.Redis.MirrorKey, c.Logger)
	c.Logger.Info("redis connection established",
		zap.String("addr", c.Config.GetRedisAddr()),
		zap.Int("database", c.Config.Redis.Database))
	return nil
}

func (c *Container) initPipeline(zoneList []*domain.Zone) error {
	pc := c.Config.Pipeline

	stabCfg := stabilizer.DefaultConfig()
	if pc.StabilizerWindow > 0 {
		stabCfg.WindowSize = pc.StabilizerWindow
	}
	if pc.StabilizerAlpha > 0 {
		stabCfg.Alpha = pc.StabilizerAlpha
	}
	if pc.StabilizerLockThreshold > 0 {
		stabCfg.LockStreak = pc.StabilizerLockThreshold
	}
	if pc.StabilizerUnlockThreshold > 0 {
		stabCfg.UnlockThreshold = pc.StabilizerUnlockThreshold
	}
	stab := stabilizer.New(stabCfg, c.Metrics, c.Logger)

	fps := pc.FPS
	if fps <= 0 {
		fps = 30.0
	}
	ctxCfg := appcontext.DefaultConfig(fps)
	if pc.ContextForgetFrames > 0 {
		ctxCfg.ForgetFrames = uint64(pc.ContextForgetFrames)
	}
	ctxEngine := appcontext.New(ctxCfg, fps, c.Logger)

	zoneEngine := zones.New(zoneList, c.Metrics, c.Logger)

	weights := severity.DefaultWeights()
	if len(pc.SeverityWeights) > 0 {
		weights = weightsFromMap(pc.SeverityWeights)
	}
	normalized, err := weights.Normalize()
	if err != nil {
		return err
	}
	scorer := severity.New(normalized)

	dispatcher := intelligence.New(intelligence.DefaultConfig(), scorer, zoneEngine, c.Logger)

	storeCfg := store.Config{
		Capacity:          c.Config.Store.Capacity,
		DedupWindow:       c.Config.Store.DedupWindow,
		BroadcastCapacity: c.Config.Store.BroadcastCapacity,
	}
	eventStore := store.New(storeCfg, c.Metrics, c.Logger)
	eventStore.MarkAvailable()

	coordCfg := coordinator.DefaultConfig()
	if pc.CleanupEveryFrames > 0 {
		coordCfg.CleanupEveryFrames = pc.CleanupEveryFrames
	}

	coord := coordinator.New(coordCfg, stab, ctxEngine, zoneEngine, scorer, dispatcher, eventStore, c.Metrics, c.Logger)
	if c.Archive != nil {
		coord.SetArchive(c.Archive)
	}
	if c.Cache != nil {
		coord.SetCache(c.Cache)
	}

	c.Coordinator = coord
	c.Store = eventStore
	c.Zones = zoneEngine
	return nil
}

func weightsFromMap(m map[string]float64) severity.Weights {
	w := severity.DefaultWeights()
	if v, ok := m["duration"]; ok {
		w.Duration = v
	}
	if v, ok := m["zone"]; ok {
		w.Zone = v
	}
	if v, ok := m["class"]; ok {
		w.Class = v
	}
	if v, ok := m["speed"]; ok {
		w.Speed = v
	}
	if v, ok := m["time"]; ok {
		w.Time = v
	}
	if v, ok := m["crowd"]; ok {
		w.Crowd = v
	}
	if v, ok := m["history"]; ok {
		w.History = v
	}
	return w
}

// Close tears down every owned connection.
func (c *Container) Close() error {
	var errs []error

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	c.Logger.Info("container closed successfully")
	return nil
}

// HealthCheck reports per-dependency health, used by /readyz.
func (c *Container) HealthCheck(ctx gocontext.Context) map[string]string {
	status := make(map[string]string)

	if c.DB != nil {
		if err := c.DB.PingContext(ctx); err != nil {
			status["database"] = fmt.Sprintf("unhealthy: %v", err)
		} else {
			status["database"] = "healthy"
		}
	} else {
		status["database"] = "not configured"
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = fmt.Sprintf("unhealthy: %v", err)
		} else {
			status["redis"] = "healthy"
		}
	} else {
		status["redis"] = "not configured"
	}

	if c.Store != nil && c.Store.Available() {
		status["event_store"] = "healthy"
	} else {
		status["event_store"] = "unavailable"
	}

	return status
}
