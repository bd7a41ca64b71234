// Package coordinator implements the frame coordinator (§4.1): a
// single-threaded, cooperative driver that accepts one frame's detections
// and runs the full stabilizer -> context -> spatial -> severity ->
// intelligence -> store pipeline exactly once, in order.
package coordinator

import (
	gocontext "context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/context"
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

// Config holds the coordinator's own tunables.
type Config struct {
	CleanupEveryFrames uint64 // K, default 300
}

// DefaultConfig returns the §4.1 default.
func DefaultConfig() Config {
	return Config{CleanupEveryFrames: 300}
}

// FrameResult is the coordinator's per-frame output (§4.1).
type FrameResult struct {
	FrameIndex          uint64
	Stabilized          []domain.StabilizedDetection
	ObjectStates        []*domain.ObjectState
	Violations          []domain.SpatialViolation
	Scores              map[uint64]domain.SeverityScore
	Events              []*domain.Event
	ProcessingTime      time.Duration
	InputInvalidDropped int
}

// Coordinator drives one pipeline pass per frame. Not safe for concurrent
// use: a single goroutine owns it per camera, per §5.
type Coordinator struct {
	cfg    Config
	logger *zap.Logger

	stabilizer *stabilizer.Stabilizer
	context    *context.Engine
	zones      *zones.Engine
	scorer     *severity.Scorer
	detectors  *intelligence.Dispatcher
	eventStore *store.Store
	metrics    *monitoring.Metrics
	archive    *archive.Repository // nil unless the durable archive is enabled
	cache      *cache.Mirror       // nil unless the hot cache mirror is enabled

	frameIndex uint64

	errWindow *errorWindow
}

// New wires every stage into a single frame-driven pipeline.
func New(cfg Config, stab *stabilizer.Stabilizer, ctxEngine *context.Engine, zoneEngine *zones.Engine, scorer *severity.Scorer, detectors *intelligence.Dispatcher, eventStore *store.Store, metrics *monitoring.Metrics, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "frame_coordinator")),
		stabilizer: stab,
		context:    ctxEngine,
		zones:      zoneEngine,
		scorer:     scorer,
		detectors:  detectors,
		eventStore: eventStore,
		metrics:    metrics,
		errWindow:  newErrorWindow(time.Minute),
	}
}

// SetArchive wires a durable event archive into the publish path. Call once
// during startup, before the first frame; nil disables archiving.
func (c *Coordinator) SetArchive(a *archive.Repository) { c.archive = a }

// SetCache wires a hot cache mirror into the publish path. Call once during
// startup, before the first frame; nil disables mirroring.
func (c *Coordinator) SetCache(m *cache.Mirror) { c.cache = m }

// ProcessFrame validates and deduplicates the input batch, then drives the
// full pipeline in the fixed order mandated by §2: stabilize, accumulate
// context, evaluate zones, score severity, detect events, publish.
func (c *Coordinator) ProcessFrame(detections []domain.Detection, shape domain.FrameShape, now time.Time) FrameResult {
	start := time.Now()
	c.frameIndex++
	frameIdx := c.frameIndex

	valid, dropped := c.sanitize(detections, shape)
	if c.metrics != nil && dropped > 0 {
		c.metrics.InputInvalidDropped.Add(float64(dropped))
	}

	obs := make([]domain.TrackObservation, 0, len(valid))
	for _, d := range valid {
		obs = append(obs, domain.TrackObservation{Detection: d, FrameIndex: frameIdx, Timestamp: now})
	}

	stabilized := c.stabilizer.Process(frameIdx, now, obs)
	objStates := c.context.Update(frameIdx, now, stabilized)

	zoneResult := c.zones.Evaluate(now, stabilized, c.context)

	objMap := c.context.All()
	candidates := c.detectors.Step(now, objMap, zoneResult.Violations, zoneResult.Occupancy)

	events := c.publish(now, candidates)

	if frameIdx%c.cfg.CleanupEveryFrames == 0 {
		c.cleanup(frameIdx)
	}

	scores := make(map[uint64]domain.SeverityScore, len(candidates))
	for _, cand := range candidates {
		if len(cand.TrackIDs) > 0 {
			scores[cand.TrackIDs[0]] = cand.Score
		}
	}

	processingTime := time.Since(start)
	if c.metrics != nil {
		c.metrics.FramesProcessedTotal.Inc()
		c.metrics.FrameProcessingSeconds.Observe(processingTime.Seconds())
	}

	return FrameResult{
		FrameIndex:          frameIdx,
		Stabilized:          stabilized,
		ObjectStates:        objStates,
		Violations:          zoneResult.Violations,
		Scores:              scores,
		Events:              events,
		ProcessingTime:      processingTime,
		InputInvalidDropped: dropped,
	}
}

// sanitize validates bounding boxes against the frame shape, drops
// unparsable class labels, and deduplicates track ids within the frame
// (highest confidence wins), per §4.1.
func (c *Coordinator) sanitize(detections []domain.Detection, shape domain.FrameShape) ([]domain.Detection, int) {
	byTrack := make(map[uint64]domain.Detection, len(detections))
	dropped := 0

	for _, d := range detections {
		if d.Confidence < 0 || d.Confidence > 1 || d.ClassName == "" {
			dropped++
			c.errWindow.record("input_invalid")
			continue
		}
		d.BBox = d.BBox.Clip(shape.Height, shape.Width)
		if d.BBox.Width() <= 0 || d.BBox.Height() <= 0 {
			dropped++
			c.errWindow.record("input_invalid")
			continue
		}

		if existing, ok := byTrack[d.TrackID]; ok {
			if d.Confidence > existing.Confidence {
				byTrack[d.TrackID] = d
			}
			continue
		}
		byTrack[d.TrackID] = d
	}

	out := make([]domain.Detection, 0, len(byTrack))
	ids := make([]uint64, 0, len(byTrack))
	for id := range byTrack {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, byTrack[id])
	}
	return out, dropped
}

func (c *Coordinator) publish(now time.Time, candidates []intelligence.Candidate) []*domain.Event {
	events := make([]*domain.Event, 0, len(candidates))
	for _, cand := range candidates {
		e, err := c.eventStore.Publish(now, cand.Type, cand.Score, cand.TrackIDs, cand.ZoneID, cand.Duration, cand.Context)
		if err != nil {
			c.logger.Warn("event publish failed", zap.Error(err), zap.String("event_type", string(cand.Type)))
			c.errWindow.record("store_unavailable")
			continue
		}
		if e != nil {
			events = append(events, e)
		}
	}

	if c.archive != nil {
		for _, e := range events {
			if err := c.archive.Insert(e); err != nil {
				c.logger.Warn("event archive insert failed", zap.Error(err), zap.Int64("event_id", e.EventID))
			}
		}
	}
	if c.cache != nil && len(events) > 0 {
		if err := c.cache.Publish(gocontext.Background(), c.eventStore.Recent(0)); err != nil {
			c.logger.Warn("event cache mirror publish failed", zap.Error(err))
		}
	}

	return events
}

// cleanup runs the periodic (every K frames) state eviction across every
// downstream component that owns per-track state, per §4.1.
func (c *Coordinator) cleanup(frameIdx uint64) {
	stabRemoved := c.stabilizer.Cleanup(frameIdx)
	ctxRemoved := c.context.Cleanup(frameIdx)

	live := make(map[uint64]bool)
	for id := range c.context.All() {
		live[id] = true
	}
	c.zones.Cleanup(live)

	if stabRemoved > 0 || ctxRemoved > 0 {
		c.logger.Debug("periodic cleanup",
			zap.Uint64("frame", frameIdx),
			zap.Int("stabilizer_removed", stabRemoved),
			zap.Int("context_removed", ctxRemoved))
	}
}

// Status reports the coordinator's §7 degraded/active status: "degraded"
// when more than degradedThreshold reasoning-path errors, summed over all
// error taxonomies, were recorded in the last minute.
func (c *Coordinator) Status() string {
	active := c.errWindow.total() <= degradedThreshold
	if c.metrics != nil {
		if active {
			c.metrics.CoordinatorStatus.Set(1)
		} else {
			c.metrics.CoordinatorStatus.Set(0)
		}
	}
	if !active {
		return "degraded"
	}
	return "active"
}

const degradedThreshold = 50

// FrameIndex returns the last processed frame index.
func (c *Coordinator) FrameIndex() uint64 { return c.frameIndex }
