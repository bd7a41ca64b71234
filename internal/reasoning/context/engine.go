// Package context implements behavioral context accumulation (§4.3):
// per-track trajectories, velocities, dwell times, and derived kinematic
// features computed fresh each frame from the stabilizer's output.
package context

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// Config holds the engine's tunable thresholds.
type Config struct {
	PositionHistoryCap  int     // >= 30
	VelocitySmoothingN  int     // samples averaged for velocity, default 5
	DirectionWindow     int     // samples inspected for direction changes, default 30
	DirectionDeadband   float64 // radians; ignore heading noise below this
	StationarySpeed     float64 // V_stat, px/s, default 5
	MissingFrames       uint64  // T_missing, frames of absence => disappeared
	ForgetFrames        uint64  // T_forget, frames of absence before state removal
}

// DefaultConfig returns the spec's default thresholds. fps is used to
// derive MissingFrames = fps * 0.5.
func DefaultConfig(fps float64) Config {
	return Config{
		PositionHistoryCap: 30,
		VelocitySmoothingN: 5,
		DirectionWindow:    30,
		DirectionDeadband:  0.2,
		StationarySpeed:    5.0,
		MissingFrames:      uint64(math.Max(1, math.Round(fps*0.5))),
		ForgetFrames:       30,
	}
}

// Engine owns all ObjectState records. Single-threaded, driven once per
// frame by the coordinator; all operations are O(tracks).
type Engine struct {
	cfg    Config
	fps    float64
	states map[uint64]*domain.ObjectState
	logger *zap.Logger
}

// New creates a context Engine.
func New(cfg Config, fps float64, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		fps:    fps,
		states: make(map[uint64]*domain.ObjectState),
		logger: logger.With(zap.String("component", "context_engine")),
	}
}

// Update applies one frame's stabilized detections, returning the updated
// ObjectState for each track present this frame (including newly created).
func (e *Engine) Update(frameIdx uint64, now time.Time, dets []domain.StabilizedDetection) []*domain.ObjectState {
	seen := make(map[uint64]bool, len(dets))
	out := make([]*domain.ObjectState, 0, len(dets))

	for _, d := range dets {
		seen[d.TrackID] = true
		st := e.track(d.TrackID, d.Class, now)
		e.updateOne(st, d, frameIdx, now)
		out = append(out, st)
	}

	for id, st := range e.states {
		if !seen[id] && frameIdx-st.LastFrameIndex >= e.cfg.MissingFrames {
			st.Disappeared = true
		}
	}
	return out
}

func (e *Engine) track(id uint64, class string, now time.Time) *domain.ObjectState {
	st, ok := e.states[id]
	if !ok {
		st = &domain.ObjectState{
			TrackID:      id,
			Class:        class,
			FirstSeen:    now,
			PositionsCap: e.cfg.PositionHistoryCap,
		}
		e.states[id] = st
	}
	return st
}

func (e *Engine) updateOne(st *domain.ObjectState, d domain.StabilizedDetection, frameIdx uint64, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered from corrupted context state, resetting track",
				zap.Uint64("track_id", st.TrackID), zap.Any("panic", r))
			id, class, firstSeen, cap := st.TrackID, d.Class, st.FirstSeen, e.cfg.PositionHistoryCap
			*st = domain.ObjectState{TrackID: id, Class: class, FirstSeen: firstSeen, PositionsCap: cap}
		}
	}()

	st.Class = d.Class
	st.Disappeared = false
	st.AgeFrames++
	st.LastFrameIndex = frameIdx

	centroid := d.BBox.Centroid()
	prevPos := st.LatestPosition()
	hadPrev := len(st.Positions) > 0

	st.Positions = append(st.Positions, domain.PositionSample{Point: centroid, Timestamp: now, FrameIdx: frameIdx})
	if len(st.Positions) > st.PositionsCap {
		st.Positions = st.Positions[len(st.Positions)-st.PositionsCap:]
	}
	st.LastSeen = now

	if hadPrev {
		st.PathLength += domain.Distance(prevPos, centroid)

		vx := (centroid.X - prevPos.X) * e.fps
		vy := (centroid.Y - prevPos.Y) * e.fps

		st.Velocity = domain.Point{X: vx, Y: vy}
		instSpeed := math.Hypot(vx, vy)

		st.SpeedHistory = append(st.SpeedHistory, instSpeed)
		if len(st.SpeedHistory) > e.cfg.VelocitySmoothingN {
			st.SpeedHistory = st.SpeedHistory[len(st.SpeedHistory)-e.cfg.VelocitySmoothingN:]
		}
		smoothed := average(st.SpeedHistory)
		prevSmoothed := st.Speed
		st.Speed = smoothed
		st.Acceleration = (smoothed - prevSmoothed) * e.fps

		heading := math.Atan2(vy, vx)
		st.HeadingHistory = append(st.HeadingHistory, heading)
		if len(st.HeadingHistory) > e.cfg.DirectionWindow {
			st.HeadingHistory = st.HeadingHistory[len(st.HeadingHistory)-e.cfg.DirectionWindow:]
		}
		st.DirectionChanges = countDirectionChanges(st.HeadingHistory, e.cfg.DirectionDeadband)
	}

	if st.CurrentZoneID != "" {
		st.DwellTime = now.Sub(st.ZoneEnteredAt).Seconds()
	}
}

// EnterZone records a zone transition for a track, resetting the dwell
// clock. Called by the spatial zone engine on zone change.
func (e *Engine) EnterZone(trackID uint64, zoneID string, now time.Time) {
	st, ok := e.states[trackID]
	if !ok {
		return
	}
	if st.CurrentZoneID != "" {
		st.TotalDwell += now.Sub(st.ZoneEnteredAt).Seconds()
	}
	st.CurrentZoneID = zoneID
	st.ZoneEnteredAt = now
	st.DwellTime = 0
}

// ExitZone clears the current zone for a track (no zone currently
// contains it).
func (e *Engine) ExitZone(trackID uint64, now time.Time) {
	st, ok := e.states[trackID]
	if !ok {
		return
	}
	if st.CurrentZoneID != "" {
		st.TotalDwell += now.Sub(st.ZoneEnteredAt).Seconds()
	}
	st.CurrentZoneID = ""
	st.DwellTime = 0
}

// State returns the ObjectState for a track, or nil if unknown.
func (e *Engine) State(trackID uint64) *domain.ObjectState {
	return e.states[trackID]
}

// All returns every currently tracked ObjectState. Callers must not
// mutate the returned pointers' identity (fine to read, and the
// detectors are expected to only read).
func (e *Engine) All() map[uint64]*domain.ObjectState {
	return e.states
}

// Cleanup removes ObjectState for tracks not seen for >= ForgetFrames.
func (e *Engine) Cleanup(currentFrame uint64) int {
	removed := 0
	for id, st := range e.states {
		if currentFrame >= st.LastFrameIndex && currentFrame-st.LastFrameIndex >= e.cfg.ForgetFrames {
			delete(e.states, id)
			removed++
		}
	}
	return removed
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// countDirectionChanges counts sign changes in heading derivative across
// the window, with a deadband to ignore near-zero-curvature noise.
func countDirectionChanges(headings []float64, deadband float64) int {
	if len(headings) < 3 {
		return 0
	}
	changes := 0
	prevSign := 0
	for i := 1; i < len(headings); i++ {
		delta := angleDiff(headings[i], headings[i-1])
		if math.Abs(delta) < deadband {
			continue
		}
		sign := 1
		if delta < 0 {
			sign = -1
		}
		if prevSign != 0 && sign != prevSign {
			changes++
		}
		prevSign = sign
	}
	return changes
}

// angleDiff returns the signed difference a-b wrapped to [-pi, pi].
func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
