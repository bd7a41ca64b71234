// Package stabilizer implements temporal class stabilization (§4.2): it
// removes per-frame class flicker in noisy detector output via a bounded
// per-track history, majority voting, and a lock/unlock state machine.
package stabilizer

import (
	"time"

	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
)

// Config holds the stabilizer's tunable thresholds, all defaulted per §4.2.
type Config struct {
	WindowSize      int     // W, ring buffer length
	Alpha           float64 // EMA smoothing factor for published confidence
	LockStreak      int     // L_lock, consecutive identical observations to lock
	UnlockThreshold int     // U_unlock, contradictions within W to unlock
	ForgetFrames    uint64  // T_forget, frames of absence before state is dropped
	AllowedClasses  map[string]bool
	BlockedClasses  map[string]bool
}

// DefaultConfig returns the spec's default thresholds.
func DefaultConfig() Config {
	return Config{
		WindowSize:      10,
		Alpha:           0.3,
		LockStreak:      5,
		UnlockThreshold: 8,
		ForgetFrames:    30,
		AllowedClasses:  defaultAllowList(),
		BlockedClasses:  map[string]bool{},
	}
}

// defaultAllowList is the 25-plus class catalog from §6.4.
func defaultAllowList() map[string]bool {
	classes := []string{
		"person", "bicycle", "car", "motorcycle", "bus", "truck", "backpack",
		"handbag", "suitcase", "sports ball", "bottle", "wine glass", "cup",
		"fork", "knife", "spoon", "bowl", "chair", "couch", "laptop", "mouse",
		"remote", "keyboard", "cell phone", "book", "scissors", "clock",
		"frisbee", "tv", "traffic light", "stop sign", "toothbrush", "hair drier",
	}
	out := make(map[string]bool, len(classes))
	for _, c := range classes {
		out[c] = true
	}
	return out
}

// Stabilizer owns all TemporalState records and runs the per-frame
// stabilization algorithm. Not safe for concurrent use; the frame
// coordinator drives it single-threaded, per §5.
type Stabilizer struct {
	cfg     Config
	tracks  map[uint64]*domain.TemporalState
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New creates a Stabilizer with the given configuration.
func New(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Stabilizer {
	return &Stabilizer{
		cfg:     cfg,
		tracks:  make(map[uint64]*domain.TemporalState),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "stabilizer")),
	}
}

// Allowed reports whether a class label passes the allow/block policy.
func (s *Stabilizer) Allowed(class string) bool {
	if s.cfg.BlockedClasses[class] {
		return false
	}
	if len(s.cfg.AllowedClasses) == 0 {
		return true
	}
	return s.cfg.AllowedClasses[class]
}

// Process runs one frame's worth of observations through the stabilizer
// and returns the stabilized detections that survive the allow-list gate.
func (s *Stabilizer) Process(frameIdx uint64, now time.Time, obs []domain.TrackObservation) []domain.StabilizedDetection {
	out := make([]domain.StabilizedDetection, 0, len(obs))
	for _, o := range obs {
		det := o.Detection
		if !s.Allowed(det.ClassName) {
			continue
		}
		state := s.track(det.TrackID)
		s.update(state, det, frameIdx, now)
		out = append(out, domain.StabilizedDetection{
			TrackID:    det.TrackID,
			BBox:       det.BBox,
			Class:      state.PublishedClass,
			Confidence: state.PublishedConfidence,
			Locked:     state.Locked,
		})
	}
	if s.metrics != nil {
		s.metrics.StabilizerLockedTracks.Set(float64(s.lockedCount()))
	}
	return out
}

func (s *Stabilizer) lockedCount() int {
	n := 0
	for _, st := range s.tracks {
		if st.Locked {
			n++
		}
	}
	return n
}

func (s *Stabilizer) track(id uint64) *domain.TemporalState {
	st, ok := s.tracks[id]
	if !ok {
		st = &domain.TemporalState{
			TrackID:    id,
			HistoryCap: s.cfg.WindowSize,
		}
		s.tracks[id] = st
	}
	return st
}

// update applies one observation to a track's temporal state, implementing
// the confidence-smoothing and class-selection rules of §4.2.
func (s *Stabilizer) update(state *domain.TemporalState, det domain.Detection, frameIdx uint64, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from corrupted stabilizer state, resetting track",
				zap.Uint64("track_id", state.TrackID), zap.Any("panic", r))
			*state = domain.TemporalState{TrackID: state.TrackID, HistoryCap: s.cfg.WindowSize}
		}
	}()

	if det.Confidence < 0 || det.Confidence > 1 {
		det.Confidence = clamp01(det.Confidence)
	}

	state.PushObservation(domain.ClassObservation{Class: det.ClassName, Confidence: det.Confidence})
	state.LastFrameIndex = frameIdx
	state.LastSeen = now

	if state.PublishedConfidence == 0 && len(state.History) == 1 {
		state.PublishedConfidence = det.Confidence
	} else {
		state.PublishedConfidence = s.cfg.Alpha*det.Confidence + (1-s.cfg.Alpha)*state.PublishedConfidence
	}
	state.PublishedConfidence = clamp01(state.PublishedConfidence)

	if state.Locked {
		if det.ClassName != state.PublishedClass && s.metrics != nil {
			s.metrics.StabilizerFlicker.Inc()
		}
		state.ContradictionCount = countContradictions(state.History, state.PublishedClass)
		if state.ContradictionCount >= s.cfg.UnlockThreshold {
			state.Locked = false
			state.LockStreak = 0
			state.ContradictionCount = 0
		} else {
			return
		}
	}

	// Unlocked: published class is the mode of the window, most-recent
	// class wins ties.
	state.PublishedClass = modeVote(state.History)
	state.LockStreak = currentStreak(state.History)
	if state.LockStreak >= s.cfg.LockStreak {
		state.Locked = true
		state.ContradictionCount = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// modeVote returns the most frequent class in history; ties broken by
// most-recent occurrence.
func modeVote(history []domain.ClassObservation) string {
	counts := make(map[string]int, len(history))
	lastIndex := make(map[string]int, len(history))
	for i, h := range history {
		counts[h.Class]++
		lastIndex[h.Class] = i
	}
	best := ""
	bestCount := -1
	bestLast := -1
	for class, count := range counts {
		if count > bestCount || (count == bestCount && lastIndex[class] > bestLast) {
			best = class
			bestCount = count
			bestLast = lastIndex[class]
		}
	}
	return best
}

// currentStreak returns the length of the run of identical classes ending
// at the latest observation.
func currentStreak(history []domain.ClassObservation) int {
	if len(history) == 0 {
		return 0
	}
	last := history[len(history)-1].Class
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Class != last {
			break
		}
		streak++
	}
	return streak
}

// countContradictions counts observations in history whose class differs
// from the locked class.
func countContradictions(history []domain.ClassObservation, lockedClass string) int {
	n := 0
	for _, h := range history {
		if h.Class != lockedClass {
			n++
		}
	}
	return n
}

// Cleanup drops TemporalState for any track not seen for >= ForgetFrames,
// relative to currentFrame. Called by the coordinator every K frames.
func (s *Stabilizer) Cleanup(currentFrame uint64) int {
	removed := 0
	for id, st := range s.tracks {
		if currentFrame-st.LastFrameIndex >= s.cfg.ForgetFrames {
			delete(s.tracks, id)
			removed++
		}
	}
	return removed
}

// State returns the current TemporalState for a track, for detectors or
// tests that need to inspect it directly. Returns nil if unknown.
func (s *Stabilizer) State(trackID uint64) *domain.TemporalState {
	return s.tracks[trackID]
}

// TrackCount returns the number of tracks currently held.
func (s *Stabilizer) TrackCount() int {
	return len(s.tracks)
}
