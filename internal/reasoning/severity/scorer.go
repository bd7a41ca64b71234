// Package severity implements the seven-factor weighted severity scorer
// of §4.5: a scalar in [0,1] with a categorical level and the factor
// breakdown that produced it.
package severity

import (
	"math"
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// Weights holds the per-factor weights. Configurable at startup,
// immutable per run; must sum to 1.0 (normalized on load).
type Weights struct {
	Duration float64
	Zone     float64
	Class    float64
	Speed    float64
	Time     float64
	Crowd    float64
	History  float64
}

// DefaultWeights returns the §4.5 defaults.
func DefaultWeights() Weights {
	return Weights{
		Duration: 0.25,
		Zone:     0.20,
		Class:    0.15,
		Speed:    0.15,
		Time:     0.10,
		Crowd:    0.10,
		History:  0.05,
	}
}

// Normalize rescales the weights so they sum to exactly 1.0. Returns a
// ZoneConfigError-rooted error if the weights sum to <= 0 (nothing to
// normalize against).
func (w Weights) Normalize() (Weights, error) {
	sum := w.Duration + w.Zone + w.Class + w.Speed + w.Time + w.Crowd + w.History
	if sum <= 0 {
		return w, domain.NewZoneConfigError("severity weights sum to zero or less")
	}
	return Weights{
		Duration: w.Duration / sum,
		Zone:     w.Zone / sum,
		Class:    w.Class / sum,
		Speed:    w.Speed / sum,
		Time:     w.Time / sum,
		Crowd:    w.Crowd / sum,
		History:  w.History / sum,
	}, nil
}

// Input bundles the raw observations the scorer normalizes into factors.
type Input struct {
	DwellTimeSeconds float64
	ZoneWeight       float64 // 0 when no zone is relevant; divided by 3.0
	Class            string
	Speed            float64 // px/s
	BaselineSpeed    float64 // px/s, the class's "normal" speed
	Timestamp        time.Time
	Occupancy        int
	Capacity         int // 0 means no crowd factor contribution
	PriorViolations  int
}

// classWeight is the fixed class-weight table from §4.5.
func classWeight(class string) float64 {
	switch class {
	case "person":
		return 1.0
	case "bicycle", "car", "motorcycle", "bus", "truck":
		return 0.7
	case "backpack", "handbag", "suitcase", "bottle", "cell phone", "laptop", "book":
		return 0.4
	default:
		return 0.2
	}
}

// timeSuspicion returns a [0,1] curve favoring nighttime hours over the
// day: 0 at 14:00, rising linearly with the hour distance from 14:00 to 1
// at 02:00 (08:00 and 20:00 both score 0.5).
func timeSuspicion(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60.0
	// Distance from 14:00 (least suspicious), wrapped to [0,12].
	d := math.Abs(hour - 14)
	if d > 12 {
		d = 24 - d
	}
	return clamp01(d / 12.0)
}

// Scorer computes SeverityScore values from Input observations using a
// fixed, immutable-per-run set of weights.
type Scorer struct {
	weights Weights
}

// New creates a Scorer with the given (already-normalized) weights.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the weighted severity score and its factor breakdown.
func (s *Scorer) Score(in Input) domain.SeverityScore {
	factors := domain.SeverityFactors{
		Duration: clamp01(in.DwellTimeSeconds / 60.0),
		Zone:     clamp01(in.ZoneWeight / 3.0),
		Class:    classWeight(in.Class),
		Speed:    speedDeviation(in.Speed, in.BaselineSpeed),
		Time:     timeSuspicion(in.Timestamp),
		Crowd:    crowdFactor(in.Occupancy, in.Capacity),
		History:  historyFactor(in.PriorViolations),
	}

	score := s.weights.Duration*factors.Duration +
		s.weights.Zone*factors.Zone +
		s.weights.Class*factors.Class +
		s.weights.Speed*factors.Speed +
		s.weights.Time*factors.Time +
		s.weights.Crowd*factors.Crowd +
		s.weights.History*factors.History

	score = clamp01(score)
	return domain.SeverityScore{
		Score:   score,
		Level:   domain.LevelFromScore(score),
		Factors: factors,
	}
}

// speedDeviation normalizes how far speed deviates from baseline,
// clipped to [0,1]. A baseline of 0 disables the factor.
func speedDeviation(speed, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return clamp01(math.Abs(speed-baseline) / (baseline * 3))
}

func crowdFactor(occupancy, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return clamp01(float64(occupancy) / float64(capacity))
}

// historyFactor saturates prior-violation count at 10 occurrences.
func historyFactor(priorViolations int) float64 {
	return clamp01(float64(priorViolations) / 10.0)
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
