package domain

import (
	"math"
	"time"
)

// ClassObservation is one (class, confidence) sample in a track's ring
// buffer history.
type ClassObservation struct {
	Class      string
	Confidence float64
}

// TemporalState is the stabilizer's per-track record (§3, §4.2).
type TemporalState struct {
	TrackID             uint64
	History             []ClassObservation // ring buffer, length <= W
	HistoryCap          int
	PublishedClass      string
	PublishedConfidence float64
	Locked              bool
	LockStreak          int
	ContradictionCount  int
	LastFrameIndex      uint64
	LastSeen            time.Time
}

// PushObservation appends an observation to the bounded ring buffer,
// evicting the oldest entry once capacity is reached.
func (t *TemporalState) PushObservation(obs ClassObservation) {
	t.History = append(t.History, obs)
	if len(t.History) > t.HistoryCap {
		t.History = t.History[len(t.History)-t.HistoryCap:]
	}
}

// PositionSample is one centroid observation in a track's bounded history.
type PositionSample struct {
	Point     Point
	Timestamp time.Time
	FrameIdx  uint64
}

// ObjectState is the behavioral context engine's per-track record (§3, §4.3).
type ObjectState struct {
	TrackID          uint64
	Class            string
	FirstSeen        time.Time
	LastSeen         time.Time
	Positions        []PositionSample // bounded, length <= PositionsCap (>= 30)
	PositionsCap     int
	Velocity         Point   // px/s, from the latest frame-to-frame centroid delta; not smoothed
	Speed            float64 // moving average of the last VelocitySmoothingN instantaneous speeds
	SpeedHistory     []float64
	Acceleration     float64
	DirectionChanges int
	HeadingHistory   []float64

	CurrentZoneID string
	ZoneEnteredAt time.Time
	DwellTime     float64 // seconds in current zone
	TotalDwell    float64 // cumulative seconds across all zones

	Disappeared    bool
	AgeFrames      uint64
	LastFrameIndex uint64

	PathLength float64
}

// IsStationary reports whether the track's current smoothed speed is
// below the stationary threshold.
func (o *ObjectState) IsStationary(vStat float64) bool {
	return o.Speed < vStat
}

// IsLoitering reports whether the track has dwelled at least threshold
// seconds in its current zone while stationary.
func (o *ObjectState) IsLoitering(threshold, vStat float64) bool {
	return o.DwellTime >= threshold && o.IsStationary(vStat)
}

// DistanceTo returns the Euclidean distance between this track's latest
// centroid and other's.
func (o *ObjectState) DistanceTo(other *ObjectState) float64 {
	if len(o.Positions) == 0 || len(other.Positions) == 0 {
		return math.MaxFloat64
	}
	a := o.Positions[len(o.Positions)-1].Point
	b := other.Positions[len(other.Positions)-1].Point
	return Distance(a, b)
}

// LatestPosition returns the most recent centroid, or the zero point if
// none recorded yet.
func (o *ObjectState) LatestPosition() Point {
	if len(o.Positions) == 0 {
		return Point{}
	}
	return o.Positions[len(o.Positions)-1].Point
}
