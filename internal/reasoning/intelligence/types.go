// Package intelligence implements the seven event-detection state machines
// of §4.6 as a tagged-variant dispatch over a common per-frame "step"
// capability (§9), plus the crowd/theft/fighting pairwise bookkeeping each
// one owns.
package intelligence

import (
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

// Candidate is one detector's proposed event for this frame, before it
// passes through the store's id assignment, template rendering, and
// dedup/publish logic (§4.7).
type Candidate struct {
	Type     domain.EventType
	TrackIDs []uint64
	ZoneID   string
	Duration float64
	Score    domain.SeverityScore
	Context  *domain.Context
}

// zoneLookup is the narrow view of the zone engine the detectors need:
// per-zone policy fields for severity weighting and the alert_on_entry
// bypass. Kept as an interface so tests can fake it.
type zoneLookup interface {
	Zone(id string) *domain.Zone
}

// Config holds every detector's tunable thresholds, all defaulted per §4.6.
type Config struct {
	VStat float64 // V_stat, px/s, stationary threshold

	LoiterStationaryAfter time.Duration // 5s
	LoiterAt              time.Duration // 10s dwell -> LOITERING
	LoiterSuspiciousAt    time.Duration // 15s dwell in non-NORMAL zone -> SUSPICIOUS
	LoiterMotionReset     time.Duration // 2s of motion to reset

	VRun              float64       // V_run, px/s, running trigger
	VRunHigh          float64       // upgrade to HIGH above this speed
	RunSustainedFor   time.Duration // 0.5s

	DNear          float64       // D_near, px, theft interaction radius
	TConcealment   time.Duration // 2s
	VExit          float64       // px/s, theft departure speed
	TheftResetGap  time.Duration // 1s interaction break before concealment resets
	GraspableClass map[string]bool

	FightDistance       float64       // px
	FightSustainedFor   time.Duration // 1s
	FightSpeed          float64       // px/s
	FightDirectionChgs  int           // direction changes in last 30 samples

	AbandonedStationaryFor time.Duration // 30s
	AbandonedNearbyRadius  float64       // px

	CrowdCount      int           // N_crowd, default 3
	CrowdHighCount  int           // upgrade to HIGH
	CrowdThrottle   time.Duration // 2s
}

// DefaultConfig returns the §4.6 defaults.
func DefaultConfig() Config {
	return Config{
		VStat: 5.0,

		LoiterStationaryAfter: 5 * time.Second,
		LoiterAt:              10 * time.Second,
		LoiterSuspiciousAt:    15 * time.Second,
		LoiterMotionReset:     2 * time.Second,

		VRun:            150.0,
		VRunHigh:        200.0,
		RunSustainedFor: 500 * time.Millisecond,

		DNear:         50.0,
		TConcealment:  2 * time.Second,
		VExit:         80.0,
		TheftResetGap: 1 * time.Second,
		GraspableClass: map[string]bool{
			"handbag": true, "backpack": true, "suitcase": true, "bottle": true,
			"cell phone": true, "laptop": true, "book": true,
		},

		FightDistance:      100.0,
		FightSustainedFor:  1 * time.Second,
		FightSpeed:         60.0,
		FightDirectionChgs: 3,

		AbandonedStationaryFor: 30 * time.Second,
		AbandonedNearbyRadius:  200.0,

		CrowdCount:     3,
		CrowdHighCount: 5,
		CrowdThrottle:  2 * time.Second,
	}
}

func scoreFor(scorer *severity.Scorer, in severity.Input) domain.SeverityScore {
	return scorer.Score(in)
}

func zoneWeight(zl zoneLookup, zoneID string) float64 {
	if zoneID == "" {
		return 0
	}
	z := zl.Zone(zoneID)
	if z == nil {
		return 0
	}
	return z.SeverityWeight
}

// crowdInputs resolves the current occupancy and configured capacity of a
// zone for the severity scorer's Crowd factor. occupancy is this frame's
// zoneID -> current-occupancy map from zones.Engine.Evaluate; capacity is
// the zone's MaxOccupancy (0 disables the factor, same as an unset zone).
func crowdInputs(zl zoneLookup, occupancy map[string]int, zoneID string) (occ int, capacity int) {
	if zoneID == "" {
		return 0, 0
	}
	z := zl.Zone(zoneID)
	if z == nil {
		return 0, 0
	}
	return occupancy[zoneID], z.MaxOccupancy
}
