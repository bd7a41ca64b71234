package intelligence

import (
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

// zoneViolationDetector turns one frame's spatial violations (§4.4) into
// ZONE_VIOLATION/INTRUSION candidates (§4.6.3). Stateless across frames:
// the rising-edge/continuation bookkeeping already lives in the zone
// engine, so this detector only needs to score whatever violations it is
// handed this frame.
type zoneViolationDetector struct{}

func newZoneViolationDetector() *zoneViolationDetector {
	return &zoneViolationDetector{}
}

func (d *zoneViolationDetector) step(now time.Time, v domain.SpatialViolation, obj *domain.ObjectState, scorer *severity.Scorer, zl zoneLookup, occupancy map[string]int, priorViolations map[uint64]int) *Candidate {
	zone := zl.Zone(v.ZoneID)

	if v.Kind == domain.ViolationRestrictedEntry && zone != nil && zone.AlertOnEntry {
		ctx := domain.NewContext().
			Set("id", domain.CtxNumber(float64(v.TrackID))).
			Set("d", domain.CtxNumber(dwellOf(obj)))
		return &Candidate{
			Type:     domain.EventIntrusion,
			TrackIDs: []uint64{v.TrackID},
			ZoneID:   v.ZoneID,
			Duration: dwellOf(obj),
			Score:    domain.SeverityScore{Score: 1.0, Level: domain.SeverityCritical},
			Context:  ctx,
		}
	}

	var speed, dwell float64
	var class string
	if obj != nil {
		speed = obj.Speed
		dwell = dwellOf(obj)
		class = obj.Class
	}

	occ, capacity := crowdInputs(zl, occupancy, v.ZoneID)

	score := scoreFor(scorer, severity.Input{
		DwellTimeSeconds: dwell,
		ZoneWeight:       v.Weight,
		Class:            class,
		Speed:            speed,
		Timestamp:        now,
		Occupancy:        occ,
		Capacity:         capacity,
		PriorViolations:  priorViolations[v.TrackID],
	})

	eventType := domain.EventZoneViolation
	if v.Kind == domain.ViolationRestrictedEntry {
		eventType = domain.EventIntrusion
		if !score.Level.AtLeast(domain.SeverityHigh) {
			score.Level = domain.SeverityHigh
		}
	}

	ctx := domain.NewContext().
		Set("id", domain.CtxNumber(float64(v.TrackID))).
		Set("d", domain.CtxNumber(dwell)).
		Set("violation", domain.CtxString(string(v.Kind)))

	return &Candidate{
		Type:     eventType,
		TrackIDs: []uint64{v.TrackID},
		ZoneID:   v.ZoneID,
		Duration: dwell,
		Score:    score,
		Context:  ctx,
	}
}

func dwellOf(obj *domain.ObjectState) float64 {
	if obj == nil {
		return 0
	}
	return obj.DwellTime
}
