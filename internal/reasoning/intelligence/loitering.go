package intelligence

import (
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

// loiterPhase enumerates the §4.6.1 state machine's phases.
type loiterPhase int

const (
	loiterNormal loiterPhase = iota
	loiterPresent
	loiterStationary
	loiterLoitering
	loiterSuspicious
)

type loiterState struct {
	phase           loiterPhase
	stationarySince time.Time
	motionSince     time.Time
}

// loiteringDetector owns the per-track loitering state machine.
type loiteringDetector struct {
	cfg    Config
	states map[uint64]*loiterState
}

func newLoiteringDetector(cfg Config) *loiteringDetector {
	return &loiteringDetector{cfg: cfg, states: make(map[uint64]*loiterState)}
}

func (d *loiteringDetector) step(now time.Time, obj *domain.ObjectState, scorer *severity.Scorer, zl zoneLookup, occupancy map[string]int, priorViolations map[uint64]int) *Candidate {
	if obj.Class != "person" || obj.Disappeared {
		delete(d.states, obj.TrackID)
		return nil
	}

	st, ok := d.states[obj.TrackID]
	if !ok {
		st = &loiterState{phase: loiterPresent}
		d.states[obj.TrackID] = st
	}

	stationary := obj.Speed < d.cfg.VStat

	if !stationary {
		if st.motionSince.IsZero() {
			st.motionSince = now
		}
		if now.Sub(st.motionSince) >= d.cfg.LoiterMotionReset {
			st.phase = loiterPresent
			st.stationarySince = time.Time{}
		}
		return nil
	}

	st.motionSince = time.Time{}
	if st.stationarySince.IsZero() {
		st.stationarySince = now
	}
	dwell := now.Sub(st.stationarySince)

	occ, capacity := crowdInputs(zl, occupancy, obj.CurrentZoneID)
	inNonNormalZone := false
	if obj.CurrentZoneID != "" {
		if z := zl.Zone(obj.CurrentZoneID); z != nil && z.Type != domain.ZoneNormal {
			inNonNormalZone = true
		}
	}

	switch {
	case dwell >= d.cfg.LoiterSuspiciousAt && inNonNormalZone:
		if st.phase == loiterSuspicious {
			return nil
		}
		st.phase = loiterSuspicious
		score := scoreFor(scorer, severity.Input{
			DwellTimeSeconds: dwell.Seconds(),
			ZoneWeight:       zoneWeight(zl, obj.CurrentZoneID),
			Class:            obj.Class,
			Speed:            obj.Speed,
			Timestamp:        now,
			Occupancy:        occ,
			Capacity:         capacity,
			PriorViolations:  priorViolations[obj.TrackID],
		})
		if !score.Level.AtLeast(domain.SeverityHigh) {
			score.Level = domain.SeverityHigh
		}
		return loiteringCandidate(obj, dwell, score)
	case dwell >= d.cfg.LoiterAt:
		if st.phase >= loiterLoitering {
			return nil
		}
		st.phase = loiterLoitering
		score := scoreFor(scorer, severity.Input{
			DwellTimeSeconds: dwell.Seconds(),
			ZoneWeight:       zoneWeight(zl, obj.CurrentZoneID),
			Class:            obj.Class,
			Speed:            obj.Speed,
			Timestamp:        now,
			Occupancy:        occ,
			Capacity:         capacity,
			PriorViolations:  priorViolations[obj.TrackID],
		})
		if !score.Level.AtLeast(domain.SeverityMedium) {
			score.Level = domain.SeverityMedium
		}
		return loiteringCandidate(obj, dwell, score)
	case dwell >= d.cfg.LoiterStationaryAfter:
		st.phase = loiterStationary
	}
	return nil
}

func loiteringCandidate(obj *domain.ObjectState, dwell time.Duration, score domain.SeverityScore) *Candidate {
	ctx := domain.NewContext().
		Set("id", domain.CtxNumber(float64(obj.TrackID))).
		Set("d", domain.CtxNumber(dwell.Seconds())).
		Set("v", domain.CtxNumber(obj.Speed))
	return &Candidate{
		Type:     domain.EventLoitering,
		TrackIDs: []uint64{obj.TrackID},
		ZoneID:   obj.CurrentZoneID,
		Duration: dwell.Seconds(),
		Score:    score,
		Context:  ctx,
	}
}
