package intelligence

import (
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

// runningState tracks how long a track's speed has stayed above V_run.
type runningState struct {
	fastSince time.Time
}

type runningDetector struct {
	cfg    Config
	states map[uint64]*runningState
}

func newRunningDetector(cfg Config) *runningDetector {
	return &runningDetector{cfg: cfg, states: make(map[uint64]*runningState)}
}

func (d *runningDetector) step(now time.Time, obj *domain.ObjectState, scorer *severity.Scorer, zl zoneLookup, occupancy map[string]int, priorViolations map[uint64]int) *Candidate {
	if obj.Disappeared {
		delete(d.states, obj.TrackID)
		return nil
	}

	st, ok := d.states[obj.TrackID]
	if !ok {
		st = &runningState{}
		d.states[obj.TrackID] = st
	}

	if obj.Speed <= d.cfg.VRun {
		st.fastSince = time.Time{}
		return nil
	}
	if st.fastSince.IsZero() {
		st.fastSince = now
	}

	sustained := now.Sub(st.fastSince)
	if sustained < d.cfg.RunSustainedFor {
		return nil
	}

	zone := zl.Zone(obj.CurrentZoneID)
	inRestricted := zone != nil && zone.Type == domain.ZoneRestricted

	occ, capacity := crowdInputs(zl, occupancy, obj.CurrentZoneID)

	score := scoreFor(scorer, severity.Input{
		DwellTimeSeconds: sustained.Seconds(),
		ZoneWeight:       zoneWeight(zl, obj.CurrentZoneID),
		Class:            obj.Class,
		Speed:            obj.Speed,
		BaselineSpeed:    d.cfg.VRun,
		Timestamp:        now,
		Occupancy:        occ,
		Capacity:         capacity,
		PriorViolations:  priorViolations[obj.TrackID],
	})
	if !score.Level.AtLeast(domain.SeverityMedium) {
		score.Level = domain.SeverityMedium
	}
	if obj.Speed > d.cfg.VRunHigh || inRestricted {
		if !score.Level.AtLeast(domain.SeverityHigh) {
			score.Level = domain.SeverityHigh
		}
	}

	ctx := domain.NewContext().
		Set("id", domain.CtxNumber(float64(obj.TrackID))).
		Set("d", domain.CtxNumber(sustained.Seconds())).
		Set("v", domain.CtxNumber(obj.Speed))

	return &Candidate{
		Type:     domain.EventRunning,
		TrackIDs: []uint64{obj.TrackID},
		ZoneID:   obj.CurrentZoneID,
		Duration: sustained.Seconds(),
		Score:    score,
		Context:  ctx,
	}
}
