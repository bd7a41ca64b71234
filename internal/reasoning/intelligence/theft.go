package intelligence

import (
	"sort"
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

type theftPhase int

const (
	theftIdle theftPhase = iota
	theftInteraction
	theftConcealment
	theftSuspected
)

type theftPairKey struct {
	person uint64
	object uint64
}

type theftState struct {
	phase          theftPhase
	interactSince  time.Time
	brokeSince     time.Time
	alreadyEmitted bool
}

type theftDetector struct {
	cfg    Config
	states map[theftPairKey]*theftState
}

func newTheftDetector(cfg Config) *theftDetector {
	return &theftDetector{cfg: cfg, states: make(map[theftPairKey]*theftState)}
}

// stepAll evaluates every (person, graspable-object) pair present this
// frame. Per §9, state is keyed by the pair, owned exclusively here.
func (d *theftDetector) stepAll(now time.Time, objects map[uint64]*domain.ObjectState, scorer *severity.Scorer, zl zoneLookup, occupancy map[string]int, priorViolations map[uint64]int) []Candidate {
	var out []Candidate
	live := make(map[theftPairKey]bool)
	ids := make([]uint64, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, personID := range ids {
		person := objects[personID]
		if person.Class != "person" || person.Disappeared {
			continue
		}
		for _, objID := range ids {
			obj := objects[objID]
			if objID == personID || !d.cfg.GraspableClass[obj.Class] || obj.Disappeared {
				continue
			}
			key := theftPairKey{person: personID, object: objID}
			live[key] = true
			if c := d.stepPair(now, key, person, obj, scorer, zl, occupancy, priorViolations); c != nil {
				out = append(out, *c)
			}
		}
	}

	for key := range d.states {
		if !live[key] {
			delete(d.states, key)
		}
	}
	return out
}

func (d *theftDetector) stepPair(now time.Time, key theftPairKey, person, obj *domain.ObjectState, scorer *severity.Scorer, zl zoneLookup, occupancy map[string]int, priorViolations map[uint64]int) *Candidate {
	st, ok := d.states[key]
	if !ok {
		st = &theftState{phase: theftIdle}
		d.states[key] = st
	}

	distance := person.DistanceTo(obj)
	near := distance < d.cfg.DNear

	switch st.phase {
	case theftIdle:
		if near {
			st.phase = theftInteraction
			st.interactSince = now
			st.brokeSince = time.Time{}
		}
	case theftInteraction:
		if !near {
			if st.brokeSince.IsZero() {
				st.brokeSince = now
			}
			if now.Sub(st.brokeSince) > d.cfg.TheftResetGap {
				st.phase = theftIdle
			}
			return nil
		}
		st.brokeSince = time.Time{}
		if now.Sub(st.interactSince) >= d.cfg.TConcealment {
			st.phase = theftConcealment
		}
	case theftConcealment:
		if !near {
			if st.brokeSince.IsZero() {
				st.brokeSince = now
			}
			if now.Sub(st.brokeSince) > d.cfg.TheftResetGap {
				st.phase = theftIdle
				st.alreadyEmitted = false
			}
			return nil
		}
		st.brokeSince = time.Time{}
		if person.Speed > d.cfg.VExit && !st.alreadyEmitted {
			st.phase = theftSuspected
			st.alreadyEmitted = true
			duration := now.Sub(st.interactSince).Seconds()
			occ, capacity := crowdInputs(zl, occupancy, person.CurrentZoneID)
			score := scoreFor(scorer, severity.Input{
				DwellTimeSeconds: duration,
				ZoneWeight:       zoneWeight(zl, person.CurrentZoneID),
				Class:            person.Class,
				Speed:            person.Speed,
				BaselineSpeed:    d.cfg.VExit,
				Timestamp:        now,
				Occupancy:        occ,
				Capacity:         capacity,
				PriorViolations:  priorViolations[key.person],
			})
			score.Score = 0.8
			if !score.Level.AtLeast(domain.SeverityHigh) {
				score.Level = domain.SeverityHigh
			}
			ctx := domain.NewContext().
				Set("id", domain.CtxNumber(float64(key.person))).
				Set("v", domain.CtxNumber(person.Speed)).
				Set("object_id", domain.CtxNumber(float64(key.object)))
			return &Candidate{
				Type:     domain.EventTheftSuspected,
				TrackIDs: []uint64{key.person, key.object},
				ZoneID:   person.CurrentZoneID,
				Duration: duration,
				Score:    score,
				Context:  ctx,
			}
		}
		// Slow departure while object stays visible resets, per §4.6.4.
		if person.Speed <= d.cfg.VExit && distance > d.cfg.DNear*2 {
			st.phase = theftIdle
			st.alreadyEmitted = false
		}
	}
	return nil
}
