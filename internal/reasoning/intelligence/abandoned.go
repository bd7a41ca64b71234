package intelligence

import (
	"sort"
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

type abandonedState struct {
	stationarySince time.Time
	alreadyEmitted  bool
}

type abandonedDetector struct {
	cfg    Config
	states map[uint64]*abandonedState
}

func newAbandonedDetector(cfg Config) *abandonedDetector {
	return &abandonedDetector{cfg: cfg, states: make(map[uint64]*abandonedState)}
}

func (d *abandonedDetector) stepAll(now time.Time, objects map[uint64]*domain.ObjectState, scorer *severity.Scorer, zl zoneLookup) []Candidate {
	var out []Candidate
	live := make(map[uint64]bool)
	ids := make([]uint64, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, trackID := range ids {
		obj := objects[trackID]
		if obj.Class == "person" || obj.Disappeared {
			continue
		}
		live[trackID] = true
		if c := d.stepOne(now, obj, objects, scorer, zl); c != nil {
			out = append(out, *c)
		}
	}

	for id := range d.states {
		if !live[id] {
			delete(d.states, id)
		}
	}
	return out
}

func (d *abandonedDetector) stepOne(now time.Time, obj *domain.ObjectState, objects map[uint64]*domain.ObjectState, scorer *severity.Scorer, zl zoneLookup) *Candidate {
	st, ok := d.states[obj.TrackID]
	if !ok {
		st = &abandonedState{}
		d.states[obj.TrackID] = st
	}

	if obj.Speed >= d.cfg.VStat {
		st.stationarySince = time.Time{}
		st.alreadyEmitted = false
		return nil
	}
	if st.stationarySince.IsZero() {
		st.stationarySince = now
	}

	dwell := now.Sub(st.stationarySince)
	if dwell < d.cfg.AbandonedStationaryFor || st.alreadyEmitted {
		return nil
	}

	if d.nearestPersonWithin(obj, objects) {
		return nil
	}

	st.alreadyEmitted = true
	score := domain.SeverityScore{Score: 0.6, Level: domain.SeverityMedium}
	ctx := domain.NewContext().
		Set("id", domain.CtxNumber(float64(obj.TrackID))).
		Set("d", domain.CtxNumber(dwell.Seconds()))

	return &Candidate{
		Type:     domain.EventAbandonedObject,
		TrackIDs: []uint64{obj.TrackID},
		ZoneID:   obj.CurrentZoneID,
		Duration: dwell.Seconds(),
		Score:    score,
		Context:  ctx,
	}
}

func (d *abandonedDetector) nearestPersonWithin(obj *domain.ObjectState, objects map[uint64]*domain.ObjectState) bool {
	for _, other := range objects {
		if other.Class != "person" || other.Disappeared {
			continue
		}
		if obj.DistanceTo(other) <= d.cfg.AbandonedNearbyRadius {
			return true
		}
	}
	return false
}
