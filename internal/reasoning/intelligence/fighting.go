package intelligence

import (
	"sort"
	"time"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

type fightPairKey struct {
	a, b uint64 // a < b
}

func newFightPairKey(x, y uint64) fightPairKey {
	if x < y {
		return fightPairKey{a: x, b: y}
	}
	return fightPairKey{a: y, b: x}
}

type fightState struct {
	closeSince     time.Time
	alreadyEmitted bool
}

type fightingDetector struct {
	cfg    Config
	states map[fightPairKey]*fightState
}

func newFightingDetector(cfg Config) *fightingDetector {
	return &fightingDetector{cfg: cfg, states: make(map[fightPairKey]*fightState)}
}

// stepAll checks every unordered pair of person tracks present this frame.
func (d *fightingDetector) stepAll(now time.Time, objects map[uint64]*domain.ObjectState, scorer *severity.Scorer, zl zoneLookup) []Candidate {
	var persons []*domain.ObjectState
	for _, o := range objects {
		if o.Class == "person" && !o.Disappeared {
			persons = append(persons, o)
		}
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].TrackID < persons[j].TrackID })

	var out []Candidate
	live := make(map[fightPairKey]bool)

	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			a, b := persons[i], persons[j]
			key := newFightPairKey(a.TrackID, b.TrackID)
			live[key] = true
			if c := d.stepPair(now, key, a, b, scorer, zl); c != nil {
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

func (d *fightingDetector) stepPair(now time.Time, key fightPairKey, a, b *domain.ObjectState, scorer *severity.Scorer, zl zoneLookup) *Candidate {
	st, ok := d.states[key]
	if !ok {
		st = &fightState{}
		d.states[key] = st
	}

	erratic := a.DirectionChanges >= d.cfg.FightDirectionChgs && b.DirectionChanges >= d.cfg.FightDirectionChgs
	close := domain.Distance(a.LatestPosition(), b.LatestPosition()) < d.cfg.FightDistance
	fast := a.Speed > d.cfg.FightSpeed && b.Speed > d.cfg.FightSpeed

	if !(close && fast && erratic) {
		st.closeSince = time.Time{}
		st.alreadyEmitted = false
		return nil
	}

	if st.closeSince.IsZero() {
		st.closeSince = now
	}
	sustained := now.Sub(st.closeSince)
	if sustained < d.cfg.FightSustainedFor || st.alreadyEmitted {
		return nil
	}
	st.alreadyEmitted = true

	score := domain.SeverityScore{Score: 0.9, Level: domain.SeverityCritical}
	ctx := domain.NewContext().
		Set("id1", domain.CtxNumber(float64(key.a))).
		Set("id2", domain.CtxNumber(float64(key.b))).
		Set("d", domain.CtxNumber(sustained.Seconds()))

	return &Candidate{
		Type:     domain.EventFighting,
		TrackIDs: []uint64{key.a, key.b},
		Duration: sustained.Seconds(),
		Score:    score,
		Context:  ctx,
	}
}
