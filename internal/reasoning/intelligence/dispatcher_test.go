package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

type fakeZones struct{ m map[string]*domain.Zone }

func (f fakeZones) Zone(id string) *domain.Zone { return f.m[id] }

func newScorer(t *testing.T) *severity.Scorer {
	t.Helper()
	w, err := severity.DefaultWeights().Normalize()
	require.NoError(t, err)
	return severity.New(w)
}

func TestDispatcher_LoiteringAfterTenSeconds(t *testing.T) {
	scorer := newScorer(t)
	disp := New(DefaultConfig(), scorer, fakeZones{}, zap.NewNop())

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	obj := &domain.ObjectState{TrackID: 1, Class: "person", Speed: 0}

	var candidates []Candidate
	for i := 0; i < 11; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		objects := map[uint64]*domain.ObjectState{1: obj}
		candidates = append(candidates, disp.Step(now, objects, nil, nil)...)
	}

	found := false
	for _, c := range candidates {
		if c.Type == domain.EventLoitering {
			found = true
			assert.GreaterOrEqual(t, c.Duration, 10.0)
		}
	}
	assert.True(t, found, "expected a LOITERING candidate within 11s of stationary presence")
}

func TestDispatcher_CrowdFormingAtFivePersons(t *testing.T) {
	scorer := newScorer(t)
	disp := New(DefaultConfig(), scorer, fakeZones{}, zap.NewNop())

	now := time.Now()
	objects := make(map[uint64]*domain.ObjectState)
	for i := uint64(1); i <= 5; i++ {
		objects[i] = &domain.ObjectState{TrackID: i, Class: "person", Speed: 0}
	}

	candidates := disp.Step(now, objects, nil, nil)
	var crowd *Candidate
	for i := range candidates {
		if candidates[i].Type == domain.EventCrowdForming {
			crowd = &candidates[i]
		}
	}
	require.NotNil(t, crowd)
	assert.Equal(t, domain.SeverityHigh, crowd.Score.Level)
	assert.Equal(t, float64(5), crowd.Context.Values["count"].Num)
}

func TestDispatcher_CrowdAndHistoryFactorsAreWired(t *testing.T) {
	scorer := newScorer(t)
	zone := &domain.Zone{ID: "Z", Type: domain.ZoneNormal, SeverityWeight: 1.0, MaxOccupancy: 10}
	disp := New(DefaultConfig(), scorer, fakeZones{m: map[string]*domain.Zone{"Z": zone}}, zap.NewNop())

	now := time.Now()
	obj := &domain.ObjectState{TrackID: 1, Class: "person", CurrentZoneID: "Z", Speed: 0}
	objects := map[uint64]*domain.ObjectState{1: obj}
	occupancy := map[string]int{"Z": 8}
	violation := domain.SpatialViolation{TrackID: 1, ZoneID: "Z", Kind: domain.ViolationDisallowedClass, Timestamp: now, Weight: 1.0}

	first := disp.Step(now, objects, []domain.SpatialViolation{violation}, occupancy)
	require.Len(t, first, 1)
	assert.Greater(t, first[0].Score.Factors.Crowd, 0.0, "zone occupancy/capacity should feed the Crowd factor")
	assert.Equal(t, 0.0, first[0].Score.Factors.History, "no prior violations yet on the first frame")

	second := disp.Step(now, objects, []domain.SpatialViolation{violation}, occupancy)
	require.Len(t, second, 1)
	assert.Greater(t, second[0].Score.Factors.History, 0.0, "the prior frame's violation should now count toward History")
}

func TestDispatcher_IntrusionBypassesToCritical(t *testing.T) {
	scorer := newScorer(t)
	zone := &domain.Zone{ID: "R", Type: domain.ZoneRestricted, AlertOnEntry: true, SeverityWeight: 2.5}
	disp := New(DefaultConfig(), scorer, fakeZones{m: map[string]*domain.Zone{"R": zone}}, zap.NewNop())

	now := time.Now()
	obj := &domain.ObjectState{TrackID: 1, Class: "person", CurrentZoneID: "R"}
	violations := []domain.SpatialViolation{
		{TrackID: 1, ZoneID: "R", Kind: domain.ViolationRestrictedEntry, Timestamp: now, Weight: 2.5},
	}
	candidates := disp.Step(now, map[uint64]*domain.ObjectState{1: obj}, violations, nil)

	require.Len(t, candidates, 1)
	assert.Equal(t, domain.EventIntrusion, candidates[0].Type)
	assert.Equal(t, domain.SeverityCritical, candidates[0].Score.Level)
}
