package zones

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
)

type fakeEnterer struct {
	entered []string
	exited  []uint64
}

func (f *fakeEnterer) EnterZone(trackID uint64, zoneID string, now time.Time) {
	f.entered = append(f.entered, zoneID)
}

func (f *fakeEnterer) ExitZone(trackID uint64, now time.Time) {
	f.exited = append(f.exited, trackID)
}

func restrictedZone(alertOnEntry bool) *domain.Zone {
	return &domain.Zone{
		ID:   "R",
		Name: "Restricted",
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 500, Y: 500}, {X: 700, Y: 500}, {X: 700, Y: 700}, {X: 500, Y: 700},
		}},
		Type:           domain.ZoneRestricted,
		SeverityWeight: 2.5,
		AlertOnEntry:   alertOnEntry,
	}
}

func TestValidate_RejectsZeroAreaPolygon(t *testing.T) {
	z := &domain.Zone{
		ID:   "z1",
		Type: domain.ZoneNormal,
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0},
		}},
	}
	err := Validate([]*domain.Zone{z})
	require.Error(t, err)
}

func TestValidate_RejectsUnknownType(t *testing.T) {
	z := &domain.Zone{
		ID:   "z1",
		Type: "BOGUS",
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		}},
	}
	err := Validate([]*domain.Zone{z})
	require.Error(t, err)
}

func TestEngine_RestrictedEntryRisingEdge(t *testing.T) {
	z := restrictedZone(true)
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	outside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 100, Y1: 100, X2: 200, Y2: 200}}
	res := e.Evaluate(time.Now(), []domain.StabilizedDetection{outside}, fe)
	assert.Empty(t, res.Violations)

	inside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 600, Y1: 600, X2: 700, Y2: 700}}
	res = e.Evaluate(time.Now(), []domain.StabilizedDetection{inside}, fe)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, domain.ViolationRestrictedEntry, res.Violations[0].Kind)
	assert.Equal(t, uint64(1), res.Violations[0].TrackID)

	// staying inside should not re-trigger the rising edge
	res = e.Evaluate(time.Now(), []domain.StabilizedDetection{inside}, fe)
	assert.Empty(t, res.Violations)
}

func TestEngine_CrowdLimitExceeded(t *testing.T) {
	z := &domain.Zone{
		ID:   "crowd",
		Type: domain.ZoneCrowdLimit,
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 1000, Y: 1000}, {X: 0, Y: 1000},
		}},
		MaxOccupancy:   2,
		SeverityWeight: 1.0,
	}
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	dets := []domain.StabilizedDetection{
		{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 10, Y1: 10, X2: 20, Y2: 20}},
		{TrackID: 2, Class: "person", BBox: domain.Rectangle{X1: 30, Y1: 30, X2: 40, Y2: 40}},
		{TrackID: 3, Class: "person", BBox: domain.Rectangle{X1: 50, Y1: 50, X2: 60, Y2: 60}},
	}
	res := e.Evaluate(time.Now(), dets, fe)
	require.NotEmpty(t, res.Violations)
	assert.Equal(t, domain.ViolationCrowdLimitExceeded, res.Violations[0].Kind)
	assert.Equal(t, 3, res.Occupancy["crowd"])
}

func entryOnlyZone(allowedDir domain.Point) *domain.Zone {
	return &domain.Zone{
		ID:   "entry",
		Name: "Entry Only",
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
		}},
		Type:            domain.ZoneEntryOnly,
		SeverityWeight:  1.5,
		AllowedEntryDir: allowedDir,
	}
}

func TestEngine_WrongDirection_FirstFrameInsideUsesApproachDelta(t *testing.T) {
	// Zone only allows crossings moving in +X. The track approaches from the
	// left (previous frame outside, moving +X) and is first observed inside
	// on the very next frame, so the approach direction must be inferred
	// from its own prior position, not a per-zone boundary history.
	z := entryOnlyZone(domain.Point{X: 1, Y: 0})
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	outside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: -20, Y1: 40, X2: -10, Y2: 60}}
	res := e.Evaluate(time.Now(), []domain.StabilizedDetection{outside}, fe)
	assert.Empty(t, res.Violations)

	inside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 40, Y1: 40, X2: 60, Y2: 60}}
	res = e.Evaluate(time.Now(), []domain.StabilizedDetection{inside}, fe)
	assert.Empty(t, res.Violations, "crossing in the allowed direction must not raise WRONG_DIRECTION")
}

func TestEngine_WrongDirection_OppositeApproachIsViolation(t *testing.T) {
	// Zone only allows crossings moving in +X; the track approaches moving
	// -X (entering from the right), which should raise WRONG_DIRECTION.
	z := entryOnlyZone(domain.Point{X: 1, Y: 0})
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	outside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 120, Y1: 40, X2: 130, Y2: 60}}
	res := e.Evaluate(time.Now(), []domain.StabilizedDetection{outside}, fe)
	assert.Empty(t, res.Violations)

	inside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 40, Y1: 40, X2: 60, Y2: 60}}
	res = e.Evaluate(time.Now(), []domain.StabilizedDetection{inside}, fe)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, domain.ViolationWrongDirection, res.Violations[0].Kind)
	assert.Equal(t, uint64(1), res.Violations[0].TrackID)
}

func TestEngine_WrongDirection_NoPriorFrameIsNotEvaluated(t *testing.T) {
	// A track observed inside the zone on the very first frame it is ever
	// seen has no prior position to diff against, so no direction can be
	// established and no violation is raised either way.
	z := entryOnlyZone(domain.Point{X: 1, Y: 0})
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	inside := domain.StabilizedDetection{TrackID: 1, Class: "person", BBox: domain.Rectangle{X1: 40, Y1: 40, X2: 60, Y2: 60}}
	res := e.Evaluate(time.Now(), []domain.StabilizedDetection{inside}, fe)
	assert.Empty(t, res.Violations)
}

func TestEngine_DisallowedClass(t *testing.T) {
	z := &domain.Zone{
		ID:   "z1",
		Type: domain.ZoneNormal,
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
		}},
		DeniedClasses:  map[string]bool{"dog": true},
		SeverityWeight: 1.0,
	}
	e := New([]*domain.Zone{z}, monitoring.NewMetrics(), zap.NewNop())
	fe := &fakeEnterer{}

	dets := []domain.StabilizedDetection{
		{TrackID: 1, Class: "dog", BBox: domain.Rectangle{X1: 10, Y1: 10, X2: 20, Y2: 20}},
	}
	res := e.Evaluate(time.Now(), dets, fe)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, domain.ViolationDisallowedClass, res.Violations[0].Kind)
}
