package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ctxengine "github.com/reasoning-core/reasoning-core/internal/reasoning/context"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/intelligence"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/stabilizer"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

const fps = 30.0

func newTestCoordinator(t *testing.T, zoneList []*domain.Zone) *Coordinator {
	t.Helper()
	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()

	stab := stabilizer.New(stabilizer.DefaultConfig(), metrics, logger)
	ctxEng := ctxengine.New(ctxengine.DefaultConfig(fps), fps, logger)
	zoneEng := zones.New(zoneList, metrics, logger)

	w, err := severity.DefaultWeights().Normalize()
	require.NoError(t, err)
	scorer := severity.New(w)

	disp := intelligence.New(intelligence.DefaultConfig(), scorer, zoneEng, logger)

	evStore := store.New(store.DefaultConfig(), metrics, logger)
	evStore.MarkAvailable()

	return New(DefaultConfig(), stab, ctxEng, zoneEng, scorer, disp, evStore, metrics, logger)
}

// S1 — a single stationary person track for 20 seconds should produce
// exactly one LOITERING event and no INTRUSION events.
func TestCoordinator_S1_Loitering(t *testing.T) {
	c := newTestCoordinator(t, nil)
	shape := domain.FrameShape{Height: 1080, Width: 1920}
	start := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)

	var allEvents []*domain.Event
	for i := 0; i < 600; i++ {
		now := start.Add(time.Duration(i) * time.Second / fps)
		dets := []domain.Detection{{
			TrackID: 1, ClassName: "person", Confidence: 0.9,
			BBox: domain.Rectangle{X1: 500, Y1: 500, X2: 600, Y2: 700},
		}}
		res := c.ProcessFrame(dets, shape, now)
		allEvents = append(allEvents, res.Events...)
	}

	var loiterEvents []*domain.Event
	for _, e := range allEvents {
		if e.Type == domain.EventLoitering {
			loiterEvents = append(loiterEvents, e)
		}
		assert.NotEqual(t, domain.EventIntrusion, e.Type)
	}
	require.Len(t, loiterEvents, 1)
	first := loiterEvents[0]
	assert.Equal(t, uint64(1), first.TrackID())
	assert.GreaterOrEqual(t, first.Duration, 10.0)
	assert.Contains(t, first.ReasoningText, "Subject ID 1 exhibited loitering")
}

// S2 — a track moving from outside to inside a RESTRICTED/alert_on_entry
// zone between two frames should emit exactly one CRITICAL INTRUSION.
func TestCoordinator_S2_Intrusion(t *testing.T) {
	zone := &domain.Zone{
		ID:   "R",
		Name: "Restricted",
		Polygon: domain.Polygon{Points: []domain.Point{
			{X: 500, Y: 500}, {X: 700, Y: 500}, {X: 700, Y: 700}, {X: 500, Y: 700},
		}},
		Type:           domain.ZoneRestricted,
		AlertOnEntry:   true,
		SeverityWeight: 2.5,
	}
	c := newTestCoordinator(t, []*domain.Zone{zone})
	shape := domain.FrameShape{Height: 1080, Width: 1920}
	start := time.Now()

	outside := []domain.Detection{{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 100, Y1: 100, X2: 200, Y2: 200}}}
	res := c.ProcessFrame(outside, shape, start)
	assert.Empty(t, res.Events)

	inside := []domain.Detection{{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 600, Y1: 600, X2: 700, Y2: 700}}}
	res = c.ProcessFrame(inside, shape, start.Add(time.Second/fps))

	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, domain.EventIntrusion, e.Type)
	assert.Equal(t, domain.SeverityCritical, e.Severity)
	assert.Equal(t, uint64(1), e.TrackID())
	assert.Equal(t, "R", e.ZoneID)
}

func TestCoordinator_DropsOutOfRangeConfidence(t *testing.T) {
	c := newTestCoordinator(t, nil)
	shape := domain.FrameShape{Height: 1080, Width: 1920}

	dets := []domain.Detection{{TrackID: 1, ClassName: "person", Confidence: 1.5, BBox: domain.Rectangle{X1: 0, Y1: 0, X2: 10, Y2: 10}}}
	res := c.ProcessFrame(dets, shape, time.Now())
	assert.Equal(t, 1, res.InputInvalidDropped)
	assert.Empty(t, res.Stabilized)
}

// S3 — a person interacting with a graspable object at close range long
// enough to reach the concealment phase, then departing rapidly while
// still near the object, should emit exactly one HIGH THEFT_SUSPECTED.
func TestCoordinator_S3_Theft(t *testing.T) {
	c := newTestCoordinator(t, nil)
	shape := domain.FrameShape{Height: 1080, Width: 1920}
	start := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)

	backpack := domain.Detection{TrackID: 2, ClassName: "backpack", Confidence: 0.9, BBox: domain.Rectangle{X1: 300, Y1: 100, X2: 350, Y2: 150}}

	var allEvents []*domain.Event
	for i := 0; i < 160; i++ {
		now := start.Add(time.Duration(i) * time.Second / fps)

		var person domain.Detection
		switch {
		case i < 30:
			// Idle: person far from the backpack.
			person = domain.Detection{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 0, Y1: 0, X2: 50, Y2: 50}}
		case i < 150:
			// Interaction then concealment: stay close to the backpack
			// (centroid distance ~7px, under the 50px near threshold) for
			// well over the 2s concealment window.
			person = domain.Detection{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 305, Y1: 105, X2: 355, Y2: 155}}
		default:
			// Rapid departure while still within range: a single large
			// frame-to-frame jump drives the smoothed speed well above
			// VExit (80px/s) while the new position is still near.
			person = domain.Detection{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 320, Y1: 120, X2: 370, Y2: 170}}
		}

		res := c.ProcessFrame([]domain.Detection{person, backpack}, shape, now)
		allEvents = append(allEvents, res.Events...)
	}

	var theftEvents []*domain.Event
	for _, e := range allEvents {
		if e.Type == domain.EventTheftSuspected {
			theftEvents = append(theftEvents, e)
		}
	}
	require.Len(t, theftEvents, 1)
	e := theftEvents[0]
	assert.Equal(t, domain.SeverityHigh, e.Severity)
	assert.Equal(t, uint64(1), e.TrackID())
	assert.Contains(t, e.TrackIDs, uint64(2))
}

// S5 — an object left stationary and unattended for >= 30s after the
// accompanying person disappears should emit exactly one MEDIUM
// ABANDONED_OBJECT.
func TestCoordinator_S5_AbandonedObject(t *testing.T) {
	c := newTestCoordinator(t, nil)
	shape := domain.FrameShape{Height: 1080, Width: 1920}
	start := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)

	suitcase := domain.Detection{TrackID: 2, ClassName: "suitcase", Confidence: 0.9, BBox: domain.Rectangle{X1: 450, Y1: 100, X2: 500, Y2: 150}}
	person := domain.Detection{TrackID: 1, ClassName: "person", Confidence: 0.9, BBox: domain.Rectangle{X1: 460, Y1: 110, X2: 490, Y2: 140}}

	var allEvents []*domain.Event
	for i := 0; i < 920; i++ {
		now := start.Add(time.Duration(i) * time.Second / fps)

		dets := []domain.Detection{suitcase}
		if i < 300 {
			dets = append(dets, person)
		}

		res := c.ProcessFrame(dets, shape, now)
		allEvents = append(allEvents, res.Events...)
	}

	var abandonedEvents []*domain.Event
	for _, e := range allEvents {
		if e.Type == domain.EventAbandonedObject {
			abandonedEvents = append(abandonedEvents, e)
		}
	}
	require.Len(t, abandonedEvents, 1)
	e := abandonedEvents[0]
	assert.Equal(t, domain.SeverityMedium, e.Severity)
	assert.Equal(t, uint64(2), e.TrackID())
}

func TestCoordinator_DedupesDuplicateTrackIDsInFrame(t *testing.T) {
	c := newTestCoordinator(t, nil)
	shape := domain.FrameShape{Height: 1080, Width: 1920}

	dets := []domain.Detection{
		{TrackID: 1, ClassName: "person", Confidence: 0.4, BBox: domain.Rectangle{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{TrackID: 1, ClassName: "person", Confidence: 0.95, BBox: domain.Rectangle{X1: 5, Y1: 5, X2: 15, Y2: 15}},
	}
	res := c.ProcessFrame(dets, shape, time.Now())
	require.Len(t, res.Stabilized, 1)
	assert.InDelta(t, 0.95, res.Stabilized[0].Confidence, 1e-9)
}
