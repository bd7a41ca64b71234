package intelligence

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
)

// Dispatcher owns all seven detector state machines and fans a frame's
// object states and spatial violations out to each, per §9's tagged-
// variant-over-a-common-step design note.
type Dispatcher struct {
	cfg    Config
	scorer *severity.Scorer
	zones  zoneLookup
	logger *zap.Logger

	loitering *loiteringDetector
	running   *runningDetector
	zoneViol  *zoneViolationDetector
	theft     *theftDetector
	fighting  *fightingDetector
	abandoned *abandonedDetector
	crowd     *crowdDetector

	// priorViolations is the running per-track count of spatial violations
	// observed on frames strictly before the one currently being stepped,
	// feeding the severity scorer's History factor (§4.5). Updated at the
	// end of each Step call so a violation never counts as its own history.
	priorViolations map[uint64]int
}

// New creates a Dispatcher. zl resolves zone ids to zone policy for
// severity weighting and the INTRUSION bypass rule.
func New(cfg Config, scorer *severity.Scorer, zl zoneLookup, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:             cfg,
		scorer:          scorer,
		zones:           zl,
		logger:          logger.With(zap.String("component", "intelligence_dispatcher")),
		loitering:       newLoiteringDetector(cfg),
		running:         newRunningDetector(cfg),
		zoneViol:        newZoneViolationDetector(),
		theft:           newTheftDetector(cfg),
		fighting:        newFightingDetector(cfg),
		abandoned:       newAbandonedDetector(cfg),
		crowd:           newCrowdDetector(cfg),
		priorViolations: make(map[uint64]int),
	}
}

// Step runs every detector for one frame and returns the union of
// candidate events, in a fixed, deterministic order (loitering, running,
// zone/intrusion, theft, fighting, abandoned, crowd) so that within a
// single frame, publish order is stable. occupancy is this frame's
// zoneID -> current-occupancy map from zones.Engine.Evaluate, feeding the
// severity scorer's Crowd factor.
func (disp *Dispatcher) Step(now time.Time, objects map[uint64]*domain.ObjectState, violations []domain.SpatialViolation, occupancy map[string]int) []Candidate {
	var out []Candidate
	ids := sortedTrackIDs(objects)

	for _, id := range ids {
		if c := disp.loitering.step(now, objects[id], disp.scorer, disp.zones, occupancy, disp.priorViolations); c != nil {
			out = append(out, *c)
		}
	}
	for _, id := range ids {
		if c := disp.running.step(now, objects[id], disp.scorer, disp.zones, occupancy, disp.priorViolations); c != nil {
			out = append(out, *c)
		}
	}
	for _, v := range violations {
		obj := objects[v.TrackID]
		if c := disp.zoneViol.step(now, v, obj, disp.scorer, disp.zones, occupancy, disp.priorViolations); c != nil {
			out = append(out, *c)
		}
	}

	out = append(out, disp.theft.stepAll(now, objects, disp.scorer, disp.zones, occupancy, disp.priorViolations)...)
	out = append(out, disp.fighting.stepAll(now, objects, disp.scorer, disp.zones)...)
	out = append(out, disp.abandoned.stepAll(now, objects, disp.scorer, disp.zones)...)

	if c := disp.crowd.step(now, objects); c != nil {
		out = append(out, *c)
	}

	for _, v := range violations {
		disp.priorViolations[v.TrackID]++
	}

	return out
}

func sortedTrackIDs(objects map[uint64]*domain.ObjectState) []uint64 {
	ids := make([]uint64, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
