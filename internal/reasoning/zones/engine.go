// Package zones implements spatial zone evaluation (§4.4): point-in-polygon
// containment against operator-defined zones, occupancy bookkeeping, and
// the five spatial violation rules.
package zones

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
)

// presence tracks one track's residency inside one zone, the zone-engine
// analog of the donor's ObjectPresence.
type presence struct {
	enteredAt time.Time
}

// Engine owns the static zone list and the per-(zone,track) occupancy
// state. Single-threaded, driven once per frame by the coordinator.
type Engine struct {
	zones      []*domain.Zone
	byID       map[string]*domain.Zone
	occupancy  map[string]map[uint64]*presence // zoneID -> trackID -> presence
	lastPoint  map[uint64]domain.Point         // trackID -> last frame's reference point, for crossing-direction checks
	hasLastPos map[uint64]bool
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// New creates a zone Engine from a validated, read-only zone list.
func New(zones []*domain.Zone, metrics *monitoring.Metrics, logger *zap.Logger) *Engine {
	byID := make(map[string]*domain.Zone, len(zones))
	occupancy := make(map[string]map[uint64]*presence, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
		occupancy[z.ID] = make(map[uint64]*presence)
	}
	return &Engine{
		zones:      zones,
		byID:       byID,
		occupancy:  occupancy,
		lastPoint:  make(map[uint64]domain.Point),
		hasLastPos: make(map[uint64]bool),
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "zone_engine")),
	}
}

// Zone returns a zone by id, or nil if unknown.
func (e *Engine) Zone(id string) *domain.Zone { return e.byID[id] }

// Zones returns the full static zone list.
func (e *Engine) Zones() []*domain.Zone { return e.zones }

// FrameResult is one frame's spatial evaluation output.
type FrameResult struct {
	Violations      []domain.SpatialViolation
	CurrentZones    map[uint64][]string // trackID -> zone ids containing it this frame
	Occupancy       map[string]int      // zoneID -> current_occupancy
}

// zoneEnterer is the subset of the context engine's API the zone engine
// needs to notify of zone transitions, kept narrow so tests can fake it.
type zoneEnterer interface {
	EnterZone(trackID uint64, zoneID string, now time.Time)
	ExitZone(trackID uint64, now time.Time)
}

// Evaluate runs one frame's containment and violation checks. dets are the
// stabilized detections for this frame; rising edges are detected against
// the engine's own per-zone occupancy from the previous frame. ctx receives
// zone enter/exit notifications so the context engine can reset dwell clocks.
func (e *Engine) Evaluate(now time.Time, dets []domain.StabilizedDetection, ctx zoneEnterer) FrameResult {
	res := FrameResult{
		CurrentZones: make(map[uint64][]string, len(dets)),
		Occupancy:    make(map[string]int, len(e.zones)),
	}

	containing := make(map[string]map[uint64]bool, len(e.zones))
	for _, z := range e.zones {
		containing[z.ID] = make(map[uint64]bool)
	}

	for _, d := range dets {
		point := d.BBox.BottomCenter()
		var myZones []string
		for _, z := range e.zones {
			cp := point
			if z.UseCenter {
				cp = d.BBox.Centroid()
			}
			if !z.Polygon.Contains(cp) {
				continue
			}
			myZones = append(myZones, z.ID)
			containing[z.ID][d.TrackID] = true
			if z.ClassAllowed(d.Class) {
				res.Occupancy[z.ID]++
			}
		}
		sort.Strings(myZones)
		res.CurrentZones[d.TrackID] = myZones

		prevPoint, hadPrev := e.lastPoint[d.TrackID], e.hasLastPos[d.TrackID]
		e.evaluateTrack(now, d, myZones, &res, ctx, prevPoint, hadPrev)
		e.lastPoint[d.TrackID] = point
		e.hasLastPos[d.TrackID] = true
	}

	// Exits: tracks previously present in a zone but not contained this frame.
	for _, z := range e.zones {
		zoneOcc := e.occupancy[z.ID]
		for trackID := range zoneOcc {
			if containing[z.ID][trackID] {
				continue
			}
			delete(zoneOcc, trackID)
			ctx.ExitZone(trackID, now)
		}
	}

	for _, z := range e.zones {
		if z.Type == domain.ZoneCrowdLimit && z.MaxOccupancy > 0 && res.Occupancy[z.ID] > z.MaxOccupancy {
			e.recordViolation(&res, domain.SpatialViolation{
				ZoneID:    z.ID,
				Kind:      domain.ViolationCrowdLimitExceeded,
				Timestamp: now,
				Weight:    z.SeverityWeight,
			})
		}
	}

	if e.metrics != nil {
		for zoneID, occ := range res.Occupancy {
			e.metrics.ZoneOccupancy.WithLabelValues(zoneID).Set(float64(occ))
		}
	}

	return res
}

// recordViolation appends v to the frame result and, if metrics are wired,
// increments the per-zone-per-kind violation counter.
func (e *Engine) recordViolation(res *FrameResult, v domain.SpatialViolation) {
	res.Violations = append(res.Violations, v)
	if e.metrics != nil {
		e.metrics.ZoneViolationsTotal.WithLabelValues(v.ZoneID, string(v.Kind)).Inc()
	}
}

func (e *Engine) evaluateTrack(now time.Time, d domain.StabilizedDetection, myZones []string, res *FrameResult, ctx zoneEnterer, prevPoint domain.Point, hadPrev bool) {
	inSet := make(map[string]bool, len(myZones))
	for _, id := range myZones {
		inSet[id] = true
	}

	for _, z := range e.zones {
		zoneOcc := e.occupancy[z.ID]
		pr, wasPresent := zoneOcc[d.TrackID]
		nowInside := inSet[z.ID]

		if nowInside && !wasPresent {
			pr = &presence{enteredAt: now}
			zoneOcc[d.TrackID] = pr
			ctx.EnterZone(d.TrackID, z.ID, now)
			e.onEntry(now, z, d, res, prevPoint, hadPrev)
		} else if nowInside && wasPresent {
			e.onContinued(now, z, d, pr, res)
		}

		if !z.ClassAllowed(d.Class) && nowInside {
			e.recordViolation(res, domain.SpatialViolation{
				TrackID:   d.TrackID,
				ZoneID:    z.ID,
				Kind:      domain.ViolationDisallowedClass,
				Timestamp: now,
				Weight:    z.SeverityWeight,
			})
		}
	}
}

// onEntry handles rising-edge entry: RESTRICTED_ENTRY, WRONG_DIRECTION and
// TIME_WINDOW.
// prevPoint/hadPrev is the track's own reference point from the previous
// frame (tracked independently of zone membership), so the approach
// direction is known on the very first frame a track is ever seen inside
// any zone, not just from the second crossing onward.
func (e *Engine) onEntry(now time.Time, z *domain.Zone, d domain.StabilizedDetection, res *FrameResult, prevPoint domain.Point, hadPrev bool) {
	switch z.Type {
	case domain.ZoneRestricted:
		e.recordViolation(res, domain.SpatialViolation{
			TrackID:   d.TrackID,
			ZoneID:    z.ID,
			Kind:      domain.ViolationRestrictedEntry,
			Timestamp: now,
			Weight:    z.SeverityWeight,
		})
	case domain.ZoneEntryOnly, domain.ZoneExitOnly:
		if dir, ok := crossingDirection(d, prevPoint, hadPrev); ok {
			if !e.directionAllowed(z, dir) {
				e.recordViolation(res, domain.SpatialViolation{
					TrackID:   d.TrackID,
					ZoneID:    z.ID,
					Kind:      domain.ViolationWrongDirection,
					Timestamp: now,
					Weight:    z.SeverityWeight,
				})
			}
		}
	}

	if z.Type == domain.ZoneTimeRestricted && !e.withinTimeWindow(z, now) {
		e.recordViolation(res, domain.SpatialViolation{
			TrackID:   d.TrackID,
			ZoneID:    z.ID,
			Kind:      domain.ViolationTimeWindow,
			Timestamp: now,
			Weight:    z.SeverityWeight,
		})
	}
}

// onContinued re-checks TIME_WINDOW on every frame a track remains inside
// a TIME_RESTRICTED zone (the window boundary may be crossed mid-dwell).
func (e *Engine) onContinued(now time.Time, z *domain.Zone, d domain.StabilizedDetection, pr *presence, res *FrameResult) {
	if z.Type == domain.ZoneTimeRestricted && !e.withinTimeWindow(z, now) {
		e.recordViolation(res, domain.SpatialViolation{
			TrackID:   d.TrackID,
			ZoneID:    z.ID,
			Kind:      domain.ViolationTimeWindow,
			Timestamp: now,
			Weight:    z.SeverityWeight,
		})
	}
}

func (e *Engine) withinTimeWindow(z *domain.Zone, now time.Time) bool {
	if z.TimeWindow == nil {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	return z.TimeWindow.Contains(minute)
}

// crossingDirection estimates the signed displacement direction of the
// crossing that produced this entry, from the track's own position on the
// immediately preceding frame. hadPrev is false only on the very first
// frame a track has ever been observed on, since a displacement needs two
// points.
func crossingDirection(d domain.StabilizedDetection, prevPoint domain.Point, hadPrev bool) (domain.Point, bool) {
	if !hadPrev {
		return domain.Point{}, false
	}
	current := d.BBox.BottomCenter()
	dx := current.X - prevPoint.X
	dy := current.Y - prevPoint.Y
	if dx == 0 && dy == 0 {
		return domain.Point{}, false
	}
	return domain.Point{X: dx, Y: dy}, true
}

// directionAllowed reports whether the observed crossing direction agrees
// with the zone's configured allowed direction (dot product >= 0, so a
// crossing perpendicular to the allowed direction is accepted). A zone
// with a zero allowed-direction vector permits any crossing.
func (e *Engine) directionAllowed(z *domain.Zone, dir domain.Point) bool {
	allowed := z.AllowedEntryDir
	if allowed.X == 0 && allowed.Y == 0 {
		return true
	}
	dot := dir.X*allowed.X + dir.Y*allowed.Y
	return dot >= 0
}

// Cleanup drops occupancy bookkeeping for tracks the context engine has
// forgotten, given the still-live set of track ids.
func (e *Engine) Cleanup(liveTracks map[uint64]bool) {
	for _, zoneOcc := range e.occupancy {
		for trackID := range zoneOcc {
			if !liveTracks[trackID] {
				delete(zoneOcc, trackID)
			}
		}
	}
	for trackID := range e.lastPoint {
		if !liveTracks[trackID] {
			delete(e.lastPoint, trackID)
			delete(e.hasLastPos, trackID)
		}
	}
}

// CurrentZoneIDs returns the zone ids currently containing trackID (as of
// the most recent Evaluate call), sorted.
func (e *Engine) CurrentZoneIDs(trackID uint64) []string {
	var ids []string
	for _, z := range e.zones {
		if _, ok := e.occupancy[z.ID][trackID]; ok {
			ids = append(ids, z.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
