// Package domain holds the core data model of the behavioral reasoning
// core: detections flowing in, events flowing out, and the per-track state
// owned by the stages in between.
package domain

import "time"

// Point is a 2D pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rectangle is an axis-aligned bounding box in pixel coordinates.
type Rectangle struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the rectangle's width.
func (r Rectangle) Width() float64 { return r.X2 - r.X1 }

// Height returns the rectangle's height.
func (r Rectangle) Height() float64 { return r.Y2 - r.Y1 }

// Centroid returns the geometric center of the rectangle.
func (r Rectangle) Centroid() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// BottomCenter returns the horizontal midpoint of the bottom edge, the
// default containment reference point (closer to ground contact).
func (r Rectangle) BottomCenter() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: r.Y2}
}

// Clip clamps the rectangle to a frame of the given height and width.
func (r Rectangle) Clip(height, width float64) Rectangle {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return Rectangle{
		X1: clamp(r.X1, 0, width),
		Y1: clamp(r.Y1, 0, height),
		X2: clamp(r.X2, 0, width),
		Y2: clamp(r.Y2, 0, height),
	}
}

// FrameShape is the (height, width) of the frame a set of detections
// belongs to.
type FrameShape struct {
	Height float64
	Width  float64
}

// Detection is one upstream detector/tracker record for a single frame.
type Detection struct {
	TrackID    uint64
	BBox       Rectangle
	ClassName  string
	Confidence float64
}

// TrackObservation is a Detection plus its provenance: a monotonic frame
// index and the wall-clock time it was observed.
type TrackObservation struct {
	Detection  Detection
	FrameIndex uint64
	Timestamp  time.Time
}

// StabilizedDetection is the stabilizer's output for one track in one
// frame: the published (stable) class and smoothed confidence.
type StabilizedDetection struct {
	TrackID    uint64
	BBox       Rectangle
	Class      string
	Confidence float64
	Locked     bool
}

// ZoneType enumerates the policy types a Zone may declare.
type ZoneType string

const (
	ZoneNormal         ZoneType = "NORMAL"
	ZoneRestricted     ZoneType = "RESTRICTED"
	ZoneEntryOnly      ZoneType = "ENTRY_ONLY"
	ZoneExitOnly       ZoneType = "EXIT_ONLY"
	ZoneTimeRestricted ZoneType = "TIME_RESTRICTED"
	ZoneCrowdLimit     ZoneType = "CROWD_LIMIT"
)

// ValidZoneType reports whether t is one of the known zone types.
func ValidZoneType(t ZoneType) bool {
	switch t {
	case ZoneNormal, ZoneRestricted, ZoneEntryOnly, ZoneExitOnly, ZoneTimeRestricted, ZoneCrowdLimit:
		return true
	}
	return false
}

// TimeWindow is a local-time [start,end) window, e.g. for TIME_RESTRICTED
// zones. Expressed as minutes since midnight so it never carries a date.
type TimeWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether the minute-of-day m falls inside the window,
// handling windows that wrap past midnight.
func (w TimeWindow) Contains(m int) bool {
	if w.StartMinute <= w.EndMinute {
		return m >= w.StartMinute && m < w.EndMinute
	}
	return m >= w.StartMinute || m < w.EndMinute
}

// Zone is an operator-defined static polygonal region with a policy.
type Zone struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Polygon         Polygon         `json:"polygon"`
	Type            ZoneType        `json:"type"`
	TimeWindow      *TimeWindow     `json:"time_window,omitempty"`
	MaxOccupancy    int             `json:"max_occupancy,omitempty"` // 0 means unlimited
	AllowedClasses  map[string]bool `json:"allowed_classes,omitempty"`
	DeniedClasses   map[string]bool `json:"denied_classes,omitempty"`
	SeverityWeight  float64         `json:"severity_weight"` // default 1.0, restricted zones typically 2.0-3.0
	UseCenter       bool            `json:"use_center,omitempty"`  // containment reference point override
	AlertOnEntry    bool            `json:"alert_on_entry,omitempty"` // bypass severity scoring for RESTRICTED_ENTRY -> INTRUSION
	AllowedEntryDir Point           `json:"allowed_entry_dir,omitempty"` // unit vector; used by ENTRY_ONLY/EXIT_ONLY wrong-direction checks
}

// ClassAllowed reports whether a class is permitted to count toward this
// zone's occupancy / may be present without a DISALLOWED_CLASS violation.
func (z *Zone) ClassAllowed(class string) bool {
	if z.DeniedClasses != nil && z.DeniedClasses[class] {
		return false
	}
	if z.AllowedClasses == nil || len(z.AllowedClasses) == 0 {
		return true
	}
	return z.AllowedClasses[class]
}

// SpatialViolationKind enumerates zone violation kinds.
type SpatialViolationKind string

const (
	ViolationRestrictedEntry    SpatialViolationKind = "RESTRICTED_ENTRY"
	ViolationTimeWindow         SpatialViolationKind = "TIME_WINDOW"
	ViolationWrongDirection     SpatialViolationKind = "WRONG_DIRECTION"
	ViolationCrowdLimitExceeded SpatialViolationKind = "CROWD_LIMIT_EXCEEDED"
	ViolationDisallowedClass    SpatialViolationKind = "DISALLOWED_CLASS"
)

// SpatialViolation is one zone rule breach observed in a single frame.
type SpatialViolation struct {
	TrackID   uint64
	ZoneID    string
	Kind      SpatialViolationKind
	Timestamp time.Time
	Weight    float64
}

// Severity is the bucketed severity level.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// LevelFromScore maps a [0,1] score to its Severity bucket per §4.5.
func LevelFromScore(score float64) Severity {
	switch {
	case score < 0.3:
		return SeverityLow
	case score < 0.5:
		return SeverityMedium
	case score < 0.7:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// severityRank orders levels numerically; string comparison alone would
// sort "CRITICAL" < "HIGH", which is not the intended order.
func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank(s) >= severityRank(other)
}

// SeverityFactors holds the raw, normalized inputs to the weighted scorer.
type SeverityFactors struct {
	Duration float64
	Zone     float64
	Class    float64
	Speed    float64
	Time     float64
	Crowd    float64
	History  float64
}

// SeverityScore is the scorer's output: the scalar score, bucketed level,
// and the factor breakdown that produced it.
type SeverityScore struct {
	Score   float64
	Level   Severity
	Factors SeverityFactors
}

// EventType enumerates the reasoning event types.
type EventType string

const (
	EventLoitering       EventType = "LOITERING"
	EventRunning         EventType = "RUNNING"
	EventZoneViolation   EventType = "ZONE_VIOLATION"
	EventIntrusion       EventType = "INTRUSION"
	EventFighting        EventType = "FIGHTING"
	EventTheftSuspected  EventType = "THEFT_SUSPECTED"
	EventAbandonedObject EventType = "ABANDONED_OBJECT"
	EventCrowdForming    EventType = "CROWD_FORMING"
	EventNormal          EventType = "NORMAL"
)

// ContextValue is the sum type allowed inside an Event's context map, per
// §9's design note on representing the originally dynamically-typed
// context mapping.
type ContextValue struct {
	Str     string
	Num     float64
	Bool    bool
	StrList []string
	NumList []float64
	kind    contextKind
}

type contextKind int

const (
	kindString contextKind = iota
	kindNumber
	kindBool
	kindStrList
	kindNumList
)

func CtxString(v string) ContextValue     { return ContextValue{Str: v, kind: kindString} }
func CtxNumber(v float64) ContextValue    { return ContextValue{Num: v, kind: kindNumber} }
func CtxBool(v bool) ContextValue         { return ContextValue{Bool: v, kind: kindBool} }
func CtxStrList(v []string) ContextValue  { return ContextValue{StrList: v, kind: kindStrList} }
func CtxNumList(v []float64) ContextValue { return ContextValue{NumList: v, kind: kindNumList} }

// MarshalJSON renders the ContextValue as its underlying JSON scalar/list,
// not as a tagged wrapper object.
func (c ContextValue) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case kindString:
		return jsonMarshal(c.Str)
	case kindNumber:
		return jsonMarshal(c.Num)
	case kindBool:
		return jsonMarshal(c.Bool)
	case kindStrList:
		return jsonMarshal(c.StrList)
	case kindNumList:
		return jsonMarshal(c.NumList)
	default:
		return jsonMarshal(nil)
	}
}

// Context is an ordered key/value mapping. Ordering is preserved via Keys
// for deterministic serialization; Values holds the payload.
type Context struct {
	Keys   []string
	Values map[string]ContextValue
}

// NewContext creates an empty ordered context.
func NewContext() *Context {
	return &Context{Values: make(map[string]ContextValue)}
}

// Set inserts or overwrites a key, preserving first-insertion order.
func (c *Context) Set(key string, v ContextValue) *Context {
	if _, exists := c.Values[key]; !exists {
		c.Keys = append(c.Keys, key)
	}
	c.Values[key] = v
	return c
}

// MarshalJSON renders the context as a plain JSON object in insertion
// order is not guaranteed by encoding/json for maps, so we build the
// object manually.
func (c *Context) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	buf := []byte{'{'}
	for i, k := range c.Keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := jsonMarshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := c.Values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Event is a published reasoning event, the core's canonical output.
type Event struct {
	EventID        int64
	Type           EventType
	Severity       Severity
	SeverityScore  float64
	TrackIDs       []uint64
	ZoneID         string // empty when not applicable
	ReasoningText  string
	Duration       float64 // seconds
	Timestamp      time.Time
	Context        *Context
}

// TrackID returns the primary (first) track id involved, or 0 if none.
func (e *Event) TrackID() uint64 {
	if len(e.TrackIDs) == 0 {
		return 0
	}
	return e.TrackIDs[0]
}
