package domain

import "encoding/json"

// EventWire is the canonical JSON shape of a published Event, per §6.2.
// Kept separate from Event so the internal struct stays free to evolve
// without renegotiating the wire contract.
type EventWire struct {
	EventID        int64         `json:"event_id"`
	EventType      EventType     `json:"event_type"`
	Severity       Severity      `json:"severity"`
	SeverityScore  float64       `json:"severity_score"`
	TrackID        uint64        `json:"track_id"`
	ZoneID         *string       `json:"zone_id"`
	ReasoningText  string        `json:"reasoning_text"`
	Duration       float64       `json:"duration"`
	Timestamp      string        `json:"timestamp"` // ISO-8601 local time
	Context        *Context      `json:"context"`
}

// ToWire renders an Event into its canonical JSON representation.
func (e *Event) ToWire() EventWire {
	var zoneID *string
	if e.ZoneID != "" {
		z := e.ZoneID
		zoneID = &z
	}
	ctx := e.Context
	if ctx == nil {
		ctx = NewContext()
	}
	return EventWire{
		EventID:       e.EventID,
		EventType:     e.Type,
		Severity:      e.Severity,
		SeverityScore: e.SeverityScore,
		TrackID:       e.TrackID(),
		ZoneID:        zoneID,
		ReasoningText: e.ReasoningText,
		Duration:      e.Duration,
		Timestamp:     e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Context:       ctx,
	}
}

// MarshalJSON makes Event itself serialize to the canonical wire shape.
func (e *Event) MarshalJSON() ([]byte, error) {
	w := e.ToWire()
	return json.Marshal(w)
}
