package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_RoundTripSerialization(t *testing.T) {
	ctx := NewContext().
		Set("velocity_px_s", CtxNumber(3.2)).
		Set("dwell_seconds", CtxNumber(12.5)).
		Set("zone_name", CtxString("Loading Dock"))

	e := &Event{
		EventID:       42,
		Type:          EventLoitering,
		Severity:      SeverityMedium,
		SeverityScore: 0.45,
		TrackIDs:      []uint64{1},
		ZoneID:        "zone-a",
		ReasoningText: "Subject ID 1 exhibited loitering behavior for 12s.",
		Duration:      12.5,
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Context:       ctx,
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var wire EventWire
	require.NoError(t, json.Unmarshal(raw, &wire))

	assert.Equal(t, e.EventID, wire.EventID)
	assert.Equal(t, e.Type, wire.EventType)
	assert.Equal(t, e.Severity, wire.Severity)
	assert.InDelta(t, e.SeverityScore, wire.SeverityScore, 1e-6)
	assert.Equal(t, e.TrackID(), wire.TrackID)
	require.NotNil(t, wire.ZoneID)
	assert.Equal(t, e.ZoneID, *wire.ZoneID)
	assert.Equal(t, e.ReasoningText, wire.ReasoningText)
	assert.InDelta(t, e.Duration, wire.Duration, 1e-6)
}

func TestEvent_NilZoneIDOmitsZone(t *testing.T) {
	e := &Event{
		EventID:   1,
		Type:      EventCrowdForming,
		Severity:  SeverityMedium,
		TrackIDs:  []uint64{1, 2, 3},
		Timestamp: time.Now(),
		Context:   NewContext(),
	}
	w := e.ToWire()
	assert.Nil(t, w.ZoneID)
}
