package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "reasoning:recent_events", zap.NewNop()), mr
}

func testEvent(id int64, trackID uint64) *domain.Event {
	return &domain.Event{
		EventID:       id,
		Type:          domain.EventLoitering,
		Severity:      domain.SeverityMedium,
		SeverityScore: 0.5,
		TrackIDs:      []uint64{trackID},
		ZoneID:        "Z1",
		ReasoningText: "Subject ID loitering",
		Duration:      12.0,
		Timestamp:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Context:       domain.NewContext(),
	}
}

func TestMirror_PublishAndRecentRoundTrip(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	events := []*domain.Event{testEvent(1, 10), testEvent(2, 11)}
	require.NoError(t, m.Publish(ctx, events))

	wire, hit, err := m.Recent(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, wire, 2)
	assert.Equal(t, int64(1), wire[0].EventID)
	assert.Equal(t, uint64(10), wire[0].TrackID)
	assert.Equal(t, int64(2), wire[1].EventID)
}

func TestMirror_RecentMissReturnsFalse(t *testing.T) {
	m, _ := newTestMirror(t)

	wire, hit, err := m.Recent(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, wire)
}

func TestMirror_PublishOverwritesPreviousSnapshot(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, []*domain.Event{testEvent(1, 10)}))
	require.NoError(t, m.Publish(ctx, []*domain.Event{testEvent(2, 11)}))

	wire, hit, err := m.Recent(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, wire, 1)
	assert.Equal(t, int64(2), wire[0].EventID)
}

func TestMirror_PublishSetsExpiry(t *testing.T) {
	m, mr := newTestMirror(t)

	require.NoError(t, m.Publish(context.Background(), []*domain.Event{testEvent(1, 10)}))

	ttl := mr.TTL("reasoning:recent_events")
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 1.0)
}
