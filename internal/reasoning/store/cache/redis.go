// Package cache implements an optional Redis-backed hot mirror of the
// store's "recent events" view, so horizontally-scaled REST replicas can
// serve GET /api/intelligence/events without every replica owning its own
// coordinator.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// Mirror writes a JSON snapshot of the most recent events to a single
// Redis key. The events are written as given; the mirror does not trim
// them.
type Mirror struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// New creates a Mirror over an already-pinged *redis.Client.
func New(client *redis.Client, key string, logger *zap.Logger) *Mirror {
	return &Mirror{
		client: client,
		key:    key,
		logger: logger.With(zap.String("component", "event_cache")),
	}
}

// Publish overwrites the mirror with the given events, newest first, with
// a 10 minute expiry so a crashed process doesn't leave a stale mirror
// being served forever. Events are mirrored in their canonical wire shape
// (domain.EventWire) rather than the internal Event struct, since Event's
// custom MarshalJSON has no matching UnmarshalJSON to round-trip through.
func (m *Mirror) Publish(ctx context.Context, events []*domain.Event) error {
	wire := make([]domain.EventWire, 0, len(events))
	for _, e := range events {
		wire = append(wire, e.ToWire())
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := m.client.Set(ctx, m.key, payload, 10*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to write cache mirror: %w", err)
	}
	return nil
}

// Recent reads the last published snapshot, or (nil, false) on a cache
// miss — callers should fall back to the in-process store on a miss.
func (m *Mirror) Recent(ctx context.Context) ([]domain.EventWire, bool, error) {
	payload, err := m.client.Get(ctx, m.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache mirror: %w", err)
	}

	var wire []domain.EventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached events: %w", err)
	}
	return wire, true, nil
}
