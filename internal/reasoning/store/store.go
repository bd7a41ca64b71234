// Package store implements the bounded event store and broadcast fabric
// of §4.7: a deduplicating, thread-safe FIFO of published events feeding
// REST polling and a fan-out channel per WebSocket subscriber.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
)

// Config holds the store's tunable capacities.
type Config struct {
	Capacity          int           // N_store
	DedupWindow       time.Duration // T_dedup
	BroadcastCapacity int           // B, per-subscriber channel depth
}

// DefaultConfig returns the §4.7 defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:          100,
		DedupWindow:       5 * time.Second,
		BroadcastCapacity: 256,
	}
}

type dedupKey struct {
	trackID   uint64
	eventType domain.EventType
}

// Subscriber is one bounded, drop-oldest-on-full broadcast channel handed
// out to a single WebSocket connection.
type Subscriber struct {
	ID      string
	ch      chan *domain.Event
	store   *Store
	mu      sync.Mutex
	dropped int64
}

// C returns the channel the subscriber's I/O task should drain.
func (s *Subscriber) C() <-chan *domain.Event { return s.ch }

// Dropped returns how many messages have been dropped for this subscriber
// due to a full buffer (§7's SubscriberSlow counter).
func (s *Subscriber) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) deliver(e *domain.Event) {
	select {
	case s.ch <- e:
		return
	default:
	}
	// Buffer full: drop the oldest pending message for this subscriber
	// only, then retry once.
	select {
	case <-s.ch:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		if s.store.metrics != nil {
			s.store.metrics.WebSocketSubscriberDrops.Inc()
		}
	default:
	}
	select {
	case s.ch <- e:
	default:
	}
}

// Store is the bounded, deduplicating, broadcast-capable event FIFO.
// Every operation is serialized by a single mutex (§4.7): the store is
// small and low-frequency, so a single lock is sufficient.
type Store struct {
	cfg     Config
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	events    *list.List // newest at Front, oldest at Back
	byID      map[int64]*list.Element
	nextID    int64
	lastSeen  map[dedupKey]time.Time
	available bool // false during startup/shutdown: StoreUnavailable

	subsMu sync.RWMutex
	subs   map[string]*Subscriber

	dedupDrops int64
	published  int64
}

// New creates an empty Store, initially unavailable until MarkAvailable
// is called (mirrors the StoreUnavailable window at startup, §7).
func New(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Store {
	return &Store{
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "event_store")),
		events:   list.New(),
		byID:     make(map[int64]*list.Element),
		lastSeen: make(map[dedupKey]time.Time),
		subs:     make(map[string]*Subscriber),
	}
}

// MarkAvailable flips the store into serving state. Call once after
// startup wiring completes.
func (s *Store) MarkAvailable() {
	s.mu.Lock()
	s.available = true
	s.mu.Unlock()
}

// MarkUnavailable flips the store back into StoreUnavailable state, e.g.
// during a graceful shutdown drain.
func (s *Store) MarkUnavailable() {
	s.mu.Lock()
	s.available = false
	s.mu.Unlock()
}

// Publish assigns the next event id, timestamps the event, computes its
// level from the given score, renders its reasoning text from the §6.2
// template, appends it to the store (evicting oldest-first over
// capacity), and broadcasts it to all subscribers. Returns nil (no error)
// if the publish was suppressed by the dedup window.
func (s *Store) Publish(now time.Time, eventType domain.EventType, score domain.SeverityScore, trackIDs []uint64, zoneID string, duration float64, ctx *domain.Context) (*domain.Event, error) {
	s.mu.Lock()
	if !s.available {
		s.mu.Unlock()
		return nil, domain.ErrStoreUnavailable
	}

	var primaryTrack uint64
	if len(trackIDs) > 0 {
		primaryTrack = trackIDs[0]
	}
	key := dedupKey{trackID: primaryTrack, eventType: eventType}
	if last, ok := s.lastSeen[key]; ok && now.Sub(last) < s.cfg.DedupWindow {
		s.dedupDrops++
		if s.metrics != nil {
			s.metrics.EventsDedupDropped.Inc()
		}
		s.mu.Unlock()
		return nil, nil
	}
	s.lastSeen[key] = now
	s.trimDedupLocked(now)

	s.nextID++
	id := s.nextID

	event := &domain.Event{
		EventID:       id,
		Type:          eventType,
		Severity:      score.Level,
		SeverityScore: score.Score,
		TrackIDs:      trackIDs,
		ZoneID:        zoneID,
		Duration:      duration,
		Timestamp:     now,
		Context:       ctx,
	}
	event.ReasoningText = renderReasoning(eventType, ctx, duration)

	el := s.events.PushFront(event)
	s.byID[id] = el
	for s.events.Len() > s.cfg.Capacity {
		oldest := s.events.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*domain.Event)
		delete(s.byID, evicted.EventID)
		s.events.Remove(oldest)
	}
	s.published++
	storeLen := s.events.Len()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.EventsPublishedTotal.WithLabelValues(string(eventType), string(score.Level)).Inc()
		s.metrics.EventStoreLength.Set(float64(storeLen))
	}

	s.broadcast(event)
	return event, nil
}

// trimDedupLocked drops dedup entries older than 10x the dedup window, per
// §4.7. Caller must hold s.mu.
func (s *Store) trimDedupLocked(now time.Time) {
	cutoff := 10 * s.cfg.DedupWindow
	for k, t := range s.lastSeen {
		if now.Sub(t) > cutoff {
			delete(s.lastSeen, k)
		}
	}
}

// Recent returns up to limit events, newest-first.
func (s *Store) Recent(limit int) []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = s.cfg.Capacity
	}
	if limit > s.cfg.Capacity {
		limit = s.cfg.Capacity
	}

	out := make([]*domain.Event, 0, limit)
	for el := s.events.Front(); el != nil && len(out) < limit; el = el.Next() {
		out = append(out, el.Value.(*domain.Event))
	}
	return out
}

// Len returns the current number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Len()
}

// Available reports whether the store is currently serving reads/writes.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Clear removes all stored events (operator reset). Dedup state and
// subscriber registrations are untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.Init()
	s.byID = make(map[int64]*list.Element)
}

// DedupDrops returns the lifetime count of publishes suppressed by the
// dedup window.
func (s *Store) DedupDrops() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dedupDrops
}

// Subscribe registers a new broadcast subscriber, e.g. for one WebSocket
// connection, and returns it. Call Unsubscribe on disconnect.
func (s *Store) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:    uuid.New().String(),
		ch:    make(chan *domain.Event, s.cfg.BroadcastCapacity),
		store: s,
	}
	s.subsMu.Lock()
	s.subs[sub.ID] = sub
	s.subsMu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber from the broadcast fan-out.
func (s *Store) Unsubscribe(sub *Subscriber) {
	s.subsMu.Lock()
	delete(s.subs, sub.ID)
	s.subsMu.Unlock()
}

// SubscriberCount returns the number of registered subscribers.
func (s *Store) SubscriberCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}

func (s *Store) broadcast(e *domain.Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.deliver(e)
	}
}
