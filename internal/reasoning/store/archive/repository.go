// Package archive implements an optional durable Postgres mirror of every
// published event, for after-the-fact audit queries the in-memory store's
// bounded FIFO cannot serve.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

// Repository persists events to a Postgres "events" table.
type Repository struct {
	logger *zap.Logger
	db     *sql.DB
}

// New creates a Repository over an already-pinged *sql.DB.
func New(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		logger: logger.With(zap.String("component", "event_archive")),
		db:     db,
	}
}

// Insert archives one published event.
func (r *Repository) Insert(e *domain.Event) error {
	ctxJSON, err := json.Marshal(contextPairs(e.Context))
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		INSERT INTO events (
			event_id, type, severity, severity_score, track_ids, zone_id,
			reasoning_text, duration, "timestamp", context
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`

	trackIDs := make([]int64, 0, len(e.TrackIDs))
	for _, id := range e.TrackIDs {
		trackIDs = append(trackIDs, int64(id))
	}

	_, err = r.db.Exec(query,
		e.EventID,
		string(e.Type),
		string(e.Severity),
		e.SeverityScore,
		pq.Array(trackIDs),
		e.ZoneID,
		e.ReasoningText,
		e.Duration,
		e.Timestamp,
		string(ctxJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	r.logger.Debug("event archived", zap.Int64("event_id", e.EventID), zap.String("type", string(e.Type)))
	return nil
}

// Query lists archived events within [start, end], optionally filtered by
// event type, newest first.
func (r *Repository) Query(start, end time.Time, eventType domain.EventType, limit int) ([]*domain.Event, error) {
	query := `
		SELECT event_id, type, severity, severity_score, track_ids, zone_id,
			   reasoning_text, duration, "timestamp"
		FROM events
		WHERE "timestamp" BETWEEN $1 AND $2
	`
	args := []interface{}{start, end}

	if eventType != "" {
		query += " AND type = $3"
		args = append(args, string(eventType))
	}
	query += ` ORDER BY "timestamp" DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var e domain.Event
		var eventType, severity string
		var trackIDs pq.Int64Array

		if err := rows.Scan(
			&e.EventID, &eventType, &severity, &e.SeverityScore,
			&trackIDs, &e.ZoneID, &e.ReasoningText, &e.Duration, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.Type = domain.EventType(eventType)
		e.Severity = domain.Severity(severity)
		e.TrackIDs = make([]uint64, 0, len(trackIDs))
		for _, id := range trackIDs {
			e.TrackIDs = append(e.TrackIDs, uint64(id))
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func contextPairs(ctx *domain.Context) map[string]domain.ContextValue {
	out := make(map[string]domain.ContextValue)
	if ctx == nil {
		return out
	}
	for _, k := range ctx.Keys {
		out[k] = ctx.Values[k]
	}
	return out
}
