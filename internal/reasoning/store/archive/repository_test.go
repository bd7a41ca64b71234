package archive

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, zap.NewNop()), mock
}

func testEvent() *domain.Event {
	return &domain.Event{
		EventID:       1,
		Type:          domain.EventIntrusion,
		Severity:      domain.SeverityCritical,
		SeverityScore: 0.9,
		TrackIDs:      []uint64{42},
		ZoneID:        "R1",
		ReasoningText: "Subject ID 42 entered restricted zone R1",
		Duration:      0,
		Timestamp:     time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC),
		Context:       domain.NewContext().Set("id", domain.CtxNumber(42)),
	}
}

func TestRepository_InsertExecutesUpsert(t *testing.T) {
	r, mock := newTestRepository(t)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(
			int64(1), "INTRUSION", "CRITICAL", 0.9,
			sqlmock.AnyArg(), "R1", "Subject ID 42 entered restricted zone R1", 0.0,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Insert(testEvent())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertPropagatesDBError(t *testing.T) {
	r, mock := newTestRepository(t)

	mock.ExpectExec("INSERT INTO events").WillReturnError(assert.AnError)

	err := r.Insert(testEvent())
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_QueryFiltersByEventTypeAndRange(t *testing.T) {
	r, mock := newTestRepository(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"event_id", "type", "severity", "severity_score", "track_ids", "zone_id",
		"reasoning_text", "duration", "timestamp",
	}).AddRow(
		int64(7), "LOITERING", "MEDIUM", 0.5, "{3}", "Z1",
		"Subject ID 3 exhibited loitering", 12.5, end,
	)

	mock.ExpectQuery(`SELECT event_id, type, severity, severity_score, track_ids, zone_id,\s+reasoning_text, duration, "timestamp"\s+FROM events\s+WHERE "timestamp" BETWEEN \$1 AND \$2\s+AND type = \$3`).
		WithArgs(start, end, "LOITERING").
		WillReturnRows(rows)

	events, err := r.Query(start, end, domain.EventLoitering, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].EventID)
	assert.Equal(t, domain.EventLoitering, events[0].Type)
	assert.Equal(t, []uint64{3}, events[0].TrackIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_QueryWithoutEventTypeOmitsFilter(t *testing.T) {
	r, mock := newTestRepository(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"event_id", "type", "severity", "severity_score", "track_ids", "zone_id",
		"reasoning_text", "duration", "timestamp",
	})

	mock.ExpectQuery(`SELECT event_id, type, severity, severity_score, track_ids, zone_id,\s+reasoning_text, duration, "timestamp"\s+FROM events\s+WHERE "timestamp" BETWEEN \$1 AND \$2\s+ORDER BY "timestamp" DESC`).
		WithArgs(start, end).
		WillReturnRows(rows)

	events, err := r.Query(start, end, "", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}
