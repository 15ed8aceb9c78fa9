package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/intel"
	neuvoxotel "github.com/ankitpatel990/neuvox/internal/otel"
)

var tracer = neuvoxotel.Tracer("github.com/ankitpatel990/neuvox/internal/session")

// ErrSessionNotFound is returned by Get for unknown session ids. Callers
// treat it as "create a fresh session", never as a failure.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    turn_count INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    intelligence TEXT NOT NULL DEFAULT '{}',
    phase TEXT NOT NULL DEFAULT 'showInterest',
    terminated INTEGER NOT NULL DEFAULT 0,
    callback_fired INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_terminated ON sessions(terminated, updated_at);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// Store persists sessions in SQLite. Put is a whole-row upsert, so a turn
// either commits all of its session mutation or none of it.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the session database. WAL mode plus a busy
// timeout keeps concurrent per-session turns from failing outright on
// writer contention; the busy retry below covers the rest.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the session with the given id, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.get",
		trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, turn_count, started_at, intelligence, phase, terminated, callback_fired, updated_at
		 FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}
	return sess, nil
}

// Put upserts the full session row. This is the orchestrator's single
// commit point; all earlier turn work happens on an in-memory copy.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	ctx, span := tracer.Start(ctx, "session.put",
		trace.WithAttributes(
			attribute.String("session_id", sess.ID),
			attribute.Int("turn_count", sess.TurnCount),
			attribute.Bool("terminated", sess.Terminated),
		))
	defer span.End()

	intelJSON, err := json.Marshal(sess.Intel)
	if err != nil {
		return fmt.Errorf("encoding intelligence: %w", err)
	}

	err = s.withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, turn_count, started_at, intelligence, phase, terminated, callback_fired, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			     turn_count = excluded.turn_count,
			     intelligence = excluded.intelligence,
			     phase = excluded.phase,
			     terminated = excluded.terminated,
			     callback_fired = excluded.callback_fired,
			     updated_at = excluded.updated_at`,
			sess.ID, sess.TurnCount, sess.StartedAt.UTC(), string(intelJSON),
			string(sess.Phase), boolToInt(sess.Terminated), boolToInt(sess.CallbackFired),
			sess.UpdatedAt.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("writing session %s: %w", sess.ID, err)
	}

	recordSessionsGauge(ctx, s)
	return nil
}

// List returns lightweight session summaries ordered by last activity.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	ctx, span := tracer.Start(ctx, "session.list")
	defer span.End()

	query := `SELECT id, turn_count, intelligence, phase, terminated, started_at, updated_at
	          FROM sessions ORDER BY updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var intelJSON, phase string
		var terminated int
		var startedAt, updatedAt interface{}
		if err := rows.Scan(&sum.ID, &sum.TurnCount, &intelJSON, &phase, &terminated, &startedAt, &updatedAt); err != nil {
			continue
		}
		var report intel.Report
		_ = json.Unmarshal([]byte(intelJSON), &report)
		sum.Confidence = report.Confidence()
		sum.Phase = engagement.Phase(phase)
		sum.Terminated = terminated != 0
		if t, ok := scanTime(startedAt); ok {
			sum.StartedAt = t
		}
		if t, ok := scanTime(updatedAt); ok {
			sum.UpdatedAt = t
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// PurgeTerminated deletes terminated sessions with no activity since the
// cutoff. Returns the number of rows removed.
func (s *Store) PurgeTerminated(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "session.purge_terminated",
		trace.WithAttributes(attribute.String("cutoff", cutoff.UTC().Format(time.RFC3339))))
	defer span.End()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE terminated = 1 AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging terminated sessions: %w", err)
	}
	affected, _ := result.RowsAffected()
	span.SetAttributes(attribute.Int64("session.purged", affected))
	if affected > 0 {
		recordSessionsGauge(ctx, s)
	}
	return affected, nil
}

// Count returns the total number of stored sessions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// withBusyRetry runs fn, retrying on SQLite busy/locked with a quadratic
// backoff capped at 250ms.
func (s *Store) withBusyRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 15
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 20 * time.Millisecond
			if backoff > 250*time.Millisecond {
				backoff = 250 * time.Millisecond
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}
		lastErr = fn()
		if lastErr == nil || !isSQLiteLocked(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// isSQLiteLocked reports whether the error is SQLite busy/locked (retryable).
func isSQLiteLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "locked")
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var intelJSON, phase string
	var terminated, callbackFired int
	var startedAt, updatedAt interface{}
	err := row.Scan(&sess.ID, &sess.TurnCount, &startedAt, &intelJSON, &phase,
		&terminated, &callbackFired, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(intelJSON), &sess.Intel); err != nil {
		return nil, fmt.Errorf("decoding intelligence: %w", err)
	}
	sess.Intel.Normalize()
	sess.Phase = engagement.Phase(phase)
	sess.Terminated = terminated != 0
	sess.CallbackFired = callbackFired != 0
	if t, ok := scanTime(startedAt); ok {
		sess.StartedAt = t
	}
	if t, ok := scanTime(updatedAt); ok {
		sess.UpdatedAt = t
	}
	return &sess, nil
}

// scanTime handles SQLite returning datetimes as time.Time, []byte, or string.
func scanTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case []byte:
		return parseSQLiteTime(string(val))
	case string:
		return parseSQLiteTime(val)
	}
	return time.Time{}, false
}

func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
