// Package history journals applied orientation transitions to SQLite.
//
// The journal is write-only from the daemon's point of view: the poll loop
// never reads it back, so the last orientation is always re-derived from a
// fresh sample after a restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/orientd/internal/engine"
	"github.com/banshee-data/orientd/internal/orientation"
)

// MaxRecent caps how many rows Recent returns.
const MaxRecent = 1000

// Entry is one journaled transition.
type Entry struct {
	ID          int64                   `json:"id"`
	RunID       string                  `json:"run_id"`
	Orientation orientation.Orientation `json:"orientation"`
	Previous    orientation.Orientation `json:"previous"`
	X           float64                 `json:"x"`
	Y           float64                 `json:"y"`
	ApplyError  string                  `json:"apply_error,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Store is the transition journal.
type Store struct {
	*sql.DB
	path  string
	runID string
	log   logrus.FieldLogger
}

// Open opens or creates the database at path and migrates it to the
// latest schema. Every Store gets a fresh run id.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{DB: db, path: path, runID: uuid.NewString(), log: log}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "run_id": s.runID}).Info("opened transition history")
	return s, nil
}

// RunID identifies the daemon process that wrote a row.
func (s *Store) RunID() string { return s.runID }

// Record appends a transition.
func (s *Store) Record(ctx context.Context, t engine.Transition) error {
	var applyErr string
	if t.ApplyErr != nil {
		applyErr = t.ApplyErr.Error()
	}
	_, err := s.ExecContext(ctx, `
		INSERT INTO transitions (run_id, orientation, previous, x, y, apply_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, t.To.String(), t.From.String(), t.Sample.X, t.Sample.Y, applyErr,
		t.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ObserveTransition records t and logs, rather than returns, any failure:
// a journal error never stops the poll loop. The write ignores cancellation
// so a transition applied just before shutdown is still journaled.
func (s *Store) ObserveTransition(ctx context.Context, t engine.Transition) {
	if err := s.Record(context.WithoutCancel(ctx), t); err != nil {
		s.log.WithError(err).Warn("history write failed")
	}
}

// Recent returns up to limit transitions, newest first. A limit outside
// (0, MaxRecent] is clamped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	rows, err := s.QueryContext(ctx, `
		SELECT id, run_id, orientation, previous, x, y, apply_error, created_at
		FROM transitions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			to, from, ts string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &to, &from, &e.X, &e.Y, &e.ApplyError, &ts); err != nil {
			return nil, err
		}
		// Unrecognised names read back as Unknown.
		e.Orientation, _ = orientation.Parse(to)
		e.Previous, _ = orientation.Parse(from)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("transition %d: bad created_at %q: %w", e.ID, ts, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
