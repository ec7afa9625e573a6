// Package store records ECG recordings in a sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/mikesmitty/max30003"
)

// ErrClosed is returned by reads and writes on a closed store.
var ErrClosed = errors.New("store: closed")

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id      INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	session TEXT    NOT NULL,
	seq     INTEGER NOT NULL,
	value   INTEGER NOT NULL,
	tag     INTEGER NOT NULL,
	ts      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rtor (
	id          INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	session     TEXT    NOT NULL,
	ticks       INTEGER NOT NULL,
	interval_ns INTEGER NOT NULL,
	ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_session ON samples (session, seq);
`

// Store appends samples and R-to-R intervals of one recording session.
// It is not safe for concurrent use.
type Store struct {
	db      *sql.DB
	session string
	seq     int64
}

// Open opens, and creates if needed, the database at path. The session
// name tags every row written through the returned store; an empty name
// defaults to the current time.
func Open(path, session string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: could not open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("store: could not create schema: %w", err),
			db.Close(),
		)
	}
	if session == "" {
		session = time.Now().UTC().Format(time.RFC3339)
	}
	return &Store{db: db, session: session}, nil
}

// Session returns the name of the recording session.
func (s *Store) Session() string {
	return s.session
}

// WriteBatch appends the samples of b in a single transaction. Samples
// are numbered in arrival order across batches.
func (s *Store) WriteBatch(b max30003.Batch) (err error) {
	if s.db == nil {
		return ErrClosed
	}
	if len(b.Samples) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: could not begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	stmt, err := tx.Prepare("INSERT INTO samples (session, seq, value, tag, ts) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: could not prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := b.Time.UnixNano()
	seq := s.seq
	for _, smp := range b.Samples {
		if _, err := stmt.Exec(s.session, seq, smp.Value, uint8(smp.Tag), ts); err != nil {
			return fmt.Errorf("store: could not insert sample %d: %w", seq, err)
		}
		seq++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: could not commit: %w", err)
	}
	s.seq = seq
	return nil
}

// WriteRtoR appends one R-to-R interval.
func (s *Store) WriteRtoR(r max30003.RtoR, t time.Time) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(
		"INSERT INTO rtor (session, ticks, interval_ns, ts) VALUES (?, ?, ?, ?)",
		s.session, r.Ticks, int64(r.Interval), t.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: could not insert R-to-R interval: %w", err)
	}
	return nil
}

// Count returns the number of samples and R-to-R intervals recorded in
// the session.
func (s *Store) Count() (samples, intervals int64, err error) {
	if s.db == nil {
		return 0, 0, ErrClosed
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM samples WHERE session = ?", s.session).Scan(&samples)
	if err != nil {
		return 0, 0, fmt.Errorf("store: could not count samples: %w", err)
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM rtor WHERE session = ?", s.session).Scan(&intervals)
	if err != nil {
		return 0, 0, fmt.Errorf("store: could not count R-to-R intervals: %w", err)
	}
	return samples, intervals, nil
}

// Samples returns the recorded samples of the session in arrival order.
func (s *Store) Samples() ([]max30003.Sample, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query("SELECT value, tag FROM samples WHERE session = ? ORDER BY seq", s.session)
	if err != nil {
		return nil, fmt.Errorf("store: could not query samples: %w", err)
	}
	defer rows.Close()

	var out []max30003.Sample
	for rows.Next() {
		var (
			v   int32
			tag uint8
		)
		if err := rows.Scan(&v, &tag); err != nil {
			return nil, fmt.Errorf("store: could not scan sample: %w", err)
		}
		out = append(out, max30003.Sample{Value: v, Tag: max30003.Tag(tag)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: could not read samples: %w", err)
	}
	return out, nil
}

// Close closes the database. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
