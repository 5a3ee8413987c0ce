// Package sqlite journals job events in a local SQLite file, for single-node
// runs without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AaronLay10/SentientJobs/internal/storage"
	_ "modernc.org/sqlite"
)

// Journal is a SQLite-backed event journal.
type Journal struct {
	db       *sql.DB
	instance string
}

var _ storage.Journal = (*Journal)(nil)

// Open creates or opens the journal at path. WAL mode, one writer.
func Open(path, instance string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, instance: instance}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS job_events (
			event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			ts         INTEGER NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     TEXT,
			instance   TEXT NOT NULL,
			session_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_events_ts ON job_events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_job_events_event ON job_events(instance, event)`,
	}
	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts an event.
func (j *Journal) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := j.db.Exec(
		`INSERT INTO job_events (ts, level, event, msg, fields, instance, session_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixNano(), level, event, nullString(msg), fieldsJSON, j.instance, nullString(sessionID),
	)
	return err
}

// Query returns the newest events, optionally only those named event.
func (j *Journal) Query(limit int, event string) ([]storage.EventRow, error) {
	rows, err := j.db.Query(
		`SELECT event_id, ts, level, event, msg, fields, instance, session_id
		FROM job_events
		WHERE instance = ? AND (? = '' OR event = ?)
		ORDER BY ts DESC, event_id DESC
		LIMIT ?`,
		j.instance, event, event, storage.ClampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.EventRow
	for rows.Next() {
		var e storage.EventRow
		var ts int64
		var msg, fields, sessionID sql.NullString
		if err := rows.Scan(&e.EventID, &ts, &e.Level, &e.Event, &msg, &fields, &e.Instance, &sessionID); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
