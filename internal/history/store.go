package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/platform"
)

// List limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// TimeLayout stores timestamps at a fixed width so they sort as text
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"


// Entry is one finished session
type Entry struct {
	ID         string              `json:"id"`
	Source     model.SourceKind    `json:"source"`
	Target     string              `json:"target"`
	Task       model.ModelTask     `json:"task"`
	Tracker    model.TrackerType   `json:"tracker,omitempty"`
	Status     model.SessionStatus `json:"status"`
	Frames     int                 `json:"frames"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// FromSession builds a history entry from a finished session
func FromSession(s *model.Session) Entry {
	return Entry{
		ID:         s.ID,
		Source:     s.Source,
		Target:     s.Target,
		Task:       s.Task,
		Tracker:    s.Tracker,
		Status:     s.Status,
		Frames:     s.Frames,
		Error:      s.LastError,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// Store persists entries in a sqlite database
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path; ":memory:" is accepted for tests
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := platform.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		task        TEXT NOT NULL,
		tracker     TEXT,
		status      TEXT NOT NULL,
		frames      INTEGER NOT NULL DEFAULT 0,
		error       TEXT,
		started_at  TEXT,
		finished_at TEXT NOT NULL
	)`)
	return err
}

// Save inserts or replaces an entry
func (s *Store) Save(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("history: save: id is required")
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (id, source, target, task, tracker, status, frames, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Source), e.Target, string(e.Task), string(e.Tracker), string(e.Status),
		e.Frames, e.Error, formatTime(e.StartedAt), formatTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// List returns the newest entries first
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target, task, tracker, status, frames, error, started_at, finished_at
		 FROM sessions ORDER BY finished_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			tracker, errText   sql.NullString
			started, finished  sql.NullString
			source, task, stat string
		)
		if err := rows.Scan(&e.ID, &source, &e.Target, &task, &tracker, &stat,
			&e.Frames, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Source = model.SourceKind(source)
		e.Task = model.ModelTask(task)
		e.Status = model.SessionStatus(stat)
		e.Tracker = model.TrackerType(tracker.String)
		e.Error = errText.String
		e.StartedAt = parseTime(started.String)
		e.FinishedAt = parseTime(finished.String)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
