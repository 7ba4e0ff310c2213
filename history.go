package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// fixed width so rows sort by submitted_at as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Submission is one posted grid form.
type Submission struct {
	ID          string
	SubmittedAt time.Time
	UID         string
	TimesheetID string
	Date        string
	Mode        string // "http" or "browser"
	URL         string
	Status      int // HTTP status, 0 when submitted from the browser
	Fields      int
}

// History keeps a local log of submissions.
type History struct {
	db *sql.DB
}

func NewHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	h := &History{db: db}
	if err := h.init(); err != nil {
		db.Close()
		return nil, err
	}

	return h, nil
}

func (h *History) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		submitted_at TEXT NOT NULL,
		uid TEXT NOT NULL,
		timesheet_id TEXT NOT NULL,
		date TEXT NOT NULL,
		mode TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		fields INTEGER NOT NULL DEFAULT 0
	)
	`
	_, err := h.db.Exec(query)
	return err
}

// Record stores s, filling in ID and SubmittedAt when unset.
func (h *History) Record(s *Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now()
	}
	_, err := h.db.Exec(
		"INSERT INTO submissions (id, submitted_at, uid, timesheet_id, date, mode, url, status, fields) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID,
		s.SubmittedAt.UTC().Format(timeLayout),
		s.UID,
		s.TimesheetID,
		s.Date,
		s.Mode,
		s.URL,
		s.Status,
		s.Fields,
	)
	return err
}

// List returns up to limit submissions, newest first. limit <= 0 means all.
func (h *History) List(limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.Query(
		"SELECT id, submitted_at, uid, timesheet_id, date, mode, url, status, fields FROM submissions ORDER BY submitted_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var s Submission
		var submittedAt string
		if err := rows.Scan(&s.ID, &submittedAt, &s.UID, &s.TimesheetID, &s.Date, &s.Mode, &s.URL, &s.Status, &s.Fields); err != nil {
			return nil, err
		}
		if s.SubmittedAt, err = time.Parse(timeLayout, submittedAt); err != nil {
			return nil, fmt.Errorf("submission %s: submitted_at: %w", s.ID, err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}
