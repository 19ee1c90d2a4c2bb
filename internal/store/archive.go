// Package store archives finished probe runs in SQLite so past runs can
// be listed and re-inspected without re-running the conversation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"agentprobe/internal/probe"
)

// Archive persists run reports. Thread-safe.
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// RunSummary is one archived run as listed, without the full turn set.
type RunSummary struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Success   bool      `json:"success"`
	TurnCount int       `json:"turn_count"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Open opens (or creates) the archive database at path and ensures the
// schema. Use ":memory:" for an ephemeral archive.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create archive directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	a := &Archive{db: db, logger: logger.Named("store")}
	if err := a.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	return a, nil
}

func (a *Archive) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		turn_count INTEGER NOT NULL,
		error TEXT,
		report_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(user_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveRun archives one finished run and returns its row id. The full
// report is stored as JSON alongside the queryable summary columns.
func (a *Archive) SaveRun(report *probe.RunReport) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshal run report: %w", err)
	}

	res, err := a.db.Exec(`
		INSERT INTO runs (user_id, session_id, success, turn_count, error, report_json, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.UserID, report.SessionID, report.Success, len(report.Turns),
		report.Error, string(reportJSON),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.EndedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.logger.Info("run archived",
		zap.Int64("id", id),
		zap.String("session_id", report.SessionID),
		zap.Bool("success", report.Success))
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (a *Archive) ListRuns(limit int) ([]RunSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(`
		SELECT id, user_id, session_id, success, turn_count, COALESCE(error, ''), started_at, ended_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s                  RunSummary
			startedAt, endedAt string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.SessionID, &s.Success,
			&s.TurnCount, &s.Error, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if s.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRun loads a full archived report by row id.
func (a *Archive) GetRun(id int64) (*probe.RunReport, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var reportJSON string
	err := a.db.QueryRow(`SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", id, err)
	}

	var report probe.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("decode run %d: %w", id, err)
	}
	return &report, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
