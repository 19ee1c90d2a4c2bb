// Package probe drives one conversation against the real-estate agent:
// it plays the buyer persona turn by turn, reconciles each turn against
// the backend telemetry, and assembles the run report.
package probe

import (
	"context"
	"time"

	"agentprobe/internal/chat"
	"agentprobe/internal/reconcile"
	"agentprobe/internal/telemetry"
)

// Turn is one message within a run. Turns are append-only; the session
// id is back-filled onto earlier turns once the transport reports one,
// so every turn in a finished report carries the identical value.
type Turn struct {
	Role       string            `json:"role"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	Content    string            `json:"content"`
	TS         time.Time         `json:"ts"`
	LogsReport *reconcile.Report `json:"logs_report,omitempty"`
}

// RunReport is the sole output artifact of a run. It is created at run
// start and finalized exactly once at a terminal transition.
type RunReport struct {
	Success      bool      `json:"success"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Turns        []*Turn   `json:"turns"`
	FinalSummary string    `json:"final_summary,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Error        string    `json:"error,omitempty"`

	// Questions is the ordered set of agent-posed questions collected
	// across the run, kept for post-hoc deduplication. Not part of the
	// serialized report itself.
	Questions []string `json:"-"`
}

// ChatTransport sends one persona message and reconstructs the reply.
type ChatTransport interface {
	Send(ctx context.Context, content, sessionID string) (*chat.Result, error)
}

// LogStream is one session's incremental telemetry view.
type LogStream interface {
	Fetch(ctx context.Context, limit int) ([]telemetry.Record, error)
}

// LogTracker hands out per-session log streams.
type LogTracker interface {
	Track(userID, sessionID string, policy telemetry.InitPolicy) LogStream
}

// ReaderTracker adapts *telemetry.Reader to the LogTracker interface.
type ReaderTracker struct {
	Reader *telemetry.Reader
}

// Track returns the reader's stream for the session.
func (r ReaderTracker) Track(userID, sessionID string, policy telemetry.InitPolicy) LogStream {
	return r.Reader.Track(userID, sessionID, policy)
}
