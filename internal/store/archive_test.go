package store

import (
	"path/filepath"
	"testing"
	"time"

	"agentprobe/internal/probe"
	"agentprobe/internal/reconcile"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleReport(sessionID string, success bool) *probe.RunReport {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &probe.RunReport{
		Success:   success,
		UserID:    "user-1",
		SessionID: sessionID,
		Turns: []*probe.Turn{
			{Role: "assistant", SessionID: sessionID, Content: "Hello! How can I help?", TS: start},
			{
				Role: "user", SessionID: sessionID, Content: "Hi, I want to buy a home.", TS: start,
				LogsReport: &reconcile.Report{NormalPath: true, Actual: []string{"intent_classifier", "main_model"}},
			},
		},
		FinalSummary: "Based on our conversation, you want a condo in Wayne.",
		StartedAt:    start,
		EndedAt:      start.Add(90 * time.Second),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	a := newTestArchive(t)

	id, err := a.SaveRun(sampleReport("sess-1", true))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero row id")
	}

	got, err := a.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.SessionID != "sess-1" || !got.Success {
		t.Errorf("loaded report = %+v", got)
	}
	if len(got.Turns) != 2 {
		t.Fatalf("turns = %d", len(got.Turns))
	}
	if got.Turns[1].LogsReport == nil || !got.Turns[1].LogsReport.NormalPath {
		t.Errorf("reconciliation report lost on round trip: %+v", got.Turns[1].LogsReport)
	}
	if got.FinalSummary == "" {
		t.Error("final summary lost on round trip")
	}
}

func TestGetRunUnknownID(t *testing.T) {
	a := newTestArchive(t)

	if _, err := a.GetRun(42); err == nil {
		t.Error("expected an error for an unknown run id")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	a := newTestArchive(t)

	first := sampleReport("sess-old", false)
	first.Error = "max_turns exceeded"
	second := sampleReport("sess-new", true)
	second.StartedAt = first.StartedAt.Add(time.Hour)
	second.EndedAt = second.StartedAt.Add(time.Minute)

	if _, err := a.SaveRun(first); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := a.SaveRun(second); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	runs, err := a.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].SessionID != "sess-new" || runs[1].SessionID != "sess-old" {
		t.Errorf("order wrong: %q then %q", runs[0].SessionID, runs[1].SessionID)
	}
	if runs[1].Error != "max_turns exceeded" {
		t.Errorf("summary error = %q", runs[1].Error)
	}
	if runs[0].TurnCount != 2 {
		t.Errorf("TurnCount = %d", runs[0].TurnCount)
	}
	if !runs[0].StartedAt.Equal(second.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", runs[0].StartedAt, second.StartedAt)
	}
}

func TestListRunsLimit(t *testing.T) {
	a := newTestArchive(t)

	for i := 0; i < 5; i++ {
		r := sampleReport("sess", true)
		r.StartedAt = r.StartedAt.Add(time.Duration(i) * time.Minute)
		if _, err := a.SaveRun(r); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := a.ListRuns(3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("runs = %d, want limit applied", len(runs))
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	a, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if _, err := a.SaveRun(sampleReport("sess-file", true)); err != nil {
		t.Fatalf("SaveRun on file-backed archive failed: %v", err)
	}
}
