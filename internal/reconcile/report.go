// Package reconcile checks, turn by turn, whether the agent's backend
// pipeline executed the processing steps the conversation implies it
// should have. Expectations are derived from the messages alone
// (expectation-first), then compared against the telemetry records the
// backend actually produced.
package reconcile

import (
	"context"

	"agentprobe/internal/telemetry"
)

// Backend pipeline step log types.
const (
	StepIntentClassifier = "intent_classifier"
	StepMainModel        = "main_model"
	StepExtraction       = "extraction_model"
	StepMemory           = "memory_extraction"
	StepWebSearch        = "web_search"
	StepSlowPath         = "slow_path"
	StepErrorLog         = "error"
)

// StepError describes an error-type log record found on the turn.
type StepError struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

// MissingStep is an expected pipeline step with no actual record.
type MissingStep struct {
	LogType string `json:"log_type"`
	Reason  string `json:"reason"`
}

// Report is the reconciliation verdict for one turn.
type Report struct {
	NormalPath       bool          `json:"normal_path"`
	LogError         *StepError    `json:"log_error,omitempty"`
	Actual           []string      `json:"actual"`
	LostExpected     []MissingStep `json:"lost_expected_logs,omitempty"`
	Unexpected       []string      `json:"unexpected_logs,omitempty"`
	IntentResponse   string        `json:"intent_response,omitempty"`
	ExtractedAnswers []string      `json:"extracted_answers,omitempty"`
	BugDescription   string        `json:"bug_description,omitempty"`
}

// TurnContext is the input to one reconciliation: the agent's previous
// message, the persona's reply to it, and the backend records created
// since the last read.
type TurnContext struct {
	AssistantMessage string
	UserResponse     string
	Logs             []telemetry.Record
}

// Analyser reconciles one turn. Implementations must derive expected
// steps from the messages alone and must never fabricate a record that
// is not present in the turn's logs.
type Analyser interface {
	Analyse(ctx context.Context, turn TurnContext) (*Report, error)
}

// actualLogTypes returns the distinct log types present, in first-seen
// order.
func actualLogTypes(logs []telemetry.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range logs {
		t := rec.LogType()
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// findRecord returns the first record of the given log type.
func findRecord(logs []telemetry.Record, logType string) (telemetry.Record, bool) {
	for _, rec := range logs {
		if rec.LogType() == logType {
			return rec, true
		}
	}
	return nil, false
}
