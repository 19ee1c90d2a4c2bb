package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agentprobe/internal/persona"
	"agentprobe/internal/telemetry"
)

// RuleAnalyser is the deterministic reconciliation implementation. It
// applies the domain rules directly, with no external reasoning call:
// useful for tests, offline runs, and as a cross-check on the oracle.
type RuleAnalyser struct {
	catalog persona.FieldCatalog
	logger  *zap.Logger
}

// NewRuleAnalyser creates a rule-based analyser over the field catalog.
func NewRuleAnalyser(catalog persona.FieldCatalog, logger *zap.Logger) *RuleAnalyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleAnalyser{catalog: catalog, logger: logger.Named("reconcile")}
}

// Analyse reconciles one turn against the domain rules.
func (a *RuleAnalyser) Analyse(ctx context.Context, turn TurnContext) (*Report, error) {
	report := &Report{
		NormalPath: true,
		Actual:     actualLogTypes(turn.Logs),
	}

	present := make(map[string]bool, len(report.Actual))
	for _, t := range report.Actual {
		present[t] = true
	}

	// Values are pulled only from records that actually exist.
	if rec, ok := findRecord(turn.Logs, StepIntentClassifier); ok {
		report.IntentResponse = stringField(rec, "intent_response")
	}
	if rec, ok := findRecord(turn.Logs, StepExtraction); ok {
		report.ExtractedAnswers = stringSliceField(rec, "extracted_answers")
	}

	expected := ExpectedSteps(turn.AssistantMessage, turn.UserResponse, a.catalog, report.IntentResponse)

	// An error record alone breaks the normal path.
	if rec, ok := findRecord(turn.Logs, StepErrorLog); ok {
		report.NormalPath = false
		report.LogError = &StepError{
			Name:    errorName(rec),
			Details: errorDetails(rec),
		}
	}

	// Expected-but-missing steps. The reply materially depends on all
	// of them except memory extraction, which runs in the background;
	// a lost memory step is reported but does not break the path.
	type check struct {
		logType  string
		expected bool
		material bool
		reason   string
	}
	for _, c := range []check{
		{StepIntentClassifier, expected.IntentClassifier, true, "every turn must be intent-classified"},
		{StepMainModel, expected.MainModel, true, "every turn must produce a main response"},
		{StepExtraction, expected.Extraction, true, "user answered an agent question"},
		{StepWebSearch, expected.WebSearch, true, "classified intent requires external data"},
		{StepMemory, expected.Memory, false, "user revealed a durable constraint"},
	} {
		if !c.expected || present[c.logType] {
			continue
		}
		report.LostExpected = append(report.LostExpected, MissingStep{
			LogType: c.logType,
			Reason:  c.reason,
		})
		if c.material {
			report.NormalPath = false
		}
	}

	// Steps that ran without being predicted.
	if present[StepWebSearch] && !expected.WebSearch {
		report.Unexpected = append(report.Unexpected, StepWebSearch)
		report.BugDescription = "web_search ran without a property_search intent"
	}
	if present[StepExtraction] && !expected.Extraction {
		report.Unexpected = append(report.Unexpected, StepExtraction)
		if report.BugDescription == "" {
			report.BugDescription = "extraction_model ran on a non-answer reply"
		}
	}

	a.logger.Debug("turn reconciled",
		zap.Bool("normal_path", report.NormalPath),
		zap.Strings("actual", report.Actual),
		zap.Int("lost", len(report.LostExpected)))
	return report, nil
}

func stringField(rec telemetry.Record, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(rec telemetry.Record, key string) []string {
	raw, ok := rec[key].([]any)
	if !ok {
		if s := stringField(rec, key); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func errorName(rec telemetry.Record) string {
	for _, key := range []string{"name", "error", "error_name"} {
		if v := stringField(rec, key); v != "" {
			return v
		}
	}
	return "backend_error"
}

func errorDetails(rec telemetry.Record) string {
	for _, key := range []string{"details", "response", "metadata", "message"} {
		if v, ok := rec[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
