package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agentprobe/internal/persona"
	"agentprobe/internal/reasoning"
)

// OracleAnalyser reconciles turns through the reasoning model. The
// prompt instructs the model to derive expectations from the messages
// first and only then compare against the provided logs, so the oracle
// preserves the same domain rules as the rule analyser.
type OracleAnalyser struct {
	reasoner reasoning.Reasoner
	catalog  persona.FieldCatalog
	logger   *zap.Logger
}

// NewOracleAnalyser creates an oracle-backed analyser.
func NewOracleAnalyser(reasoner reasoning.Reasoner, catalog persona.FieldCatalog, logger *zap.Logger) *OracleAnalyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OracleAnalyser{
		reasoner: reasoner,
		catalog:  catalog,
		logger:   logger.Named("reconcile"),
	}
}

const oracleSystemPrompt = `You are a log analysis assistant for a real-estate AI system.

The system processes each buyer message through a backend pipeline. Each step
may produce a log record. Possible log types:
- intent_classifier: classifies the user intent.
- main_model: generates the agent's main response.
- extraction_model: extracts structured answers from the buyer reply.
- memory_extraction: extracts long-term buyer preferences or constraints.
- web_search: performs an external web search.
- slow_path: background services (optional).
- error: technical error log.

Task (expectation first, then compare):

Step A - read the agent message and the buyer reply and understand the turn.

Step B - decide which steps SHOULD have happened, from the messages alone:
- intent_classifier: always expected.
- main_model: always expected.
- extraction_model: expected only when the buyer reply answers a specific
  agent question about one of the catalog fields listed below.
- memory_extraction: expected only when the buyer reveals a durable personal
  constraint (budget, location, family size, timeline).
- web_search: expected ONLY when the classified intent is a property-search
  intent (current listings, prices, market data).
Do NOT use the provided logs in step B.

Step C - compare expected vs the actual log types present:
- normal_path is false when an error log exists, or an expected step has no
  record and the agent reply clearly depends on it.
- If web_search or extraction_model ran without being expected, list it under
  unexpected_logs and describe the bug in at most 10 words.
- If intent_classifier exists, copy its intent_response.
- If extraction_model exists, copy its extracted_answers.
- Never invent values for records that are not provided.

Catalog fields:
%s

Return ONLY one JSON object, no extra text:
{
  "normal_path": true|false,
  "log_error": {"name": "...", "details": "..."} | null,
  "actual": ["..."],
  "lost_expected_logs": [{"log_type": "...", "reason": "ten words max"}],
  "unexpected_logs": ["..."],
  "intent_response": "..." | null,
  "extracted_answers": ["..."] | null,
  "bug_description": "ten words max" | null
}`

// Analyse reconciles one turn through the oracle. Reasoning failures
// propagate to the caller; they are not swallowed here.
func (a *OracleAnalyser) Analyse(ctx context.Context, turn TurnContext) (*Report, error) {
	logsJSON, err := json.MarshalIndent(turn.Logs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal logs: %w", err)
	}

	userContent := fmt.Sprintf(
		"Agent message:\n%s\n\nBuyer reply:\n%s\n\nLogs (JSON list):\n%s\n",
		turn.AssistantMessage, turn.UserResponse, logsJSON)

	raw, err := a.reasoner.Complete(ctx, []reasoning.Message{
		{Role: "system", Content: fmt.Sprintf(oracleSystemPrompt, a.catalog.String())},
		{Role: "user", Content: userContent},
	}, reasoning.Params{
		MaxTokens:   400,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation oracle: %w", err)
	}

	report, err := parseOracleReply(raw)
	if err != nil {
		return nil, fmt.Errorf("reconciliation oracle returned unparseable verdict: %w", err)
	}

	a.logger.Debug("oracle verdict",
		zap.Bool("normal_path", report.NormalPath),
		zap.Strings("actual", report.Actual))
	return report, nil
}

// parseOracleReply extracts the verdict JSON from the model reply,
// tolerating code fences and stray prose around the object.
func parseOracleReply(raw string) (*Report, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", truncate(raw, 120))
	}

	var report Report
	if err := json.Unmarshal([]byte(raw[start:end+1]), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
