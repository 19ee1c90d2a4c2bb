package probe

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentprobe/internal/persona"
	"agentprobe/internal/reasoning"
	"agentprobe/internal/reconcile"
	"agentprobe/internal/telemetry"
)

const (
	// fallbackReply substitutes an empty generated persona message.
	fallbackReply = "I'm not sure what to say."

	// ackReply answers agent messages that ask nothing.
	ackReply = "Okay."

	// recentTurnWindow bounds the transcript handed to the reply
	// generator.
	recentTurnWindow = 10
)

// ReplyGenerator produces the persona's next message.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, p persona.Persona, lastAssistant string, recent []reasoning.TranscriptEntry) (string, error)
}

// Config holds the budgets and opening messages of one run.
type Config struct {
	UserID          string
	MaxTurns        int
	MaxTotal        time.Duration
	LogsLimit       int
	InitialUserMsg  string
	InitialAgentMsg string
}

// Orchestrator runs the conversation loop: send the persona message,
// read and reconcile the backend telemetry, then decide whether to
// stop, answer a question, or acknowledge.
type Orchestrator struct {
	chat     ChatTransport
	tracker  LogTracker
	analyser reconcile.Analyser
	driver   ReplyGenerator
	persona  persona.Persona
	cfg      Config
	logger   *zap.Logger

	// now is the wall clock; replaceable in tests.
	now func() time.Time
}

// NewOrchestrator wires an orchestrator. All collaborators are
// interfaces; a run never shares mutable state with another run.
func NewOrchestrator(
	transport ChatTransport,
	tracker LogTracker,
	analyser reconcile.Analyser,
	driver ReplyGenerator,
	p persona.Persona,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		chat:     transport,
		tracker:  tracker,
		analyser: analyser,
		driver:   driver,
		persona:  p,
		cfg:      cfg,
		logger:   logger.Named("probe"),
		now:      time.Now,
	}
}

// Run executes the conversation until the agent produces a closing
// summary or a budget runs out. It always returns a finalized report;
// on failure the partially collected turns are preserved.
//
// Budget exhaustion is a normal terminal state, not an error value.
// Both budget cases report success=false with an explanatory error
// string, so turn-limit and time-limit runs have the same shape.
func (o *Orchestrator) Run(ctx context.Context) *RunReport {
	report := &RunReport{
		UserID:    o.cfg.UserID,
		SessionID: uuid.NewString(),
		StartedAt: o.now(),
	}

	assistantText := o.cfg.InitialAgentMsg
	userMsg := o.cfg.InitialUserMsg

	o.logger.Info("run started",
		zap.String("user_id", report.UserID),
		zap.Int("max_turns", o.cfg.MaxTurns))

	for turnIndex := 0; turnIndex < o.cfg.MaxTurns; turnIndex++ {
		// Budgets are checked only at turn boundaries; an in-flight
		// external call is never interrupted mid-turn.
		if err := ctx.Err(); err != nil {
			return o.fail(report, err.Error())
		}
		if o.now().Sub(report.StartedAt) >= o.cfg.MaxTotal {
			o.logger.Warn("time budget exhausted", zap.Int("turns", turnIndex))
			return o.fail(report, "max_total_seconds exceeded")
		}

		o.appendTurn(report, "assistant", assistantText)
		userTurn := o.appendTurn(report, "user", userMsg)

		result, err := o.chat.Send(ctx, userMsg, report.SessionID)
		if err != nil {
			return o.fail(report, err.Error())
		}
		if result.SessionID != "" && result.SessionID != report.SessionID {
			report.SessionID = result.SessionID
			for _, turn := range report.Turns {
				turn.SessionID = result.SessionID
			}
		}

		records := o.readTelemetry(ctx, report.SessionID)

		logsReport, err := o.analyser.Analyse(ctx, reconcile.TurnContext{
			AssistantMessage: assistantText,
			UserResponse:     userMsg,
			Logs:             records,
		})
		if err != nil {
			return o.fail(report, err.Error())
		}
		userTurn.LogsReport = logsReport

		assistantText = strings.TrimSpace(result.AssistantText)
		report.Questions = append(report.Questions, persona.ExtractQuestions(assistantText)...)

		isQ := persona.IsQuestion(assistantText)
		stopped := persona.StopCondition(assistantText)
		o.logger.Info("turn complete",
			zap.Int("turn", turnIndex+1),
			zap.Int("events", result.EventCount),
			zap.Bool("normal_path", logsReport.NormalPath),
			zap.Bool("is_question", isQ),
			zap.Bool("stop", stopped))

		if stopped {
			report.Success = true
			report.FinalSummary = assistantText
			return o.finish(report)
		}

		if isQ {
			reply, err := o.driver.GenerateReply(ctx, o.persona, assistantText, o.recentTranscript(report))
			if err != nil {
				return o.fail(report, err.Error())
			}
			if reply == "" {
				reply = fallbackReply
			}
			userMsg = reply
		} else {
			userMsg = ackReply
		}
	}

	o.logger.Warn("turn budget exhausted", zap.Int("max_turns", o.cfg.MaxTurns))
	return o.fail(report, "max_turns exceeded")
}

// readTelemetry fetches the records created since the session's last
// read. Telemetry failures are swallowed: the turn proceeds with an
// empty set.
func (o *Orchestrator) readTelemetry(ctx context.Context, sessionID string) []telemetry.Record {
	stream := o.tracker.Track(o.cfg.UserID, sessionID, telemetry.FromStart)
	records, err := stream.Fetch(ctx, o.cfg.LogsLimit)
	if err != nil {
		o.logger.Warn("telemetry read failed, proceeding without logs", zap.Error(err))
		return nil
	}
	return records
}

func (o *Orchestrator) appendTurn(report *RunReport, role, content string) *Turn {
	turn := &Turn{
		Role:      role,
		UserID:    o.cfg.UserID,
		SessionID: report.SessionID,
		Content:   content,
		TS:        o.now(),
	}
	report.Turns = append(report.Turns, turn)
	return turn
}

func (o *Orchestrator) recentTranscript(report *RunReport) []reasoning.TranscriptEntry {
	turns := report.Turns
	if len(turns) > recentTurnWindow {
		turns = turns[len(turns)-recentTurnWindow:]
	}
	entries := make([]reasoning.TranscriptEntry, len(turns))
	for i, turn := range turns {
		entries[i] = reasoning.TranscriptEntry{Role: turn.Role, Content: turn.Content}
	}
	return entries
}

func (o *Orchestrator) fail(report *RunReport, msg string) *RunReport {
	report.Success = false
	report.Error = msg
	return o.finish(report)
}

func (o *Orchestrator) finish(report *RunReport) *RunReport {
	report.EndedAt = o.now()
	o.logger.Info("run finished",
		zap.Bool("success", report.Success),
		zap.Int("turns", len(report.Turns)),
		zap.String("error", report.Error))
	return report
}
