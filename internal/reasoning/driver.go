package reasoning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agentprobe/internal/persona"
)

// Driver generates the persona's next message in the conversation.
type Driver struct {
	reasoner Reasoner
	logger   *zap.Logger
}

// NewDriver creates a reply-generation driver over a Reasoner.
func NewDriver(reasoner Reasoner, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{reasoner: reasoner, logger: logger.Named("driver")}
}

const driverSystemPrompt = `You are role-playing a prospective home buyer talking to a real-estate agent.
Stay strictly in character. Answer the agent's latest question in one or two
short sentences, drawing only on the buyer profile below. Be natural and a
little informal. Do not ask the agent questions, do not volunteer information
the agent has not asked about, and never mention that you are simulated.

Buyer profile:
%s`

// GenerateReply produces the buyer's next message given the persona,
// the agent's latest message, and up to the last ten turns of context.
func (d *Driver) GenerateReply(ctx context.Context, p persona.Persona, lastAssistant string, recent []TranscriptEntry) (string, error) {
	messages := buildDriverMessages(p, lastAssistant, recent)

	reply, err := d.reasoner.Complete(ctx, messages, Params{
		MaxTokens:   100,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply = strings.TrimSpace(reply)
	d.logger.Debug("generated persona reply", zap.Int("len", len(reply)))
	return reply, nil
}

func buildDriverMessages(p persona.Persona, lastAssistant string, recent []TranscriptEntry) []Message {
	var transcript strings.Builder
	for _, entry := range recent {
		transcript.WriteString(entry.Role)
		transcript.WriteString(": ")
		transcript.WriteString(entry.Content)
		transcript.WriteString("\n")
	}

	user := fmt.Sprintf(
		"Recent conversation:\n%s\nAgent's latest message:\n%s\n\nReply as the buyer.",
		transcript.String(), lastAssistant)

	return []Message{
		{Role: "system", Content: fmt.Sprintf(driverSystemPrompt, p.String())},
		{Role: "user", Content: user},
	}
}
