// Package reasoning provides the external text-reasoning capability the
// probe uses for two jobs: generating the next persona message, and
// reconciling expected against actual backend pipeline steps. Both jobs
// go through the same Reasoner interface so the orchestrator and the
// reconciliation oracle never depend on a concrete vendor.
package reasoning

import "context"

// Message is one role-tagged prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling parameters for one completion.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Reasoner turns a role-tagged message list into free text.
type Reasoner interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// TranscriptEntry is one prior conversation turn handed to the reply
// driver for context.
type TranscriptEntry struct {
	Role    string
	Content string
}
