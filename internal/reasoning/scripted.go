package reasoning

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedReasoner is a deterministic Reasoner for tests. It replays a
// fixed sequence of responses and records every request it receives.
type ScriptedReasoner struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Calls holds the message lists received, in order.
	Calls [][]Message
	// Err, when set, is returned by every Complete call.
	Err error
}

// NewScriptedReasoner creates a stub that replays the given responses.
func NewScriptedReasoner(responses ...string) *ScriptedReasoner {
	return &ScriptedReasoner{responses: responses}
}

// Complete returns the next scripted response. The last response
// repeats once the script is exhausted.
func (s *ScriptedReasoner) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, messages)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted reasoner has no responses")
	}
	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}

// CallCount returns how many completions were requested.
func (s *ScriptedReasoner) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
