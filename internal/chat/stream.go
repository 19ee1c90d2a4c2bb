package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// doneSentinel is the explicit end-of-stream marker some deployments
// emit instead of (or in addition to) a done-typed record.
const doneSentinel = "[DONE]"

// streamEvent is one parsed SSE record.
type streamEvent struct {
	Type      string `json:"type"`
	Delta     string `json:"delta"`
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// parseStream reconstructs the assistant reply from an SSE body.
//
// Every "data:" line counts toward EventCount, including blank payloads
// and the terminal frame. Blank payloads and the [DONE] sentinel are
// skipped without being parse failures; malformed JSON records are
// silently discarded. A done-typed record stops reading immediately
// without consuming the rest of the stream.
//
// The session id is a one-way latch: any record carrying a non-empty
// session_id overwrites the tracked value, and a later empty value never
// erases a known id. An explicit empty reset from the server is treated
// as an upstream bug, not a signal.
func parseStream(body io.Reader) (*Result, error) {
	var (
		parts      []string
		sessionID  string
		eventCount int
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		eventCount++

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == doneSentinel {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if ev.Type == "done" {
			break
		}
		if ev.SessionID != "" {
			sessionID = ev.SessionID
		}

		delta := ev.Delta
		if ev.Type == "content" && delta == "" {
			delta = ev.Text
		}
		if delta != "" {
			parts = append(parts, delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}

	return &Result{
		AssistantText: strings.Join(parts, ""),
		SessionID:     sessionID,
		EventCount:    eventCount,
	}, nil
}
