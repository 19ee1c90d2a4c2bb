// Package chat implements the streaming transport to the real-estate
// agent's chat endpoint. A send is a full round trip: POST the persona
// message, then reconstruct the assistant reply from the SSE event
// stream. Failed sends are retried as whole new requests; there is no
// partial stream resumption.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client talks to the agent's streaming chat endpoint.
type Client struct {
	apiURL     string
	userID     string
	retryCount int
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds chat client configuration.
type Config struct {
	APIURL     string
	UserID     string
	Timeout    time.Duration
	RetryCount int
}

// Result is one reconstructed assistant reply.
type Result struct {
	AssistantText string
	// SessionID is the last truthy session id seen on the stream.
	// Empty when the stream never carried one.
	SessionID string
	// EventCount counts every "data:" line on the stream, including
	// blank payloads and the terminal frame.
	EventCount int
}

// TransportError is returned after all send attempts are exhausted.
// It wraps the error from the last attempt, never a generic one.
type TransportError struct {
	Attempts int
	Last     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat send failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TransportError) Unwrap() error { return e.Last }

// NewClient creates a chat client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("chat API URL is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if cfg.RetryCount <= 0 {
		return nil, fmt.Errorf("retry count must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiURL:     cfg.APIURL,
		userID:     cfg.UserID,
		retryCount: cfg.RetryCount,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("chat"),
	}, nil
}

// sendRequest is the chat endpoint wire format.
type sendRequest struct {
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id,omitempty"`
}

// Send delivers a persona message and reconstructs the streamed reply.
// Each of the configured attempts is an independent round trip; after
// the final failure the last captured error is returned wrapped in a
// *TransportError.
func (c *Client) Send(ctx context.Context, content, sessionID string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryCount; attempt++ {
		result, err := c.sendOnce(ctx, content, sessionID)
		if err != nil {
			lastErr = err
			c.logger.Warn("send attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		c.logger.Info("message sent",
			zap.Int("attempt", attempt),
			zap.Int("events", result.EventCount),
			zap.Int("reply_len", len(result.AssistantText)))
		return result, nil
	}

	return nil, &TransportError{Attempts: c.retryCount, Last: lastErr}
}

func (c *Client) sendOnce(ctx context.Context, content, sessionID string) (*Result, error) {
	body, err := json.Marshal(sendRequest{
		UserID:    c.userID,
		Content:   content,
		Stream:    true,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat endpoint returned status %d: %s",
			resp.StatusCode, bytes.TrimSpace(payload))
	}

	return parseStream(resp.Body)
}
