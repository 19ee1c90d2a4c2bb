// Package telemetry reads the backend pipeline logs of the agent under
// test. Reads are incremental: each session owns a cursor, and a fetch
// returns only records created since the previous fetch.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is one opaque backend log record. The only field the probe
// relies on is log_type; the rest of the payload is passed through to
// the reconciliation oracle untouched.
type Record map[string]any

// LogType returns the record's log_type, or "" when absent.
func (r Record) LogType() string {
	if v, ok := r["log_type"].(string); ok {
		return v
	}
	return ""
}

// InitPolicy controls how a session's cursor is initialised on the
// first fetch.
type InitPolicy int

const (
	// FromStart leaves the cursor at the beginning, so every record
	// that already exists counts as new on the first fetch.
	FromStart InitPolicy = iota

	// SkipExisting primes the cursor past the records that exist at
	// first-fetch time, so only later records are ever returned. The
	// skip window is bounded by the fetch limit.
	SkipExisting
)

// Fetcher retrieves a session's ordered log records from the backend.
type Fetcher interface {
	FetchLogs(ctx context.Context, userID, sessionID string, limit int) ([]Record, error)
}

// Client is the HTTP Fetcher for the production logs endpoint.
type Client struct {
	apiURL     string
	retryCount int
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig holds logs client configuration.
type ClientConfig struct {
	APIURL     string
	Timeout    time.Duration
	RetryCount int
}

// NewClient creates a logs API client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("logs API URL is required")
	}
	if cfg.RetryCount <= 0 {
		return nil, fmt.Errorf("retry count must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiURL:     cfg.APIURL,
		retryCount: cfg.RetryCount,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("telemetry"),
	}, nil
}

// FetchLogs queries the logs endpoint for a session's ordered records.
// Like the chat transport, each attempt is independent and the last
// captured error surfaces after retries are exhausted.
func (c *Client) FetchLogs(ctx context.Context, userID, sessionID string, limit int) ([]Record, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryCount; attempt++ {
		records, err := c.fetchOnce(ctx, userID, sessionID, limit)
		if err != nil {
			lastErr = err
			c.logger.Warn("logs fetch attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		return records, nil
	}
	return nil, fmt.Errorf("logs fetch failed after %d attempts: %w", c.retryCount, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, userID, sessionID string, limit int) ([]Record, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse logs URL: %w", err)
	}
	q := u.Query()
	q.Set("user_id", userID)
	q.Set("session_id", sessionID)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("logs endpoint returned status %d: %s", resp.StatusCode, payload)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode logs response: %w", err)
	}
	return records, nil
}

// Reader hands out one Stream per (user_id, session_id). Streams are
// never shared across sessions and the reader holds no process-global
// cursor.
type Reader struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.Mutex
	streams map[streamKey]*Stream
}

type streamKey struct {
	userID    string
	sessionID string
}

// NewReader creates a telemetry reader over the given fetcher.
func NewReader(fetcher Fetcher, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		fetcher: fetcher,
		logger:  logger.Named("telemetry"),
		streams: make(map[streamKey]*Stream),
	}
}

// Track returns the session's stream, creating it with the given init
// policy on first use. The policy is fixed at creation; later Track
// calls for the same session return the existing stream unchanged.
func (r *Reader) Track(userID, sessionID string, policy InitPolicy) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := streamKey{userID: userID, sessionID: sessionID}
	if s, ok := r.streams[key]; ok {
		return s
	}
	s := &Stream{
		fetcher:   r.fetcher,
		userID:    userID,
		sessionID: sessionID,
		policy:    policy,
	}
	r.streams[key] = s
	return s
}

// Stream is one session's incremental view of the backend log. The
// cursor is monotonic: a fetch returns records strictly after it, then
// advances it past the newest record returned.
type Stream struct {
	fetcher   Fetcher
	userID    string
	sessionID string
	policy    InitPolicy

	primed bool
	seen   int
}

// Fetch returns up to limit records created since the previous fetch.
func (s *Stream) Fetch(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	all, err := s.fetcher.FetchLogs(ctx, s.userID, s.sessionID, s.seen+limit)
	if err != nil {
		return nil, err
	}

	if !s.primed {
		s.primed = true
		if s.policy == SkipExisting {
			s.seen = len(all)
			return nil, nil
		}
	}

	if s.seen >= len(all) {
		return nil, nil
	}
	fresh := all[s.seen:]
	if len(fresh) > limit {
		fresh = fresh[:limit]
	}
	s.seen += len(fresh)
	return fresh, nil
}
