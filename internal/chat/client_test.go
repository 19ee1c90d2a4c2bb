package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIURL:     url,
		UserID:     "user-1",
		Timeout:    5 * time.Second,
		RetryCount: retries,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintln(w, frame)
		}
	}
}

func TestSendReconstructsDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","delta":"Hi "}`,
		`data: {"type":"content","delta":"there"}`,
		`data: {"type":"done"}`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "Hi there" {
		t.Errorf("AssistantText = %q, want %q", result.AssistantText, "Hi there")
	}
	// Every data: line counts, including the terminal frame.
	if result.EventCount != 3 {
		t.Errorf("EventCount = %d, want 3", result.EventCount)
	}
}

func TestSendCountsBlankAndSentinelFrames(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","delta":"ok"}`,
		`data:`,
		`: keep-alive comment`,
		`data: [DONE]`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "ok" {
		t.Errorf("AssistantText = %q, want %q", result.AssistantText, "ok")
	}
	// Comment line is ignored entirely; blank payload and [DONE] count.
	if result.EventCount != 3 {
		t.Errorf("EventCount = %d, want 3", result.EventCount)
	}
}

func TestSendDiscardsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","delta":"good"}`,
		`data: {not json at all`,
		`data: {"type":"content","delta":" still good"}`,
		`data: {"type":"done"}`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "good still good" {
		t.Errorf("AssistantText = %q", result.AssistantText)
	}
}

func TestSendStopsAtDoneRecord(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","delta":"before"}`,
		`data: {"type":"done"}`,
		`data: {"type":"content","delta":" after"}`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "before" {
		t.Errorf("content after done frame leaked in: %q", result.AssistantText)
	}
}

func TestSendContentTextFallbackAndOtherTypes(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","text":"fallback"}`,
		`data: {"type":"status","delta":" extra"}`,
		`data: {"type":"status"}`,
		`data: {"type":"done"}`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "fallback extra" {
		t.Errorf("AssistantText = %q, want %q", result.AssistantText, "fallback extra")
	}
}

func TestSessionIDLatch(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`data: {"type":"content","delta":"a","session_id":"sess-42"}`,
		`data: {"type":"content","delta":"b","session_id":""}`,
		`data: {"type":"done"}`,
	))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 1).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// A later empty session_id must not erase the known id.
	if result.SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want %q", result.SessionID, "sess-42")
	}
}

func TestSendRetriesSurfaceLastError(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		http.Error(w, fmt.Sprintf("failure on attempt %d", attempt), http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Send(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempt != 3 {
		t.Errorf("server saw %d attempts, want 3", attempt)
	}

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if terr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", terr.Attempts)
	}
	// The last attempt's error must surface, not a generic one.
	if !strings.Contains(err.Error(), "failure on attempt 3") {
		t.Errorf("error does not carry the last attempt's failure: %v", err)
	}
}

func TestSendRecoversOnLaterAttempt(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, `data: {"type":"content","delta":"recovered"}`)
		fmt.Fprintln(w, `data: {"type":"done"}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 2).Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.AssistantText != "recovered" {
		t.Errorf("AssistantText = %q", result.AssistantText)
	}
}

func TestSendIncludesSessionIDInRequest(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		fmt.Fprintln(w, `data: {"type":"done"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1)
	if _, err := client.Send(context.Background(), "hi", "sess-9"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	for _, want := range []string{`"userId":"user-1"`, `"stream":true`, `"session_id":"sess-9"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %s: %s", want, gotBody)
		}
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{UserID: "u", RetryCount: 1}, nil); err == nil {
		t.Error("expected error for missing API URL")
	}
	if _, err := NewClient(Config{APIURL: "http://x", RetryCount: 1}, nil); err == nil {
		t.Error("expected error for missing user id")
	}
	if _, err := NewClient(Config{APIURL: "http://x", UserID: "u"}, nil); err == nil {
		t.Error("expected error for zero retry count")
	}
}
