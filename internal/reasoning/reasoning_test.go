package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"agentprobe/internal/persona"
)

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}, nil); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintln(w, `{"choices":[{"message":{"content":"  six months  "}}]}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "usr"},
	}, Params{MaxTokens: 100, Temperature: 0.4})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "six months" {
		t.Errorf("Complete = %q, want trimmed %q", got, "six months")
	}
	if gotReq.Model != "gpt-4o" || gotReq.MaxTokens != 100 {
		t.Errorf("request not forwarded: %+v", gotReq)
	}
}

func TestOpenAIClientRetriesRateLimit(t *testing.T) {
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintln(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "ok" || attempt != 2 {
		t.Errorf("got %q after %d attempts", got, attempt)
	}
}

func TestOpenAIClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":{"message":"model overloaded"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected API error to surface, got %v", err)
	}
}

func TestDriverBuildsPersonaPrompt(t *testing.T) {
	stub := NewScriptedReasoner("I make about $120k a year.")
	driver := NewDriver(stub, zap.NewNop())

	reply, err := driver.GenerateReply(context.Background(), persona.Default(),
		"What is your annual income?",
		[]TranscriptEntry{
			{Role: "assistant", Content: "why are you buying"},
			{Role: "user", Content: "for stability"},
		})
	if err != nil {
		t.Fatalf("GenerateReply failed: %v", err)
	}
	if reply != "I make about $120k a year." {
		t.Errorf("unexpected reply %q", reply)
	}

	if stub.CallCount() != 1 {
		t.Fatalf("expected 1 reasoner call, got %d", stub.CallCount())
	}
	msgs := stub.Calls[0]
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected message shape: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "annual_income_usd: 120000") {
		t.Error("system prompt missing persona facts")
	}
	if !strings.Contains(msgs[1].Content, "why are you buying") {
		t.Error("user prompt missing transcript")
	}
	if !strings.Contains(msgs[1].Content, "What is your annual income?") {
		t.Error("user prompt missing latest agent message")
	}
}

func TestScriptedReasonerRepeatsLastResponse(t *testing.T) {
	stub := NewScriptedReasoner("a", "b")
	ctx := context.Background()
	for _, want := range []string{"a", "b", "b"} {
		got, err := stub.Complete(ctx, nil, Params{})
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got != want {
			t.Errorf("Complete = %q, want %q", got, want)
		}
	}
}
