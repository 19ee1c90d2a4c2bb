package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Probe.UserID = "u-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadGeneratesUserID(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Probe.UserID)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")
	body := `
chat:
  api_url: "https://agent.example.com/chat"
  timeout_sec: 10
  retry_count: 3
probe:
  max_turns: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://agent.example.com/chat", cfg.Chat.APIURL)
	assert.Equal(t, 10, cfg.Chat.TimeoutSec)
	assert.Equal(t, 3, cfg.Chat.RetryCount)
	assert.Equal(t, 5, cfg.Probe.MaxTurns)
	// Untouched fields keep defaults.
	assert.Equal(t, 50, cfg.Telemetry.LogsLimit)
	assert.Equal(t, "gpt-4o", cfg.Reasoner.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("chat and telemetry URLs", func(t *testing.T) {
		t.Setenv("CHAT_API_URL", "https://stage.example.com/chat")
		t.Setenv("LOGS_API_URL", "https://stage.example.com/logs")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "https://stage.example.com/chat", cfg.Chat.APIURL)
		assert.Equal(t, "https://stage.example.com/logs", cfg.Telemetry.APIURL)
	})

	t.Run("GEMINI_API_KEY wins over GOOGLE_API_KEY", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "google-key")
		t.Setenv("GEMINI_API_KEY", "gemini-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini-key", cfg.Embedding.APIKey)
	})

	t.Run("numeric override ignores garbage", func(t *testing.T) {
		t.Setenv("MAX_TURNS", "not-a-number")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 40, cfg.Probe.MaxTurns)
	})
}

func TestValidateRejectsBadBudgets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Probe.MaxTurns = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Probe.DedupThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Chat.RetryCount = 0
	assert.Error(t, cfg.Validate())
}
