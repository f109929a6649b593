package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

gmail:
  credentials_file: "creds.json"
  default_query: "newer_than:6m"

storage:
  sqlite_path: "./test-data/mail.db"

ai:
  provider: "openai"
  model: "gpt-4o-mini"
  batch_size: 5

scoring:
  target_industries: ["SaaS", "Fintech"]
  dormant_thread:
    min_dormancy_days: 21

engagement:
  your_name: "Sam"
  max_outreach_per_day: 5
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Test server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Test gmail config, partial override keeps remaining defaults
	assert.Equal(t, "creds.json", cfg.Gmail.CredentialsFile)
	assert.Equal(t, "token.json", cfg.Gmail.TokenFile)
	assert.Equal(t, "newer_than:6m", cfg.Gmail.DefaultQuery)

	// Test storage config
	assert.Equal(t, "./test-data/mail.db", cfg.Storage.SQLitePath)

	// Test AI config
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 5, cfg.AI.BatchSize)
	assert.Equal(t, 2000, cfg.AI.MaxBodyChars)

	// Test scoring config
	assert.Equal(t, []string{"SaaS", "Fintech"}, cfg.Scoring.TargetIndustries)
	assert.Equal(t, 21, cfg.Scoring.DormantThread.MinDormancyDays)
	assert.True(t, cfg.Scoring.DormantThread.RequireHumanSender)

	// Test engagement config
	assert.Equal(t, "Sam", cfg.Engagement.YourName)
	assert.Equal(t, 5, cfg.Engagement.MaxOutreachPerDay)
}

func TestLoadDefaults(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
gmail:
  default_query: "in:inbox"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "mistral-nemo", cfg.AI.Model)
	assert.Equal(t, "http://localhost:11434", cfg.AI.OllamaBaseURL)
	assert.Equal(t, 10, cfg.AI.BatchSize)
	assert.Equal(t, 60, cfg.AI.TimeoutSeconds)
	assert.Equal(t, "gemsieve.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 14, cfg.Scoring.DormantThread.MinDormancyDays)
	assert.True(t, cfg.Scoring.DormantThread.RequireHumanSender)
	assert.True(t, cfg.EntityExtraction.ExtractMonetary)
	assert.Equal(t, 20, cfg.Engagement.MaxOutreachPerDay)
	assert.Equal(t, []string{"audit", "mirror", "revival", "partner"}, cfg.Engagement.PreferredStrategies)
	assert.Equal(t, "known_entities.yaml", cfg.KnownEntitiesFile)
	assert.Equal(t, 100, cfg.Scoring.RelationshipCaps.InboundProspect)
	assert.Equal(t, 5, cfg.Scoring.RelationshipCaps.Institutional)
}

func TestLoadFromEnv(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
ai:
  model: "llama3"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set environment variables
	os.Setenv("DATABASE_URL", "sqlite:///tmp/env.db")
	os.Setenv("ollama_host", "http://gpu-box:11434")
	os.Setenv("model_name", "qwen2.5")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("ollama_host")
		os.Unsetenv("model_name")
		os.Unsetenv("OPENAI_API_KEY")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "sqlite:///tmp/env.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "http://gpu-box:11434", cfg.AI.OllamaBaseURL)
	assert.Equal(t, "qwen2.5", cfg.AI.Model)
	assert.Equal(t, "sk-test", cfg.AI.OpenAIAPIKey)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	cfg := AIConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.Timeout().Nanoseconds()))
}

func TestModelSpec(t *testing.T) {
	cfg := AIConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"}
	assert.Equal(t, "anthropic:claude-sonnet-4-5", cfg.ModelSpec())
}

func TestRelationshipCapFor(t *testing.T) {
	caps := Default().Scoring.RelationshipCaps

	assert.Equal(t, 100, caps.CapFor("inbound_prospect"))
	assert.Equal(t, 25, caps.CapFor("my_vendor"))
	assert.Equal(t, 5, caps.CapFor("institutional"))
	assert.Equal(t, 60, caps.CapFor("unknown"))
	// Unlisted types fall back to the unknown cap
	assert.Equal(t, 60, caps.CapFor("something_new"))
}
