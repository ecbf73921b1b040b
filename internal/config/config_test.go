package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_AppliesSpecDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8090 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("expected default provider anthropic, got %q", cfg.LLM.Provider)
	}
	if cfg.Agent.MaxToolIterations != 10 || cfg.Agent.MaxContextMessages != 50 {
		t.Fatalf("unexpected agent defaults: %+v", cfg.Agent)
	}
	if cfg.Agent.CompactionThreshold != 0.7 || cfg.Agent.KeepRecentMessages != 10 {
		t.Fatalf("unexpected compaction defaults: %+v", cfg.Agent)
	}
	if cfg.Session.IdleTimeout != 24*time.Hour || cfg.Session.CacheCapacity != 1000 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Approval.Timeout != 5*time.Minute {
		t.Fatalf("unexpected approval timeout default: %v", cfg.Approval.Timeout)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Fatalf("unexpected scheduler tick default: %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Storage.DSN == "" {
		t.Fatal("expected a non-empty default storage dsn")
	}
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("AGENTCORE_TEST_API_KEY", "secret-value")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
llm:
  provider: openai
  api_key: ${AGENTCORE_TEST_API_KEY}
  default_model: gpt-4o
agent:
  max_tool_iterations: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "secret-value" {
		t.Fatalf("expected env var expansion, got %q", cfg.LLM.APIKey)
	}
	if cfg.Agent.MaxToolIterations != 3 {
		t.Fatalf("expected explicit value to survive defaulting, got %d", cfg.Agent.MaxToolIterations)
	}
	// Untouched fields still pick up defaults.
	if cfg.Agent.MaxContextMessages != 50 {
		t.Fatalf("expected default max_context_messages, got %d", cfg.Agent.MaxContextMessages)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "not_a_real_field: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error decoding an unknown field")
	}
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "llm:\n  provider: anthropic\n---\nllm:\n  provider: openai\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a multi-document config file")
	}
}

func TestValidate_RejectsUnsupportedProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "llm:\n  provider: not-a-real-provider\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unsupported llm provider")
	}
}

func TestValidate_RejectsOversizedSchedulerTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "scheduler:\n  scheduler_tick: 5m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a scheduler tick above 30s")
	}
}

func TestValidate_RejectsOutOfRangeCompactionThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "agent:\n  compaction_threshold: 1.5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a compaction_threshold above 1")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected an error reading a missing config file")
	}
}
