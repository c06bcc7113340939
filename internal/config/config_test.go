package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]any)}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestDefaults(t *testing.T) {
	t.Setenv("UNSTUCK_OPENAI_API_KEY", "test-key")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model = %q, want gpt-4o", cfg.LLM.Model)
	}
	if cfg.LLM.TimeoutSeconds != 60 {
		t.Errorf("LLM.TimeoutSeconds = %d, want 60", cfg.LLM.TimeoutSeconds)
	}
	if cfg.LLM.MaxRetries != 0 {
		t.Errorf("LLM.MaxRetries = %d, want 0", cfg.LLM.MaxRetries)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestBackendValues(t *testing.T) {
	t.Setenv("UNSTUCK_OPENAI_API_KEY", "test-key")

	b := newMapBackend()
	b.SetInt("server.port", 5600)
	b.SetString("llm.model", "gpt-4o-mini")
	b.SetString("storage.data_dir", "/tmp/unstuck-test")
	b.SetInt("llm.max_retries", 2)

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5600 {
		t.Errorf("Server.Port = %d, want 5600", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Storage.DataDir != "/tmp/unstuck-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Errorf("LLM.MaxRetries = %d, want 2", cfg.LLM.MaxRetries)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("UNSTUCK_OPENAI_API_KEY", "env-key")
	t.Setenv("UNSTUCK_SERVER_PORT", "7000")
	t.Setenv("UNSTUCK_LLM_MODEL", "gpt-5")

	b := newMapBackend()
	b.SetInt("server.port", 5600)
	b.SetString("llm.model", "gpt-4o-mini")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want env override 7000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Errorf("LLM.Model = %q, want env override gpt-5", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("UNSTUCK_OPENAI_API_KEY", "")

	_, err := loadWith(newMapBackend())
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q, want it to mention missing required config", err)
	}
}

func TestShowAll_OmitsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "super-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "llm.api_key" {
			t.Error("ShowAll exposes the API key")
		}
		if info.Value == "super-secret" {
			t.Errorf("ShowAll leaks secret via key %s", info.Key)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) == 0 {
		t.Fatal("no valid keys")
	}
	for _, k := range keys {
		if k == "llm.api_key" {
			t.Error("secret key listed as settable")
		}
	}
}
