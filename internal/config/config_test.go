package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")

	path := writeConfig(t, `{
		"server": {"port": 3210, "log_level": "debug"},
		"providers": [
			{"id": "main", "type": "anthropic", "api_key": "${TEST_API_KEY}"}
		],
		"agents": {"model": "${TEST_MODEL:claude-sonnet-4-20250514}", "max_tokens": 4096},
		"routing": {
			"default": "main",
			"bindings": {"coder": "main"},
			"fallbacks": {"coordinator": ["main"]}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3210 {
		t.Errorf("got port %d, want 3210", cfg.Server.Port)
	}
	if cfg.Providers[0].APIKey != "sk-from-env" {
		t.Errorf("got api key %q, want value from environment", cfg.Providers[0].APIKey)
	}
	if cfg.Agents.Model != "claude-sonnet-4-20250514" {
		t.Errorf("got model %q, want fallback default", cfg.Agents.Model)
	}
	if cfg.Routing.Bindings["coder"] != "main" {
		t.Errorf("got binding %q, want main", cfg.Routing.Bindings["coder"])
	}
	if len(cfg.Routing.Fallbacks["coordinator"]) != 1 {
		t.Errorf("got fallbacks %v, want one entry", cfg.Routing.Fallbacks["coordinator"])
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("TEST_MODEL", "claude-3-5-haiku-20241022")

	path := writeConfig(t, `{"agents": {"model": "${TEST_MODEL:claude-sonnet-4-20250514}"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("got model %q, want environment value", cfg.Agents.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
