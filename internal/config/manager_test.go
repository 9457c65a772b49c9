package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"telegram": {"token": "t", "poll_timeout": "15s"},
		"logging": {"level": "DEBUG", "console": true, "file": {"enabled": false, "path": ""}},
		"storage": {"path": "./feedbot.db"},
		"feeding": {"max_active": 5, "min_lead": "2m", "max_horizon": "72h"},
		"broadcast": {"workers": 2, "rate_per_sec": 20}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "t" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Feeding.MaxActive != 5 || cfg.Feeding.MinLead != "2m" {
		t.Fatalf("feeding = %+v", cfg.Feeding)
	}
	if cfg.Cleanup != nil {
		t.Fatal("cleanup should be nil when omitted")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
telegram:
  token: t
logging:
  level: INFO
  console: true
  file:
    enabled: true
    path: ./feedbot.log
storage:
  path: ./feedbot.db
feeding:
  timezone: Europe/Moscow
broadcast: {}
cleanup:
  enabled: true
  schedule: "@daily"
  retention: 720h
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Feeding.Timezone != "Europe/Moscow" {
		t.Fatalf("timezone = %q", cfg.Feeding.Timezone)
	}
	if cfg.Cleanup == nil || !cfg.Cleanup.Enabled || cfg.Cleanup.Retention != "720h" {
		t.Fatalf("cleanup = %+v", cfg.Cleanup)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram": {"token": "t", "chat_id": 1}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram": {"token": "t"}}{"extra": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 5m "); err != nil || d.Minutes() != 5 {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-5m"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for junk duration")
	}
}
