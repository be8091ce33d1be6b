package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("hub:\n  address: 192.168.1.2\n  token: abc\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Hub.Timeout.Duration() != 10*time.Second {
		t.Errorf("Hub.Timeout = %v, want 10s", cfg.Hub.Timeout.Duration())
	}
	if cfg.Hub.RateLimitRPS != 10 {
		t.Errorf("Hub.RateLimitRPS = %v, want 10", cfg.Hub.RateLimitRPS)
	}
	if cfg.Log.GetLevel() != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.GetLevel())
	}
	if !cfg.Ledger.IsEnabled() {
		t.Error("ledger should be enabled by default")
	}
	if cfg.MQTT.Enabled {
		t.Error("mqtt should be disabled by default")
	}
	if cfg.MQTT.CommandTopic != "lightcmd/command" {
		t.Errorf("MQTT.CommandTopic = %q", cfg.MQTT.CommandTopic)
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout.Duration())
	}
}

func TestParse_Full(t *testing.T) {
	data := `
hub:
  address: bridge.local
  token: secret
  timeout: 3s
  rate_limit_rps: 2.5
zones:
  "guest room": Guest
  guest: Guest
colors:
  pink: "#ffc0cb"
log:
  level: DEBUG
  file:
    path: /tmp/lightcmd.log
ledger:
  enabled: false
  retention_days: 7
mqtt:
  enabled: true
  broker: tcp://localhost:1883
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Hub.Timeout.Duration() != 3*time.Second {
		t.Errorf("Hub.Timeout = %v", cfg.Hub.Timeout.Duration())
	}
	if cfg.Hub.RateLimitRPS != 2.5 {
		t.Errorf("Hub.RateLimitRPS = %v", cfg.Hub.RateLimitRPS)
	}
	if cfg.Zones["guest room"] != "Guest" || cfg.Zones["guest"] != "Guest" {
		t.Errorf("Zones = %v", cfg.Zones)
	}
	if cfg.Colors["pink"] != "#ffc0cb" {
		t.Errorf("Colors = %v", cfg.Colors)
	}
	if cfg.Log.GetLevel() != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.GetLevel())
	}
	if cfg.Log.File.MaxSizeMB != 10 || cfg.Log.File.MaxBackups != 3 {
		t.Errorf("Log.File = %+v", cfg.Log.File)
	}
	if cfg.Ledger.IsEnabled() {
		t.Error("ledger should be disabled")
	}
	if cfg.Ledger.RetentionDays != 7 {
		t.Errorf("Ledger.RetentionDays = %d", cfg.Ledger.RetentionDays)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("LIGHTCMD_TEST_TOKEN", "from-env")

	cfg, err := Parse([]byte("hub:\n  address: ${LIGHTCMD_TEST_ADDR:10.0.0.1}\n  token: ${LIGHTCMD_TEST_TOKEN}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Hub.Address != "10.0.0.1" {
		t.Errorf("Hub.Address = %q, want default", cfg.Hub.Address)
	}
	if cfg.Hub.Token != "from-env" {
		t.Errorf("Hub.Token = %q, want from-env", cfg.Hub.Token)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	if _, err := Parse([]byte("hub:\n  timeout: soon\n")); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadHub(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	if err := os.WriteFile(valid, []byte("hub:\n  address: bridge\n  token: t\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	hub, err := LoadHub(valid)
	if err != nil {
		t.Fatalf("LoadHub: %v", err)
	}
	if hub.Address != "bridge" || hub.Token != "t" {
		t.Errorf("hub = %+v", hub)
	}

	missingToken := filepath.Join(dir, "missing.yaml")
	if err := os.WriteFile(missingToken, []byte("hub:\n  address: bridge\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHub(missingToken); !errors.Is(err, ErrInvalidHub) {
		t.Errorf("LoadHub(missing token) error = %v, want ErrInvalidHub", err)
	}

	if _, err := LoadHub(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadHub(absent) should fail")
	}
}
