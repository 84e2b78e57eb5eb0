package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "solis:\n  station_id: \"1298491919448631809\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Solis.BaseURL != "https://www.soliscloud.com:13333" {
		t.Errorf("BaseURL = %q", cfg.Solis.BaseURL)
	}
	if cfg.Reporter.Interval != time.Minute {
		t.Errorf("Interval = %s, want 1m", cfg.Reporter.Interval)
	}
	if !cfg.Sensors.Battery || !cfg.Sensors.Solar || !cfg.Sensors.Net || !cfg.Sensors.Load {
		t.Errorf("Sensors = %+v, want all enabled", cfg.Sensors)
	}
	if cfg.Solis.StationID != "1298491919448631809" {
		t.Errorf("StationID = %q", cfg.Solis.StationID)
	}
	if cfg.API.Port != 8046 {
		t.Errorf("API.Port = %d, want 8046", cfg.API.Port)
	}
}

func TestLoad_SensorToggles(t *testing.T) {
	path := writeConfig(t, "sensors:\n  solar: false\n  load: false\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Sensors.Battery || cfg.Sensors.Solar || !cfg.Sensors.Net || cfg.Sensors.Load {
		t.Errorf("Sensors = %+v", cfg.Sensors)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SOLIS_KEY_ID", "env-key")
	t.Setenv("SOLIS_KEY_SECRET", "env-secret")
	path := writeConfig(t, "solis:\n  key_id: file-key\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Solis.KeyID != "env-key" {
		t.Errorf("KeyID = %q, want env-key", cfg.Solis.KeyID)
	}
	if cfg.Solis.KeySecret != "env-secret" {
		t.Errorf("KeySecret = %q, want env-secret", cfg.Solis.KeySecret)
	}
}

func TestLoad_InvalidInterval(t *testing.T) {
	path := writeConfig(t, "reporter:\n  interval: 0s\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for zero interval")
	}
}

func TestSolisConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SolisConfig
		wantErr bool
	}{
		{"complete", SolisConfig{KeyID: "k", KeySecret: "s", StationID: "1"}, false},
		{"missing station", SolisConfig{KeyID: "k", KeySecret: "s"}, true},
		{"missing secret", SolisConfig{KeyID: "k", StationID: "1"}, true},
		{"blank key", SolisConfig{KeyID: "  ", KeySecret: "s", StationID: "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("Validate() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}
