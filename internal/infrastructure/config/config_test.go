package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "gateway:\n  name: test-gateway\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Gateway.Name != "test-gateway" {
		t.Errorf("gateway name = %q", cfg.Gateway.Name)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Adafruit.Broker.Host != "io.adafruit.com" || !cfg.Adafruit.Broker.TLS {
		t.Errorf("unexpected default broker: %+v", cfg.Adafruit.Broker)
	}
	if cfg.WebSocket.PushInterval != 1 {
		t.Errorf("default push interval = %d, want 1", cfg.WebSocket.PushInterval)
	}
	if cfg.MongoDB.Database != "yolohome" {
		t.Errorf("default database = %q", cfg.MongoDB.Database)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
adafruit:
  broker:
    host: broker.local
    port: 1883
    tls: false
  qos: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Adafruit.Broker.Host != "broker.local" || cfg.Adafruit.Broker.TLS {
		t.Errorf("unexpected broker: %+v", cfg.Adafruit.Broker)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MONGODB_URI", "mongodb://db.internal:27017")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, "gateway:\n  name: env-test\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want env override 8080", cfg.Server.Port)
	}
	if cfg.MongoDB.URI != "mongodb://db.internal:27017" {
		t.Errorf("mongodb uri = %q", cfg.MongoDB.URI)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(_ *Config) {}},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "zero push interval", mutate: func(c *Config) { c.WebSocket.PushInterval = 0 }, wantErr: true},
		{name: "zero send buffer", mutate: func(c *Config) { c.WebSocket.SendBuffer = 0 }, wantErr: true},
		{name: "missing rest url", mutate: func(c *Config) { c.Adafruit.RESTURL = "" }, wantErr: true},
		{name: "missing broker host", mutate: func(c *Config) { c.Adafruit.Broker.Host = "" }, wantErr: true},
		{name: "bad qos", mutate: func(c *Config) { c.Adafruit.QoS = 3 }, wantErr: true},
		{name: "missing mongo uri", mutate: func(c *Config) { c.MongoDB.URI = "" }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "doorcam enabled without urls", mutate: func(c *Config) { c.DoorCam.Enabled = true }, wantErr: true},
		{name: "speech enabled without url", mutate: func(c *Config) { c.Speech.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
