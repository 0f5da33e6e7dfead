package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceURL != DefaultServiceURL {
		t.Errorf("ServiceURL = %q, want %q", cfg.ServiceURL, DefaultServiceURL)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.MaxWait != 5*time.Second {
		t.Errorf("MaxWait = %v, want 5s", cfg.MaxWait)
	}
	if cfg.Sink != SinkLog {
		t.Errorf("Sink = %q, want log", cfg.Sink)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"missing input", func(c *Config) { c.Input = "" }, true},
		{"follow on stdin", func(c *Config) { c.Follow = true }, true},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero max wait", func(c *Config) { c.MaxWait = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"unknown overflow", func(c *Config) { c.Overflow = "spill" }, true},
		{"unknown sink", func(c *Config) { c.Sink = "carrier-pigeon" }, true},
		{"http sink without key", func(c *Config) { c.Sink = SinkHTTP; c.APIKey = ""; c.SourceID = "s" }, true},
		{"http sink without source", func(c *Config) { c.Sink = SinkHTTP; c.APIKey = "k"; c.SourceID = "" }, true},
		{"http sink complete", func(c *Config) { c.Sink = SinkHTTP; c.APIKey = "k"; c.SourceID = "s" }, false},
		{"kafka sink without broker", func(c *Config) { c.Sink = SinkKafka; c.KafkaTopic = "t" }, true},
		{"kafka sink complete", func(c *Config) { c.Sink = SinkKafka; c.KafkaBroker = "b:9092"; c.KafkaTopic = "t" }, false},
		{"postgres sink without dsn", func(c *Config) { c.Sink = SinkPostgres }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TrimsTrailingSlash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceURL = "https://api.example.com/"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.ServiceURL != "https://api.example.com" {
		t.Errorf("ServiceURL = %q", cfg.ServiceURL)
	}
}

func TestApplyFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
input = "data.jsonl"
batch_size = 50
max_wait = "2s"
workers = 8
sink = "kafka"
kafka_broker = "localhost:9092"
kafka_topic = "telemetry"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig error: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		t.Fatalf("ApplyFileConfig error: %v", err)
	}

	if cfg.Input != "data.jsonl" {
		t.Errorf("Input = %q", cfg.Input)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.MaxWait != 2*time.Second {
		t.Errorf("MaxWait = %v", cfg.MaxWait)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.Sink != SinkKafka || cfg.KafkaBroker != "localhost:9092" {
		t.Errorf("sink config = %q %q", cfg.Sink, cfg.KafkaBroker)
	}
}

func TestApplyFileConfig_RespectsChangedFlags(t *testing.T) {
	fc := FileConfig{BatchSize: 50, Sink: "kafka"}
	cfg := DefaultConfig()
	cfg.BatchSize = 25

	changed := map[string]bool{"batch-size": true}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig error: %v", err)
	}

	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want flag value 25 preserved", cfg.BatchSize)
	}
	if cfg.Sink != "kafka" {
		t.Errorf("Sink = %q, want file value applied", cfg.Sink)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	fc := FileConfig{MaxWait: "not-a-duration"}
	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("DATAPOST_BATCH_SIZE", "77")
	t.Setenv("DATAPOST_MAX_WAIT", "3s")
	t.Setenv("DATAPOST_SINK", "jsonl")
	t.Setenv("DATAPOST_FOLLOW", "true")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig error: %v", err)
	}

	if cfg.BatchSize != 77 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.MaxWait != 3*time.Second {
		t.Errorf("MaxWait = %v", cfg.MaxWait)
	}
	if cfg.Sink != SinkJSONL {
		t.Errorf("Sink = %q", cfg.Sink)
	}
	if !cfg.Follow {
		t.Error("Follow = false, want true")
	}
}
