package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Input     string `toml:"input"`
	Follow    *bool  `toml:"follow"`
	FromStart *bool  `toml:"from_start"`
	StateDir  string `toml:"state_dir"`

	BatchSize  int    `toml:"batch_size"`
	MaxWait    string `toml:"max_wait"`
	Workers    int    `toml:"workers"`
	PendingCap int    `toml:"pending_cap"`
	Overflow   string `toml:"overflow"`

	Sink        string `toml:"sink"`
	ServiceURL  string `toml:"service_url"`
	APIKey      string `toml:"api_key"`
	SourceID    string `toml:"source_id"`
	HTTPTimeout string `toml:"http_timeout"`
	KafkaBroker string `toml:"kafka_broker"`
	KafkaTopic  string `toml:"kafka_topic"`
	PostgresDSN string `toml:"pg_dsn"`
	PGTable     string `toml:"pg_table"`
	OutPath     string `toml:"out_path"`

	RetryAttempts int `toml:"retry_attempts"`

	MetricsAddr string `toml:"metrics_addr"`
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.datapost/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".datapost", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", fc.Input, &cfg.Input)
	s.setBool("follow", fc.Follow, &cfg.Follow)
	s.setBool("from-start", fc.FromStart, &cfg.FromStart)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	if err := s.setDuration("max-wait", fc.MaxWait, &cfg.MaxWait); err != nil {
		return err
	}
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("pending-cap", fc.PendingCap, &cfg.PendingCap)
	s.setString("overflow", fc.Overflow, &cfg.Overflow)

	s.setString("sink", fc.Sink, &cfg.Sink)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("source-id", fc.SourceID, &cfg.SourceID)
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	s.setString("kafka-broker", fc.KafkaBroker, &cfg.KafkaBroker)
	s.setString("kafka-topic", fc.KafkaTopic, &cfg.KafkaTopic)
	s.setString("pg-dsn", fc.PostgresDSN, &cfg.PostgresDSN)
	s.setString("pg-table", fc.PGTable, &cfg.PGTable)
	s.setString("out", fc.OutPath, &cfg.OutPath)

	s.setInt("retry-attempts", fc.RetryAttempts, &cfg.RetryAttempts)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	return nil
}
