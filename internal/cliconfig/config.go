package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultServiceURL is the default endpoint for the ingestion service.
const DefaultServiceURL = "https://api.datapost.io"

// Sink names accepted by the CLI.
const (
	SinkLog      = "log"
	SinkJSONL    = "jsonl"
	SinkHTTP     = "http"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Overflow policy names accepted by the CLI.
const (
	OverflowBlock      = "block"
	OverflowDropNewest = "drop-newest"
	OverflowDropOldest = "drop-oldest"
)

// Config holds CLI configuration for datapost.
type Config struct {
	// Input is the JSON Lines source: a file path, or "-" for stdin.
	Input string

	// Follow keeps reading the input file as it grows.
	Follow bool

	// FromStart ignores any persisted offset and reads from the beginning.
	FromStart bool

	// StateDir is where the follow-mode read offset is persisted.
	StateDir string

	// Stream tuning.
	BatchSize  int
	MaxWait    time.Duration
	Workers    int
	PendingCap int
	Overflow   string

	// Sink selection and settings.
	Sink        string
	ServiceURL  string
	APIKey      string
	SourceID    string
	HTTPTimeout time.Duration
	KafkaBroker string
	KafkaTopic  string
	PostgresDSN string
	PGTable     string
	OutPath     string

	// RetryAttempts wraps the sink with retries when greater than 1.
	RetryAttempts int

	// MetricsAddr enables the Prometheus listener when non-empty.
	MetricsAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Input:       "-",
		BatchSize:   10,
		MaxWait:     5 * time.Second,
		Workers:     4,
		Overflow:    OverflowBlock,
		Sink:        SinkLog,
		ServiceURL:  DefaultServiceURL,
		HTTPTimeout: 15 * time.Second,
		APIKey:      os.Getenv("DATAPOST_API_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if c.Follow && c.Input == "-" {
		return fmt.Errorf("follow mode requires a file input")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	switch c.Overflow {
	case OverflowBlock, OverflowDropNewest, OverflowDropOldest:
	default:
		return fmt.Errorf("unknown overflow policy %q", c.Overflow)
	}

	switch c.Sink {
	case SinkLog, SinkJSONL:
	case SinkHTTP:
		if c.APIKey == "" {
			return fmt.Errorf("api-key is required for the http sink")
		}
		if c.SourceID == "" {
			return fmt.Errorf("source-id is required for the http sink")
		}
	case SinkKafka:
		if c.KafkaBroker == "" || c.KafkaTopic == "" {
			return fmt.Errorf("kafka-broker and kafka-topic are required for the kafka sink")
		}
	case SinkPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}

	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	// Ensure no trailing slash
	if len(c.ServiceURL) > 0 && c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination if valid.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return
	}
	*dst = b
}
