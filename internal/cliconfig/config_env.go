package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (DATAPOST_*).
// It respects flags that have been explicitly set (changed map).
// Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", os.Getenv("DATAPOST_INPUT"), &cfg.Input)
	s.setString("state-dir", os.Getenv("DATAPOST_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("batch-size", os.Getenv("DATAPOST_BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setDuration("max-wait", os.Getenv("DATAPOST_MAX_WAIT"), &cfg.MaxWait); err != nil {
		return err
	}
	if err := s.setIntFromString("workers", os.Getenv("DATAPOST_WORKERS"), &cfg.Workers); err != nil {
		return err
	}
	if err := s.setIntFromString("pending-cap", os.Getenv("DATAPOST_PENDING_CAP"), &cfg.PendingCap); err != nil {
		return err
	}
	s.setString("overflow", os.Getenv("DATAPOST_OVERFLOW"), &cfg.Overflow)

	s.setString("sink", os.Getenv("DATAPOST_SINK"), &cfg.Sink)
	s.setString("service-url", os.Getenv("DATAPOST_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("api-key", os.Getenv("DATAPOST_API_KEY"), &cfg.APIKey)
	s.setString("source-id", os.Getenv("DATAPOST_SOURCE_ID"), &cfg.SourceID)
	if err := s.setDuration("http-timeout", os.Getenv("DATAPOST_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	s.setString("kafka-broker", os.Getenv("DATAPOST_KAFKA_BROKER"), &cfg.KafkaBroker)
	s.setString("kafka-topic", os.Getenv("DATAPOST_KAFKA_TOPIC"), &cfg.KafkaTopic)
	s.setString("pg-dsn", os.Getenv("DATAPOST_PG_DSN"), &cfg.PostgresDSN)
	s.setString("pg-table", os.Getenv("DATAPOST_PG_TABLE"), &cfg.PGTable)
	s.setString("out", os.Getenv("DATAPOST_OUT"), &cfg.OutPath)

	if err := s.setIntFromString("retry-attempts", os.Getenv("DATAPOST_RETRY_ATTEMPTS"), &cfg.RetryAttempts); err != nil {
		return err
	}
	s.setString("metrics-addr", os.Getenv("DATAPOST_METRICS_ADDR"), &cfg.MetricsAddr)

	s.setBoolFromString("follow", os.Getenv("DATAPOST_FOLLOW"), &cfg.Follow)
	s.setBoolFromString("from-start", os.Getenv("DATAPOST_FROM_START"), &cfg.FromStart)

	return nil
}
