package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/datapost-io/datapost/internal/cliconfig"
	"github.com/datapost-io/datapost/internal/metrics"
	"github.com/datapost-io/datapost/internal/tail"
	"github.com/datapost-io/datapost/pkg/log"
	"github.com/datapost-io/datapost/pkg/sink"
	"github.com/datapost-io/datapost/pkg/stream"
)

const helpBanner = `
 ██████████     █████████   ███████████   █████████   ███████████  ██████████
░░███░░░░███   ███░░░░░███ ░█░░░███░░░█  ███░░░░░███ ░░███░░░░░███░███░░░░░░█
 ░███   ░░███ ░███    ░███ ░   ░███  ░  ░███    ░███  ░███    ░███░███    █ ░
 ░███    ░███ ░███████████     ░███     ░███████████  ░██████████ ░██████
 ░███    ░███ ░███░░░░░███     ░███     ░███░░░░░███  ░███░░░░░░  ░███░░█
 ░███    ███  ░███    ░███     ░███     ░███    ░███  ░███        ░███ ░   █
 ██████████   █████   █████    █████    █████   █████ █████       ██████████
░░░░░░░░░░   ░░░░░   ░░░░░    ░░░░░    ░░░░░   ░░░░░ ░░░░░       ░░░░░░░░░░
`

const helpDescription = `
Stream JSON Lines records to a downstream sink with batching and backpressure.

Highlights:
  - Batches by size and age, delivers through a bounded worker pool.
  - Reads from a file or stdin; --follow tails a growing file with a
    persisted resume offset.
  - Sinks: log, jsonl, http (api.datapost.io), kafka, postgres.
  - Configure via file, env (DATAPOST_*), or flags.

Docs: https://docs.datapost.io/getting-started
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  tail -f events.jsonl | datapost --sink http --api-key <key> --source-id orders
  datapost --input events.jsonl --follow --sink kafka --kafka-broker localhost:9092 --kafka-topic events
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	cliLog := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "datapost",
		Short:   "Stream JSON Lines records to a downstream sink with batching and backpressure",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.datapost/config.toml), then apply flag overrides
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Apply environment variables (DATAPOST_*)
			// These override file config but are overridden by flags (checked via changed map)
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			// Validate and set derived defaults
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking API key)
			logCfg := cfg
			if len(logCfg.APIKey) > 0 {
				logCfg.APIKey = "*****"
			}
			cliLog.Info().Interface("config", logCfg).Msg("configuration")

			logger := log.Wrap(cliLog)

			return run(cmd.Context(), cfg, logger)
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.datapost/config.toml)")
	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "JSON Lines input: file path, or - for stdin")
	root.Flags().BoolVar(&cfg.Follow, "follow", cfg.Follow, "keep reading the input file as it grows")
	root.Flags().BoolVar(&cfg.FromStart, "from-start", cfg.FromStart, "ignore the persisted offset and read from the beginning")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the follow-mode resume offset")

	root.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "records per batch")
	root.Flags().DurationVar(&cfg.MaxWait, "max-wait", cfg.MaxWait, "maximum age of a partial batch before it is flushed")
	root.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent delivery workers")
	root.Flags().IntVar(&cfg.PendingCap, "pending-cap", cfg.PendingCap, "pending batch queue capacity (default 2x workers)")
	root.Flags().StringVar(&cfg.Overflow, "overflow", cfg.Overflow, "overflow policy: block, drop-newest, drop-oldest")

	root.Flags().StringVar(&cfg.Sink, "sink", cfg.Sink, "destination: log, jsonl, http, kafka, postgres")
	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, fmt.Sprintf("base service URL (defaults to %s; override only for internal testing)", cliconfig.DefaultServiceURL))
	if err := root.Flags().MarkHidden("service-url"); err != nil {
		cliLog.Info().Err(err).Msg("failed to hide service-url flag")
	}
	root.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key for the http sink")
	root.Flags().StringVar(&cfg.SourceID, "source-id", cfg.SourceID, "data source identifier for the http sink")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().StringVar(&cfg.KafkaBroker, "kafka-broker", cfg.KafkaBroker, "Kafka broker address")
	root.Flags().StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic")
	root.Flags().StringVar(&cfg.PostgresDSN, "pg-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	root.Flags().StringVar(&cfg.PGTable, "pg-table", cfg.PGTable, "PostgreSQL table (default records)")
	root.Flags().StringVar(&cfg.OutPath, "out", cfg.OutPath, "output path for the jsonl sink (default sink_<uuid>.jsonl)")

	root.Flags().IntVar(&cfg.RetryAttempts, "retry-attempts", cfg.RetryAttempts, "delivery attempts per batch (>1 enables retries)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty disables)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		cliLog.Error().Err(err).Msg("datapost")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	dst, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.RetryAttempts > 1 {
		dst = sink.NewRetrySink(dst, sink.RetryConfig{Attempts: uint(cfg.RetryAttempts)})
	}

	opts := []stream.Option{
		stream.WithBatchSize(cfg.BatchSize),
		stream.WithMaxWait(cfg.MaxWait),
		stream.WithWorkerConcurrency(cfg.Workers),
		stream.WithOverflowPolicy(overflowPolicy(cfg.Overflow)),
		stream.WithLogger(logger),
	}
	if cfg.PendingCap > 0 {
		opts = append(opts, stream.WithPendingCapacity(cfg.PendingCap))
	}
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		opts = append(opts, stream.WithEmitter(m))
		go m.Serve(ctx, cfg.MetricsAddr, logger)
	}

	s, err := stream.New(dst, opts...)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	readErr := readInput(ctx, cfg, logger, s)

	if err := s.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		logger.Warn("sink close", log.Err(err))
	}
	if readErr != nil && ctx.Err() == nil {
		return readErr
	}
	return nil
}

// readInput feeds records into the stream until the input is exhausted or
// the context is canceled.
func readInput(ctx context.Context, cfg cliconfig.Config, logger log.Logger, s *stream.Stream[json.RawMessage]) error {
	if cfg.Follow {
		f, err := tail.New(tail.Config{
			Path:      cfg.Input,
			StateDir:  cfg.StateDir,
			FromStart: cfg.FromStart,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		return f.Run(ctx, func(line []byte) error {
			record := make(json.RawMessage, len(line))
			copy(record, line)
			return s.Enqueue(record)
		})
	}

	var r io.Reader
	if cfg.Input == "-" {
		r = os.Stdin
	} else {
		file, err := os.Open(cfg.Input)
		if err != nil {
			return err
		}
		defer file.Close()
		r = file
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := s.Enqueue(json.RawMessage(line)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func buildSink(cfg cliconfig.Config, logger log.Logger) (sink.Sink[json.RawMessage], error) {
	switch cfg.Sink {
	case cliconfig.SinkLog:
		return sink.NewLogSink[json.RawMessage](logger), nil
	case cliconfig.SinkJSONL:
		return sink.NewJSONLSink[json.RawMessage](cfg.OutPath)
	case cliconfig.SinkHTTP:
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		return sink.NewHTTPSink[json.RawMessage](sink.HTTPConfig{
			ServiceURL: cfg.ServiceURL,
			APIKey:     cfg.APIKey,
			SourceID:   cfg.SourceID,
		}, client, logger), nil
	case cliconfig.SinkKafka:
		return sink.NewKafkaSink[json.RawMessage](sink.KafkaConfig{
			Broker: cfg.KafkaBroker,
			Topic:  cfg.KafkaTopic,
		}, nil), nil
	case cliconfig.SinkPostgres:
		table := cfg.PGTable
		if table == "" {
			table = "records"
		}
		return sink.NewPGSink[json.RawMessage](cfg.PostgresDSN, table)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

func overflowPolicy(name string) stream.OverflowPolicy {
	switch name {
	case cliconfig.OverflowDropNewest:
		return stream.DropNewest
	case cliconfig.OverflowDropOldest:
		return stream.DropOldest
	default:
		return stream.Block
	}
}
