package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"transitiongraph/config"
	"transitiongraph/internal/edgelist"
	"transitiongraph/internal/eventstream"
	inputfile "transitiongraph/internal/input/file"
	inputkafka "transitiongraph/internal/input/kafka"
	inputredis "transitiongraph/internal/input/redis"
	"transitiongraph/internal/logger"
	"transitiongraph/internal/metrics"
	"transitiongraph/internal/output/edgeclickhouse"
	"transitiongraph/internal/output/edgehttp"
	"transitiongraph/internal/output/edgejson"
	"transitiongraph/internal/pipeline"
	"transitiongraph/internal/report"
	"transitiongraph/internal/rules"
	"transitiongraph/internal/thresholdstate"
	"transitiongraph/internal/transform/jsonevent"
)

func loadConfig(configArg string) (*config.Config, string) {
	configPath := config.FindConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.ApplyDefaults(cfg)

	lc := cfg.TransitionGraph.Logging
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, configPath
}

func schemaFromConfig(cfg *config.Config) eventstream.Schema {
	sc := cfg.TransitionGraph.Schema
	return eventstream.Schema{
		EventID:        sc.EventID,
		UserID:         sc.UserID,
		EventName:      sc.EventName,
		EventTimestamp: sc.EventTimestamp,
	}.WithDefaults()
}

func newConsumer(rc config.RedisConfig) *inputredis.Consumer {
	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		Key:          rc.Key,
		BlockTimeout: rc.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}
	return consumer
}

func newFilter(cfg *config.Config) rules.Filter {
	rc := cfg.TransitionGraph.Rules
	if !rc.Enabled {
		return nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; event filtering disabled")
		return nil
	}

	mode, err := rules.ParseMode(rc.Mode)
	if err != nil {
		log.Fatalf("Invalid rules mode: %v", err)
	}
	filter, stats, err := rules.NewSigmaFilter(rc.Path, mode)
	if err != nil {
		logger.Errorf("Failed to load Sigma rules from %s: %v", rc.Path, err)
		log.Fatalf("Failed to load Sigma rules: %v", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d mode=%s",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedInvalid,
		stats.TotalFiles,
		mode,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No usable Sigma rules loaded; mode %s applies to every event", mode)
	}
	return filter
}

func newStore(cfg *config.Config) thresholdstate.Store {
	sc := cfg.TransitionGraph.State
	if !sc.Enabled {
		return nil
	}

	var store thresholdstate.Store
	var err error
	switch sc.Backend {
	case "redis":
		store, err = thresholdstate.NewRedisStore(thresholdstate.RedisConfig{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.KeyPrefix,
		})
	case "sqlite":
		store, err = thresholdstate.NewSQLiteStore(sc.SQLitePath)
	case "memory":
		store = thresholdstate.NewMemoryStore()
	default:
		log.Fatalf("Unknown state backend: %s", sc.Backend)
	}
	if err != nil {
		logger.Errorf("Failed to create threshold state store: %v", err)
		log.Fatalf("Failed to create threshold state store: %v", err)
	}
	logger.Infof("Threshold state: %s (graph=%s)", sc.Backend, sc.GraphKey)
	return store
}

func newSource(cfg *config.Config) pipeline.Source {
	ic := cfg.TransitionGraph.Input
	switch ic.Mode {
	case "redis":
		logger.Infof("Input mode: redis (%s/%s)", ic.Redis.Addr, ic.Redis.Key)
		return newConsumer(ic.Redis)
	case "kafka":
		consumer, err := inputkafka.NewConsumer(inputkafka.Config{
			Brokers:       ic.Kafka.Brokers,
			GroupID:       ic.Kafka.GroupID,
			Topic:         ic.Kafka.Topic,
			InitialOffset: ic.Kafka.InitialOffset,
			PollTimeout:   ic.Kafka.PollTimeout,
			Buffer:        cfg.TransitionGraph.Pipeline.BatchSize,
		})
		if err != nil {
			logger.Errorf("Failed to create Kafka consumer: %v", err)
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		logger.Infof("Input mode: kafka (%s)", ic.Kafka.Topic)
		return consumer
	default:
		log.Fatalf("Input mode %s cannot be streamed; use redis or kafka", ic.Mode)
	}
	return nil
}

func newWriter(cfg *config.Config) pipeline.SnapshotWriter {
	oc := cfg.TransitionGraph.Output
	switch oc.Mode {
	case "file":
		w, err := edgejson.NewWriter(oc.File.Path, oc.MinMaxPath)
		if err != nil {
			logger.Errorf("Failed to create edge file writer: %v", err)
			log.Fatalf("Failed to create edge file writer: %v", err)
		}
		logger.Infof("Output mode: file (%s)", oc.File.Path)
		return w
	case "http":
		w, err := edgehttp.NewWriter(edgehttp.Config{
			URL:     oc.HTTP.URL,
			Timeout: oc.HTTP.Timeout,
			Headers: oc.HTTP.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create edge HTTP writer: %v", err)
			log.Fatalf("Failed to create edge HTTP writer: %v", err)
		}
		logger.Infof("Output mode: http (%s)", oc.HTTP.URL)
		return w
	case "clickhouse":
		ch := oc.ClickHouse
		w, err := edgeclickhouse.NewWriter(edgeclickhouse.Config{
			URL:      ch.URL,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Timeout:  ch.Timeout,
			Headers:  ch.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create edge ClickHouse writer: %v", err)
			log.Fatalf("Failed to create edge ClickHouse writer: %v", err)
		}
		logger.Infof("Output mode: clickhouse (%s/%s.%s)", ch.URL, ch.Database, ch.Table)
		return w
	default:
		log.Fatalf("Unknown output mode: %s", oc.Mode)
	}
	return nil
}

func builderConfig(cfg *config.Config) pipeline.BuilderConfig {
	ec := cfg.TransitionGraph.Edgelist
	norm, err := edgelist.ParseNormType(ec.Norm)
	if err != nil {
		log.Fatalf("Invalid edgelist norm: %v", err)
	}
	return pipeline.BuilderConfig{
		Graph:      cfg.TransitionGraph.State.GraphKey,
		Weights:    ec.Weights,
		Norm:       norm,
		Thresholds: ec.Thresholds,
		IncludeAll: cfg.TransitionGraph.Output.IncludeAll,
	}
}

func loadStream(ctx context.Context, cfg *config.Config, schema eventstream.Schema) *eventstream.Stream {
	ic := cfg.TransitionGraph.Input
	switch ic.Mode {
	case "file":
		stream, err := inputfile.Load(ic.File.Path, ic.File.Format, schema)
		if err != nil {
			log.Fatalf("Failed to load events: %v", err)
		}
		return stream
	case "redis":
		consumer := newConsumer(ic.Redis)
		defer consumer.Close()

		payloads, err := consumer.Drain(ctx, cfg.TransitionGraph.Pipeline.BatchSize)
		if err != nil {
			log.Fatalf("Failed to drain Redis queue: %v", err)
		}
		stream := eventstream.New(schema, nil)
		for _, payload := range payloads {
			ev, err := jsonevent.Parse(payload, schema)
			if err != nil {
				logger.Warnf("Failed to parse event: %v", err)
				continue
			}
			stream.Append(ev)
		}
		stream.SortByGroupTime()
		logger.Infof("Drained %d events from %s", stream.Len(), ic.Redis.Key)
		return stream
	default:
		log.Fatalf("Unknown input mode: %s", ic.Mode)
	}
	return nil
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	input := fs.String("input", "", "Event log path (overrides input.file.path)")
	weights := fs.String("weights", "", "Comma-separated weight columns (overrides edgelist.weights)")
	norm := fs.String("norm", "", "Normalization: none, full or node (overrides edgelist.norm)")
	sortRows := fs.Bool("sort", false, "Sort rows by user and timestamp before building")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, configPath := loadConfig(*configArg)
	defer logger.Sync()
	logger.Infof("Config loaded from: %s", configPath)

	if *input != "" {
		cfg.TransitionGraph.Input.Mode = "file"
		cfg.TransitionGraph.Input.File.Path = *input
	}
	if *weights != "" {
		cfg.TransitionGraph.Edgelist.Weights = splitList(*weights)
	}
	if *norm != "" {
		cfg.TransitionGraph.Edgelist.Norm = *norm
	}

	ctx := context.Background()
	schema := schemaFromConfig(cfg)
	stream := loadStream(ctx, cfg, schema)
	if *sortRows {
		stream.SortByGroupTime()
	}

	stream, dropped := rules.Apply(stream, newFilter(cfg))
	if dropped > 0 {
		logger.Infof("Rules dropped %d events", dropped)
	}

	store := newStore(cfg)
	if store != nil {
		defer store.Close()
	}
	builder := pipeline.NewBuilder(builderConfig(cfg), store, nil)
	snap, err := builder.Build(ctx, stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build edgelist: %v\n", err)
		return 1
	}

	writer := newWriter(cfg)
	defer writer.Close()
	if err := writer.WriteSnapshot(snap); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write edges: %v\n", err)
		return 1
	}

	fmt.Printf("built events=%d edges=%d metrics=%s\n", snap.Events, len(snap.Edges), strings.Join(snap.Weights, ","))
	return 0
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configArg := fs.String("config", "", "Config file path")
	_ = fs.Parse(args)

	cfg, configPath := loadConfig(*configArg)
	defer logger.Sync()

	logger.Infof("TransitionGraph starting")
	logger.Infof("Config loaded from: %s", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var m *metrics.Metrics
	if cfg.TransitionGraph.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.TransitionGraph.Metrics.Listen, cfg.TransitionGraph.Metrics.Path, reg)
		})
	}

	store := newStore(cfg)
	if store == nil {
		store = thresholdstate.NewMemoryStore()
	}
	defer store.Close()

	pc := cfg.TransitionGraph.Pipeline
	pipe := pipeline.NewStreamPipeline(
		newSource(cfg),
		schemaFromConfig(cfg),
		newFilter(cfg),
		pipeline.NewBuilder(builderConfig(cfg), store, m),
		newWriter(cfg),
		m,
		pipeline.Options{
			Workers:       pc.Workers,
			BatchSize:     pc.BatchSize,
			FlushInterval: pc.FlushInterval,
		},
	)

	g.Go(func() error {
		if err := pipe.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Pipeline error: %v", err)
	}
	logger.Infof("Shutting down")

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}

	logger.Infof("TransitionGraph stopped")
}

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	input := fs.String("input", "output/edges.jsonl", "Edge JSONL input path")
	thresholdsFile := fs.String("thresholds-file", "", "YAML file with thresholds and an optional previous min_max")
	thresholds := fs.String("thresholds", "", "Comma-separated metric=min:max thresholds")
	output := fs.String("output", "", "Optional JSON output path for the visible edges and summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return report.Run(report.Options{
		Input:          *input,
		ThresholdsFile: *thresholdsFile,
		Thresholds:     *thresholds,
		Output:         *output,
	}, os.Stdout, os.Stderr)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "build":
			os.Exit(runBuild(os.Args[2:]))
		case "serve":
			runServe(os.Args[2:])
			return
		case "report":
			os.Exit(runReport(os.Args[2:]))
		default:
			// A bare config path starts the streaming service.
			runServe([]string{"-config", os.Args[1]})
			return
		}
	}

	runServe(nil)
}
