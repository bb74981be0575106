package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"transitiongraph/pkg/models"
)

// DefaultFileName is looked up when no config path is given.
const DefaultFileName = "transitiongraph.yml"

// Config is the root configuration.
type Config struct {
	TransitionGraph TransitionGraphConfig `yaml:"transitiongraph"`
}

// TransitionGraphConfig is the project configuration.
type TransitionGraphConfig struct {
	Input    InputConfig    `yaml:"input"`
	Schema   SchemaConfig   `yaml:"schema"`
	Edgelist EdgelistConfig `yaml:"edgelist"`
	Rules    RulesConfig    `yaml:"rules"`
	Output   OutputConfig   `yaml:"output"`
	State    StateConfig    `yaml:"state"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig controls where events are read from.
type InputConfig struct {
	Mode  string          `yaml:"mode"` // file|redis|kafka
	File  FileInputConfig `yaml:"file"`
	Redis RedisConfig     `yaml:"redis"`
	Kafka KafkaConfig     `yaml:"kafka"`
}

// KafkaConfig controls the Kafka consumer group input.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	GroupID       string        `yaml:"group_id"`
	Topic         string        `yaml:"topic"`
	InitialOffset string        `yaml:"initial_offset"` // newest|oldest
	PollTimeout   time.Duration `yaml:"poll_timeout"`
}

// FileInputConfig controls the batch event loader.
type FileInputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // jsonl|csv, guessed from the extension when empty
}

// SchemaConfig names the columns holding the well-known event attributes.
type SchemaConfig struct {
	EventID        string `yaml:"event_id"`
	UserID         string `yaml:"user_id"`
	EventName      string `yaml:"event_name"`
	EventTimestamp string `yaml:"event_timestamp"`
}

// EdgelistConfig controls edge weights and thresholds.
type EdgelistConfig struct {
	Weights    []string            `yaml:"weights"`
	Norm       string              `yaml:"norm"` // none|full|node
	Thresholds models.ThresholdMap `yaml:"thresholds"`
}

// RulesConfig controls Sigma-based event filtering.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Mode    string `yaml:"mode"` // keep|drop
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// OutputConfig controls edge output.
type OutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|http|clickhouse
	IncludeAll bool                   `yaml:"include_all"`
	File       FileOutputConfig       `yaml:"file"`
	HTTP       HTTPOutputConfig       `yaml:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
	MinMaxPath string                 `yaml:"min_max_path"`
}

// StateConfig controls threshold persistence between rebuilds.
type StateConfig struct {
	Enabled    bool        `yaml:"enabled"`
	Backend    string      `yaml:"backend"` // redis|sqlite|memory
	GraphKey   string      `yaml:"graph_key"`
	KeyPrefix  string      `yaml:"key_prefix"`
	Redis      RedisConfig `yaml:"redis"`
	SQLitePath string      `yaml:"sqlite_path"`
}

// PipelineConfig controls the streaming rebuild loop.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP output.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindConfigFile resolves the config path: the explicit argument, then the
// working directory, then the directory of the executable.
func FindConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), DefaultFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return DefaultFileName
}

// ApplyDefaults fills unset options.
func ApplyDefaults(cfg *Config) {
	tg := &cfg.TransitionGraph

	if tg.Input.Mode == "" {
		tg.Input.Mode = "file"
	}
	if tg.Input.File.Path == "" {
		tg.Input.File.Path = "input/events.jsonl"
	}
	applyRedisDefaults(&tg.Input.Redis, "transitiongraph:events")
	if tg.Input.Kafka.GroupID == "" {
		tg.Input.Kafka.GroupID = "transitiongraph"
	}
	if tg.Input.Kafka.Topic == "" {
		tg.Input.Kafka.Topic = "transitiongraph-events"
	}
	if tg.Input.Kafka.InitialOffset == "" {
		tg.Input.Kafka.InitialOffset = "newest"
	}

	if tg.Schema.EventID == "" {
		tg.Schema.EventID = "event_id"
	}
	if tg.Schema.UserID == "" {
		tg.Schema.UserID = "user_id"
	}
	if tg.Schema.EventName == "" {
		tg.Schema.EventName = "event"
	}
	if tg.Schema.EventTimestamp == "" {
		tg.Schema.EventTimestamp = "timestamp"
	}

	if len(tg.Edgelist.Weights) == 0 {
		tg.Edgelist.Weights = []string{tg.Schema.EventID}
	}

	if tg.Rules.Mode == "" {
		tg.Rules.Mode = "keep"
	}

	if tg.Output.Mode == "" {
		tg.Output.Mode = "file"
	}
	if tg.Output.File.Path == "" {
		tg.Output.File.Path = "output/edges.jsonl"
	}
	if tg.Output.ClickHouse.Database == "" {
		tg.Output.ClickHouse.Database = "transitiongraph"
	}
	if tg.Output.ClickHouse.Table == "" {
		tg.Output.ClickHouse.Table = "transition_edges"
	}

	if tg.State.Backend == "" {
		tg.State.Backend = "redis"
	}
	if tg.State.SQLitePath == "" {
		tg.State.SQLitePath = "data/thresholds.db"
	}
	if tg.State.GraphKey == "" {
		tg.State.GraphKey = "default"
	}
	if tg.State.KeyPrefix == "" {
		tg.State.KeyPrefix = "transitiongraph:threshold"
	}
	applyRedisDefaults(&tg.State.Redis, "")

	if tg.Pipeline.Workers <= 0 {
		tg.Pipeline.Workers = 4
	}
	if tg.Pipeline.BatchSize <= 0 {
		tg.Pipeline.BatchSize = 1000
	}
	if tg.Pipeline.FlushInterval <= 0 {
		tg.Pipeline.FlushInterval = 2 * time.Second
	}

	if tg.Metrics.Listen == "" {
		tg.Metrics.Listen = ":9108"
	}
	if tg.Metrics.Path == "" {
		tg.Metrics.Path = "/metrics"
	}

	if tg.Logging.Level == "" {
		tg.Logging.Level = "info"
	}
}

func applyRedisDefaults(cfg *RedisConfig, key string) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		cfg.Key = key
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
}
