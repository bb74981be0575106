package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"transitiongraph/pkg/models"
)

const sampleYAML = `
transitiongraph:
  input:
    mode: redis
    redis:
      addr: redis:6379
      key: clicks
  schema:
    user_id: client_id
    event_name: action
  edgelist:
    weights: [event_id, client_id, session_id]
    norm: node
    thresholds:
      event_id: {min: 2, max: 40}
      session_id:
        min: 0
        max: 0.5
  pipeline:
    flush_interval: 10s
  logging:
    enabled: true
    level: debug
`

func TestLoadConfigAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ApplyDefaults(cfg)
	tg := cfg.TransitionGraph

	if tg.Input.Mode != "redis" || tg.Input.Redis.Addr != "redis:6379" || tg.Input.Redis.Key != "clicks" {
		t.Fatalf("unexpected input config: %+v", tg.Input)
	}
	if tg.Input.Redis.BlockTimeout != 5*time.Second {
		t.Fatalf("expected default block timeout, got %v", tg.Input.Redis.BlockTimeout)
	}
	wantSchema := SchemaConfig{EventID: "event_id", UserID: "client_id", EventName: "action", EventTimestamp: "timestamp"}
	if diff := cmp.Diff(wantSchema, tg.Schema); diff != "" {
		t.Fatalf("unexpected schema (-want +got):\n%s", diff)
	}
	wantThresholds := models.ThresholdMap{
		"event_id":   {Min: 2, Max: 40},
		"session_id": {Min: 0, Max: 0.5},
	}
	if diff := cmp.Diff(wantThresholds, tg.Edgelist.Thresholds); diff != "" {
		t.Fatalf("unexpected thresholds (-want +got):\n%s", diff)
	}
	if tg.Edgelist.Norm != "node" || len(tg.Edgelist.Weights) != 3 {
		t.Fatalf("unexpected edgelist config: %+v", tg.Edgelist)
	}
	if tg.Pipeline.FlushInterval != 10*time.Second || tg.Pipeline.Workers != 4 {
		t.Fatalf("unexpected pipeline config: %+v", tg.Pipeline)
	}
	if tg.Output.Mode != "file" || tg.Output.File.Path != "output/edges.jsonl" {
		t.Fatalf("unexpected output defaults: %+v", tg.Output)
	}
	if tg.State.KeyPrefix != "transitiongraph:threshold" || tg.State.GraphKey != "default" {
		t.Fatalf("unexpected state defaults: %+v", tg.State)
	}
	if tg.State.Backend != "redis" || tg.State.SQLitePath != "data/thresholds.db" {
		t.Fatalf("unexpected state backend defaults: %+v", tg.State)
	}
	if tg.Input.Kafka.GroupID != "transitiongraph" || tg.Input.Kafka.InitialOffset != "newest" {
		t.Fatalf("unexpected kafka defaults: %+v", tg.Input.Kafka)
	}
	if tg.Output.ClickHouse.Table != "transition_edges" {
		t.Fatalf("unexpected clickhouse defaults: %+v", tg.Output.ClickHouse)
	}
}

func TestApplyDefaultsUsesEventIDWeight(t *testing.T) {
	cfg := &Config{}
	cfg.TransitionGraph.Schema.EventID = "row_id"
	ApplyDefaults(cfg)
	if diff := cmp.Diff([]string{"row_id"}, cfg.TransitionGraph.Edgelist.Weights); diff != "" {
		t.Fatalf("unexpected default weights (-want +got):\n%s", diff)
	}
}

func TestFindConfigFilePrefersExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("transitiongraph: {}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if got := FindConfigFile(path); got != path {
		t.Fatalf("expected %s, got %s", path, got)
	}
}
