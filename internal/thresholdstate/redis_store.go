package thresholdstate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"transitiongraph/internal/logger"
	"transitiongraph/pkg/models"
)

// RedisConfig configures Redis access for threshold persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps one hash of thresholds and one hash of min/max per graph.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed threshold store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "transitiongraph:threshold"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis threshold-state: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// Load reads the state of graph. Unknown graphs yield an empty state.
func (s *RedisStore) Load(ctx context.Context, graph string) (State, error) {
	thresholds, err := s.client.HGetAll(ctx, s.thresholdKey(graph)).Result()
	if err != nil {
		return State{}, fmt.Errorf("read thresholds of %s: %w", graph, err)
	}
	minMax, err := s.client.HGetAll(ctx, s.minMaxKey(graph)).Result()
	if err != nil {
		return State{}, fmt.Errorf("read min/max of %s: %w", graph, err)
	}

	st := State{
		Thresholds: decodeMap(thresholds),
		MinMax:     decodeMap(minMax),
	}
	if raw, err := s.client.Get(ctx, s.updatedKey(graph)).Result(); err == nil {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			st.UpdatedAt = time.Unix(unix, 0).UTC()
		}
	}
	return st, nil
}

// Save replaces the state of graph atomically.
func (s *RedisStore) Save(ctx context.Context, graph string, state State) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.thresholdKey(graph), s.minMaxKey(graph))
	if fields := encodeMap(state.Thresholds); len(fields) > 0 {
		pipe.HSet(ctx, s.thresholdKey(graph), fields)
	}
	if fields := encodeMap(state.MinMax); len(fields) > 0 {
		pipe.HSet(ctx, s.minMaxKey(graph), fields)
	}
	pipe.Set(ctx, s.updatedKey(graph), strconv.FormatInt(time.Now().Unix(), 10), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update threshold-state redis keys: %w", err)
	}
	return nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) thresholdKey(graph string) string {
	return s.prefix + ":" + graph + ":thresholds"
}

func (s *RedisStore) minMaxKey(graph string) string {
	return s.prefix + ":" + graph + ":min_max"
}

func (s *RedisStore) updatedKey(graph string) string {
	return s.prefix + ":" + graph + ":updated_at"
}

func encodeMap(m models.ThresholdMap) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for metric, th := range m {
		out[metric] = encodeThreshold(th)
	}
	return out
}

func decodeMap(fields map[string]string) models.ThresholdMap {
	if len(fields) == 0 {
		return nil
	}
	out := make(models.ThresholdMap, len(fields))
	for metric, raw := range fields {
		th, ok := decodeThreshold(raw)
		if !ok {
			logger.Warnf("Ignoring malformed threshold for %s: %q", metric, raw)
			continue
		}
		out[metric] = th
	}
	return out
}

func encodeThreshold(th models.Threshold) string {
	return strconv.FormatFloat(th.Min, 'g', -1, 64) + "|" + strconv.FormatFloat(th.Max, 'g', -1, 64)
}

func decodeThreshold(raw string) (models.Threshold, bool) {
	parts := strings.SplitN(raw, "|", 2)
	if len(parts) != 2 {
		return models.Threshold{}, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Threshold{}, false
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Threshold{}, false
	}
	return models.Threshold{Min: lo, Max: hi}, true
}
