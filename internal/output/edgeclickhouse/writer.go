package edgeclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"transitiongraph/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts snapshot edges into ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// row is one edge of one snapshot. Weights that are NaN are left out since
// a ClickHouse Map(String, Float64) has no null.
type row struct {
	Graph          string             `json:"graph"`
	GeneratedAt    string             `json:"generated_at"`
	From           string             `json:"from"`
	To             string             `json:"to"`
	Weights        map[string]float64 `json:"weights"`
	OutOfThreshold bool               `json:"out_of_threshold"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "transition_edges"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// WriteSnapshot inserts every edge of snap as one row.
func (w *Writer) WriteSnapshot(snap *models.Snapshot) error {
	if snap == nil || len(snap.Edges) == 0 {
		return nil
	}

	generated := snap.GeneratedAt.UTC().Format("2006-01-02 15:04:05.000")
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, edge := range snap.Edges {
		r := row{
			Graph:          snap.Graph,
			GeneratedAt:    generated,
			From:           edge.From,
			To:             edge.To,
			Weights:        make(map[string]float64, len(edge.Weights)),
			OutOfThreshold: edge.OutOfThreshold,
		}
		for k, v := range edge.Weights {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			r.Weights[k] = v
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal edge row: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
