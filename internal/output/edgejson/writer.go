package edgejson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"transitiongraph/internal/logger"
	"transitiongraph/pkg/models"
)

// Writer replaces a JSON lines file with the edges of every snapshot.
// When minMaxPath is set the snapshot's thresholds and min/max are written
// there as one JSON document.
type Writer struct {
	path       string
	minMaxPath string
	mu         sync.Mutex
}

// NewWriter creates a JSONL writer for edges.
func NewWriter(path, minMaxPath string) (*Writer, error) {
	for _, p := range []string{path, minMaxPath} {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
	}

	logger.Infof("Edge JSON writer initialized: %s", path)
	return &Writer{path: path, minMaxPath: minMaxPath}, nil
}

// WriteSnapshot rewrites the output file with the snapshot edges.
func (w *Writer) WriteSnapshot(snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := replaceFile(w.path, func(bw *bufio.Writer) error {
		enc := json.NewEncoder(bw)
		for _, edge := range snap.Edges {
			if err := enc.Encode(edge); err != nil {
				return fmt.Errorf("failed to encode edge: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if w.minMaxPath == "" {
		return nil
	}
	return replaceFile(w.minMaxPath, func(bw *bufio.Writer) error {
		summary := struct {
			Graph      string              `json:"graph"`
			Weights    []string            `json:"weights"`
			Norm       string              `json:"norm"`
			Thresholds models.ThresholdMap `json:"thresholds,omitempty"`
			MinMax     models.ThresholdMap `json:"min_max"`
		}{snap.Graph, snap.Weights, snap.Norm, snap.Thresholds, snap.MinMax}
		if err := json.NewEncoder(bw).Encode(summary); err != nil {
			return fmt.Errorf("failed to encode min/max: %w", err)
		}
		return nil
	})
}

// Close releases the writer.
func (w *Writer) Close() error {
	return nil
}

// replaceFile writes through a temporary file so readers never see a
// partially written table.
func replaceFile(path string, fill func(*bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close output: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadEdges loads an edge JSONL file written by Writer.
func ReadEdges(path string) ([]models.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edges: %w", err)
	}
	defer f.Close()

	var edges []models.Edge
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var edge models.Edge
		if err := json.Unmarshal(line, &edge); err != nil {
			return nil, fmt.Errorf("decode edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	return edges, nil
}
