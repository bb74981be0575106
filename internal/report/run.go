package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"transitiongraph/internal/output/edgejson"
	"transitiongraph/pkg/models"
)

// Options configures a report run.
type Options struct {
	Input          string
	ThresholdsFile string
	Thresholds     string
	Output         string
}

// Run loads an edge table, applies the requested thresholds and prints the
// summary to stdout. Flag thresholds override the ones from the file.
// It returns a process exit code.
func Run(opts Options, stdout, stderr io.Writer) int {
	edges, err := edgejson.ReadEdges(opts.Input)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load edges: %v\n", err)
		return 1
	}

	thresholds := models.ThresholdMap{}
	var prevMinMax models.ThresholdMap
	if strings.TrimSpace(opts.ThresholdsFile) != "" {
		th, prev, err := LoadThresholds(opts.ThresholdsFile)
		if err != nil {
			fmt.Fprintf(stderr, "failed to load thresholds file: %v\n", err)
			return 1
		}
		for k, v := range th {
			thresholds[k] = v
		}
		prevMinMax = prev
	}
	if strings.TrimSpace(opts.Thresholds) != "" {
		th, err := ParseThresholds(opts.Thresholds)
		if err != nil {
			fmt.Fprintf(stderr, "invalid thresholds: %v\n", err)
			return 2
		}
		for k, v := range th {
			thresholds[k] = v
		}
	}

	visible, summary := Apply(edges, thresholds, prevMinMax)
	fmt.Fprint(stdout, Format(summary))

	if strings.TrimSpace(opts.Output) != "" {
		if err := writeJSON(opts.Output, struct {
			Summary Summary       `json:"summary"`
			Edges   []models.Edge `json:"edges"`
		}{summary, visible}); err != nil {
			fmt.Fprintf(stderr, "failed to write report: %v\n", err)
			return 1
		}
	}
	return 0
}

func writeJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
