// Package report summarizes an edge table that was written earlier, with
// optionally different thresholds.
package report

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"transitiongraph/internal/edgelist"
	"transitiongraph/pkg/models"
)

// Summary describes one thresholded edge table.
type Summary struct {
	Metrics    []string            `json:"metrics"`
	Edges      int                 `json:"edges"`
	Visible    int                 `json:"visible"`
	Thresholds models.ThresholdMap `json:"thresholds,omitempty"`
	MinMax     models.ThresholdMap `json:"min_max"`
}

// Apply wraps edges in an edgelist, applies thresholds and returns the
// visible edges with a summary. When prevMinMax is set the thresholds are
// first re-fitted to the range of edges.
func Apply(edges []models.Edge, thresholds, prevMinMax models.ThresholdMap) ([]models.Edge, Summary) {
	el := edgelist.NewFromEdges(nil, nil, edges)
	if len(prevMinMax) > 0 {
		thresholds = el.FitThreshold(thresholds, prevMinMax)
	}
	el.UpdateThreshold(thresholds)
	visible := el.FilteredEdges()

	return visible, Summary{
		Metrics:    el.WeightCols(),
		Edges:      len(edges),
		Visible:    len(visible),
		Thresholds: thresholds,
		MinMax:     el.MinMax(),
	}
}

// thresholdFile is the YAML layout accepted by LoadThresholds.
type thresholdFile struct {
	Thresholds models.ThresholdMap `yaml:"thresholds"`
	MinMax     models.ThresholdMap `yaml:"min_max"`
}

// LoadThresholds reads thresholds and an optional previous min/max from a
// YAML (or JSON) file.
func LoadThresholds(path string) (models.ThresholdMap, models.ThresholdMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read thresholds: %w", err)
	}
	var doc thresholdFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse thresholds: %w", err)
	}
	return doc.Thresholds, doc.MinMax, nil
}

// ParseThresholds parses "metric=min:max" pairs separated by commas.
// Either bound may be omitted to leave it open.
func ParseThresholds(raw string) (models.ThresholdMap, error) {
	out := models.ThresholdMap{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		metric, bounds, ok := strings.Cut(part, "=")
		metric = strings.TrimSpace(metric)
		if !ok || metric == "" {
			return nil, fmt.Errorf("threshold %q: expected metric=min:max", part)
		}
		lo, hi, ok := strings.Cut(bounds, ":")
		if !ok {
			return nil, fmt.Errorf("threshold %q: expected metric=min:max", part)
		}
		min, err := parseBound(lo, math.Inf(-1))
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", part, err)
		}
		max, err := parseBound(hi, math.Inf(1))
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", part, err)
		}
		out[metric] = models.Threshold{Min: min, Max: max}
	}
	return out, nil
}

func parseBound(raw string, open float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return open, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// Format renders a summary for terminals.
func Format(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "edges=%d visible=%d metrics=%s\n", s.Edges, s.Visible, strings.Join(s.Metrics, ","))

	metrics := make([]string, 0, len(s.MinMax))
	for m := range s.MinMax {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		mm := s.MinMax[m]
		line := fmt.Sprintf("  %s min=%g max=%g", m, mm.Min, mm.Max)
		if th, ok := s.Thresholds[m]; ok {
			line += fmt.Sprintf(" threshold=[%g, %g]", th.Min, th.Max)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
