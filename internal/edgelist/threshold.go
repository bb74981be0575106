package edgelist

import (
	"math"

	"transitiongraph/pkg/models"
)

// UpdateThreshold clears every flag, then flags each edge whose value lies
// outside the range of any thresholded metric. Metrics that are not columns
// of the table are ignored. A missing or NaN value is never within range.
func (e *Edgelist) UpdateThreshold(thresholds models.ThresholdMap) {
	for i := range e.edges {
		e.edges[i].OutOfThreshold = false
	}

	for metric, threshold := range thresholds {
		if !e.hasColumn(metric) {
			continue
		}
		for i := range e.edges {
			v, ok := e.edges[i].Weight(metric)
			if !ok || !threshold.Contains(v) {
				e.edges[i].OutOfThreshold = true
			}
		}
	}
}

// FilteredEdges returns the edges that are within every threshold.
func (e *Edgelist) FilteredEdges() []models.Edge {
	out := make([]models.Edge, 0, len(e.edges))
	for _, edge := range e.edges {
		if edge.OutOfThreshold {
			continue
		}
		out = append(out, edge.Clone())
	}
	return out
}

// MinMax returns the global range of every active metric. The map is empty
// while nothing has been calculated.
func (e *Edgelist) MinMax() models.ThresholdMap {
	if len(e.weightCols) == 0 || !e.built {
		return models.ThresholdMap{}
	}
	return e.ThresholdMinMax()
}

// ThresholdMinMax computes the global range of every active metric over the
// current table. NaN and missing values are skipped; a metric without any
// value is left out.
func (e *Edgelist) ThresholdMinMax() models.ThresholdMap {
	out := make(models.ThresholdMap, len(e.weightCols))
	for _, col := range e.weightCols {
		lo, hi := math.Inf(1), math.Inf(-1)
		found := false
		for _, edge := range e.edges {
			v, ok := edge.Weight(col)
			if !ok || math.IsNaN(v) {
				continue
			}
			found = true
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if found {
			out[col] = models.Threshold{Min: lo, Max: hi}
		}
	}
	return out
}

// FitThreshold carries a threshold over to the current table. A max that
// was pinned to the previous global max follows the new global max; any
// other max is a narrowed choice and is kept. Min is never adjusted.
// The input map is not modified.
func (e *Edgelist) FitThreshold(threshold, prevMinMax models.ThresholdMap) models.ThresholdMap {
	fitted := threshold.Copy()
	current := e.ThresholdMinMax()

	for metric, value := range fitted {
		prev, ok := prevMinMax[metric]
		if !ok {
			continue
		}
		cur, ok := current[metric]
		if !ok {
			continue
		}
		if value.Max == prev.Max {
			value.Max = cur.Max
			fitted[metric] = value
		}
	}
	return fitted
}
