package edgelist

import "transitiongraph/pkg/models"

// MergeTables outer-joins per-metric tables on (from, to).
//
// Every pair of every table appears in the result. The first table that
// carries a metric is authoritative for it: a later table with an already
// merged metric name contributes its pairs but none of its values. Pairs a
// table does not know have no value for that table's metric. All rows start
// with OutOfThreshold unset and are ordered by (from, to).
func MergeTables(tables []MetricTable) []models.Edge {
	rows := make(map[Pair]*models.Edge, 256)
	merged := make(map[string]struct{}, len(tables))

	for _, table := range tables {
		_, duplicate := merged[table.Metric]
		for pair, v := range table.Values {
			row, ok := rows[pair]
			if !ok {
				row = &models.Edge{From: pair.From, To: pair.To, Weights: make(map[string]float64, len(tables))}
				rows[pair] = row
			}
			if !duplicate {
				row.Weights[table.Metric] = v
			}
		}
		merged[table.Metric] = struct{}{}
	}

	out := make([]models.Edge, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	models.SortEdges(out)
	return out
}
