package main

import (
	"flag"
	"os"

	"transitiongraph/internal/report"
)

func main() {
	input := flag.String("input", "output/edges.jsonl", "Edge JSONL input path")
	thresholdsFile := flag.String("thresholds-file", "", "YAML file with thresholds and an optional previous min_max")
	thresholds := flag.String("thresholds", "", "Comma-separated metric=min:max thresholds (for example: event_id=2:,user_id=0.1:0.5)")
	output := flag.String("output", "", "Optional JSON output path for the visible edges and summary")
	flag.Parse()

	os.Exit(report.Run(report.Options{
		Input:          *input,
		ThresholdsFile: *thresholdsFile,
		Thresholds:     *thresholds,
		Output:         *output,
	}, os.Stdout, os.Stderr))
}
