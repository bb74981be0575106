package file

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"transitiongraph/internal/eventstream"
	"transitiongraph/internal/logger"
	"transitiongraph/internal/transform/jsonevent"
	"transitiongraph/pkg/models"
)

// Load reads an event log into a stream. Format is jsonl or csv; when empty
// it is guessed from the file extension. Rows keep their file order.
func Load(path, format string, schema eventstream.Schema) (*eventstream.Stream, error) {
	schema = schema.WithDefaults()
	if format == "" {
		format = formatFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var events []*models.Event
	switch strings.ToLower(format) {
	case "jsonl", "json", "ndjson":
		events, err = ReadJSONL(f, schema)
	case "csv", "tsv":
		events, err = ReadCSV(f, schema, strings.EqualFold(format, "tsv"))
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("Loaded %d events from %s", len(events), path)
	return eventstream.New(schema, events), nil
}

// ReadJSONL reads one JSON event per line. Lines that cannot be parsed are
// skipped with a warning.
func ReadJSONL(r io.Reader, schema eventstream.Schema) ([]*models.Event, error) {
	events := make([]*models.Event, 0, 4096)
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 8*1024*1024)

	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		ev, err := jsonevent.Parse([]byte(line), schema)
		if err != nil {
			logger.Warnf("Skipping input line %d: %v", lineNo, err)
			continue
		}
		assignRowID(ev, lineNo)
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return events, nil
}

// ReadCSV reads a header row followed by one event per row.
func ReadCSV(r io.Reader, schema eventstream.Schema, tabs bool) ([]*models.Event, error) {
	reader := csv.NewReader(r)
	if tabs {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headers := records[0]
	events := make([]*models.Event, 0, len(records)-1)
	for i, record := range records[1:] {
		raw := make(map[string]interface{}, len(headers))
		for j, val := range record {
			if j >= len(headers) {
				break
			}
			if val = strings.TrimSpace(val); val != "" {
				raw[strings.TrimSpace(headers[j])] = val
			}
		}
		ev, err := jsonevent.FromMap(raw, schema)
		if err != nil {
			logger.Warnf("Skipping csv row %d: %v", i+2, err)
			continue
		}
		assignRowID(ev, i+2)
		events = append(events, ev)
	}
	return events, nil
}

func assignRowID(ev *models.Event, line int) {
	if ev.EventID == "" {
		ev.EventID = strconv.Itoa(line)
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".tsv":
		return "tsv"
	default:
		return "jsonl"
	}
}
