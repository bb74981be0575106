package jsonevent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"transitiongraph/internal/eventstream"
	"transitiongraph/pkg/models"
)

// Parse converts one JSON object into an Event. Well-known attributes are
// read through the schema, with dotted names addressing nested objects.
// Every scalar of the payload is kept in Fields under its dotted path.
func Parse(data []byte, schema eventstream.Schema) (*models.Event, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return FromMap(raw, schema)
}

// FromMap builds an Event from an already decoded object.
func FromMap(raw map[string]interface{}, schema eventstream.Schema) (*models.Event, error) {
	schema = schema.WithDefaults()
	event := &models.Event{
		Fields: make(map[string]interface{}, len(raw)),
		Raw:    raw,
	}
	flatten("", raw, event.Fields)

	event.EventName = getString(raw, schema.EventName)
	if event.EventName == "" {
		return nil, fmt.Errorf("missing event name column %q", schema.EventName)
	}
	event.UserID = getString(raw, schema.UserID)
	if event.UserID == "" {
		return nil, fmt.Errorf("missing user id column %q", schema.UserID)
	}
	event.EventID = getString(raw, schema.EventID)

	if v, ok := getPath(raw, schema.EventTimestamp); ok {
		if t, ok := parseTimestamp(v); ok {
			event.Timestamp = t
		}
	}
	return event, nil
}

// ParseTimestamp parses the textual timestamp formats accepted in event logs.
func ParseTimestamp(value string) (time.Time, bool) {
	return parseTimestamp(value)
}

func parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case float64:
		return fromUnix(val), true
	case int64:
		return fromUnix(float64(val)), true
	case string:
		value := strings.TrimSpace(val)
		if value == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC(), true
			}
		}
		for _, layout := range []string{
			"2006-01-02 15:04:05.000000000",
			"2006-01-02 15:04:05.000000",
			"2006-01-02 15:04:05.000",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
				return t.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return fromUnix(f), true
		}
	}
	return time.Time{}, false
}

// fromUnix accepts seconds or milliseconds since the epoch.
func fromUnix(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func getString(root map[string]interface{}, path string) string {
	v, ok := getPath(root, path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(models.FormatValue(v))
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := root[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
