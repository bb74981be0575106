package models

import (
	"fmt"
	"time"
)

// Event represents one row of the event log.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	EventID   string                 `json:"event_id"`
	UserID    string                 `json:"user_id"`
	EventName string                 `json:"event"`
	Fields    map[string]interface{} `json:"fields,omitempty"`

	Raw map[string]interface{} `json:"-"`
}

// Field returns an auxiliary column value rendered as a string.
// Missing values are returned as an empty string.
func (e *Event) Field(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	if v, ok := e.Fields[name]; ok {
		return FormatValue(v)
	}
	return ""
}

// FormatValue renders a decoded JSON/YAML scalar the same way for every column.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
