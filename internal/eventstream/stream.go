package eventstream

import (
	"sort"
	"time"

	"transitiongraph/pkg/models"
)

// Stream is an ordered, in-memory event table read through a Schema.
// Rows of one group are expected to be ordered by time; Stream never
// reorders rows unless SortByGroupTime is called explicitly.
type Stream struct {
	schema Schema
	events []*models.Event
}

// New creates a stream over events. The slice is owned by the stream.
func New(schema Schema, events []*models.Event) *Stream {
	return &Stream{schema: schema.WithDefaults(), events: events}
}

// Schema returns the column mapping.
func (s *Stream) Schema() Schema {
	return s.schema
}

// Events returns the rows in table order. Callers must not modify them.
func (s *Stream) Events() []*models.Event {
	return s.events
}

// Len returns the number of rows.
func (s *Stream) Len() int {
	return len(s.events)
}

// Append adds rows at the end of the table, skipping nil events.
func (s *Stream) Append(events ...*models.Event) {
	for _, ev := range events {
		if ev != nil {
			s.events = append(s.events, ev)
		}
	}
}

// SortByGroupTime stably orders rows by (user id, timestamp).
func (s *Stream) SortByGroupTime() {
	sort.SliceStable(s.events, func(i, j int) bool {
		a, b := s.events[i], s.events[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// Value resolves a column of a row through the schema. Missing values are
// returned as an empty string.
func (s *Stream) Value(ev *models.Event, column string) string {
	if ev == nil {
		return ""
	}
	switch column {
	case s.schema.EventID:
		return ev.EventID
	case s.schema.UserID:
		return ev.UserID
	case s.schema.EventName:
		return ev.EventName
	case s.schema.EventTimestamp:
		if ev.Timestamp.IsZero() {
			return ""
		}
		return ev.Timestamp.UTC().Format(time.RFC3339Nano)
	default:
		return ev.Field(column)
	}
}

// HasColumn reports whether any row carries a value for column.
func (s *Stream) HasColumn(column string) bool {
	switch column {
	case s.schema.EventID, s.schema.UserID, s.schema.EventName, s.schema.EventTimestamp:
		return true
	}
	for _, ev := range s.events {
		if _, ok := ev.Fields[column]; ok {
			return true
		}
	}
	return false
}
