package eventstream

import "strings"

// ColumnKind classifies a weight column.
type ColumnKind int

const (
	// IdentityCount is the row identity column: value is the transition count.
	IdentityCount ColumnKind = iota
	// EntityCount is the entity column: value is the number of distinct entities.
	EntityCount
	// Custom is any other column: value is the number of its distinct values.
	Custom
)

func (k ColumnKind) String() string {
	switch k {
	case IdentityCount:
		return "identity"
	case EntityCount:
		return "entity"
	default:
		return "custom"
	}
}

// Schema names the columns that hold the well-known event attributes.
type Schema struct {
	EventID        string `yaml:"event_id"`
	UserID         string `yaml:"user_id"`
	EventName      string `yaml:"event_name"`
	EventTimestamp string `yaml:"event_timestamp"`
}

// DefaultSchema returns the column names used when none are configured.
func DefaultSchema() Schema {
	return Schema{
		EventID:        "event_id",
		UserID:         "user_id",
		EventName:      "event",
		EventTimestamp: "timestamp",
	}
}

// WithDefaults fills blank column names from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	def := DefaultSchema()
	if strings.TrimSpace(s.EventID) == "" {
		s.EventID = def.EventID
	}
	if strings.TrimSpace(s.UserID) == "" {
		s.UserID = def.UserID
	}
	if strings.TrimSpace(s.EventName) == "" {
		s.EventName = def.EventName
	}
	if strings.TrimSpace(s.EventTimestamp) == "" {
		s.EventTimestamp = def.EventTimestamp
	}
	return s
}

// Classify returns the kind of a weight column.
func (s Schema) Classify(column string) ColumnKind {
	switch column {
	case s.EventID:
		return IdentityCount
	case s.UserID:
		return EntityCount
	default:
		return Custom
	}
}

// AdjacencyKey returns the column that partitions events into sequences
// when computing transitions for the given weight column. Row and entity
// counts follow the entity sequence; any other column partitions by itself.
func (s Schema) AdjacencyKey(weightColumn string) string {
	if weightColumn == s.EventID || weightColumn == s.UserID {
		return s.UserID
	}
	return weightColumn
}

// NextEventColumn is the name of the successor column in tabular exports.
func (s Schema) NextEventColumn() string {
	return "next_" + s.EventName
}
