package rules

import (
	"transitiongraph/internal/eventstream"
	"transitiongraph/pkg/models"
)

// Filter decides which events take part in edge building.
type Filter interface {
	Keep(event *models.Event) bool
}

// NoopFilter keeps every event.
type NoopFilter struct{}

// Keep always returns true.
func (n *NoopFilter) Keep(event *models.Event) bool {
	return true
}

// Apply returns a new stream with the rows kept by filter, in table order.
// The source stream is not modified.
func Apply(stream *eventstream.Stream, filter Filter) (*eventstream.Stream, int) {
	if filter == nil {
		filter = &NoopFilter{}
	}
	kept := make([]*models.Event, 0, stream.Len())
	dropped := 0
	for _, ev := range stream.Events() {
		if filter.Keep(ev) {
			kept = append(kept, ev)
			continue
		}
		dropped++
	}
	return eventstream.New(stream.Schema(), kept), dropped
}
