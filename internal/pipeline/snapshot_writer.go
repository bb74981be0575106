package pipeline

import "transitiongraph/pkg/models"

// SnapshotWriter publishes calculated edge tables.
type SnapshotWriter interface {
	WriteSnapshot(snap *models.Snapshot) error
	Close() error
}
