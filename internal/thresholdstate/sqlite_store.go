package thresholdstate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"transitiongraph/internal/logger"
	"transitiongraph/pkg/models"
)

const (
	kindThreshold = "threshold"
	kindMinMax    = "min_max"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS threshold_state (
	graph      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	metric     TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (graph, kind, metric)
)`

// SQLiteStore keeps threshold state in a local SQLite file. Values use the
// same "min|max" encoding as the Redis store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates when needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite threshold-state: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create threshold_state table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the state of graph. Unknown graphs yield an empty state.
func (s *SQLiteStore) Load(ctx context.Context, graph string) (State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, metric, value, updated_at FROM threshold_state WHERE graph = ?`, graph)
	if err != nil {
		return State{}, fmt.Errorf("read threshold state of %s: %w", graph, err)
	}
	defer rows.Close()

	var st State
	for rows.Next() {
		var kind, metric, value string
		var updated int64
		if err := rows.Scan(&kind, &metric, &value, &updated); err != nil {
			return State{}, fmt.Errorf("scan threshold state: %w", err)
		}
		th, ok := decodeThreshold(value)
		if !ok {
			logger.Warnf("Ignoring malformed threshold for %s: %q", metric, value)
			continue
		}
		switch kind {
		case kindThreshold:
			if st.Thresholds == nil {
				st.Thresholds = models.ThresholdMap{}
			}
			st.Thresholds[metric] = th
		case kindMinMax:
			if st.MinMax == nil {
				st.MinMax = models.ThresholdMap{}
			}
			st.MinMax[metric] = th
		}
		if updated > 0 {
			st.UpdatedAt = time.Unix(updated, 0).UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("iterate threshold state: %w", err)
	}
	return st, nil
}

// Save replaces the state of graph in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, graph string, state State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin threshold state update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM threshold_state WHERE graph = ?`, graph); err != nil {
		return fmt.Errorf("clear threshold state of %s: %w", graph, err)
	}

	now := time.Now().Unix()
	insert := func(kind string, m models.ThresholdMap) error {
		for metric, th := range m {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO threshold_state (graph, kind, metric, value, updated_at) VALUES (?, ?, ?, ?, ?)`,
				graph, kind, metric, encodeThreshold(th), now); err != nil {
				return fmt.Errorf("insert %s of %s: %w", kind, metric, err)
			}
		}
		return nil
	}
	if err := insert(kindThreshold, state.Thresholds); err != nil {
		return err
	}
	if err := insert(kindMinMax, state.MinMax); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
