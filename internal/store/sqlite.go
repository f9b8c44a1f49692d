package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"seisqc/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ EpochStore = (*SQLiteStore)(nil)
var _ MetricStore = (*SQLiteStore)(nil)

// SQLiteStore implements EpochStore and MetricStore backed by a SQLite
// database. Times are stored as Unix nanoseconds; an open epoch end is 0.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS epochs (
		sncl_id     TEXT    NOT NULL,
		start_ns    INTEGER NOT NULL,
		end_ns      INTEGER NOT NULL DEFAULT 0,
		sample_rate REAL    NOT NULL DEFAULT 0,
		PRIMARY KEY (sncl_id, start_ns)
	)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT    NOT NULL,
		sncl_id     TEXT    NOT NULL,
		start_ns    INTEGER NOT NULL,
		end_ns      INTEGER NOT NULL,
		value       REAL    NOT NULL,
		PRIMARY KEY (metric_name, sncl_id, start_ns)
	)`,
	`CREATE INDEX IF NOT EXISTS metrics_by_start ON metrics (start_ns)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and migrates
// it to the current schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates any missing tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating sqlite schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEpoch inserts or replaces an epoch.
func (s *SQLiteStore) SaveEpoch(ctx context.Context, id string, e domain.Epoch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO epochs (sncl_id, start_ns, end_ns, sample_rate) VALUES (?, ?, ?, ?)`,
		id, e.Start.UnixNano(), unixNanoOrZero(e.End), e.SampleRate)
	if err != nil {
		return fmt.Errorf("saving epoch %s/%s: %w", id, e.Start.Format(time.RFC3339), err)
	}
	return nil
}

// ListEpochs returns the epochs of a channel ordered by start.
func (s *SQLiteStore) ListEpochs(ctx context.Context, id string) ([]domain.Epoch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_ns, end_ns, sample_rate FROM epochs WHERE sncl_id = ? ORDER BY start_ns`, id)
	if err != nil {
		return nil, fmt.Errorf("listing epochs for %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.Epoch
	for rows.Next() {
		var startNS, endNS int64
		var e domain.Epoch
		if err := rows.Scan(&startNS, &endNS, &e.SampleRate); err != nil {
			return nil, err
		}
		e.Start = time.Unix(0, startNS).UTC()
		if endNS != 0 {
			e.End = time.Unix(0, endNS).UTC()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveMetrics inserts or replaces recs in one transaction.
func (s *SQLiteStore) SaveMetrics(ctx context.Context, recs []domain.MetricRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO metrics (metric_name, sncl_id, start_ns, end_ns, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.MetricName, r.SNCLID, r.Start.UnixNano(), r.End.UnixNano(), r.Value); err != nil {
			return fmt.Errorf("saving metric %s for %s: %w", r.MetricName, r.SNCLID, err)
		}
	}
	return tx.Commit()
}

// ListMetrics returns records starting within [start, end), ordered by
// channel, start and metric name.
func (s *SQLiteStore) ListMetrics(ctx context.Context, id string, start, end time.Time) ([]domain.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_name, sncl_id, start_ns, end_ns, value FROM metrics
		 WHERE (? = '' OR sncl_id = ?) AND start_ns >= ? AND start_ns < ?
		 ORDER BY sncl_id, start_ns, metric_name`,
		id, id, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricRecord
	for rows.Next() {
		var r domain.MetricRecord
		var startNS, endNS int64
		if err := rows.Scan(&r.MetricName, &r.SNCLID, &startNS, &endNS, &r.Value); err != nil {
			return nil, err
		}
		r.Start = time.Unix(0, startNS).UTC()
		r.End = time.Unix(0, endNS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
