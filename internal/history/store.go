// Package history keeps one indicator snapshot per day in an embedded SQLite file.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/indicators"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

const tableSnapshots = "indicator_snapshots"

const schema = `
CREATE TABLE IF NOT EXISTS indicator_snapshots (
	day                    TEXT PRIMARY KEY,
	taken_at               DATETIME NOT NULL,
	total_beds             INTEGER NOT NULL,
	occupied               INTEGER NOT NULL,
	pending_discharge      INTEGER NOT NULL,
	available              INTEGER NOT NULL,
	blocked                INTEGER NOT NULL,
	occupancy_rate         REAL NOT NULL,
	requested              INTEGER NOT NULL,
	completed              INTEGER NOT NULL,
	cancelled              INTEGER NOT NULL,
	overdue_completed      INTEGER NOT NULL,
	mean_wait_minutes      REAL NOT NULL,
	justification_coverage REAL NOT NULL,
	payload                TEXT NOT NULL
);
`

// Store 指标历史存储
type Store struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// Open opens (or creates) the SQLite file at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already opened database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, dialect: goqu.Dialect("sqlite3")}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply history schema: %w", err)
	}
	return nil
}

// Save stores snap, replacing any earlier snapshot of the same day.
func (s *Store) Save(ctx context.Context, snap indicators.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	del, delArgs, err := s.dialect.Delete(tableSnapshots).Prepared(true).
		Where(goqu.Ex{"day": snap.Day}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	total := snap.Occupancy.Total
	ins, insArgs, err := s.dialect.Insert(tableSnapshots).Prepared(true).Rows(goqu.Record{
		"day":                    snap.Day,
		"taken_at":               snap.TakenAt.UTC(),
		"total_beds":             total.Total,
		"occupied":               total.Occupied,
		"pending_discharge":      total.PendingDischarge,
		"available":              total.Available,
		"blocked":                total.Blocked,
		"occupancy_rate":         total.OccupancyRate,
		"requested":              snap.Timing.Requested,
		"completed":              snap.Timing.Completed,
		"cancelled":              snap.Timing.Cancelled,
		"overdue_completed":      snap.Timing.OverdueCompleted,
		"mean_wait_minutes":      snap.Timing.MeanWaitMinutes,
		"justification_coverage": snap.Timing.JustificationCoverage,
		"payload":                string(payload),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", snap.Day, err)
	}
	if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", snap.Day, err)
	}
	return tx.Commit()
}

// List snapshots with from <= day <= to (YYYY-MM-DD), oldest first. Empty bounds are open.
func (s *Store) List(ctx context.Context, from, to string) ([]indicators.Snapshot, error) {
	ds := s.dialect.From(tableSnapshots).Prepared(true).Select("payload")
	if from != "" {
		ds = ds.Where(goqu.C("day").Gte(from))
	}
	if to != "" {
		ds = ds.Where(goqu.C("day").Lte(to))
	}
	query, args, err := ds.Order(goqu.C("day").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []indicators.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap indicators.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ValidDay reports whether day is a YYYY-MM-DD date.
func ValidDay(day string) bool {
	_, err := time.Parse("2006-01-02", day)
	return err == nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
