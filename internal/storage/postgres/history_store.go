// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/job-progress-tracker/internal/store"
)

const defaultHistoryTable = "job_progress_history"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// HistoryStoreConfig controls the Postgres connection pool used for history rows.
type HistoryStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// HistoryStore implements store.HistoryRepository using Postgres.
type HistoryStore struct {
	pool  queryExecCloser
	table string
}

// NewHistoryStore creates a Postgres-backed HistoryStore using the provided config.
func NewHistoryStore(ctx context.Context, cfg HistoryStoreConfig) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := historyTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &HistoryStore{pool: pool, table: table}, nil
}

// NewHistoryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewHistoryStoreWithPool(pool queryExecCloser, table string) (*HistoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := historyTable(table)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{pool: pool, table: table}, nil
}

func historyTable(table string) (string, error) {
	if table == "" {
		table = defaultHistoryTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// AppendHistory inserts one row per entry.
func (s *HistoryStore) AppendHistory(ctx context.Context, entries []store.HistoryEntry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	stage,
	status,
	total,
	completed,
	elapsed_ms,
	note,
	recorded_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	for _, entry := range entries {
		if entry.JobID == "" {
			return fmt.Errorf("history entry missing job id")
		}
		_, err := s.pool.Exec(ctx, query,
			entry.JobID,
			entry.Stage,
			entry.Status,
			entry.Total,
			entry.Completed,
			entry.Elapsed.Milliseconds(),
			entry.Note,
			entry.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert history for job %s: %w", entry.JobID, err)
		}
	}
	return nil
}

// ListHistory returns one job's entries, oldest first.
func (s *HistoryStore) ListHistory(ctx context.Context, jobID string, limit, offset int) ([]store.HistoryEntry, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	query := fmt.Sprintf(`
SELECT job_id, stage, status, total, completed, elapsed_ms, note, recorded_at
FROM %s
WHERE job_id = $1
ORDER BY recorded_at ASC, id ASC
LIMIT $2 OFFSET $3`, s.table)

	rows, err := s.pool.Query(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []store.HistoryEntry{}
	for rows.Next() {
		var (
			entry     store.HistoryEntry
			elapsedMS int64
		)
		if err := rows.Scan(
			&entry.JobID,
			&entry.Stage,
			&entry.Status,
			&entry.Total,
			&entry.Completed,
			&elapsedMS,
			&entry.Note,
			&entry.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	if len(entries) == 0 && offset == 0 {
		return nil, store.ErrNotFound
	}
	return entries, nil
}
