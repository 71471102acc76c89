// Package postgres persists result tables into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "harvest_results"

var copyColumns = []string{"run_id", "row_index", "row_key", "completed", "cells", "warnings", "written_at"}

// Config controls the Postgres connection pool used by the sink.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type beginCloser interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// TableSink replaces a run's rows in one transaction on every write. The
// expected schema is:
//
//	CREATE TABLE harvest_results (
//	  run_id     TEXT        NOT NULL,
//	  row_index  INTEGER     NOT NULL,
//	  row_key    TEXT        NOT NULL,
//	  completed  BOOLEAN     NOT NULL,
//	  cells      JSONB       NOT NULL,
//	  warnings   JSONB       NOT NULL,
//	  written_at TIMESTAMPTZ NOT NULL,
//	  PRIMARY KEY (run_id, row_key)
//	);
type TableSink struct {
	pool  beginCloser
	table string
	runID string
	now   func() time.Time
}

// NewTableSink connects to Postgres.
func NewTableSink(ctx context.Context, cfg Config, runID string) (*TableSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sink, err := NewTableSinkWithPool(pool, cfg.Table, runID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// NewTableSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewTableSinkWithPool(pool beginCloser, table, runID string) (*TableSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TableSink{pool: pool, table: table, runID: runID, now: time.Now}, nil
}

// Close releases the underlying pool resources.
func (s *TableSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Write implements harvest.ResultSink.
func (s *TableSink) Write(ctx context.Context, table *harvest.ResultTable) (string, error) {
	rows, err := s.copyRows(table)
	if err != nil {
		return "", err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	fail := func(err error) (string, error) {
		_ = tx.Rollback(ctx)
		return "", err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", s.table), s.runID); err != nil {
		return fail(fmt.Errorf("delete previous rows: %w", err))
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fail(fmt.Errorf("copy rows: %w", err))
	}
	if int(n) != len(rows) {
		return fail(fmt.Errorf("copy rows: wrote %d of %d", n, len(rows)))
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}
	return fmt.Sprintf("postgres:%s/%s", s.table, s.runID), nil
}

func (s *TableSink) copyRows(table *harvest.ResultTable) ([][]any, error) {
	header := table.Header()
	records := table.Records()
	writtenAt := s.now().UTC()
	out := make([][]any, 0, len(records))
	for i, row := range table.Rows() {
		cells := make(map[string]string, len(header))
		for c, name := range header {
			if name == "" {
				continue
			}
			cells[name] = records[i][c]
		}
		cellsJSON, err := json.Marshal(cells)
		if err != nil {
			return nil, fmt.Errorf("marshal cells for %q: %w", row.Item.Key, err)
		}
		warnings := row.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		warningsJSON, err := json.Marshal(warnings)
		if err != nil {
			return nil, fmt.Errorf("marshal warnings for %q: %w", row.Item.Key, err)
		}
		out = append(out, []any{s.runID, row.Item.Index, row.Item.Key, row.Completed, cellsJSON, warningsJSON, writtenAt})
	}
	return out, nil
}
