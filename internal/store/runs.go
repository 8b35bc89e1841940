package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const runsComponent = "runs"

func runMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create runs and run_results tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE runs (
						id          TEXT PRIMARY KEY,
						started_at  DATETIME NOT NULL,
						finished_at DATETIME NOT NULL,
						username    TEXT NOT NULL DEFAULT '',
						port        INTEGER NOT NULL,
						timeout_ms  INTEGER NOT NULL,
						parallelism INTEGER NOT NULL
					)`,
					`CREATE TABLE run_results (
						run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
						position         INTEGER NOT NULL,
						server           TEXT NOT NULL,
						status           TEXT NOT NULL,
						response_time_ms REAL,
						error            TEXT NOT NULL DEFAULT '',
						checked_at       DATETIME,
						PRIMARY KEY (run_id, position)
					)`,
					`CREATE INDEX idx_run_results_server ON run_results(server)`,
					`CREATE INDEX idx_runs_started_at ON runs(started_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// RunStore records batch runs and their per-target results.
type RunStore struct {
	db *SQLiteStore
}

// NewRunStore migrates the run schema and returns a store bound to db.
func NewRunStore(ctx context.Context, db *SQLiteStore) (*RunStore, error) {
	if err := db.Migrate(ctx, runsComponent, runMigrations()); err != nil {
		return nil, fmt.Errorf("migrate runs: %w", err)
	}
	return &RunStore{db: db}, nil
}

// SaveRun inserts the run and every result atomically. Passwords are never stored.
func (s *RunStore) SaveRun(ctx context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: missing run id")
	}
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, finished_at, username, port, timeout_ms, parallelism)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Config.Username,
			run.Config.Port, run.Config.Timeout.Milliseconds(), run.Parallelism,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_results (run_id, position, server, status, response_time_ms, error, checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare result insert: %w", err)
		}
		defer stmt.Close()

		for i := range run.Results {
			r := &run.Results[i]
			var rt sql.NullFloat64
			if r.Measured {
				rt = sql.NullFloat64{Float64: r.ResponseTimeMs(), Valid: true}
			}
			var checked sql.NullTime
			if !r.CheckedAt.IsZero() {
				checked = sql.NullTime{Time: r.CheckedAt.UTC(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, run.ID, i, r.Server, string(r.Status), rt, r.Error, checked); err != nil {
				return fmt.Errorf("insert result %d of run %s: %w", i, run.ID, err)
			}
		}
		return nil
	})
}

// GetRun loads a run and its results in their original input order.
func (s *RunStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	run := &models.Run{ID: id}
	var timeoutMs int64
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT started_at, finished_at, username, port, timeout_ms, parallelism
		FROM runs WHERE id = ?`, id,
	).Scan(&run.StartedAt, &run.FinishedAt, &run.Config.Username, &run.Config.Port, &timeoutMs, &run.Parallelism)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Config.Timeout = time.Duration(timeoutMs) * time.Millisecond

	results, err := s.results(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without their results.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, started_at, finished_at, username, port, timeout_ms, parallelism
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		var timeoutMs int64
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Config.Username,
			&run.Config.Port, &timeoutMs, &run.Parallelism); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Config.Timeout = time.Duration(timeoutMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *RunStore) results(ctx context.Context, runID string) ([]models.CheckResult, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT server, status, response_time_ms, error, checked_at
		FROM run_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.CheckResult
	for rows.Next() {
		var (
			r       models.CheckResult
			status  string
			rt      sql.NullFloat64
			checked sql.NullTime
		)
		if err := rows.Scan(&r.Server, &status, &rt, &r.Error, &checked); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = models.Status(status)
		if rt.Valid {
			r.ResponseTime = time.Duration(rt.Float64 * float64(time.Millisecond))
			r.Measured = true
		}
		if checked.Valid {
			r.CheckedAt = checked.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
