package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sigreer/diskclean/internal/clean"
	"github.com/sigreer/diskclean/internal/hints"
)

var _ clean.Recorder = (*DB)(nil)

// StartRun inserts a run in the running state
func (d *DB) StartRun(ctx context.Context, run clean.RunInfo) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO clean_runs (uuid, node, managers, steps, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Node, nullString(run.Managers), run.Steps, clean.StatusRunning, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecordStep stores the outcome of one step of a run
func (d *DB) RecordStep(ctx context.Context, runID string, result clean.StepResult) error {
	id, err := d.runRowID(ctx, runID)
	if err != nil {
		return err
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO step_results (run_id, step, priority, status, error, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, result.Step, result.Priority, result.Status, nullString(result.Error),
		result.StartedAt, result.Duration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run
func (d *DB) FinishRun(ctx context.Context, runID string, status clean.RunStatus, errMsg string) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE clean_runs SET status = ?, error = ?, finished_at = ?
		WHERE uuid = ?
	`, status, nullString(errMsg), d.now(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordRootDisks stores the root disks a run matched
func (d *DB) RecordRootDisks(ctx context.Context, runID string, disks []hints.Device) error {
	id, err := d.runRowID(ctx, runID)
	if err != nil {
		return err
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, disk := range disks {
		var size sql.NullInt64
		if disk.Size != nil {
			size = sql.NullInt64{Int64: int64(*disk.Size), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO root_disks (run_id, name, serial, wwn, model, by_path, size_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, disk.Name, nullStringPtr(disk.Serial), nullStringPtr(disk.WWN),
			nullStringPtr(disk.Model), nullStringPtr(disk.ByPath), size)
		if err != nil {
			return fmt.Errorf("failed to record root disk %s: %w", disk.Name, err)
		}
	}

	return tx.Commit()
}

// GetRuns returns the most recent runs, newest first
func (d *DB) GetRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, uuid, node, managers, steps, status, error, started_at, finished_at
		FROM clean_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by its UUID, or nil if there is none
func (d *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT id, uuid, node, managers, steps, status, error, started_at, finished_at
		FROM clean_runs
		WHERE uuid = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetStepResults returns the steps of a run in execution order
func (d *DB) GetStepResults(ctx context.Context, runID string) ([]clean.StepResult, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT s.step, s.priority, s.status, s.error, s.started_at, s.duration_ns
		FROM step_results s
		JOIN clean_runs r ON r.id = s.run_id
		WHERE r.uuid = ?
		ORDER BY s.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step results: %w", err)
	}
	defer rows.Close()

	var results []clean.StepResult
	for rows.Next() {
		var res clean.StepResult
		var errMsg sql.NullString
		var started sql.NullTime
		var durationNS sql.NullInt64

		if err := rows.Scan(&res.Step, &res.Priority, &res.Status, &errMsg, &started, &durationNS); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		res.Error = errMsg.String
		res.StartedAt = started.Time
		res.Duration = time.Duration(durationNS.Int64)
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetRootDisks returns the root disks recorded for a run
func (d *DB) GetRootDisks(ctx context.Context, runID string) ([]hints.Device, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT rd.name, rd.serial, rd.wwn, rd.model, rd.by_path, rd.size_bytes
		FROM root_disks rd
		JOIN clean_runs r ON r.id = rd.run_id
		WHERE r.uuid = ?
		ORDER BY rd.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query root disks: %w", err)
	}
	defer rows.Close()

	var disks []hints.Device
	for rows.Next() {
		var disk hints.Device
		var serial, wwn, model, byPath sql.NullString
		var size sql.NullInt64

		if err := rows.Scan(&disk.Name, &serial, &wwn, &model, &byPath, &size); err != nil {
			return nil, fmt.Errorf("failed to scan root disk: %w", err)
		}
		disk.Serial = stringPtr(serial)
		disk.WWN = stringPtr(wwn)
		disk.Model = stringPtr(model)
		disk.ByPath = stringPtr(byPath)
		if size.Valid {
			v := uint64(size.Int64)
			disk.Size = &v
		}
		disks = append(disks, disk)
	}
	return disks, rows.Err()
}

func (d *DB) runRowID(ctx context.Context, runID string) (int64, error) {
	var id int64
	err := d.conn.QueryRowContext(ctx, "SELECT id FROM clean_runs WHERE uuid = ?", runID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up run: %w", err)
	}
	return id, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var managers, errMsg sql.NullString
	var finished sql.NullTime

	err := s.Scan(
		&run.ID, &run.UUID, &run.Node, &managers, &run.Steps,
		&run.Status, &errMsg, &run.StartedAt, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Managers = managers.String
	run.Error = errMsg.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
