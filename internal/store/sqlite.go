package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/actionplan/internal/history"
	"github.com/joss/actionplan/internal/plan"
)

// SQLite persists plans in a local sqlite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// Verify SQLite implements PlanStore
var _ PlanStore = (*SQLite)(nil)

// Open opens (and migrates) the database at path, creating the parent
// directory when needed.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		analysis_id TEXT,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_updated ON plans(updated_at DESC);

	CREATE TABLE IF NOT EXISTS phases (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		label TEXT NOT NULL,
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_phases_plan ON phases(plan_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		phase_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		estimated_time TEXT NOT NULL DEFAULT '',
		resources_json TEXT,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (phase_id) REFERENCES phases(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_phase_position
		ON tasks(phase_id, position) WHERE deleted = 0;

	CREATE TABLE IF NOT EXISTS task_dependencies (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		prerequisite_id TEXT NOT NULL,
		dependent_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(prerequisite_id, dependent_id),
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_deps_plan ON task_dependencies(plan_id);

	CREATE TABLE IF NOT EXISTS progress_snapshots (
		plan_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		total_tasks INTEGER NOT NULL,
		completed_tasks INTEGER NOT NULL,
		per_phase_json TEXT NOT NULL,
		overall_percent INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (plan_id, version)
	);

	CREATE TABLE IF NOT EXISTS task_history (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		actor_id TEXT NOT NULL,
		op TEXT NOT NULL,
		target_id TEXT NOT NULL,
		mutation_json TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		override INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(plan_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_history_plan ON task_history(plan_id, version);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the connection is alive.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Commit writes the new plan state, its history entry and the optional
// snapshot in one transaction. The stored version must be exactly one
// behind the committed state; anything else means the serializer was
// bypassed and the write is refused.
func (s *SQLite) Commit(ctx context.Context, p *plan.Plan, entry *history.Entry, snap *plan.ProgressSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM plans WHERE id = ?`, p.ID).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if p.Version != 1 {
			return &plan.VersionConflictError{PlanID: p.ID, Expected: p.Version - 1, Actual: 0}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plans (id, analysis_id, title, status, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.AnalysisID, p.Title, p.Status, p.Version, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if stored != p.Version-1 {
			return &plan.VersionConflictError{PlanID: p.ID, Expected: p.Version - 1, Actual: stored}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE plans SET analysis_id = ?, title = ?, status = ?, version = ?, updated_at = ?
			WHERE id = ?
		`, p.AnalysisID, p.Title, p.Status, p.Version, p.UpdatedAt, p.ID)
		if err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
	}

	// Rewrite the plan's structural rows. Plans hold tens of tasks, so
	// replacing the rows beats reconciling them.
	for _, q := range []string{
		`DELETE FROM task_dependencies WHERE plan_id = ?`,
		`DELETE FROM tasks WHERE phase_id IN (SELECT id FROM phases WHERE plan_id = ?)`,
		`DELETE FROM phases WHERE plan_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, p.ID); err != nil {
			return fmt.Errorf("clear plan rows: %w", err)
		}
	}

	for _, ph := range p.Phases {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO phases (id, plan_id, ordinal, label) VALUES (?, ?, ?, ?)
		`, ph.ID, p.ID, ph.Ordinal, ph.Label)
		if err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}
		for _, t := range ph.Tasks {
			resources, _ := json.Marshal(t.Resources)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tasks (id, phase_id, title, description, estimated_time,
					resources_json, position, status, created_by, deleted, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, ph.ID, t.Title, t.Description, t.EstimatedTime,
				string(resources), t.Order, t.Status, t.CreatedBy, t.Deleted, t.CreatedAt, t.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
	}

	for _, e := range p.Edges {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (id, plan_id, prerequisite_id, dependent_id, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID, p.ID, e.PrerequisiteID, e.DependentID, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert dependency %s: %w", e.ID, err)
		}
	}

	if entry != nil {
		mutation, err := json.Marshal(entry.Mutation)
		if err != nil {
			return fmt.Errorf("marshal mutation: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_history (id, plan_id, version, actor_id, op, target_id,
				mutation_json, before_json, after_json, override, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.PlanID, entry.Version, entry.ActorID, entry.Op, entry.TargetID,
			string(mutation), nullable(entry.Before), nullable(entry.After), entry.Override, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	if snap != nil {
		perPhase, _ := json.Marshal(snap.PerPhase)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress_snapshots (plan_id, version, total_tasks, completed_tasks,
				per_phase_json, overall_percent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, snap.PlanID, snap.Version, snap.TotalTasks, snap.CompletedTasks,
			string(perPhase), snap.OverallPercent, snap.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	return tx.Commit()
}

func nullable(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// GetPlan loads the full plan by ID.
func (s *SQLite) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	p := &plan.Plan{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, analysis_id, title, status, version, created_at, updated_at
		FROM plans WHERE id = ?
	`, id).Scan(&p.ID, &p.AnalysisID, &p.Title, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, plan.NewNotFoundError("plan", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	phaseRows, err := s.db.QueryContext(ctx, `
		SELECT id, ordinal, label FROM phases WHERE plan_id = ? ORDER BY ordinal
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load phases: %w", err)
	}
	defer phaseRows.Close()

	for phaseRows.Next() {
		ph := &plan.Phase{PlanID: p.ID}
		if err := phaseRows.Scan(&ph.ID, &ph.Ordinal, &ph.Label); err != nil {
			return nil, err
		}
		p.Phases = append(p.Phases, ph)
	}
	if err := phaseRows.Err(); err != nil {
		return nil, err
	}

	for _, ph := range p.Phases {
		if err := s.loadTasks(ctx, ph); err != nil {
			return nil, err
		}
	}

	depRows, err := s.db.QueryContext(ctx, `
		SELECT id, prerequisite_id, dependent_id, created_at
		FROM task_dependencies WHERE plan_id = ? ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		e := &plan.Edge{}
		if err := depRows.Scan(&e.ID, &e.PrerequisiteID, &e.DependentID, &e.CreatedAt); err != nil {
			return nil, err
		}
		p.Edges = append(p.Edges, e)
	}
	return p, depRows.Err()
}

func (s *SQLite) loadTasks(ctx context.Context, ph *plan.Phase) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, estimated_time, resources_json,
			position, status, created_by, deleted, created_at, updated_at
		FROM tasks WHERE phase_id = ? ORDER BY deleted, position
	`, ph.ID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &plan.Task{PhaseID: ph.ID}
		var resources sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.EstimatedTime, &resources,
			&t.Order, &t.Status, &t.CreatedBy, &t.Deleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		if resources.Valid && resources.String != "null" {
			json.Unmarshal([]byte(resources.String), &t.Resources)
		}
		ph.Tasks = append(ph.Tasks, t)
	}
	return rows.Err()
}

// ListPlans returns plan headers ordered by most recent update.
func (s *SQLite) ListPlans(ctx context.Context, limit int) ([]*plan.Plan, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, analysis_id, title, status, version, created_at, updated_at
		FROM plans ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p := &plan.Plan{}
		if err := rows.Scan(&p.ID, &p.AnalysisID, &p.Title, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ListHistory returns entries with version > fromVersion in ascending
// version order. limit <= 0 means no limit.
func (s *SQLite) ListHistory(ctx context.Context, planID string, fromVersion int64, limit int) ([]history.Entry, error) {
	q := `
		SELECT id, plan_id, version, actor_id, op, target_id,
			mutation_json, before_json, after_json, override, created_at
		FROM task_history WHERE plan_id = ? AND version > ?
		ORDER BY version ASC
	`
	args := []any{planID, fromVersion}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e             history.Entry
			mutation      string
			before, after sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PlanID, &e.Version, &e.ActorID, &e.Op, &e.TargetID,
			&mutation, &before, &after, &e.Override, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(mutation), &e.Mutation); err != nil {
			return nil, fmt.Errorf("decode mutation at version %d: %w", e.Version, err)
		}
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListSnapshots returns the progress trend in ascending version order.
func (s *SQLite) ListSnapshots(ctx context.Context, planID string, limit int) ([]plan.ProgressSnapshot, error) {
	q := `
		SELECT plan_id, version, total_tasks, completed_tasks,
			per_phase_json, overall_percent, created_at
		FROM progress_snapshots WHERE plan_id = ? ORDER BY version ASC
	`
	args := []any{planID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []plan.ProgressSnapshot
	for rows.Next() {
		var (
			snap     plan.ProgressSnapshot
			perPhase string
		)
		if err := rows.Scan(&snap.PlanID, &snap.Version, &snap.TotalTasks, &snap.CompletedTasks,
			&perPhase, &snap.OverallPercent, &snap.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(perPhase), &snap.PerPhase); err != nil {
			return nil, fmt.Errorf("decode snapshot at version %d: %w", snap.Version, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
