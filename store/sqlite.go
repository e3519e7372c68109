package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLite stores schedules and tasks in a SQLite database through the pure Go
// modernc.org/sqlite driver. All access goes through a single connection.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path

	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db, now: time.Now}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS osc_schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM osc_schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	for i, migration := range []string{migrationV1} {
		version := i + 1
		if version <= current {
			continue
		}

		if err := s.apply(ctx, version, migration); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLite) apply(ctx context.Context, version int, migration string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", version, err)
	}

	for _, stmt := range strings.Split(migration, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("applying migration %d: %w", version, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO osc_schema_migrations (version, applied_at) VALUES (?, ?)",
		version, formatTime(s.now())); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("recording migration %d: %w", version, err)
	}

	return tx.Commit()
}

func (s *SQLite) CreateSchedule(ctx context.Context, sch *Schedule) error {
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (datasource_id, job_parameters, creator, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sch.DatasourceID, sch.JobParameters, sch.Creator, sch.OrganizationID, formatTime(sch.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}

	sch.ID, err = res.LastInsertId()

	return err
}

func (s *SQLite) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	var (
		sch       Schedule
		createdAt string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, datasource_id, job_parameters, creator, organization_id, created_at
		FROM schedules WHERE id = ?`, id).
		Scan(&sch.ID, &sch.DatasourceID, &sch.JobParameters, &sch.Creator, &sch.OrganizationID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("loading schedule %d: %w", id, err)
	}

	if sch.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &sch, nil
}

func (s *SQLite) CreateTask(ctx context.Context, t *ScheduleTask) error {
	if _, err := s.GetSchedule(ctx, t.ScheduleID); err != nil {
		return err
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	if t.Status == "" {
		t.Status = StatusPreparing
	}

	t.UpdatedAt = t.CreatedAt

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_tasks (schedule_id, parameters, status, progress_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ScheduleID, t.Parameters, string(t.Status), t.ProgressPercentage,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting schedule task: %w", err)
	}

	t.ID, err = res.LastInsertId()

	return err
}

const taskColumns = "id, schedule_id, parameters, status, progress_percentage, created_at, updated_at"

func (s *SQLite) GetTask(ctx context.Context, id int64) (*ScheduleTask, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM schedule_tasks WHERE id = ?", id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule task %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("loading schedule task %d: %w", id, err)
	}

	return t, nil
}

func (s *SQLite) ListTasks(ctx context.Context, scheduleID int64) ([]*ScheduleTask, error) {
	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM schedule_tasks WHERE schedule_id = ? ORDER BY id", scheduleID)
}

func (s *SQLite) ListTasksByStatus(ctx context.Context, statuses ...TaskStatus) ([]*ScheduleTask, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))

	for i, status := range statuses {
		args[i] = string(status)
	}

	return s.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM schedule_tasks WHERE status IN ("+placeholders+") ORDER BY id", args...)
}

func (s *SQLite) UpdateTask(ctx context.Context, t *ScheduleTask) error {
	t.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_tasks
		SET schedule_id = ?, parameters = ?, status = ?, progress_percentage = ?, updated_at = ?
		WHERE id = ?`,
		t.ScheduleID, t.Parameters, string(t.Status), t.ProgressPercentage, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("updating schedule task %d: %w", t.ID, err)
	}

	return expectOneRow(res, "schedule task", t.ID)
}

func (s *SQLite) UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE schedule_tasks SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating status of schedule task %d: %w", id, err)
	}

	return expectOneRow(res, "schedule task", id)
}

// UpdateTaskParameters replaces only the parameters of a task, leaving its
// status untouched.
func (s *SQLite) UpdateTaskParameters(ctx context.Context, id int64, params string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE schedule_tasks SET parameters = ?, updated_at = ? WHERE id = ?",
		params, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating parameters of schedule task %d: %w", id, err)
	}

	return expectOneRow(res, "schedule task", id)
}

func (s *SQLite) UpdateJobParameters(ctx context.Context, scheduleID int64, params string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE schedules SET job_parameters = ? WHERE id = ?", params, scheduleID)
	if err != nil {
		return fmt.Errorf("updating job parameters of schedule %d: %w", scheduleID, err)
	}

	return expectOneRow(res, "schedule", scheduleID)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryTasks(ctx context.Context, query string, args ...any) ([]*ScheduleTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schedule tasks: %w", err)
	}
	defer rows.Close()

	var out []*ScheduleTask

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule task: %w", err)
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*ScheduleTask, error) {
	var (
		t                    ScheduleTask
		status               string
		createdAt, updatedAt string
	)

	if err := row.Scan(&t.ID, &t.ScheduleID, &t.Parameters, &status,
		&t.ProgressPercentage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Status = TaskStatus(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &t, nil
}

func expectOneRow(res sql.Result, kind string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}

	return t, nil
}
