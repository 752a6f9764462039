package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"teamboard/internal/model"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `id, title, description, status, priority, project_id, assignee_ids,
        due_date, sort_order, created_by, created_at, updated_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.ProjectID,
		&t.AssigneeIDs,
		&t.DueDate,
		&t.Order,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.String("project_id", t.ProjectID),
		zap.String("title", t.Title),
		zap.String("status", string(t.Status)),
	)
	query := `
        INSERT INTO tasks (id, title, description, status, priority, project_id, assignee_ids,
                           due_date, sort_order, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.ProjectID,
		nonNil(t.AssigneeIDs),
		t.DueDate,
		t.Order,
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("project_id", t.ProjectID),
		)
		return translate(err)
	}
	r.logger.Info("Task inserted successfully",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// ListByProject returns the project's tasks sorted by order, then creation.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + `
        FROM tasks
        WHERE project_id = $1
        ORDER BY sort_order ASC, created_at ASC`
	return r.list(ctx, query, projectID)
}

// ListByAssignee returns tasks assigned to userID, earliest due date first,
// tasks without a due date last.
func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + `
        FROM tasks
        WHERE $1 = ANY(assignee_ids)
        ORDER BY due_date ASC NULLS LAST, created_at ASC`
	return r.list(ctx, query, userID)
}

// ListDone returns done tasks updated at or after since; a zero since means all.
func (r *TaskRepository) ListDone(ctx context.Context, since time.Time) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + `
        FROM tasks
        WHERE status = 'done' AND updated_at >= $1
        ORDER BY updated_at DESC`
	return r.list(ctx, query, since)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("Tasks listed", zap.Int("count", len(tasks)))
	return tasks, nil
}

// StatusesByProject loads only the status column, enough for progress.
func (r *TaskRepository) StatusesByProject(ctx context.Context, projectID string) ([]model.TaskStatus, error) {
	rows, err := r.db.Query(ctx, `SELECT status FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to query task statuses", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[model.TaskStatus])
}

// CountByStatus counts every task grouped by status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var (
			status model.TaskStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// NextOrder returns the order that appends a task to the end of its lane.
func (r *TaskRepository) NextOrder(ctx context.Context, projectID string, status model.TaskStatus) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks WHERE project_id = $1 AND status = $2`,
		projectID, status,
	).Scan(&next)
	return next, err
}

// Update writes every mutable field of t.
func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	r.logger.Debug("Updating task", zap.String("task_id", t.ID))
	query := `
        UPDATE tasks
        SET title = $2, description = $3, status = $4, priority = $5, assignee_ids = $6,
            due_date = $7, sort_order = $8, updated_at = $9
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		nonNil(t.AssigneeIDs),
		t.DueDate,
		t.Order,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update task", zap.String("task_id", t.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Task updated", zap.String("task_id", t.ID), zap.String("status", string(t.Status)))
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	r.logger.Debug("Deleting task", zap.String("task_id", id))
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.String("task_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByProject removes every task of a project and returns how many.
func (r *TaskRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to delete project tasks", zap.String("project_id", projectID), zap.Error(err))
		return 0, err
	}
	r.logger.Info("Project tasks deleted",
		zap.String("project_id", projectID),
		zap.Int64("rows_affected", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

// Reorder applies every (order, status) pair in one batch inside a single
// transaction. Unknown ids are ignored.
func (r *TaskRepository) Reorder(ctx context.Context, items []model.ReorderItem) error {
	if len(items) == 0 {
		return nil
	}
	r.logger.Debug("Reordering tasks", zap.Int("count", len(items)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`UPDATE tasks SET sort_order = $2, status = $3, updated_at = $4 WHERE id = $1`,
			it.ID, it.Order, it.Status, now,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.logger.Error("Failed to apply reorder batch", zap.Int("count", len(items)), zap.Error(err))
		return fmt.Errorf("reorder batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}

	r.logger.Info("Tasks reordered", zap.Int("count", len(items)))
	return nil
}
