package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadhub/thesis-supervision-api/internal/models"
)

const taskColumns = `id, title, description, due_date, status, engagement_id, created_at, updated_at`

// TaskRepository handles persistence of engagement tasks and their
// attachments.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns a task by its ID.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 LIMIT 1`, taskColumns)
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	return &task, nil
}

// ListByEngagement returns all tasks of an engagement, oldest first.
func (r *TaskRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE engagement_id = $1 ORDER BY created_at ASC`, taskColumns)
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, engagementID); err != nil {
		return nil, fmt.Errorf("list tasks by engagement: %w", err)
	}
	return tasks, nil
}

// Create persists a new task record.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.TaskTodo
	}

	const query = `INSERT INTO tasks (id, title, description, due_date, status, engagement_id, created_at, updated_at)
        VALUES (:id, :title, :description, :due_date, :status, :engagement_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update persists all mutable fields of a task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET title = :title, description = :description, due_date = :due_date, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateStatus sets only the task status.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error {
	const query = `UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// Delete removes a task and its attachments in one transaction. Deleting an
// absent task is a no-op.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete task: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM task_attachments WHERE task_id = $1`, id); err != nil {
		err = fmt.Errorf("delete task attachments: %w", err)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		err = fmt.Errorf("delete task: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit delete task: %w", err)
		return err
	}
	return nil
}

// CreateAttachment records a file uploaded against a task.
func (r *TaskRepository) CreateAttachment(ctx context.Context, attachment *models.TaskAttachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO task_attachments (id, task_id, filename, stored_path, uploaded_at)
        VALUES (:id, :task_id, :filename, :stored_path, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attachment); err != nil {
		return fmt.Errorf("create task attachment: %w", err)
	}
	return nil
}

// ListAttachments returns the attachments of a task, newest first.
func (r *TaskRepository) ListAttachments(ctx context.Context, taskID string) ([]models.TaskAttachment, error) {
	const query = `SELECT id, task_id, filename, stored_path, uploaded_at FROM task_attachments WHERE task_id = $1 ORDER BY uploaded_at DESC`
	var attachments []models.TaskAttachment
	if err := r.db.SelectContext(ctx, &attachments, query, taskID); err != nil {
		return nil, fmt.Errorf("list task attachments: %w", err)
	}
	return attachments, nil
}
