package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acadhub/thesis-supervision-api/internal/models"
)

const engagementColumns = `id, title, description, status, student_id, advisor_id, created_at, updated_at`

// EngagementRepository handles persistence of thesis engagements.
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository constructs the repository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// FindByID returns an engagement by its ID.
func (r *EngagementRepository) FindByID(ctx context.Context, id string) (*models.Engagement, error) {
	query := fmt.Sprintf(`SELECT %s FROM engagements WHERE id = $1 LIMIT 1`, engagementColumns)
	var engagement models.Engagement
	if err := r.db.GetContext(ctx, &engagement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find engagement by id: %w", err)
	}
	return &engagement, nil
}

// FindDetailByID returns an engagement with principal names.
func (r *EngagementRepository) FindDetailByID(ctx context.Context, id string) (*models.EngagementDetail, error) {
	const query = `SELECT e.id, e.title, e.description, e.status, e.student_id, e.advisor_id, e.created_at, e.updated_at,
        s.full_name AS student_name, p.full_name AS advisor_name
        FROM engagements e
        JOIN students s ON s.id = e.student_id
        JOIN instructors p ON p.id = e.advisor_id
        WHERE e.id = $1`
	var detail models.EngagementDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find engagement detail: %w", err)
	}
	return &detail, nil
}

// ExistsForStudent reports whether the student already has an engagement.
func (r *EngagementRepository) ExistsForStudent(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM engagements WHERE student_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student engagement: %w", err)
	}
	return true, nil
}

// ListByStudent returns the engagements for a student (at most one by
// invariant, returned as a slice for a uniform listing contract).
func (r *EngagementRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EngagementDetail, error) {
	const query = `SELECT e.id, e.title, e.description, e.status, e.student_id, e.advisor_id, e.created_at, e.updated_at,
        s.full_name AS student_name, p.full_name AS advisor_name
        FROM engagements e
        JOIN students s ON s.id = e.student_id
        JOIN instructors p ON p.id = e.advisor_id
        WHERE e.student_id = $1 ORDER BY e.created_at DESC`
	var engagements []models.EngagementDetail
	if err := r.db.SelectContext(ctx, &engagements, query, studentID); err != nil {
		return nil, fmt.Errorf("list engagements by student: %w", err)
	}
	return engagements, nil
}

// ListByAdvisor returns the engagements advised by an instructor.
func (r *EngagementRepository) ListByAdvisor(ctx context.Context, advisorID string) ([]models.EngagementDetail, error) {
	const query = `SELECT e.id, e.title, e.description, e.status, e.student_id, e.advisor_id, e.created_at, e.updated_at,
        s.full_name AS student_name, p.full_name AS advisor_name
        FROM engagements e
        JOIN students s ON s.id = e.student_id
        JOIN instructors p ON p.id = e.advisor_id
        WHERE e.advisor_id = $1 ORDER BY e.created_at DESC`
	var engagements []models.EngagementDetail
	if err := r.db.SelectContext(ctx, &engagements, query, advisorID); err != nil {
		return nil, fmt.Errorf("list engagements by advisor: %w", err)
	}
	return engagements, nil
}

// UpdateStatus sets the engagement status.
func (r *EngagementRepository) UpdateStatus(ctx context.Context, id string, status models.EngagementStatus) error {
	const query = `UPDATE engagements SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update engagement status: %w", err)
	}
	return nil
}

// CascadeDelete removes the engagement and everything hanging off it in one
// transaction, children before parent. It returns the stored paths of all
// removed files so the caller can clean the file store afterwards.
func (r *EngagementRepository) CascadeDelete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cascade delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var paths []string
	if err = tx.SelectContext(ctx, &paths,
		`SELECT a.stored_path FROM task_attachments a JOIN tasks t ON t.id = a.task_id WHERE t.engagement_id = $1`, id,
	); err != nil {
		err = fmt.Errorf("collect attachment paths: %w", err)
		return nil, err
	}

	var thesisPaths []string
	if err = tx.SelectContext(ctx, &thesisPaths,
		`SELECT stored_path FROM thesis_files WHERE engagement_id = $1`, id,
	); err != nil {
		err = fmt.Errorf("collect thesis file paths: %w", err)
		return nil, err
	}
	paths = append(paths, thesisPaths...)

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM task_attachments WHERE task_id IN (SELECT id FROM tasks WHERE engagement_id = $1)`, id,
	); err != nil {
		err = fmt.Errorf("delete task attachments: %w", err)
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE engagement_id = $1`, id); err != nil {
		err = fmt.Errorf("delete tasks: %w", err)
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM thesis_files WHERE engagement_id = $1`, id); err != nil {
		err = fmt.Errorf("delete thesis files: %w", err)
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM engagements WHERE id = $1`, id); err != nil {
		err = fmt.Errorf("delete engagement: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit cascade delete: %w", err)
		return nil, err
	}
	return paths, nil
}

// CreateThesisFile records a standalone thesis document.
func (r *EngagementRepository) CreateThesisFile(ctx context.Context, file *models.ThesisFile) error {
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO thesis_files (id, engagement_id, filename, stored_path, content_type, size_bytes, uploaded_at)
        VALUES (:id, :engagement_id, :filename, :stored_path, :content_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create thesis file: %w", err)
	}
	return nil
}

// ListThesisFiles returns the thesis documents for an engagement.
func (r *EngagementRepository) ListThesisFiles(ctx context.Context, engagementID string) ([]models.ThesisFile, error) {
	const query = `SELECT id, engagement_id, filename, stored_path, content_type, size_bytes, uploaded_at
        FROM thesis_files WHERE engagement_id = $1 ORDER BY uploaded_at DESC`
	var files []models.ThesisFile
	if err := r.db.SelectContext(ctx, &files, query, engagementID); err != nil {
		return nil, fmt.Errorf("list thesis files: %w", err)
	}
	return files, nil
}
