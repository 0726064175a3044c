package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/acadhub/thesis-supervision-api/internal/models"
)

// ErrUniqueViolation is returned when an insert trips a uniqueness
// constraint, letting services map it to a domain conflict.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrStalePending is returned when a status-guarded update matched no
// PENDING row: a concurrent responder resolved the invitation first.
var ErrStalePending = errors.New("invitation is no longer pending")

const invitationColumns = `id, proposed_title, proposed_description, status, instructor_id, student_id, created_at, responded_at`

// InvitationRepository handles persistence of advising invitations.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs the repository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// FindByID returns an invitation by its ID.
func (r *InvitationRepository) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM invitations WHERE id = $1 LIMIT 1`, invitationColumns)
	var invitation models.Invitation
	if err := r.db.GetContext(ctx, &invitation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invitation by id: %w", err)
	}
	return &invitation, nil
}

// HasPending reports whether the student currently has a PENDING invitation.
func (r *InvitationRepository) HasPending(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM invitations WHERE student_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.InvitationPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return true, nil
}

// Create persists a new PENDING invitation. A partial unique index on
// (student_id) WHERE status = 'PENDING' is the authoritative guard against
// concurrent duplicates; the pre-check in the service is only a fast path.
func (r *InvitationRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	if invitation.ID == "" {
		invitation.ID = uuid.NewString()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationPending
	}

	const query = `INSERT INTO invitations (id, proposed_title, proposed_description, status, instructor_id, student_id, created_at, responded_at)
        VALUES (:id, :proposed_title, :proposed_description, :status, :instructor_id, :student_id, :created_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invitation); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// ListByStudent returns invitations received by a student, newest first.
func (r *InvitationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error) {
	const query = `SELECT i.id, i.proposed_title, i.proposed_description, i.status, i.instructor_id, i.student_id, i.created_at, i.responded_at,
        p.full_name AS instructor_name, s.full_name AS student_name
        FROM invitations i
        JOIN instructors p ON p.id = i.instructor_id
        JOIN students s ON s.id = i.student_id
        WHERE i.student_id = $1 ORDER BY i.created_at DESC`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query, studentID); err != nil {
		return nil, fmt.Errorf("list invitations by student: %w", err)
	}
	return invitations, nil
}

// ListByInstructor returns invitations sent by an instructor, newest first.
func (r *InvitationRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.InvitationDetail, error) {
	const query = `SELECT i.id, i.proposed_title, i.proposed_description, i.status, i.instructor_id, i.student_id, i.created_at, i.responded_at,
        p.full_name AS instructor_name, s.full_name AS student_name
        FROM invitations i
        JOIN instructors p ON p.id = i.instructor_id
        JOIN students s ON s.id = i.student_id
        WHERE i.instructor_id = $1 ORDER BY i.created_at DESC`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query, instructorID); err != nil {
		return nil, fmt.Errorf("list invitations by instructor: %w", err)
	}
	return invitations, nil
}

// Reject marks a PENDING invitation as rejected. The update is guarded on
// the PENDING status, so a lost race surfaces as ErrStalePending instead of
// silently reporting success over a resolved row.
func (r *InvitationRepository) Reject(ctx context.Context, id string, respondedAt time.Time) error {
	const query = `UPDATE invitations SET status = $2, responded_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.InvitationRejected, respondedAt, models.InvitationPending)
	if err != nil {
		return fmt.Errorf("reject invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject invitation: %w", err)
	}
	if affected == 0 {
		return ErrStalePending
	}
	return nil
}

// Accept marks the invitation accepted and creates the engagement in a
// single transaction. The student's engagement absence is re-checked inside
// the transaction; an ACCEPTED invitation without an engagement is an
// invariant violation, so any failure rolls the whole operation back.
func (r *InvitationRepository) Accept(ctx context.Context, id string, respondedAt time.Time, engagement *models.Engagement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept invitation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM engagements WHERE student_id = $1 LIMIT 1`, engagement.StudentID)
	if err == nil {
		err = ErrUniqueViolation
		return err
	}
	if err != sql.ErrNoRows {
		err = fmt.Errorf("re-check student engagement: %w", err)
		return err
	}
	err = nil

	var res sql.Result
	if res, err = tx.ExecContext(ctx,
		`UPDATE invitations SET status = $2, responded_at = $3 WHERE id = $1 AND status = $4`,
		id, models.InvitationAccepted, respondedAt, models.InvitationPending,
	); err != nil {
		err = fmt.Errorf("accept invitation: %w", err)
		return err
	}
	var affected int64
	if affected, err = res.RowsAffected(); err != nil {
		err = fmt.Errorf("accept invitation: %w", err)
		return err
	}
	if affected == 0 {
		err = ErrStalePending
		return err
	}

	if engagement.ID == "" {
		engagement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	engagement.CreatedAt = now
	engagement.UpdatedAt = now
	if engagement.Status == "" {
		engagement.Status = models.EngagementInProgress
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO engagements (id, title, description, status, student_id, advisor_id, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		engagement.ID, engagement.Title, engagement.Description, engagement.Status,
		engagement.StudentID, engagement.AdvisorID, engagement.CreatedAt, engagement.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			err = ErrUniqueViolation
			return err
		}
		err = fmt.Errorf("create engagement: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit accept invitation: %w", err)
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
