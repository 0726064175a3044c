package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/repository"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type invitationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Invitation, error)
	HasPending(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, invitation *models.Invitation) error
	ListByStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.InvitationDetail, error)
	Reject(ctx context.Context, id string, respondedAt time.Time) error
	Accept(ctx context.Context, id string, respondedAt time.Time, engagement *models.Engagement) error
}

type invitationStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type invitationEngagementRepository interface {
	ExistsForStudent(ctx context.Context, studentID string) (bool, error)
}

// InvitationService implements the advising handshake: an instructor
// proposes, the student accepts or rejects, and acceptance creates the
// engagement.
type InvitationService struct {
	invitations invitationRepository
	students    invitationStudentRepository
	engagements invitationEngagementRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInvitationService constructs an InvitationService instance.
func NewInvitationService(invitations invitationRepository, students invitationStudentRepository, engagements invitationEngagementRepository, validate *validator.Validate, logger *zap.Logger) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InvitationService{invitations: invitations, students: students, engagements: engagements, validator: validate, logger: logger}
}

// Create sends a new invitation from the instructor to a student. A student
// may hold at most one PENDING invitation and at most one engagement ever;
// the database's partial unique index backs up the pre-checks under
// concurrency.
func (s *InvitationService) Create(ctx context.Context, principal models.Principal, req models.CreateInvitationRequest) (*models.Invitation, error) {
	instructor, err := RequireInstructor(principal)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student account is inactive")
	}

	pending, err := s.invitations.HasPending(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending invitations")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a pending invitation")
	}

	engaged, err := s.engagements.ExistsForStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student engagement")
	}
	if engaged {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an engagement")
	}

	invitation := &models.Invitation{
		ProposedTitle:       req.ProposedTitle,
		ProposedDescription: req.ProposedDescription,
		InstructorID:        instructor.ID,
		StudentID:           student.ID,
	}
	if err := s.invitations.Create(ctx, invitation); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a pending invitation")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	s.logger.Info("invitation created",
		zap.String("invitation_id", invitation.ID),
		zap.String("instructor_id", instructor.ID),
		zap.String("student_id", student.ID))
	return invitation, nil
}

// Respond resolves a PENDING invitation addressed to the student. Accepting
// creates the engagement with the proposed title and the inviting instructor
// as advisor, atomically with the status flip; the new engagement is
// returned alongside the updated invitation.
func (s *InvitationService) Respond(ctx context.Context, principal models.Principal, invitationID string, req models.RespondInvitationRequest) (*models.Invitation, *models.Engagement, error) {
	student, err := RequireStudent(principal)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be ACCEPTED or REJECTED")
	}

	invitation, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}
	if invitation.StudentID != student.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invitation is addressed to another student")
	}
	if invitation.Status != models.InvitationPending {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "invitation already responded")
	}

	respondedAt := time.Now().UTC()
	if req.Decision == models.InvitationRejected {
		if err := s.invitations.Reject(ctx, invitation.ID, respondedAt); err != nil {
			if errors.Is(err, repository.ErrStalePending) {
				return nil, nil, appErrors.Clone(appErrors.ErrConflict, "invitation already responded")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject invitation")
		}
		invitation.Status = models.InvitationRejected
		invitation.RespondedAt = &respondedAt
		return invitation, nil, nil
	}

	engagement := &models.Engagement{
		Title:       invitation.ProposedTitle,
		Description: invitation.ProposedDescription,
		StudentID:   invitation.StudentID,
		AdvisorID:   invitation.InstructorID,
	}
	if err := s.invitations.Accept(ctx, invitation.ID, respondedAt, engagement); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "student already has an engagement")
		}
		if errors.Is(err, repository.ErrStalePending) {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "invitation already responded")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept invitation")
	}

	invitation.Status = models.InvitationAccepted
	invitation.RespondedAt = &respondedAt
	s.logger.Info("invitation accepted",
		zap.String("invitation_id", invitation.ID),
		zap.String("engagement_id", engagement.ID))
	return invitation, engagement, nil
}

// ListForPrincipal returns the invitations visible to the caller: those they
// received as a student, or those they sent as an instructor.
func (s *InvitationService) ListForPrincipal(ctx context.Context, principal models.Principal) ([]models.InvitationDetail, error) {
	var (
		invitations []models.InvitationDetail
		err         error
	)
	switch principal.Kind() {
	case models.KindStudent:
		invitations, err = s.invitations.ListByStudent(ctx, principal.PrincipalID())
	case models.KindInstructor:
		invitations, err = s.invitations.ListByInstructor(ctx, principal.PrincipalID())
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown principal kind")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}
