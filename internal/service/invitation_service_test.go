package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/repository"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type mockInvitationRepo struct {
	invitations map[string]models.Invitation
	engagements map[string]models.Engagement
	accepted    []string
	rejected    []string
	rejectErr   error
}

func (m *mockInvitationRepo) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	if inv, ok := m.invitations[id]; ok {
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvitationRepo) HasPending(ctx context.Context, studentID string) (bool, error) {
	for _, inv := range m.invitations {
		if inv.StudentID == studentID && inv.Status == models.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitationRepo) Create(ctx context.Context, invitation *models.Invitation) error {
	if m.invitations == nil {
		m.invitations = make(map[string]models.Invitation)
	}
	if invitation.ID == "" {
		invitation.ID = "invitation-new"
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationPending
	}
	for _, inv := range m.invitations {
		if inv.StudentID == invitation.StudentID && inv.Status == models.InvitationPending {
			return repository.ErrUniqueViolation
		}
	}
	m.invitations[invitation.ID] = *invitation
	return nil
}

func (m *mockInvitationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error) {
	var list []models.InvitationDetail
	for _, inv := range m.invitations {
		if inv.StudentID == studentID {
			list = append(list, models.InvitationDetail{Invitation: inv})
		}
	}
	return list, nil
}

func (m *mockInvitationRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.InvitationDetail, error) {
	var list []models.InvitationDetail
	for _, inv := range m.invitations {
		if inv.InstructorID == instructorID {
			list = append(list, models.InvitationDetail{Invitation: inv})
		}
	}
	return list, nil
}

func (m *mockInvitationRepo) Reject(ctx context.Context, id string, respondedAt time.Time) error {
	if m.rejectErr != nil {
		return m.rejectErr
	}
	if inv, ok := m.invitations[id]; ok {
		inv.Status = models.InvitationRejected
		inv.RespondedAt = &respondedAt
		m.invitations[id] = inv
	}
	m.rejected = append(m.rejected, id)
	return nil
}

func (m *mockInvitationRepo) Accept(ctx context.Context, id string, respondedAt time.Time, engagement *models.Engagement) error {
	if m.engagements == nil {
		m.engagements = make(map[string]models.Engagement)
	}
	for _, e := range m.engagements {
		if e.StudentID == engagement.StudentID {
			return repository.ErrUniqueViolation
		}
	}
	if inv, ok := m.invitations[id]; ok {
		inv.Status = models.InvitationAccepted
		inv.RespondedAt = &respondedAt
		m.invitations[id] = inv
	}
	if engagement.ID == "" {
		engagement.ID = "engagement-new"
	}
	if engagement.Status == "" {
		engagement.Status = models.EngagementInProgress
	}
	m.engagements[engagement.ID] = *engagement
	m.accepted = append(m.accepted, id)
	return nil
}

type mockStudentFinder struct {
	students map[string]*models.Student
}

func (m *mockStudentFinder) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEngagementChecker struct {
	engaged map[string]bool
}

func (m *mockEngagementChecker) ExistsForStudent(ctx context.Context, studentID string) (bool, error) {
	return m.engaged[studentID], nil
}

func activeStudent(id string) *models.Student {
	return &models.Student{ID: id, FullName: "Ana Silva", Email: id + "@uni.edu", Status: models.StudentActive}
}

func testInstructor(id string) *models.Instructor {
	return &models.Instructor{ID: id, FullName: "Prof. Costa", Email: id + "@uni.edu", Role: models.RoleInstructor}
}

func newTestInvitationService(repo *mockInvitationRepo, students *mockStudentFinder, engagements *mockEngagementChecker) *InvitationService {
	return NewInvitationService(repo, students, engagements, nil, nil)
}

func TestInvitationServiceCreate(t *testing.T) {
	repo := &mockInvitationRepo{}
	students := &mockStudentFinder{students: map[string]*models.Student{"student-1": activeStudent("student-1")}}
	svc := newTestInvitationService(repo, students, &mockEngagementChecker{})

	invitation, err := svc.Create(context.Background(), testInstructor("instructor-1"), models.CreateInvitationRequest{
		StudentID:     "student-1",
		ProposedTitle: "Streaming graph partitioning",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.Equal(t, "instructor-1", invitation.InstructorID)
}

func TestInvitationServiceCreateRequiresInstructor(t *testing.T) {
	svc := newTestInvitationService(&mockInvitationRepo{}, &mockStudentFinder{}, &mockEngagementChecker{})

	_, err := svc.Create(context.Background(), activeStudent("student-1"), models.CreateInvitationRequest{
		StudentID:     "student-2",
		ProposedTitle: "Topic",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceCreateConflictOnPending(t *testing.T) {
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", StudentID: "student-1", InstructorID: "instructor-2", Status: models.InvitationPending},
	}}
	students := &mockStudentFinder{students: map[string]*models.Student{"student-1": activeStudent("student-1")}}
	svc := newTestInvitationService(repo, students, &mockEngagementChecker{})

	_, err := svc.Create(context.Background(), testInstructor("instructor-1"), models.CreateInvitationRequest{
		StudentID:     "student-1",
		ProposedTitle: "Another topic",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceCreateConflictOnEngagement(t *testing.T) {
	students := &mockStudentFinder{students: map[string]*models.Student{"student-1": activeStudent("student-1")}}
	engagements := &mockEngagementChecker{engaged: map[string]bool{"student-1": true}}
	svc := newTestInvitationService(&mockInvitationRepo{}, students, engagements)

	_, err := svc.Create(context.Background(), testInstructor("instructor-1"), models.CreateInvitationRequest{
		StudentID:     "student-1",
		ProposedTitle: "Another topic",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceAcceptCreatesEngagement(t *testing.T) {
	description := "Partitioning under memory pressure"
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {
			ID:                  "invitation-1",
			ProposedTitle:       "Streaming graph partitioning",
			ProposedDescription: &description,
			Status:              models.InvitationPending,
			InstructorID:        "instructor-1",
			StudentID:           "student-1",
		},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	invitation, engagement, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationAccepted})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, invitation.Status)
	require.NotNil(t, engagement)
	assert.Equal(t, "Streaming graph partitioning", engagement.Title)
	require.Len(t, repo.engagements, 1)
	for _, engagement := range repo.engagements {
		assert.Equal(t, "Streaming graph partitioning", engagement.Title)
		assert.Equal(t, &description, engagement.Description)
		assert.Equal(t, "instructor-1", engagement.AdvisorID)
		assert.Equal(t, "student-1", engagement.StudentID)
		assert.Equal(t, models.EngagementInProgress, engagement.Status)
	}
}

func TestInvitationServiceRejectCreatesNoEngagement(t *testing.T) {
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationPending, InstructorID: "instructor-1", StudentID: "student-1"},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	invitation, engagement, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationRejected})
	require.NoError(t, err)
	assert.Nil(t, engagement)
	assert.Equal(t, models.InvitationRejected, invitation.Status)
	assert.Empty(t, repo.engagements)
	assert.Empty(t, repo.accepted)
}

func TestInvitationServiceRespondAlreadyResolved(t *testing.T) {
	responded := time.Now().UTC()
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationRejected, InstructorID: "instructor-1", StudentID: "student-1", RespondedAt: &responded},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	_, _, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationAccepted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceRespondWrongStudent(t *testing.T) {
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationPending, InstructorID: "instructor-1", StudentID: "student-1"},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	_, _, err := svc.Respond(context.Background(), activeStudent("student-2"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationAccepted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceAcceptWhenAlreadyEngaged(t *testing.T) {
	repo := &mockInvitationRepo{
		invitations: map[string]models.Invitation{
			"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationPending, InstructorID: "instructor-1", StudentID: "student-1"},
		},
		engagements: map[string]models.Engagement{
			"engagement-0": {ID: "engagement-0", StudentID: "student-1", AdvisorID: "instructor-2"},
		},
	}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	_, _, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationAccepted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.engagements, 1)
}

func TestInvitationServiceRespondRequiresExplicitDecision(t *testing.T) {
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationPending, InstructorID: "instructor-1", StudentID: "student-1"},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	_, _, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.InvitationPending, repo.invitations["invitation-1"].Status)
	assert.Empty(t, repo.rejected)

	_, _, err = svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationPending})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.InvitationPending, repo.invitations["invitation-1"].Status)
}

func TestInvitationServiceRejectLostRaceConflicts(t *testing.T) {
	repo := &mockInvitationRepo{
		invitations: map[string]models.Invitation{
			"invitation-1": {ID: "invitation-1", ProposedTitle: "Topic", Status: models.InvitationPending, InstructorID: "instructor-1", StudentID: "student-1"},
		},
		rejectErr: repository.ErrStalePending,
	}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	_, _, err := svc.Respond(context.Background(), activeStudent("student-1"), "invitation-1", models.RespondInvitationRequest{Decision: models.InvitationRejected})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationServiceListForPrincipal(t *testing.T) {
	repo := &mockInvitationRepo{invitations: map[string]models.Invitation{
		"invitation-1": {ID: "invitation-1", StudentID: "student-1", InstructorID: "instructor-1", Status: models.InvitationPending},
		"invitation-2": {ID: "invitation-2", StudentID: "student-2", InstructorID: "instructor-1", Status: models.InvitationRejected},
	}}
	svc := newTestInvitationService(repo, &mockStudentFinder{}, &mockEngagementChecker{})

	mine, err := svc.ListForPrincipal(context.Background(), activeStudent("student-1"))
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	sent, err := svc.ListForPrincipal(context.Background(), testInstructor("instructor-1"))
	require.NoError(t, err)
	assert.Len(t, sent, 2)
}
