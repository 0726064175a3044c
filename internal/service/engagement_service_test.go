package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
	"github.com/acadhub/thesis-supervision-api/pkg/storage"
)

type mockEngagementRepo struct {
	engagements  map[string]models.Engagement
	thesisFiles  map[string][]models.ThesisFile
	cascadePaths map[string][]string
	deleted      []string
	statuses     map[string]models.EngagementStatus
}

func (m *mockEngagementRepo) FindByID(ctx context.Context, id string) (*models.Engagement, error) {
	if e, ok := m.engagements[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEngagementRepo) FindDetailByID(ctx context.Context, id string) (*models.EngagementDetail, error) {
	if e, ok := m.engagements[id]; ok {
		return &models.EngagementDetail{Engagement: e, StudentName: "Ana Silva", AdvisorName: "Prof. Costa"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEngagementRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EngagementDetail, error) {
	var list []models.EngagementDetail
	for _, e := range m.engagements {
		if e.StudentID == studentID {
			list = append(list, models.EngagementDetail{Engagement: e})
		}
	}
	return list, nil
}

func (m *mockEngagementRepo) ListByAdvisor(ctx context.Context, advisorID string) ([]models.EngagementDetail, error) {
	var list []models.EngagementDetail
	for _, e := range m.engagements {
		if e.AdvisorID == advisorID {
			list = append(list, models.EngagementDetail{Engagement: e})
		}
	}
	return list, nil
}

func (m *mockEngagementRepo) UpdateStatus(ctx context.Context, id string, status models.EngagementStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.EngagementStatus)
	}
	m.statuses[id] = status
	if e, ok := m.engagements[id]; ok {
		e.Status = status
		m.engagements[id] = e
	}
	return nil
}

func (m *mockEngagementRepo) CascadeDelete(ctx context.Context, id string) ([]string, error) {
	m.deleted = append(m.deleted, id)
	delete(m.engagements, id)
	return m.cascadePaths[id], nil
}

func (m *mockEngagementRepo) CreateThesisFile(ctx context.Context, file *models.ThesisFile) error {
	if m.thesisFiles == nil {
		m.thesisFiles = make(map[string][]models.ThesisFile)
	}
	m.thesisFiles[file.EngagementID] = append(m.thesisFiles[file.EngagementID], *file)
	return nil
}

func (m *mockEngagementRepo) ListThesisFiles(ctx context.Context, engagementID string) ([]models.ThesisFile, error) {
	return m.thesisFiles[engagementID], nil
}

func testEngagementRepo() *mockEngagementRepo {
	return &mockEngagementRepo{engagements: map[string]models.Engagement{
		"engagement-1": {ID: "engagement-1", Title: "Streaming graph partitioning", StudentID: "student-1", AdvisorID: "instructor-1", Status: models.EngagementInProgress},
	}}
}

func adminInstructor(id string) *models.Instructor {
	return &models.Instructor{ID: id, FullName: "Dr. Admin", Email: id + "@uni.edu", Role: models.RoleAdmin}
}

func newTestEngagementService(repo *mockEngagementRepo, tasks *mockTaskRepo, uploads, reports *mockFileStore) *EngagementService {
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	return NewEngagementService(repo, tasks, uploads, reports, signer, testUploadPolicy(), nil, nil)
}

func TestEngagementServiceGetVisibility(t *testing.T) {
	svc := newTestEngagementService(testEngagementRepo(), &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	detail, err := svc.Get(context.Background(), activeStudent("student-1"), "engagement-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", detail.StudentName)

	_, err = svc.Get(context.Background(), testInstructor("instructor-1"), "engagement-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), testInstructor("instructor-2"), "engagement-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), adminInstructor("instructor-9"), "engagement-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), activeStudent("student-2"), "engagement-1")
	require.Error(t, err)
}

func TestEngagementServiceUpdateStatusAdvisorOnly(t *testing.T) {
	repo := testEngagementRepo()
	svc := newTestEngagementService(repo, &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	engagement, err := svc.UpdateStatus(context.Background(), testInstructor("instructor-1"), "engagement-1", models.EngagementCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.EngagementCompleted, engagement.Status)

	_, err = svc.UpdateStatus(context.Background(), activeStudent("student-1"), "engagement-1", models.EngagementCancelled)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), testInstructor("instructor-1"), "engagement-1", models.EngagementStatus("PAUSED"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEngagementServiceDeleteCleansFiles(t *testing.T) {
	repo := testEngagementRepo()
	repo.cascadePaths = map[string][]string{
		"engagement-1": {"tasks/task-1/draft.pdf", "theses/engagement-1/thesis.pdf"},
	}
	uploads := &mockFileStore{}
	svc := newTestEngagementService(repo, &mockTaskRepo{}, uploads, &mockFileStore{})

	require.NoError(t, svc.Delete(context.Background(), testInstructor("instructor-1"), "engagement-1"))
	assert.ElementsMatch(t, []string{"tasks/task-1/draft.pdf", "theses/engagement-1/thesis.pdf"}, uploads.deleted)
	assert.Contains(t, repo.deleted, "engagement-1")
}

func TestEngagementServiceDeleteAuthz(t *testing.T) {
	svc := newTestEngagementService(testEngagementRepo(), &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	err := svc.Delete(context.Background(), testInstructor("instructor-2"), "engagement-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), activeStudent("student-1"), "engagement-1")
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), adminInstructor("instructor-9"), "engagement-1"))
}

func TestEngagementServiceUploadThesisFile(t *testing.T) {
	repo := testEngagementRepo()
	uploads := &mockFileStore{}
	svc := newTestEngagementService(repo, &mockTaskRepo{}, uploads, &mockFileStore{})

	file, err := svc.UploadThesisFile(context.Background(), activeStudent("student-1"), "engagement-1", pdfUpload("thesis.pdf", "%PDF-1.4 thesis"))
	require.NoError(t, err)
	assert.Equal(t, "thesis.pdf", file.Filename)
	assert.Contains(t, uploads.saved, file.StoredPath)
	require.Len(t, repo.thesisFiles["engagement-1"], 1)

	_, err = svc.UploadThesisFile(context.Background(), testInstructor("instructor-1"), "engagement-1", pdfUpload("advisor.pdf", "%PDF-1.4"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEngagementServiceUploadRejectsOversize(t *testing.T) {
	svc := newTestEngagementService(testEngagementRepo(), &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	upload := models.FileUpload{
		Filename:    "thesis.pdf",
		ContentType: "application/pdf",
		Size:        2 << 20,
		Reader:      strings.NewReader("too big"),
	}
	_, err := svc.UploadThesisFile(context.Background(), activeStudent("student-1"), "engagement-1", upload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEngagementServiceProgressReport(t *testing.T) {
	repo := testEngagementRepo()
	tasks := &mockTaskRepo{tasks: map[string]models.Task{
		"task-1": {ID: "task-1", Title: "Write literature review", Status: models.TaskDone, EngagementID: "engagement-1", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}
	reports := &mockFileStore{}
	svc := newTestEngagementService(repo, tasks, &mockFileStore{}, reports)

	report, err := svc.ProgressReport(context.Background(), testInstructor("instructor-1"), "engagement-1", models.ReportCSV)
	require.NoError(t, err)
	assert.Equal(t, models.ReportCSV, report.Format)
	assert.NotEmpty(t, report.Token)
	require.Len(t, reports.saved, 1)
	for _, content := range reports.saved {
		assert.Contains(t, content, "Write literature review")
		assert.Contains(t, content, "DONE")
	}

	relPath, err := svc.OpenReport(report.Token)
	require.NoError(t, err)
	assert.Contains(t, reports.saved, relPath)
}

func TestEngagementServiceProgressReportAuthz(t *testing.T) {
	svc := newTestEngagementService(testEngagementRepo(), &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	_, err := svc.ProgressReport(context.Background(), activeStudent("student-1"), "engagement-1", models.ReportCSV)
	require.Error(t, err)

	_, err = svc.ProgressReport(context.Background(), testInstructor("instructor-2"), "engagement-1", models.ReportCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ProgressReport(context.Background(), testInstructor("instructor-1"), "engagement-1", models.ReportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEngagementServiceListForPrincipal(t *testing.T) {
	svc := newTestEngagementService(testEngagementRepo(), &mockTaskRepo{}, &mockFileStore{}, &mockFileStore{})

	mine, err := svc.ListForPrincipal(context.Background(), activeStudent("student-1"))
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	advised, err := svc.ListForPrincipal(context.Background(), testInstructor("instructor-1"))
	require.NoError(t, err)
	assert.Len(t, advised, 1)

	none, err := svc.ListForPrincipal(context.Background(), testInstructor("instructor-2"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
