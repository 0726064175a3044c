package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
	"github.com/acadhub/thesis-supervision-api/pkg/export"
	"github.com/acadhub/thesis-supervision-api/pkg/storage"
)

type engagementRepository interface {
	FindByID(ctx context.Context, id string) (*models.Engagement, error)
	FindDetailByID(ctx context.Context, id string) (*models.EngagementDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EngagementDetail, error)
	ListByAdvisor(ctx context.Context, advisorID string) ([]models.EngagementDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.EngagementStatus) error
	CascadeDelete(ctx context.Context, id string) ([]string, error)
	CreateThesisFile(ctx context.Context, file *models.ThesisFile) error
	ListThesisFiles(ctx context.Context, engagementID string) ([]models.ThesisFile, error)
}

type engagementTaskRepository interface {
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Task, error)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// UploadPolicy limits what thesis and attachment files are accepted.
type UploadPolicy struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// Allows reports whether the content type and size pass the policy.
func (p UploadPolicy) Allows(contentType string, size int64) error {
	if p.MaxFileSizeBytes > 0 && size > p.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if len(p.AllowedMIMEs) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
}

// EngagementService manages active supervision relationships, their thesis
// documents and advisor-facing progress exports.
type EngagementService struct {
	engagements engagementRepository
	tasks       engagementTaskRepository
	uploads     fileStore
	reports     fileStore
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	signer      *storage.SignedURLSigner
	policy      UploadPolicy
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEngagementService constructs an EngagementService instance.
func NewEngagementService(
	engagements engagementRepository,
	tasks engagementTaskRepository,
	uploads fileStore,
	reports fileStore,
	signer *storage.SignedURLSigner,
	policy UploadPolicy,
	validate *validator.Validate,
	logger *zap.Logger,
) *EngagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EngagementService{
		engagements: engagements,
		tasks:       tasks,
		uploads:     uploads,
		reports:     reports,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		policy:      policy,
		validator:   validate,
		logger:      logger,
	}
}

// Get returns an engagement with principal names. Visible to the two
// engagement parties and to coordinators and admins.
func (s *EngagementService) Get(ctx context.Context, principal models.Principal, id string) (*models.EngagementDetail, error) {
	detail, err := s.engagements.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engagement")
	}
	if err := s.authorizeView(principal, &detail.Engagement); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListForPrincipal returns the caller's engagements: the student's single
// engagement or the instructor's advisees.
func (s *EngagementService) ListForPrincipal(ctx context.Context, principal models.Principal) ([]models.EngagementDetail, error) {
	var (
		engagements []models.EngagementDetail
		err         error
	)
	switch principal.Kind() {
	case models.KindStudent:
		engagements, err = s.engagements.ListByStudent(ctx, principal.PrincipalID())
	case models.KindInstructor:
		engagements, err = s.engagements.ListByAdvisor(ctx, principal.PrincipalID())
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown principal kind")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list engagements")
	}
	return engagements, nil
}

// UpdateStatus moves the engagement between IN_PROGRESS, COMPLETED and
// CANCELLED. Only the advisor may do this.
func (s *EngagementService) UpdateStatus(ctx context.Context, principal models.Principal, id string, status models.EngagementStatus) (*models.Engagement, error) {
	switch status {
	case models.EngagementInProgress, models.EngagementCompleted, models.EngagementCancelled:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown engagement status")
	}

	engagement, err := s.loadEngagement(ctx, id)
	if err != nil {
		return nil, err
	}

	instructor, err := RequireInstructor(principal)
	if err != nil {
		return nil, err
	}
	if instructor.ID != engagement.AdvisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the advisor may change the engagement status")
	}

	if err := s.engagements.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update engagement status")
	}
	engagement.Status = status
	return engagement, nil
}

// Delete removes the engagement with all tasks, attachments and thesis
// files. Allowed for the advisor and for admins. File removal happens after
// the transaction commits; a failed unlink only logs, the rows are gone.
func (s *EngagementService) Delete(ctx context.Context, principal models.Principal, id string) error {
	engagement, err := s.loadEngagement(ctx, id)
	if err != nil {
		return err
	}

	instructor, err := RequireInstructor(principal)
	if err != nil {
		return err
	}
	if instructor.ID != engagement.AdvisorID && instructor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the advisor or an admin may delete the engagement")
	}

	paths, err := s.engagements.CascadeDelete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete engagement")
	}
	for _, path := range paths {
		if err := s.uploads.Delete(path); err != nil {
			s.logger.Warn("failed to remove stored file after engagement delete",
				zap.String("path", path), zap.Error(err))
		}
	}

	s.logger.Info("engagement deleted",
		zap.String("engagement_id", id),
		zap.Int("files_removed", len(paths)))
	return nil
}

// UploadThesisFile stores a thesis document for the engagement. Only the
// engagement's student may upload; the policy bounds type and size.
func (s *EngagementService) UploadThesisFile(ctx context.Context, principal models.Principal, id string, upload models.FileUpload) (*models.ThesisFile, error) {
	engagement, err := s.loadEngagement(ctx, id)
	if err != nil {
		return nil, err
	}

	student, err := RequireStudent(principal)
	if err != nil {
		return nil, err
	}
	if student.ID != engagement.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this engagement")
	}

	if err := s.policy.Allows(upload.ContentType, upload.Size); err != nil {
		return nil, err
	}

	fileID := uuid.NewString()
	storedPath := filepath.Join("theses", engagement.ID, fileID+"_"+filepath.Base(upload.Filename))
	if _, err := s.uploads.SaveStream(storedPath, upload.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store thesis file")
	}

	file := &models.ThesisFile{
		ID:           fileID,
		EngagementID: engagement.ID,
		Filename:     filepath.Base(upload.Filename),
		StoredPath:   storedPath,
		ContentType:  upload.ContentType,
		SizeBytes:    upload.Size,
	}
	if err := s.engagements.CreateThesisFile(ctx, file); err != nil {
		if removeErr := s.uploads.Delete(storedPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned thesis file", zap.String("path", storedPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record thesis file")
	}
	return file, nil
}

// ListThesisFiles returns the thesis documents of an engagement for its
// parties.
func (s *EngagementService) ListThesisFiles(ctx context.Context, principal models.Principal, id string) ([]models.ThesisFile, error) {
	engagement, err := s.loadEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(principal, engagement); err != nil {
		return nil, err
	}

	files, err := s.engagements.ListThesisFiles(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list thesis files")
	}
	return files, nil
}

// ProgressReport renders the engagement's task board as CSV or PDF, stores
// the result and returns a signed download token. Advisor and admin only.
func (s *EngagementService) ProgressReport(ctx context.Context, principal models.Principal, id string, format models.ReportFormat) (*models.ProgressReport, error) {
	detail, err := s.engagements.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engagement")
	}

	instructor, err := RequireInstructor(principal)
	if err != nil {
		return nil, err
	}
	if instructor.ID != detail.AdvisorID && instructor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the advisor or an admin may export the report")
	}

	tasks, err := s.tasks.ListByEngagement(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tasks")
	}

	dataset := buildProgressDataset(detail, tasks)
	var payload []byte
	switch format {
	case models.ReportCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Progress report · %s", detail.Title))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	relPath := filepath.Join("reports", id, fmt.Sprintf("%s.%s", reportID, format))
	if _, err := s.reports.SaveStream(relPath, bytes.NewReader(payload)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}

	return &models.ProgressReport{
		ReportID:     reportID,
		EngagementID: id,
		Format:       format,
		Token:        token,
		ExpiresAt:    expiresAt,
		SizeBytes:    int64(len(payload)),
	}, nil
}

// OpenReport validates a signed token and returns the stored report path.
func (s *EngagementService) OpenReport(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired report token")
	}
	return relPath, nil
}

func (s *EngagementService) loadEngagement(ctx context.Context, id string) (*models.Engagement, error) {
	engagement, err := s.engagements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engagement")
	}
	return engagement, nil
}

func (s *EngagementService) authorizeView(principal models.Principal, engagement *models.Engagement) error {
	if IsEngagementParty(principal, engagement) {
		return nil
	}
	if instructor, ok := principal.(*models.Instructor); ok {
		if instructor.Role == models.RoleAdmin || instructor.Role == models.RoleCoordinator {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not a member of this engagement")
}

func buildProgressDataset(detail *models.EngagementDetail, tasks []models.Task) export.Dataset {
	headers := []string{"Task", "Status", "Due date", "Created", "Updated"}
	rows := make([]map[string]string, 0, len(tasks))
	for _, task := range tasks {
		due := ""
		if task.DueDate != nil {
			due = task.DueDate.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Task":     task.Title,
			"Status":   string(task.Status),
			"Due date": due,
			"Created":  task.CreatedAt.Format("2006-01-02"),
			"Updated":  task.UpdatedAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
