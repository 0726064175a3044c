package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type taskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListByEngagement(ctx context.Context, engagementID string) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error
	Delete(ctx context.Context, id string) error
	CreateAttachment(ctx context.Context, attachment *models.TaskAttachment) error
	ListAttachments(ctx context.Context, taskID string) ([]models.TaskAttachment, error)
}

type taskEngagementRepository interface {
	FindByID(ctx context.Context, id string) (*models.Engagement, error)
}

// TaskService manages the task board of an engagement. The advisor owns the
// board structure; the student works the statuses.
type TaskService struct {
	tasks       taskRepository
	engagements taskEngagementRepository
	uploads     fileStore
	policy      UploadPolicy
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTaskService constructs a TaskService instance.
func NewTaskService(tasks taskRepository, engagements taskEngagementRepository, uploads fileStore, policy UploadPolicy, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{tasks: tasks, engagements: engagements, uploads: uploads, policy: policy, validator: validate, logger: logger}
}

// Create adds a task to the engagement. Advisor only; new tasks start in
// TODO.
func (s *TaskService) Create(ctx context.Context, principal models.Principal, engagementID string, req models.CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	engagement, err := s.loadEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdvisor(principal, engagement); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		EngagementID: engagement.ID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	return task, nil
}

// List returns the engagement's tasks for its parties.
func (s *TaskService) List(ctx context.Context, principal models.Principal, engagementID string) ([]models.Task, error) {
	engagement, err := s.loadEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if err := RequireEngagementParty(principal, engagement); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

// UpdateFields applies a partial update to title, description, due date and
// status. Advisor only; the student's lever is UpdateStatus.
func (s *TaskService) UpdateFields(ctx context.Context, principal models.Principal, taskID string, patch models.TaskPatch) (*models.Task, error) {
	if patch.Status != nil && !models.ValidTaskStatus(*patch.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown task status")
	}

	task, engagement, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdvisor(principal, engagement); err != nil {
		return nil, err
	}

	patch.Apply(task)
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}
	return task, nil
}

// UpdateStatus moves a task on the board. Any transition between statuses is
// legal; students may not mark COMPLETED, that sign-off belongs to the
// advisor.
func (s *TaskService) UpdateStatus(ctx context.Context, principal models.Principal, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown task status")
	}

	task, engagement, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := RequireEngagementParty(principal, engagement); err != nil {
		return nil, err
	}
	if principal.Kind() == models.KindStudent && status == models.TaskCompleted {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the advisor may mark a task completed")
	}

	if err := s.tasks.UpdateStatus(ctx, taskID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task status")
	}
	task.Status = status
	return task, nil
}

// Delete removes a task and its attachments. Advisor only. Deleting a task
// that is already gone succeeds.
func (s *TaskService) Delete(ctx context.Context, principal models.Principal, taskID string) error {
	task, engagement, err := s.loadTask(ctx, taskID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
			return nil
		}
		return err
	}
	if err := s.requireAdvisor(principal, engagement); err != nil {
		return err
	}

	attachments, err := s.tasks.ListAttachments(ctx, task.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	for _, attachment := range attachments {
		if err := s.uploads.Delete(attachment.StoredPath); err != nil {
			s.logger.Warn("failed to remove attachment file after task delete",
				zap.String("path", attachment.StoredPath), zap.Error(err))
		}
	}
	return nil
}

// AttachFile stores a file against a task. Both parties may attach; a
// student upload signals submitted work and pushes the task to REVIEW, an
// advisor upload leaves the status alone.
func (s *TaskService) AttachFile(ctx context.Context, principal models.Principal, taskID string, upload models.FileUpload) (*models.TaskAttachment, error) {
	task, engagement, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := RequireEngagementParty(principal, engagement); err != nil {
		return nil, err
	}
	if err := s.policy.Allows(upload.ContentType, upload.Size); err != nil {
		return nil, err
	}

	attachmentID := uuid.NewString()
	storedPath := filepath.Join("tasks", task.ID, attachmentID+"_"+filepath.Base(upload.Filename))
	if _, err := s.uploads.SaveStream(storedPath, upload.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	attachment := &models.TaskAttachment{
		ID:         attachmentID,
		TaskID:     task.ID,
		Filename:   filepath.Base(upload.Filename),
		StoredPath: storedPath,
	}
	if err := s.tasks.CreateAttachment(ctx, attachment); err != nil {
		if removeErr := s.uploads.Delete(storedPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("path", storedPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attachment")
	}

	if principal.Kind() == models.KindStudent && task.Status != models.TaskReview {
		if err := s.tasks.UpdateStatus(ctx, task.ID, models.TaskReview); err != nil {
			s.logger.Warn("failed to move task to review after student upload",
				zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	return attachment, nil
}

// ListAttachments returns a task's attachments for the engagement parties.
func (s *TaskService) ListAttachments(ctx context.Context, principal models.Principal, taskID string) ([]models.TaskAttachment, error) {
	task, engagement, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := RequireEngagementParty(principal, engagement); err != nil {
		return nil, err
	}

	attachments, err := s.tasks.ListAttachments(ctx, task.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return attachments, nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID string) (*models.Task, *models.Engagement, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	engagement, err := s.loadEngagement(ctx, task.EngagementID)
	if err != nil {
		return nil, nil, err
	}
	return task, engagement, nil
}

func (s *TaskService) loadEngagement(ctx context.Context, engagementID string) (*models.Engagement, error) {
	engagement, err := s.engagements.FindByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "engagement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engagement")
	}
	return engagement, nil
}

func (s *TaskService) requireAdvisor(principal models.Principal, engagement *models.Engagement) error {
	instructor, err := RequireInstructor(principal)
	if err != nil {
		return err
	}
	if instructor.ID != engagement.AdvisorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the advisor may manage tasks")
	}
	return nil
}
