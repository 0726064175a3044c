package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type rosterInstructorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Instructor, int, error)
	UpdateRole(ctx context.Context, id string, role models.InstructorRole) error
}

type rosterStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Student, int, error)
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const rosterCachePrefix = "roster:instructors"

type cachedInstructorPage struct {
	Instructors []models.Instructor `json:"instructors"`
	Total       int                 `json:"total"`
}

// RosterService exposes the people directories. The instructor directory is
// read-heavy (students browse it when looking for an advisor) and is served
// through Redis; student listings and the admin mutations go straight to the
// database.
type RosterService struct {
	instructors rosterInstructorRepository
	students    rosterStudentRepository
	cache       rosterCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewRosterService constructs a RosterService instance.
func NewRosterService(instructors rosterInstructorRepository, students rosterStudentRepository, cache rosterCache, cacheTTL time.Duration, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RosterService{instructors: instructors, students: students, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ListInstructors returns a page of the instructor directory, serving from
// cache when possible. A cache failure falls through to the database.
func (s *RosterService) ListInstructors(ctx context.Context, search string, page, pageSize int) ([]models.Instructor, *models.Pagination, error) {
	page, pageSize = normalizePage(page, pageSize)
	key := fmt.Sprintf("%s:%s:%d:%d", rosterCachePrefix, search, page, pageSize)

	if s.cache != nil {
		var cached cachedInstructorPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Instructors, paginationOf(page, pageSize, cached.Total), nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("instructor roster cache read failed", zap.Error(err))
		}
	}

	instructors, total, err := s.instructors.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedInstructorPage{Instructors: instructors, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("instructor roster cache write failed", zap.Error(err))
		}
	}
	return instructors, paginationOf(page, pageSize, total), nil
}

// ListStudents returns a page of students. Instructors use this to find
// advisees to invite.
func (s *RosterService) ListStudents(ctx context.Context, principal models.Principal, search string, page, pageSize int) ([]models.Student, *models.Pagination, error) {
	if _, err := RequireInstructor(principal); err != nil {
		return nil, nil, err
	}

	page, pageSize = normalizePage(page, pageSize)
	students, total, err := s.students.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationOf(page, pageSize, total), nil
}

// SetStudentStatus activates or deactivates a student account. Admin only.
func (s *RosterService) SetStudentStatus(ctx context.Context, principal models.Principal, studentID string, status models.StudentStatus) (*models.Student, error) {
	if err := s.requireAdmin(principal); err != nil {
		return nil, err
	}
	switch status {
	case models.StudentActive, models.StudentInactive:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.students.UpdateStatus(ctx, studentID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	student.Status = status
	return student, nil
}

// SetInstructorRole changes an instructor's role. Admin only; the roster
// cache is invalidated so the directory reflects the change.
func (s *RosterService) SetInstructorRole(ctx context.Context, principal models.Principal, instructorID string, role models.InstructorRole) (*models.Instructor, error) {
	if err := s.requireAdmin(principal); err != nil {
		return nil, err
	}
	switch role {
	case models.RoleInstructor, models.RoleCoordinator, models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown instructor role")
	}

	instructor, err := s.instructors.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	if err := s.instructors.UpdateRole(ctx, instructorID, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor role")
	}
	instructor.Role = role

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, rosterCachePrefix+":*"); err != nil {
			s.logger.Warn("instructor roster cache invalidation failed", zap.Error(err))
		}
	}
	return instructor, nil
}

func (s *RosterService) requireAdmin(principal models.Principal) error {
	instructor, err := RequireInstructor(principal)
	if err != nil {
		return err
	}
	return RequireRole(instructor, models.RoleAdmin)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func paginationOf(page, pageSize, total int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
