package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type mockRosterInstructorRepo struct {
	instructors []models.Instructor
	listCalls   int
	roles       map[string]models.InstructorRole
}

func (m *mockRosterInstructorRepo) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	for _, i := range m.instructors {
		if i.ID == id {
			instructor := i
			return &instructor, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterInstructorRepo) List(ctx context.Context, search string, page, pageSize int) ([]models.Instructor, int, error) {
	m.listCalls++
	return m.instructors, len(m.instructors), nil
}

func (m *mockRosterInstructorRepo) UpdateRole(ctx context.Context, id string, role models.InstructorRole) error {
	if m.roles == nil {
		m.roles = make(map[string]models.InstructorRole)
	}
	m.roles[id] = role
	return nil
}

type mockRosterStudentRepo struct {
	students []models.Student
	statuses map[string]models.StudentStatus
}

func (m *mockRosterStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			student := s
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterStudentRepo) List(ctx context.Context, search string, page, pageSize int) ([]models.Student, int, error) {
	return m.students, len(m.students), nil
}

func (m *mockRosterStudentRepo) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.StudentStatus)
	}
	m.statuses[id] = status
	return nil
}

type mockRosterCache struct {
	entries  map[string][]byte
	patterns []string
}

func (m *mockRosterCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockRosterCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockRosterCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	m.entries = nil
	return nil
}

func TestRosterServiceListInstructorsUsesCache(t *testing.T) {
	repo := &mockRosterInstructorRepo{instructors: []models.Instructor{
		{ID: "instructor-1", FullName: "Prof. Costa", Role: models.RoleInstructor},
	}}
	cache := &mockRosterCache{}
	svc := NewRosterService(repo, &mockRosterStudentRepo{}, cache, time.Minute, nil)

	first, pagination, err := svc.ListInstructors(context.Background(), "", 1, 20)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)

	second, _, err := svc.ListInstructors(context.Background(), "", 1, 20)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, repo.listCalls, "second page should come from cache")
}

func TestRosterServiceListStudentsInstructorOnly(t *testing.T) {
	students := &mockRosterStudentRepo{students: []models.Student{{ID: "student-1", FullName: "Ana Silva"}}}
	svc := NewRosterService(&mockRosterInstructorRepo{}, students, nil, time.Minute, nil)

	list, _, err := svc.ListStudents(context.Background(), testInstructor("instructor-1"), "", 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, _, err = svc.ListStudents(context.Background(), activeStudent("student-1"), "", 1, 20)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceSetStudentStatusAdminOnly(t *testing.T) {
	students := &mockRosterStudentRepo{students: []models.Student{{ID: "student-1", Status: models.StudentActive}}}
	svc := NewRosterService(&mockRosterInstructorRepo{}, students, nil, time.Minute, nil)

	_, err := svc.SetStudentStatus(context.Background(), testInstructor("instructor-1"), "student-1", models.StudentInactive)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	student, err := svc.SetStudentStatus(context.Background(), adminInstructor("instructor-9"), "student-1", models.StudentInactive)
	require.NoError(t, err)
	assert.Equal(t, models.StudentInactive, student.Status)
	assert.Equal(t, models.StudentInactive, students.statuses["student-1"])
}

func TestRosterServiceSetInstructorRoleInvalidatesCache(t *testing.T) {
	repo := &mockRosterInstructorRepo{instructors: []models.Instructor{
		{ID: "instructor-1", Role: models.RoleInstructor},
	}}
	cache := &mockRosterCache{entries: map[string][]byte{"roster:instructors::1:20": []byte(`{}`)}}
	svc := NewRosterService(repo, &mockRosterStudentRepo{}, cache, time.Minute, nil)

	instructor, err := svc.SetInstructorRole(context.Background(), adminInstructor("instructor-9"), "instructor-1", models.RoleCoordinator)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, instructor.Role)
	assert.Contains(t, cache.patterns, "roster:instructors:*")
	assert.Empty(t, cache.entries)
}
