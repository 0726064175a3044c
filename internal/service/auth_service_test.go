package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type mockAuthInstructorRepo struct {
	byEmail    map[string]*models.Instructor
	byRegistry map[string]*models.Instructor
	created    *models.Instructor
}

func (m *mockAuthInstructorRepo) FindByEmail(ctx context.Context, email string) (*models.Instructor, error) {
	if i, ok := m.byEmail[email]; ok {
		return i, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthInstructorRepo) FindByRegistryNumber(ctx context.Context, registryNumber string) (*models.Instructor, error) {
	if i, ok := m.byRegistry[registryNumber]; ok {
		return i, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthInstructorRepo) Create(ctx context.Context, instructor *models.Instructor) error {
	m.created = instructor
	return nil
}

type mockAuthStudentRepo struct {
	byEmail      map[string]*models.Student
	byEnrollment map[string]*models.Student
	created      *models.Student
}

func (m *mockAuthStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if s, ok := m.byEmail[email]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudentRepo) FindByEnrollmentNumber(ctx context.Context, enrollmentNumber string) (*models.Student, error) {
	if s, ok := m.byEnrollment[enrollmentNumber]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.created = student
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(instructors *mockAuthInstructorRepo, students *mockAuthStudentRepo) *AuthService {
	return NewAuthService(instructors, students, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "thesis-supervision-api",
	})
}

func TestAuthServiceLoginInstructor(t *testing.T) {
	instructors := &mockAuthInstructorRepo{byEmail: map[string]*models.Instructor{
		"costa@uni.edu": {ID: "instructor-1", Email: "costa@uni.edu", PasswordHash: hashPassword(t, "s3cret-pass"), Role: models.RoleInstructor},
	}}
	students := &mockAuthStudentRepo{}
	svc := newTestAuthService(instructors, students)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "costa@uni.edu", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.KindInstructor, resp.Kind)
	assert.Equal(t, "bearer", resp.TokenType)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "costa@uni.edu", claims.Subject)
	assert.Equal(t, models.KindInstructor, claims.Kind)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestAuthServiceLoginFallsBackToStudent(t *testing.T) {
	instructors := &mockAuthInstructorRepo{}
	students := &mockAuthStudentRepo{byEmail: map[string]*models.Student{
		"ana@uni.edu": {ID: "student-1", Email: "ana@uni.edu", PasswordHash: hashPassword(t, "s3cret-pass"), Status: models.StudentActive},
	}}
	svc := newTestAuthService(instructors, students)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.KindStudent, resp.Kind)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, claims.Role)
}

func TestAuthServiceLoginUniformCredentialError(t *testing.T) {
	instructors := &mockAuthInstructorRepo{byEmail: map[string]*models.Instructor{
		"costa@uni.edu": {ID: "instructor-1", Email: "costa@uni.edu", PasswordHash: hashPassword(t, "s3cret-pass")},
	}}
	students := &mockAuthStudentRepo{}
	svc := newTestAuthService(instructors, students)

	_, unknownErr := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@uni.edu", Password: "whatever-pass"})
	_, wrongErr := svc.Login(context.Background(), models.LoginRequest{Email: "costa@uni.edu", Password: "wrong-pass"})

	unknown := appErrors.FromError(unknownErr)
	wrong := appErrors.FromError(wrongErr)
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, unknown.Code)
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, wrong.Code)
	assert.Equal(t, unknown.Message, wrong.Message)
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestAuthService(&mockAuthInstructorRepo{}, &mockAuthStudentRepo{})
	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceResolutionFailuresAreIndistinguishable(t *testing.T) {
	instructors := &mockAuthInstructorRepo{byEmail: map[string]*models.Instructor{
		"costa@uni.edu": {ID: "instructor-1", Email: "costa@uni.edu", PasswordHash: hashPassword(t, "s3cret-pass")},
	}}
	svc := newTestAuthService(instructors, &mockAuthStudentRepo{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "costa@uni.edu", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, decodeErr := svc.ValidateToken("not.a.token")
	require.Error(t, decodeErr)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	claims.Subject = "deleted@uni.edu"
	_, lookupErr := svc.ResolvePrincipal(context.Background(), claims)
	require.Error(t, lookupErr)

	claims.Kind = "auditor"
	_, kindErr := svc.ResolvePrincipal(context.Background(), claims)
	require.Error(t, kindErr)

	decode := appErrors.FromError(decodeErr)
	lookup := appErrors.FromError(lookupErr)
	kind := appErrors.FromError(kindErr)
	assert.Equal(t, appErrors.ErrInvalidCredential.Code, decode.Code)
	assert.Equal(t, decode.Code, lookup.Code)
	assert.Equal(t, decode.Code, kind.Code)
	assert.Equal(t, decode.Message, lookup.Message)
	assert.Equal(t, decode.Message, kind.Message)
	assert.Equal(t, decode.Status, lookup.Status)
}

func TestAuthServiceActivePrincipalBlocksInactiveStudent(t *testing.T) {
	students := &mockAuthStudentRepo{byEmail: map[string]*models.Student{
		"ana@uni.edu": {ID: "student-1", Email: "ana@uni.edu", PasswordHash: hashPassword(t, "s3cret-pass"), Status: models.StudentInactive},
	}}
	svc := newTestAuthService(&mockAuthInstructorRepo{}, students)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)

	_, err = svc.ActivePrincipal(context.Background(), claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterStudentEmailUniqueAcrossKinds(t *testing.T) {
	instructors := &mockAuthInstructorRepo{byEmail: map[string]*models.Instructor{
		"costa@uni.edu": {ID: "instructor-1", Email: "costa@uni.edu"},
	}}
	students := &mockAuthStudentRepo{}
	svc := newTestAuthService(instructors, students)

	_, err := svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
		FullName:         "Someone Else",
		Email:            "costa@uni.edu",
		Password:         "longenough",
		EnrollmentNumber: "2024-001",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	svc := newTestAuthService(&mockAuthInstructorRepo{}, &mockAuthStudentRepo{})

	student, err := svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
		FullName:         "Ana Silva",
		Email:            "ana@uni.edu",
		Password:         "longenough",
		EnrollmentNumber: "2024-001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.StudentActive, student.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("longenough")))
}

func TestAuthServiceRegisterInstructorDefaultsRole(t *testing.T) {
	instructors := &mockAuthInstructorRepo{}
	svc := newTestAuthService(instructors, &mockAuthStudentRepo{})

	instructor, err := svc.RegisterInstructor(context.Background(), models.RegisterInstructorRequest{
		FullName:       "Prof. Costa",
		Email:          "costa@uni.edu",
		Password:       "longenough",
		RegistryNumber: "REG-100",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, instructor.Role)
	assert.Same(t, instructor, instructors.created)
}
