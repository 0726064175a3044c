package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

type authInstructorRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Instructor, error)
	FindByRegistryNumber(ctx context.Context, registryNumber string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
}

type authStudentRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	FindByEnrollmentNumber(ctx context.Context, enrollmentNumber string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AuthService provides login, registration and token use cases over the two
// principal kinds. The instructors and students tables are disjoint; email
// uniqueness is enforced across both so that login resolution by email is
// unambiguous.
type AuthService struct {
	instructors authInstructorRepository
	students    authStudentRepository
	validator   *validator.Validate
	logger      *zap.Logger
	config      AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(instructors authInstructorRepository, students authStudentRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{instructors: instructors, students: students, validator: validate, logger: logger, config: config}
}

// Login authenticates a principal by email and password. The instructors
// table is tried first, then students. All credential failures return the
// same error to avoid leaking which step failed.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	principal, err := s.resolveForLogin(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHashOf(principal)), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
	}

	token, expiresAt, err := s.generateAccessToken(principal)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		IssuedAt:    time.Now().UTC(),
		Kind:        principal.Kind(),
	}, nil
}

// RegisterStudent creates a student account. The email must be unused by any
// principal of either kind and the enrollment number must be unique.
func (s *AuthService) RegisterStudent(ctx context.Context, req models.RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if err := s.ensureEmailUnused(ctx, req.Email); err != nil {
		return nil, err
	}

	if _, err := s.students.FindByEnrollmentNumber(ctx, req.EnrollmentNumber); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment number already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	student := &models.Student{
		ID:               uuid.NewString(),
		FullName:         req.FullName,
		Email:            req.Email,
		PasswordHash:     string(hash),
		EnrollmentNumber: req.EnrollmentNumber,
		Cohort:           req.Cohort,
		Phone:            req.Phone,
		Status:           models.StudentActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// RegisterInstructor creates an instructor account with the default
// INSTRUCTOR role. Email is unique across both principal kinds, the registry
// number within instructors.
func (s *AuthService) RegisterInstructor(ctx context.Context, req models.RegisterInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if err := s.ensureEmailUnused(ctx, req.Email); err != nil {
		return nil, err
	}

	if _, err := s.instructors.FindByRegistryNumber(ctx, req.RegistryNumber); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registry number already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registry number")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	instructor := &models.Instructor{
		ID:             uuid.NewString(),
		FullName:       req.FullName,
		Email:          req.Email,
		PasswordHash:   string(hash),
		RegistryNumber: req.RegistryNumber,
		Department:     req.Department,
		AcademicTitle:  req.AcademicTitle,
		Phone:          req.Phone,
		Role:           models.RoleInstructor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.instructors.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidCredential.Code, appErrors.ErrInvalidCredential.Status, appErrors.ErrInvalidCredential.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
	}

	return claims, nil
}

// ResolvePrincipal loads the account behind validated claims. The token
// subject is the principal's email; the kind claim selects the table. Every
// credential failure here carries the same error as a decode failure, so a
// caller cannot tell which step rejected the token.
func (s *AuthService) ResolvePrincipal(ctx context.Context, claims *models.JWTClaims) (models.Principal, error) {
	email := claims.Subject
	switch claims.Kind {
	case models.KindInstructor:
		instructor, err := s.instructors.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
		}
		return instructor, nil
	case models.KindStudent:
		student, err := s.students.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return student, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
	}
}

// ActivePrincipal resolves the claims and rejects inactive accounts. Every
// authenticated operation goes through this gate, so a deactivated student
// keeps a valid token but cannot act with it.
func (s *AuthService) ActivePrincipal(ctx context.Context, claims *models.JWTClaims) (models.Principal, error) {
	principal, err := s.ResolvePrincipal(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !principal.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return principal, nil
}

func (s *AuthService) resolveForLogin(ctx context.Context, email string) (models.Principal, error) {
	instructor, err := s.instructors.FindByEmail(ctx, email)
	if err == nil {
		return instructor, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch instructor")
	}

	student, err := s.students.FindByEmail(ctx, email)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "")
}

func (s *AuthService) ensureEmailUnused(ctx context.Context, email string) error {
	if _, err := s.instructors.FindByEmail(ctx, email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if _, err := s.students.FindByEmail(ctx, email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	return nil
}

func (s *AuthService) generateAccessToken(principal models.Principal) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)
	claims := &models.JWTClaims{
		Kind: principal.Kind(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   principal.PrincipalEmail(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if instructor, ok := principal.(*models.Instructor); ok {
		claims.Role = instructor.Role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func passwordHashOf(principal models.Principal) string {
	switch p := principal.(type) {
	case *models.Instructor:
		return p.PasswordHash
	case *models.Student:
		return p.PasswordHash
	}
	return ""
}
