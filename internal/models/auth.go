package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a principal.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and principal info.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	IssuedAt    time.Time     `json:"issued_at"`
	Kind        PrincipalKind `json:"kind"`
}

// JWTClaims represents the JWT payload for access tokens. Role is empty for
// student tokens.
type JWTClaims struct {
	Kind PrincipalKind  `json:"kind"`
	Role InstructorRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RegisterStudentRequest holds the fields for student self-registration.
type RegisterStudentRequest struct {
	FullName         string  `json:"full_name" validate:"required,min=2"`
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8"`
	EnrollmentNumber string  `json:"enrollment_number" validate:"required"`
	Cohort           *string `json:"cohort,omitempty"`
	Phone            *string `json:"phone,omitempty"`
}

// RegisterInstructorRequest holds the fields for instructor registration.
type RegisterInstructorRequest struct {
	FullName       string  `json:"full_name" validate:"required,min=2"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=8"`
	RegistryNumber string  `json:"registry_number" validate:"required"`
	Department     *string `json:"department,omitempty"`
	AcademicTitle  *string `json:"academic_title,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
