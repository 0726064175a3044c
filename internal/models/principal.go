package models

import "time"

// PrincipalKind tags the two disjoint account kinds.
type PrincipalKind string

const (
	KindInstructor PrincipalKind = "instructor"
	KindStudent    PrincipalKind = "student"
)

// InstructorRole represents the available instructor roles for RBAC.
type InstructorRole string

const (
	RoleInstructor  InstructorRole = "INSTRUCTOR"
	RoleCoordinator InstructorRole = "COORDINATOR"
	RoleAdmin       InstructorRole = "ADMIN"
)

// StudentStatus indicates whether a student account may act.
type StudentStatus string

const (
	StudentActive   StudentStatus = "ACTIVE"
	StudentInactive StudentStatus = "INACTIVE"
)

// Principal is an authenticated actor, either an Instructor or a Student.
// Callers dispatch on Kind instead of type inspection.
type Principal interface {
	Kind() PrincipalKind
	PrincipalID() string
	PrincipalEmail() string
	IsActive() bool
}

// Instructor represents an instructor account stored in the instructors table.
type Instructor struct {
	ID             string         `db:"id" json:"id"`
	FullName       string         `db:"full_name" json:"full_name"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	RegistryNumber string         `db:"registry_number" json:"registry_number"`
	Department     *string        `db:"department" json:"department,omitempty"`
	AcademicTitle  *string        `db:"academic_title" json:"academic_title,omitempty"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	Role           InstructorRole `db:"role" json:"role"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

func (i *Instructor) Kind() PrincipalKind    { return KindInstructor }
func (i *Instructor) PrincipalID() string    { return i.ID }
func (i *Instructor) PrincipalEmail() string { return i.Email }
func (i *Instructor) IsActive() bool         { return true }

// Student represents a student account stored in the students table.
type Student struct {
	ID               string        `db:"id" json:"id"`
	FullName         string        `db:"full_name" json:"full_name"`
	Email            string        `db:"email" json:"email"`
	PasswordHash     string        `db:"password_hash" json:"-"`
	EnrollmentNumber string        `db:"enrollment_number" json:"enrollment_number"`
	Cohort           *string       `db:"cohort" json:"cohort,omitempty"`
	Phone            *string       `db:"phone" json:"phone,omitempty"`
	Status           StudentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

func (s *Student) Kind() PrincipalKind    { return KindStudent }
func (s *Student) PrincipalID() string    { return s.ID }
func (s *Student) PrincipalEmail() string { return s.Email }
func (s *Student) IsActive() bool         { return s.Status == StudentActive }
