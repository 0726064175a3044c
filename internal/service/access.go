package service

import (
	"github.com/acadhub/thesis-supervision-api/internal/models"
	appErrors "github.com/acadhub/thesis-supervision-api/pkg/errors"
)

// Authorization guards shared by the services. Each returns the narrowed
// principal or a forbidden error; handlers never inspect kinds directly.

// RequireInstructor narrows a principal to an instructor.
func RequireInstructor(principal models.Principal) (*models.Instructor, error) {
	instructor, ok := principal.(*models.Instructor)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "instructor account required")
	}
	return instructor, nil
}

// RequireStudent narrows a principal to a student.
func RequireStudent(principal models.Principal) (*models.Student, error) {
	student, ok := principal.(*models.Student)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student account required")
	}
	return student, nil
}

// RequireRole checks that the instructor holds one of the given roles.
func RequireRole(instructor *models.Instructor, roles ...models.InstructorRole) error {
	for _, role := range roles {
		if instructor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
}

// IsEngagementParty reports whether the principal is the engagement's
// student or its advisor.
func IsEngagementParty(principal models.Principal, engagement *models.Engagement) bool {
	switch principal.Kind() {
	case models.KindStudent:
		return principal.PrincipalID() == engagement.StudentID
	case models.KindInstructor:
		return principal.PrincipalID() == engagement.AdvisorID
	}
	return false
}

// RequireEngagementParty rejects principals outside the engagement.
func RequireEngagementParty(principal models.Principal, engagement *models.Engagement) error {
	if !IsEngagementParty(principal, engagement) {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this engagement")
	}
	return nil
}
