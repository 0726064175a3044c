package models

import "time"

// InvitationStatus tracks the advising invitation state machine.
// PENDING is the only state from which a transition is allowed.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRejected InvitationStatus = "REJECTED"
)

// Invitation is a proposal from an instructor to a student to begin thesis
// supervision. Once resolved it is immutable.
type Invitation struct {
	ID                  string           `db:"id" json:"id"`
	ProposedTitle       string           `db:"proposed_title" json:"proposed_title"`
	ProposedDescription *string          `db:"proposed_description" json:"proposed_description,omitempty"`
	Status              InvitationStatus `db:"status" json:"status"`
	InstructorID        string           `db:"instructor_id" json:"instructor_id"`
	StudentID           string           `db:"student_id" json:"student_id"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	RespondedAt         *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
}

// CreateInvitationRequest is the instructor's proposal payload.
type CreateInvitationRequest struct {
	StudentID           string  `json:"student_id" validate:"required"`
	ProposedTitle       string  `json:"proposed_title" validate:"required,min=3"`
	ProposedDescription *string `json:"proposed_description,omitempty"`
}

// RespondInvitationRequest carries the student's decision. The decision is
// an explicit enum so an empty payload fails validation instead of reading
// as a rejection.
type RespondInvitationRequest struct {
	Decision InvitationStatus `json:"decision" validate:"required,oneof=ACCEPTED REJECTED"`
}

// RespondInvitationResponse pairs the resolved invitation with the
// engagement created when the decision was ACCEPTED.
type RespondInvitationResponse struct {
	Invitation *Invitation `json:"invitation"`
	Engagement *Engagement `json:"engagement,omitempty"`
}

// InvitationDetail enriches an invitation with the principal names for
// listing endpoints.
type InvitationDetail struct {
	Invitation
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	StudentName    string `db:"student_name" json:"student_name"`
}
