package models

import "time"

// EngagementStatus tracks an active thesis supervision relationship.
type EngagementStatus string

const (
	EngagementInProgress EngagementStatus = "IN_PROGRESS"
	EngagementCompleted  EngagementStatus = "COMPLETED"
	EngagementCancelled  EngagementStatus = "CANCELLED"
)

// Engagement is the thesis supervision relationship created when an
// invitation is accepted. A student has at most one engagement, ever.
type Engagement struct {
	ID          string           `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	Description *string          `db:"description" json:"description,omitempty"`
	Status      EngagementStatus `db:"status" json:"status"`
	StudentID   string           `db:"student_id" json:"student_id"`
	AdvisorID   string           `db:"advisor_id" json:"advisor_id"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EngagementDetail enriches an engagement with principal names.
type EngagementDetail struct {
	Engagement
	StudentName string `db:"student_name" json:"student_name"`
	AdvisorName string `db:"advisor_name" json:"advisor_name"`
}

// ThesisFile is a standalone thesis document uploaded by the student and
// attached to the engagement itself rather than to a task.
type ThesisFile struct {
	ID           string    `db:"id" json:"id"`
	EngagementID string    `db:"engagement_id" json:"engagement_id"`
	Filename     string    `db:"filename" json:"filename"`
	StoredPath   string    `db:"stored_path" json:"stored_path"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}
