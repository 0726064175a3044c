package models

import "time"

// TaskStatus enumerates the task board columns. Any pair of statuses is a
// legal transition; only who may trigger a transition is controlled.
type TaskStatus string

const (
	TaskTodo      TaskStatus = "TODO"
	TaskDoing     TaskStatus = "DOING"
	TaskReview    TaskStatus = "REVIEW"
	TaskDone      TaskStatus = "DONE"
	TaskCompleted TaskStatus = "COMPLETED"
)

// ValidTaskStatus reports whether the given value is a known status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskDoing, TaskReview, TaskDone, TaskCompleted:
		return true
	}
	return false
}

// Task is a unit of work attached to an engagement.
type Task struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description,omitempty"`
	DueDate      *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status       TaskStatus `db:"status" json:"status"`
	EngagementID string     `db:"engagement_id" json:"engagement_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateTaskRequest is the advisor's payload for a new task.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=3"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskPatch carries partial-update semantics: only fields whose pointer is
// non-nil are applied. DueDateSet distinguishes "leave the due date alone"
// from "explicitly clear it" since the column itself is nullable.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	DueDateSet  bool        `json:"-"`
}

// Apply mutates the task in place with the present patch fields.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDateSet {
		t.DueDate = p.DueDate
	}
}

// TaskAttachment records a file uploaded against a task. The core only
// tracks existence and metadata; bytes live in file storage.
type TaskAttachment struct {
	ID         string    `db:"id" json:"id"`
	TaskID     string    `db:"task_id" json:"task_id"`
	Filename   string    `db:"filename" json:"filename"`
	StoredPath string    `db:"stored_path" json:"stored_path"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
