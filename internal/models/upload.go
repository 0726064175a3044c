package models

import (
	"io"
	"time"
)

// FileUpload carries an incoming multipart file through the service layer
// without binding it to the HTTP framework.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ReportFormat selects the rendering of a progress report.
type ReportFormat string

const (
	ReportCSV ReportFormat = "csv"
	ReportPDF ReportFormat = "pdf"
)

// ProgressReport describes a generated engagement progress export and the
// signed token required to download it.
type ProgressReport struct {
	ReportID     string       `json:"report_id"`
	EngagementID string       `json:"engagement_id"`
	Format       ReportFormat `json:"format"`
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	SizeBytes    int64        `json:"size_bytes"`
}
