package upload

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Uploader struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Job struct {
	ID                string    `json:"id"`
	OriginalZipName   string    `json:"originalZipName"`
	Status            Status    `json:"status"`
	ReportCSVURL      *string   `json:"reportCsvUrl"`
	UploadedByAdminID int64     `json:"uploadedByAdminId"`
	UploadedByAdmin   *Uploader `json:"uploadedByAdmin,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ReportRow is one line of the per-job CSV report.
type ReportRow struct {
	Filename string
	URL      string
	Status   string
	Error    string
}
