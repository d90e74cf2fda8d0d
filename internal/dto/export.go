package dto

import "time"

// ExportFormat is a downloadable timetable format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
	ExportICS ExportFormat = "ics"
)

// ExportRequest captures POST /timetable/exports.
type ExportRequest struct {
	Year   int          `json:"year" validate:"omitempty,min=2000,max=2100"`
	Format ExportFormat `json:"format" validate:"required,oneof=csv pdf ics"`
}

// ExportResponse points to a generated file.
type ExportResponse struct {
	ID        string       `json:"id"`
	Format    ExportFormat `json:"format"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}
