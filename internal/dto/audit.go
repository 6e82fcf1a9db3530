package dto

import "github.com/khanhnq02905/Academic-Calendar/internal/models"

// ExportFormat selects the audit trail export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// AuditLogQuery captures audit trail filters.
type AuditLogQuery struct {
	Action   models.AuditAction
	EventID  string
	ActorID  string
	Page     int
	PageSize int
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
