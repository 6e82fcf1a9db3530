package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
	"github.com/khanhnq02905/Academic-Calendar/pkg/export"
)

const auditExportLimit = 200

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

// AuditService appends workflow audit entries and serves the audit trail.
type AuditService struct {
	store     auditStore
	exporters map[dto.ExportFormat]export.Exporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditService constructs the service.
func NewAuditService(store auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		store: store,
		exporters: map[dto.ExportFormat]export.Exporter{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Record appends one entry. Entries are never updated or deleted.
func (s *AuditService) Record(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if !log.Action.IsValid() {
		return fmt.Errorf("unknown audit action %q", log.Action)
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.now().UTC()
	}
	if err := s.store.Create(ctx, log); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	s.logger.Debug("audit log recorded",
		zap.String("action", string(log.Action)),
		zap.String("event_id", log.EventID),
		zap.String("actor_id", log.ActorID))
	return nil
}

// List returns the audit trail, latest first. Administrators only.
func (s *AuditService) List(ctx context.Context, actor models.Actor, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error) {
	if !actor.IsPrivileged() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can read the audit trail")
	}
	if query.Action != "" && !query.Action.IsValid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown audit action: "+string(query.Action))
	}
	logs, total, err := s.store.List(ctx, models.AuditLogFilter{
		Action:   query.Action,
		EventID:  query.EventID,
		ActorID:  query.ActorID,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, &models.Pagination{Page: normalizePage(query.Page), PageSize: query.PageSize, TotalCount: total}, nil
}

// Export renders the filtered audit trail, walking every page.
func (s *AuditService) Export(ctx context.Context, actor models.Actor, query dto.AuditLogQuery, format dto.ExportFormat) (*dto.ExportFile, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	var entries []models.AuditLog
	query.PageSize = auditExportLimit
	for page := 1; ; page++ {
		query.Page = page
		batch, pagination, err := s.List(ctx, actor, query)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		if len(batch) < auditExportLimit || len(entries) >= pagination.TotalCount {
			break
		}
	}

	generated := s.now().UTC()
	dataset := export.Dataset{
		Title:   "Academic calendar audit trail " + generated.Format("2006-01-02 15:04 MST"),
		Headers: []string{"timestamp", "user", "action", "event", "details"},
		Widths:  []float64{3, 3, 2, 3, 4},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"timestamp": entry.CreatedAt.UTC().Format(time.RFC3339),
			"user":      entry.ActorID,
			"action":    string(entry.Action),
			"event":     entry.EventID,
			"details":   entry.Details.String(),
		})
	}

	content, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("audit-%s.%s", generated.Format("20060102-150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}
