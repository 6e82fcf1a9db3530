package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
)

// AuditRepository appends and reads audit trail rows. Rows are never updated or deleted.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit log row.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	var details interface{}
	if len(log.Details) > 0 {
		details = []byte(log.Details)
	}
	query, args, err := psql.Insert("audit_logs").
		Columns("id", "actor_id", "action", "event_id", "details", "created_at").
		Values(log.ID, log.ActorID, log.Action, log.EventID, details, log.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns audit rows matching the filter, latest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	where := sq.Eq{}
	if filter.Action != "" {
		where["action"] = filter.Action
	}
	if filter.EventID != "" {
		where["event_id"] = filter.EventID
	}
	if filter.ActorID != "" {
		where["actor_id"] = filter.ActorID
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("audit_logs").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query, args, err := psql.Select("id", "actor_id", "action", "event_id", "details", "created_at").
		From("audit_logs").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}
