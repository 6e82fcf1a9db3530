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

// NotificationRepository stores per-user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// notificationBatchRows caps rows per INSERT. Six placeholders per row keeps a
// statement well under PostgreSQL's 65535 bind parameter limit.
const notificationBatchRows = 1000

// CreateBatch inserts notifications in chunks of notificationBatchRows. Batches
// spanning several statements are written in one transaction.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range notifications {
		n := &notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
	}

	if len(notifications) <= notificationBatchRows {
		return insertNotifications(ctx, r.db, notifications)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification batch: %w", err)
	}
	for start := 0; start < len(notifications); start += notificationBatchRows {
		end := start + notificationBatchRows
		if end > len(notifications) {
			end = len(notifications)
		}
		if err := insertNotifications(ctx, tx, notifications[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification batch: %w", err)
	}
	return nil
}

func insertNotifications(ctx context.Context, exec sqlx.ExecerContext, chunk []models.Notification) error {
	builder := psql.Insert("notifications").
		Columns("id", "user_id", "event_id", "message", "is_read", "created_at")
	for _, n := range chunk {
		builder = builder.Values(n.ID, n.UserID, n.EventID, n.Message, n.Read, n.CreatedAt)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := sq.Eq{"user_id": filter.UserID}
	if filter.UnreadOnly {
		where["is_read"] = false
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("notifications").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query, args, err := psql.Select("id", "user_id", "event_id", "message", "is_read", "created_at").
		From("notifications").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead flags a notification owned by userID as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	query, args, err := psql.Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification update rows: %w", err)
	}
	if rows == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
