package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
)

var eventColumns = []string{
	"id", "title", "event_date", "start_time", "end_time", "course_id", "room_id", "tutor_id",
	"event_type", "status", "related_event_id", "created_by", "created_at", "updated_at",
}

// EventTx exposes row-locked event operations inside one database transaction.
type EventTx interface {
	LockByID(ctx context.Context, id string) (*models.ScheduledEvent, error)
	LockChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error)
	Insert(ctx context.Context, event *models.ScheduledEvent) error
	Update(ctx context.Context, event *models.ScheduledEvent) error
	Delete(ctx context.Context, id string) error
}

// EventRepository persists scheduled events and their change requests.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event outside of any caller transaction.
func (r *EventRepository) Create(ctx context.Context, event *models.ScheduledEvent) error {
	return insertEvent(ctx, r.db, event)
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.ScheduledEvent, error) {
	query, args, err := psql.Select(eventColumns...).
		From("scheduled_events").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var event models.ScheduledEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get scheduled event: %w", err)
	}
	return &event, nil
}

// FindChangeRequest returns the open change request of a parent, or nil when there is none.
func (r *EventRepository) FindChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error) {
	query, args, err := psql.Select(eventColumns...).
		From("scheduled_events").
		Where(sq.Eq{"related_event_id": parentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var event models.ScheduledEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find change request: %w", err)
	}
	return &event, nil
}

// List returns events matching the filter ordered by date and start time.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.ScheduledEvent, int, error) {
	where := sq.And{}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		where = append(where, sq.Eq{"status": statuses})
	}
	if filter.CourseID != "" {
		where = append(where, sq.Eq{"course_id": filter.CourseID})
	}
	if filter.DateFrom != nil {
		where = append(where, sq.GtOrEq{"event_date": filter.DateFrom.Format(sqlDateLayout)})
	}
	if filter.DateTo != nil {
		where = append(where, sq.LtOrEq{"event_date": filter.DateTo.Format(sqlDateLayout)})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("scheduled_events").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count scheduled events: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query, args, err := psql.Select(eventColumns...).
		From("scheduled_events").
		Where(where).
		OrderBy("event_date ASC", "start_time ASC", "id ASC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var events []models.ScheduledEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scheduled events: %w", err)
	}
	return events, total, nil
}

// RunInTx executes fn inside a transaction. Every effect fn performs through
// the EventTx commits together or not at all.
func (r *EventRepository) RunInTx(ctx context.Context, fn func(tx EventTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", translateError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&eventTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event transaction: %w", translateError(err))
	}
	return nil
}

type eventTx struct {
	tx *sqlx.Tx
}

func (t *eventTx) LockByID(ctx context.Context, id string) (*models.ScheduledEvent, error) {
	query, args, err := psql.Select(eventColumns...).
		From("scheduled_events").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var event models.ScheduledEvent
	if err := t.tx.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock scheduled event: %w", translateError(err))
	}
	return &event, nil
}

func (t *eventTx) LockChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error) {
	query, args, err := psql.Select(eventColumns...).
		From("scheduled_events").
		Where(sq.Eq{"related_event_id": parentID}).
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var event models.ScheduledEvent
	if err := t.tx.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock change request: %w", translateError(err))
	}
	return &event, nil
}

func (t *eventTx) Insert(ctx context.Context, event *models.ScheduledEvent) error {
	return insertEvent(ctx, t.tx, event)
}

func (t *eventTx) Update(ctx context.Context, event *models.ScheduledEvent) error {
	event.UpdatedAt = time.Now().UTC()
	query, args, err := psql.Update("scheduled_events").
		SetMap(map[string]interface{}{
			"title":            event.Title,
			"event_date":       event.Date.Format(sqlDateLayout),
			"start_time":       event.StartTime.Format(sqlClockLayout),
			"end_time":         event.EndTime.Format(sqlClockLayout),
			"room_id":          event.RoomID,
			"tutor_id":         event.TutorID,
			"event_type":       event.EventType,
			"status":           event.Status,
			"related_event_id": event.RelatedEventID,
			"updated_at":       event.UpdatedAt,
		}).
		Where(sq.Eq{"id": event.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scheduled event: %w", translateError(err))
	}
	return expectOneRow(result, "update scheduled event")
}

func (t *eventTx) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("scheduled_events").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete scheduled event: %w", translateError(err))
	}
	return expectOneRow(result, "delete scheduled event")
}

func insertEvent(ctx context.Context, exec sqlx.ExecerContext, event *models.ScheduledEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	query, args, err := psql.Insert("scheduled_events").
		Columns(eventColumns...).
		Values(
			event.ID,
			event.Title,
			event.Date.Format(sqlDateLayout),
			event.StartTime.Format(sqlClockLayout),
			event.EndTime.Format(sqlClockLayout),
			event.CourseID,
			event.RoomID,
			event.TutorID,
			event.EventType,
			event.Status,
			event.RelatedEventID,
			event.CreatedBy,
			event.CreatedAt,
			event.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create scheduled event: %w", translateError(err))
	}
	return nil
}

// expectOneRow treats a vanished row as a lost race with another transaction.
func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return nil
}
