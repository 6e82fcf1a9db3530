package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.ScheduledEvent) error
	GetByID(ctx context.Context, id string) (*models.ScheduledEvent, error)
	FindChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.ScheduledEvent, int, error)
	RunInTx(ctx context.Context, fn func(tx repository.EventTx) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog) error
}

type eventNotifier interface {
	Notify(ctx context.Context, event *models.ScheduledEvent, kind models.NotificationKind)
}

// transition describes a committed state change and the side effects it owes.
type transition struct {
	actor   models.Actor
	action  models.AuditAction
	subject string
	details map[string]string
	event   *models.ScheduledEvent
	kind    models.NotificationKind
}

// workflowEffects fires audit and notification side effects after a commit.
// Failures are logged and never reach the caller.
type workflowEffects struct {
	audit    auditRecorder
	notifier eventNotifier
	metrics  *MetricsService
	logger   *zap.Logger
}

func (w *workflowEffects) fire(ctx context.Context, t transition) {
	// the transition is committed; a disconnecting client must not cut its side effects short
	ctx = context.WithoutCancel(ctx)
	w.metrics.ObserveTransition(t.action)

	if w.audit != nil {
		entry := &models.AuditLog{ActorID: t.actor.ID, Action: t.action, EventID: t.subject}
		if len(t.details) > 0 {
			if raw, err := json.Marshal(t.details); err == nil {
				entry.Details = raw
			}
		}
		if err := w.audit.Record(ctx, entry); err != nil {
			w.logger.Error("failed to persist audit log",
				zap.String("action", string(t.action)),
				zap.String("event_id", t.subject),
				zap.String("actor_id", t.actor.ID),
				zap.Error(err))
		}
	}
	if w.notifier != nil && t.event != nil {
		w.notifier.Notify(ctx, t.event, t.kind)
	}
}

// storeError maps repository failures onto API errors. Typed errors raised
// inside a transaction callback pass through untouched.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	case errors.Is(err, repository.ErrConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "event was modified concurrently, reload and retry")
	case errors.Is(err, repository.ErrInvalidReference):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "referenced course, room or event does not exist")
	default:
		return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, message)
	}
}
