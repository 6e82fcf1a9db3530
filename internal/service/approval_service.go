package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

// ApprovalService resolves pending events and change requests.
type ApprovalService struct {
	workflowEffects
	events eventStore
}

// ApprovalServiceOption customises an ApprovalService.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalMetrics attaches workflow counters.
func WithApprovalMetrics(metrics *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.metrics = metrics
	}
}

// NewApprovalService constructs the service.
func NewApprovalService(events eventStore, audit auditRecorder, notifier eventNotifier, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		workflowEffects: workflowEffects{audit: audit, notifier: notifier, logger: logger},
		events:          events,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Approve publishes a pending event, or merges a change request into its
// parent and deletes the request.
func (s *ApprovalService) Approve(ctx context.Context, actor models.Actor, id string) (*dto.ApprovalResult, error) {
	if !actor.IsPrivileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can approve events")
	}
	snapshot, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}

	var (
		result *dto.ApprovalResult
		effect transition
	)
	if snapshot.IsChangeRequest() {
		err = s.events.RunInTx(ctx, func(tx repository.EventTx) error {
			parent, child, err := lockChangeRequest(ctx, tx, *snapshot.RelatedEventID, id)
			if err != nil {
				return err
			}
			if !child.Status.Allows(models.TransitionApprove) {
				return appErrors.Clone(appErrors.ErrConflict, "cannot approve a "+string(child.Status)+" event")
			}
			merged, ok := parent.Status.Next(models.TransitionMerge)
			if !ok {
				return appErrors.Clone(appErrors.ErrConflict, "parent event is no longer approved")
			}
			parent.CopyContentFrom(child)
			parent.Status = merged
			if err := tx.Update(ctx, parent); err != nil {
				return err
			}
			if err := tx.Delete(ctx, child.ID); err != nil {
				return err
			}
			result = &dto.ApprovalResult{
				Outcome: dto.ApprovalOutcomeMerged,
				EventID: parent.ID,
				Event:   dto.NewEventResponse(parent),
			}
			effect = transition{
				action:  models.AuditActionApproveEvent,
				subject: parent.ID,
				details: map[string]string{"merged_change_request": child.ID},
				event:   parent,
				kind:    models.NotificationApproved,
			}
			return nil
		})
	} else {
		err = s.events.RunInTx(ctx, func(tx repository.EventTx) error {
			event, err := tx.LockByID(ctx, id)
			if err != nil {
				return err
			}
			next, ok := event.Status.Next(models.TransitionApprove)
			if !ok || next == "" {
				return appErrors.Clone(appErrors.ErrConflict, "cannot approve a "+string(event.Status)+" event")
			}
			event.Status = next
			if err := tx.Update(ctx, event); err != nil {
				return err
			}
			result = &dto.ApprovalResult{
				Outcome: dto.ApprovalOutcomeApproved,
				EventID: event.ID,
				Event:   dto.NewEventResponse(event),
			}
			effect = transition{
				action:  models.AuditActionApproveEvent,
				subject: event.ID,
				event:   event,
				kind:    models.NotificationApproved,
			}
			return nil
		})
	}
	if err != nil {
		return nil, storeError(err, "failed to approve event")
	}

	effect.actor = actor
	s.logger.Info("event approved",
		zap.String("event_id", id),
		zap.String("outcome", string(result.Outcome)),
		zap.String("result_id", result.EventID),
		zap.String("actor_id", actor.ID))
	s.fire(ctx, effect)
	return result, nil
}

// Reject turns down a pending event, or discards a change request leaving
// its parent untouched.
func (s *ApprovalService) Reject(ctx context.Context, actor models.Actor, id string) (*dto.RejectionResult, error) {
	if !actor.IsPrivileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can reject events")
	}
	snapshot, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}

	var (
		result *dto.RejectionResult
		effect transition
	)
	if snapshot.IsChangeRequest() {
		err = s.events.RunInTx(ctx, func(tx repository.EventTx) error {
			parent, child, err := lockChangeRequest(ctx, tx, *snapshot.RelatedEventID, id)
			if err != nil {
				return err
			}
			if !child.Status.Allows(models.TransitionReject) {
				return appErrors.Clone(appErrors.ErrConflict, "cannot reject a "+string(child.Status)+" event")
			}
			if err := tx.Delete(ctx, child.ID); err != nil {
				return err
			}
			result = &dto.RejectionResult{
				Outcome:     dto.RejectionOutcomeDiscarded,
				EventID:     parent.ID,
				DiscardedID: child.ID,
				Event:       dto.NewEventResponse(parent),
			}
			effect = transition{
				action:  models.AuditActionRejectEvent,
				subject: parent.ID,
				details: map[string]string{"discarded_change_request": child.ID},
				event:   child,
				kind:    models.NotificationRejected,
			}
			return nil
		})
	} else {
		err = s.events.RunInTx(ctx, func(tx repository.EventTx) error {
			event, err := tx.LockByID(ctx, id)
			if err != nil {
				return err
			}
			next, ok := event.Status.Next(models.TransitionReject)
			if !ok || next == "" {
				return appErrors.Clone(appErrors.ErrConflict, "cannot reject a "+string(event.Status)+" event")
			}
			event.Status = next
			if err := tx.Update(ctx, event); err != nil {
				return err
			}
			result = &dto.RejectionResult{
				Outcome: dto.RejectionOutcomeRejected,
				EventID: event.ID,
				Event:   dto.NewEventResponse(event),
			}
			effect = transition{
				action:  models.AuditActionRejectEvent,
				subject: event.ID,
				event:   event,
				kind:    models.NotificationRejected,
			}
			return nil
		})
	}
	if err != nil {
		return nil, storeError(err, "failed to reject event")
	}

	effect.actor = actor
	s.logger.Info("event rejected",
		zap.String("event_id", id),
		zap.String("outcome", string(result.Outcome)),
		zap.String("result_id", result.EventID),
		zap.String("actor_id", actor.ID))
	s.fire(ctx, effect)
	return result, nil
}

// lockChangeRequest locks parent before child, the same order cancel uses,
// and verifies the link still holds.
func lockChangeRequest(ctx context.Context, tx repository.EventTx, parentID, childID string) (*models.ScheduledEvent, *models.ScheduledEvent, error) {
	parent, err := tx.LockByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, nil, err
	}
	child, err := tx.LockByID(ctx, childID)
	if err != nil {
		return nil, nil, err
	}
	if !child.IsChangeRequest() || *child.RelatedEventID != parent.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "change request no longer belongs to its parent")
	}
	return parent, child, nil
}
