package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

const defaultEventTitle = "New Event"

type referenceReader interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
}

// EventService creates events and routes edits through the change request workflow.
type EventService struct {
	workflowEffects
	events     eventStore
	references referenceReader
	validator  *validator.Validate
}

// EventServiceOption customises an EventService.
type EventServiceOption func(*EventService)

// WithEventMetrics attaches workflow counters.
func WithEventMetrics(metrics *MetricsService) EventServiceOption {
	return func(s *EventService) {
		s.metrics = metrics
	}
}

// WithEventValidator overrides the payload validator.
func WithEventValidator(validate *validator.Validate) EventServiceOption {
	return func(s *EventService) {
		if validate != nil {
			s.validator = validate
		}
	}
}

// NewEventService constructs the service.
func NewEventService(events eventStore, references referenceReader, audit auditRecorder, notifier eventNotifier, logger *zap.Logger, opts ...EventServiceOption) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{
		workflowEffects: workflowEffects{audit: audit, notifier: notifier, logger: logger},
		events:          events,
		references:      references,
		validator:       validator.New(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create schedules a new pending event.
func (s *EventService) Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*dto.EventResponse, error) {
	if !actor.CanSchedule() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only tutors and administrators can create events")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	tutorID, err := s.resolveTutor(actor, req.Tutor.Ptr())
	if err != nil {
		return nil, err
	}
	if err := s.ensureCourse(ctx, string(req.Course)); err != nil {
		return nil, err
	}
	if err := s.ensureRoom(ctx, string(req.Room)); err != nil {
		return nil, err
	}

	title := cleanTitle(req.Title)
	if title == "" {
		title = defaultEventTitle
	}
	event := &models.ScheduledEvent{
		Title:     title,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		CourseID:  strings.TrimSpace(string(req.Course)),
		RoomID:    strings.TrimSpace(string(req.Room)),
		TutorID:   tutorID,
		EventType: models.EventType(req.EventType),
		Status:    models.EventStatusPending,
		CreatedBy: actor.ID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, storeError(err, "failed to create event")
	}

	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("course_id", event.CourseID),
		zap.String("actor_id", actor.ID))
	s.fire(ctx, transition{
		actor:   actor,
		action:  models.AuditActionCreateEvent,
		subject: event.ID,
		event:   event,
		kind:    models.NotificationCreated,
	})
	return dto.NewEventResponse(event), nil
}

// SubmitEdit applies an edit request. An approved event edited by a
// non-privileged actor is never touched; a change request is forked instead.
func (s *EventService) SubmitEdit(ctx context.Context, actor models.Actor, id string, req dto.EditEventRequest) (*dto.EditResult, error) {
	if !actor.CanSchedule() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only tutors and administrators can edit events")
	}
	patch, err := parseEventPatch(req)
	if err != nil {
		return nil, err
	}
	if patch.tutorSet && !actor.IsPrivileged() && (patch.tutorID == nil || *patch.tutorID != actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can assign another tutor")
	}
	if patch.roomID != nil {
		if err := s.ensureRoom(ctx, *patch.roomID); err != nil {
			return nil, err
		}
	}

	var (
		result *dto.EditResult
		effect transition
	)
	err = s.events.RunInTx(ctx, func(tx repository.EventTx) error {
		target, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case patch.cancel:
			result, effect, err = s.cancel(ctx, tx, target)
		case target.Status.Allows(models.TransitionFork) && !actor.IsPrivileged():
			result, effect, err = s.fork(ctx, tx, actor, target, patch)
		default:
			result, effect, err = s.mutate(ctx, tx, target, patch)
		}
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to edit event")
	}

	effect.actor = actor
	s.logger.Info("event edit applied",
		zap.String("event_id", id),
		zap.String("outcome", string(result.Outcome)),
		zap.String("result_id", result.EventID),
		zap.String("actor_id", actor.ID))
	s.fire(ctx, effect)
	return result, nil
}

func (s *EventService) fork(ctx context.Context, tx repository.EventTx, actor models.Actor, parent *models.ScheduledEvent, patch *eventPatch) (*dto.EditResult, transition, error) {
	if !parent.Status.Allows(models.TransitionFork) {
		return nil, transition{}, appErrors.Clone(appErrors.ErrConflict, "cannot propose changes to a "+string(parent.Status)+" event")
	}
	open, err := tx.LockChangeRequest(ctx, parent.ID)
	if err != nil {
		return nil, transition{}, err
	}
	if open != nil {
		return nil, transition{}, appErrors.Clone(appErrors.ErrConflict, "event already has an open change request: "+open.ID)
	}

	child := parent.Clone()
	patch.applyTo(child)
	parentID := parent.ID
	child.ID = uuid.NewString()
	child.Status = models.EventStatusRequestChange
	child.RelatedEventID = &parentID
	child.CreatedBy = actor.ID
	child.CreatedAt = time.Time{}
	if err := tx.Insert(ctx, child); err != nil {
		return nil, transition{}, err
	}

	return &dto.EditResult{
			Outcome: dto.EditOutcomeForked,
			EventID: child.ID,
			Action:  models.AuditActionEditEvent,
			Event:   dto.NewEventResponse(child),
		}, transition{
			action:  models.AuditActionEditEvent,
			subject: parent.ID,
			details: map[string]string{"change_request": child.ID},
			event:   child,
			kind:    models.NotificationCreated,
		}, nil
}

func (s *EventService) mutate(ctx context.Context, tx repository.EventTx, target *models.ScheduledEvent, patch *eventPatch) (*dto.EditResult, transition, error) {
	next, ok := target.Status.Next(models.TransitionEdit)
	if !ok {
		return nil, transition{}, appErrors.Clone(appErrors.ErrConflict, "cannot edit a "+string(target.Status)+" event")
	}
	patch.applyTo(target)
	target.Status = next
	if err := tx.Update(ctx, target); err != nil {
		return nil, transition{}, err
	}
	return &dto.EditResult{
			Outcome: dto.EditOutcomeMutated,
			EventID: target.ID,
			Action:  models.AuditActionEditEvent,
			Event:   dto.NewEventResponse(target),
		}, transition{
			action:  models.AuditActionEditEvent,
			subject: target.ID,
			event:   target,
			kind:    models.NotificationUpdated,
		}, nil
}

func (s *EventService) cancel(ctx context.Context, tx repository.EventTx, target *models.ScheduledEvent) (*dto.EditResult, transition, error) {
	if target.IsChangeRequest() {
		return nil, transition{}, appErrors.Clone(appErrors.ErrConflict, "a change request cannot be cancelled, reject it instead")
	}
	next, ok := target.Status.Next(models.TransitionCancel)
	if !ok {
		return nil, transition{}, appErrors.Clone(appErrors.ErrConflict, "cannot cancel a "+string(target.Status)+" event")
	}

	var details map[string]string
	if target.Status == models.EventStatusApproved {
		open, err := tx.LockChangeRequest(ctx, target.ID)
		if err != nil {
			return nil, transition{}, err
		}
		if open != nil {
			if err := tx.Delete(ctx, open.ID); err != nil {
				return nil, transition{}, err
			}
			details = map[string]string{"discarded_change_request": open.ID}
		}
	}

	target.Status = next
	if err := tx.Update(ctx, target); err != nil {
		return nil, transition{}, err
	}
	return &dto.EditResult{
			Outcome: dto.EditOutcomeMutated,
			EventID: target.ID,
			Action:  models.AuditActionCancelEvent,
			Event:   dto.NewEventResponse(target),
		}, transition{
			action:  models.AuditActionCancelEvent,
			subject: target.ID,
			details: details,
			event:   target,
			kind:    models.NotificationCancelled,
		}, nil
}

// Get returns one event. Students only see published events.
func (s *EventService) Get(ctx context.Context, actor models.Actor, id string) (*dto.EventResponse, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	if !actor.CanSchedule() && !event.Status.IsPublic() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}

	resp := dto.NewEventResponse(event)
	if event.Status == models.EventStatusApproved && actor.CanSchedule() {
		open, err := s.events.FindChangeRequest(ctx, event.ID)
		if err != nil {
			return nil, storeError(err, "failed to load change request")
		}
		if open != nil {
			openID := open.ID
			resp.OpenChangeRequest = &openID
		}
	}
	return resp, nil
}

// List returns a page of events. Students are limited to published statuses.
func (s *EventService) List(ctx context.Context, actor models.Actor, query dto.EventQuery) ([]dto.EventResponse, *models.Pagination, error) {
	filter := models.EventFilter{
		CourseID: strings.TrimSpace(query.CourseID),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status: "+string(status))
		}
		if actor.CanSchedule() || status.IsPublic() {
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if !actor.CanSchedule() && len(filter.Statuses) == 0 {
		if len(query.Statuses) > 0 {
			return []dto.EventResponse{}, &models.Pagination{Page: normalizePage(query.Page), PageSize: query.PageSize}, nil
		}
		filter.Statuses = []models.EventStatus{models.EventStatusApproved, models.EventStatusCancelled}
	}
	if query.DateFrom != "" {
		from, err := parseDate(query.DateFrom)
		if err != nil {
			return nil, nil, err
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := parseDate(query.DateTo)
		if err != nil {
			return nil, nil, err
		}
		filter.DateTo = &to
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list events")
	}
	return dto.NewEventResponses(events), &models.Pagination{
		Page:       normalizePage(query.Page),
		PageSize:   query.PageSize,
		TotalCount: total,
	}, nil
}

func (s *EventService) resolveTutor(actor models.Actor, requested *string) (*string, error) {
	if requested == nil || strings.TrimSpace(*requested) == "" {
		if actor.IsPrivileged() {
			return nil, nil
		}
		self := actor.ID
		return &self, nil
	}
	tutor := strings.TrimSpace(*requested)
	if !actor.IsPrivileged() && tutor != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can assign another tutor")
	}
	return &tutor, nil
}

func (s *EventService) ensureCourse(ctx context.Context, id string) error {
	if _, err := s.references.GetCourse(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return storeError(err, "failed to load course")
	}
	return nil
}

func (s *EventService) ensureRoom(ctx context.Context, id string) error {
	if _, err := s.references.GetRoom(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "room does not exist")
		}
		return storeError(err, "failed to load room")
	}
	return nil
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
