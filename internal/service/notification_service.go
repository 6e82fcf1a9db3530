package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
	"github.com/khanhnq02905/Academic-Calendar/pkg/jobs"
)

// NotificationJobType identifies fan-out jobs on the notification queue.
const NotificationJobType = "notification.dispatch"

type audienceDirectory interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListStudentIDs(ctx context.Context, majorID string, year int) ([]string, error)
}

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type audienceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type notificationQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationJob is the payload carried by a queued fan-out.
type NotificationJob struct {
	Event *models.ScheduledEvent
	Kind  models.NotificationKind
}

// NotificationServiceConfig tunes audience caching.
type NotificationServiceConfig struct {
	AudienceCacheTTL time.Duration
}

// NotificationService fans event changes out to the students of the event's
// course cohort and serves their inbox.
type NotificationService struct {
	store     notificationStore
	directory audienceDirectory
	cache     audienceCache
	queue     notificationQueue
	metrics   *MetricsService
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewNotificationService constructs the dispatcher. cache and metrics may be nil.
func NewNotificationService(store notificationStore, directory audienceDirectory, cache audienceCache, metrics *MetricsService, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AudienceCacheTTL <= 0 {
		cfg.AudienceCacheTTL = 10 * time.Minute
	}
	return &NotificationService{
		store:     store,
		directory: directory,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cacheTTL:  cfg.AudienceCacheTTL,
		now:       time.Now,
	}
}

// UseQueue switches delivery to the asynchronous queue.
func (s *NotificationService) UseQueue(queue notificationQueue) {
	s.queue = queue
}

// Notify delivers or enqueues a notification. Failures are logged only.
func (s *NotificationService) Notify(ctx context.Context, event *models.ScheduledEvent, kind models.NotificationKind) {
	if event == nil {
		return
	}
	if s.queue != nil {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    NotificationJobType,
			Payload: NotificationJob{Event: event.Clone(), Kind: kind},
		}
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("notification enqueue failed, delivering inline",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	if err := s.Deliver(ctx, event, kind); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// HandleJob is the queue handler for NotificationJobType.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(NotificationJob)
	if !ok || payload.Event == nil {
		s.logger.Error("dropping malformed notification job", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return s.Deliver(ctx, payload.Event, payload.Kind)
}

// Deliver writes one notification per audience member.
func (s *NotificationService) Deliver(ctx context.Context, event *models.ScheduledEvent, kind models.NotificationKind) error {
	audience, err := s.ResolveAudience(ctx, event.CourseID)
	if err != nil {
		s.metrics.ObserveNotifications(kind, "failed", 0)
		return err
	}
	if len(audience) == 0 {
		s.logger.Debug("no audience for event", zap.String("event_id", event.ID), zap.String("course_id", event.CourseID))
		return nil
	}

	message := BuildMessage(event, kind)
	eventID := event.ID
	if event.IsChangeRequest() {
		eventID = *event.RelatedEventID
	}
	createdAt := s.now().UTC()
	batch := make([]models.Notification, 0, len(audience))
	for _, userID := range audience {
		id := eventID
		batch = append(batch, models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			EventID:   &id,
			Message:   message,
			CreatedAt: createdAt,
		})
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		s.metrics.ObserveNotifications(kind, "failed", 0)
		return fmt.Errorf("store notifications: %w", err)
	}
	s.metrics.ObserveNotifications(kind, "delivered", len(batch))
	return nil
}

// ResolveAudience returns the ids of students sharing the course's major and year.
func (s *NotificationService) ResolveAudience(ctx context.Context, courseID string) ([]string, error) {
	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	if course.MajorID == nil || *course.MajorID == "" {
		return nil, nil
	}

	key := audienceCacheKey(*course.MajorID, course.Year)
	if s.cache != nil {
		var cached []string
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return cached, nil
		case errors.Is(err, appErrors.ErrCacheMiss):
			s.metrics.RecordCacheOperation(false, time.Since(start))
		default:
			s.logger.Warn("audience cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	students, err := s.directory.ListStudentIDs(ctx, *course.MajorID, course.Year)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, students, s.cacheTTL); err != nil {
			s.logger.Warn("audience cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return students, nil
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.store.ListByUser(ctx, models.NotificationFilter{
		UserID:     actor.ID,
		UnreadOnly: query.UnreadOnly,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, &models.Pagination{Page: normalizePage(query.Page), PageSize: query.PageSize, TotalCount: total}, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if err := s.store.MarkRead(ctx, id, actor.ID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to update notification")
	}
	return nil
}

// BuildMessage renders the text students see. It always carries the event's
// title and the kind verb.
func BuildMessage(event *models.ScheduledEvent, kind models.NotificationKind) string {
	label := event.EventType.Label()
	when := fmt.Sprintf("%s %s-%s",
		event.Date.Format(dto.DateLayout),
		event.StartTime.Format(dto.ClockLayout),
		event.EndTime.Format(dto.ClockLayout))

	if event.IsChangeRequest() {
		return fmt.Sprintf("Change request for %s %q on %s has been %s", strings.ToLower(label), event.Title, when, kind)
	}
	switch kind {
	case models.NotificationCreated:
		return fmt.Sprintf("%s %q has been created for %s", label, event.Title, when)
	case models.NotificationUpdated:
		return fmt.Sprintf("%s %q has been updated and now takes place on %s", label, event.Title, when)
	default:
		return fmt.Sprintf("%s %q on %s has been %s", label, event.Title, when, kind)
	}
}

func audienceCacheKey(majorID string, year int) string {
	return fmt.Sprintf("audience:%s:%d", majorID, year)
}
