package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

var (
	adminActor   = models.Actor{ID: "admin-1", Role: models.RoleAdministrator}
	tutorActor   = models.Actor{ID: "tutor-1", Role: models.RoleTutor}
	studentActor = models.Actor{ID: "student-1", Role: models.RoleStudent}
)

// memEventStore keeps events in memory. RunInTx works on a staged copy that
// replaces the committed state only when the callback succeeds.
type memEventStore struct {
	mu        sync.Mutex
	events    map[string]*models.ScheduledEvent
	createErr error
	commitErr error
	txCount   int
}

func newMemEventStore(events ...*models.ScheduledEvent) *memEventStore {
	store := &memEventStore{events: map[string]*models.ScheduledEvent{}}
	for _, event := range events {
		store.events[event.ID] = event.Clone()
	}
	return store
}

func (m *memEventStore) Create(ctx context.Context, event *models.ScheduledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	m.events[event.ID] = event.Clone()
	return nil
}

func (m *memEventStore) GetByID(ctx context.Context, id string) (*models.ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return event.Clone(), nil
}

func (m *memEventStore) FindChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return findChild(m.events, parentID), nil
}

func (m *memEventStore) List(ctx context.Context, filter models.EventFilter) ([]models.ScheduledEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledEvent
	for _, event := range m.events {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, event.Status) {
			continue
		}
		if filter.CourseID != "" && event.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *event.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memEventStore) RunInTx(ctx context.Context, fn func(tx repository.EventTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	staged := make(map[string]*models.ScheduledEvent, len(m.events))
	for id, event := range m.events {
		staged[id] = event.Clone()
	}
	if err := fn(&memEventTx{events: staged}); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.events = staged
	return nil
}

func (m *memEventStore) get(t *testing.T, id string) *models.ScheduledEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	require.True(t, ok, "event %s should exist", id)
	return event.Clone()
}

func (m *memEventStore) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[id]
	return ok
}

func (m *memEventStore) snapshot() map[string]models.ScheduledEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.ScheduledEvent, len(m.events))
	for id, event := range m.events {
		out[id] = *event.Clone()
	}
	return out
}

// assertLinkInvariants checks that approved events carry no link and every
// change request points at an approved parent.
func (m *memEventStore) assertLinkInvariants(t *testing.T) {
	t.Helper()
	events := m.snapshot()
	for id, event := range events {
		switch event.Status {
		case models.EventStatusApproved:
			require.Nil(t, event.RelatedEventID, "approved event %s must not be linked", id)
		case models.EventStatusRequestChange:
			require.NotNil(t, event.RelatedEventID, "change request %s must be linked", id)
			parent, ok := events[*event.RelatedEventID]
			require.True(t, ok, "change request %s points at a missing parent", id)
			require.Equal(t, models.EventStatusApproved, parent.Status)
		}
	}
}

type memEventTx struct {
	events map[string]*models.ScheduledEvent
}

func (t *memEventTx) LockByID(ctx context.Context, id string) (*models.ScheduledEvent, error) {
	event, ok := t.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return event.Clone(), nil
}

func (t *memEventTx) LockChangeRequest(ctx context.Context, parentID string) (*models.ScheduledEvent, error) {
	return findChild(t.events, parentID), nil
}

func (t *memEventTx) Insert(ctx context.Context, event *models.ScheduledEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if _, exists := t.events[event.ID]; exists {
		return fmt.Errorf("insert: %w", repository.ErrConflict)
	}
	t.events[event.ID] = event.Clone()
	return nil
}

func (t *memEventTx) Update(ctx context.Context, event *models.ScheduledEvent) error {
	if _, ok := t.events[event.ID]; !ok {
		return fmt.Errorf("update: %w", repository.ErrConflict)
	}
	event.UpdatedAt = time.Now().UTC()
	t.events[event.ID] = event.Clone()
	return nil
}

func (t *memEventTx) Delete(ctx context.Context, id string) error {
	if _, ok := t.events[id]; !ok {
		return fmt.Errorf("delete: %w", repository.ErrConflict)
	}
	delete(t.events, id)
	return nil
}

func findChild(events map[string]*models.ScheduledEvent, parentID string) *models.ScheduledEvent {
	for _, event := range events {
		if event.IsChangeRequest() && *event.RelatedEventID == parentID {
			return event.Clone()
		}
	}
	return nil
}

func containsStatus(statuses []models.EventStatus, status models.EventStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type stubReferences struct {
	courses  map[string]*models.Course
	rooms    map[string]*models.Room
	students map[string][]string
	listErr  error
	lists    int
}

func newStubReferences() *stubReferences {
	major := "major-cs"
	return &stubReferences{
		courses: map[string]*models.Course{
			"course-1": {ID: "course-1", Name: "Computer Science 1", Year: 1, MajorID: &major},
			"course-x": {ID: "course-x", Name: "Elective", Year: 2},
		},
		rooms: map[string]*models.Room{
			"room-1": {ID: "room-1", Name: "A-101"},
			"room-2": {ID: "room-2", Name: "B-202"},
		},
		students: map[string][]string{
			"major-cs:1": {"student-1", "student-2"},
			"major-cs:2": {"student-3"},
		},
	}
}

func (s *stubReferences) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", id, sql.ErrNoRows)
	}
	return course, nil
}

func (s *stubReferences) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, sql.ErrNoRows)
	}
	return room, nil
}

func (s *stubReferences) ListStudentIDs(ctx context.Context, majorID string, year int) ([]string, error) {
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.students[fmt.Sprintf("%s:%d", majorID, year)], nil
}

type stubAuditStore struct {
	mu        sync.Mutex
	logs      []models.AuditLog
	createErr error
	listErr   error
}

func (s *stubAuditStore) Create(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.logs = append(s.logs, *log)
	return nil
}

func (s *stubAuditStore) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	var matched []models.AuditLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		if filter.Action != "" && log.Action != filter.Action {
			continue
		}
		if filter.EventID != "" && log.EventID != filter.EventID {
			continue
		}
		if filter.ActorID != "" && log.ActorID != filter.ActorID {
			continue
		}
		matched = append(matched, log)
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

type stubNotificationStore struct {
	mu        sync.Mutex
	items     []models.Notification
	createErr error
	markErr   error
}

func (s *stubNotificationStore) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.items = append(s.items, notifications...)
	return nil
}

func (s *stubNotificationStore) ListByUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, item := range s.items {
		if item.UserID != filter.UserID || (filter.UnreadOnly && item.Read) {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (s *stubNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (s *stubNotificationStore) forUser(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out
}

type stubCache struct {
	values map[string][]string
	getErr error
	sets   int
}

func (c *stubCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	value, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*[]string)) = append([]string(nil), value...)
	return nil
}

func (c *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = map[string][]string{}
	}
	c.values[key] = append([]string(nil), value.([]string)...)
	c.sets++
	return nil
}

// workflowFixture wires the workflow services over in-memory stores.
type workflowFixture struct {
	events        *memEventStore
	references    *stubReferences
	auditStore    *stubAuditStore
	notifications *stubNotificationStore
	audit         *AuditService
	dispatcher    *NotificationService
	eventSvc      *EventService
	approvalSvc   *ApprovalService
}

func newWorkflowFixture(t *testing.T, events ...*models.ScheduledEvent) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		events:        newMemEventStore(events...),
		references:    newStubReferences(),
		auditStore:    &stubAuditStore{},
		notifications: &stubNotificationStore{},
	}
	f.audit = NewAuditService(f.auditStore, nil)
	f.dispatcher = NewNotificationService(f.notifications, f.references, nil, nil, nil, NotificationServiceConfig{})
	f.eventSvc = NewEventService(f.events, f.references, f.audit, f.dispatcher, nil)
	f.approvalSvc = NewApprovalService(f.events, f.audit, f.dispatcher, nil)
	return f
}

func (f *workflowFixture) auditActions() []models.AuditAction {
	f.auditStore.mu.Lock()
	defer f.auditStore.mu.Unlock()
	actions := make([]models.AuditAction, 0, len(f.auditStore.logs))
	for _, log := range f.auditStore.logs {
		actions = append(actions, log.Action)
	}
	return actions
}

func (f *workflowFixture) lastAudit(t *testing.T) models.AuditLog {
	t.Helper()
	f.auditStore.mu.Lock()
	defer f.auditStore.mu.Unlock()
	require.NotEmpty(t, f.auditStore.logs)
	return f.auditStore.logs[len(f.auditStore.logs)-1]
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", raw)
	require.NoError(t, err)
	return date
}

func mustClock(t *testing.T, raw string) time.Time {
	t.Helper()
	clock, err := time.Parse("15:04", raw)
	require.NoError(t, err)
	return clock
}

func sampleEvent(t *testing.T, id string, status models.EventStatus) *models.ScheduledEvent {
	t.Helper()
	tutor := tutorActor.ID
	return &models.ScheduledEvent{
		ID:        id,
		Title:     "Original Title",
		Date:      mustDate(t, "2025-01-01"),
		StartTime: mustClock(t, "10:00"),
		EndTime:   mustClock(t, "11:00"),
		CourseID:  "course-1",
		RoomID:    "room-1",
		TutorID:   &tutor,
		EventType: models.EventTypeLecture,
		Status:    status,
		CreatedBy: tutorActor.ID,
	}
}

func changeRequestFor(t *testing.T, id string, parent *models.ScheduledEvent) *models.ScheduledEvent {
	t.Helper()
	child := parent.Clone()
	parentID := parent.ID
	child.ID = id
	child.Status = models.EventStatusRequestChange
	child.RelatedEventID = &parentID
	return child
}

func strPtr(v string) *string {
	return &v
}

func refPtr(v string) *dto.RefID {
	id := dto.RefID(v)
	return &id
}
