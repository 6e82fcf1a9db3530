package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

func validCreateRequest() dto.CreateEventRequest {
	return dto.CreateEventRequest{
		Title:     "Intro to CS",
		Date:      "2025-02-03",
		StartTime: "10:00",
		EndTime:   "11:00",
		Course:    "course-1",
		Room:      "room-1",
		EventType: "lecture",
	}
}

func TestEventServiceCreateAuditsAndNotifies(t *testing.T) {
	f := newWorkflowFixture(t)

	resp, err := f.eventSvc.Create(context.Background(), adminActor, validCreateRequest())
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.EventStatusPending, resp.Status)
	assert.Equal(t, "2025-02-03", resp.Date)
	assert.Equal(t, "10:00", resp.StartTime)
	assert.Nil(t, resp.Tutor)

	stored := f.events.get(t, resp.ID)
	assert.Equal(t, "Intro to CS", stored.Title)
	assert.Equal(t, adminActor.ID, stored.CreatedBy)

	require.Equal(t, []models.AuditAction{models.AuditActionCreateEvent}, f.auditActions())
	entry := f.lastAudit(t)
	assert.Equal(t, adminActor.ID, entry.ActorID)
	assert.Equal(t, resp.ID, entry.EventID)

	for _, student := range []string{"student-1", "student-2"} {
		inbox := f.notifications.forUser(student)
		require.Len(t, inbox, 1, student)
		assert.Contains(t, inbox[0].Message, "Intro to CS")
		assert.Contains(t, inbox[0].Message, "created")
		require.NotNil(t, inbox[0].EventID)
		assert.Equal(t, resp.ID, *inbox[0].EventID)
	}
	assert.Empty(t, f.notifications.forUser("student-3"))
}

func TestEventServiceCreateDefaults(t *testing.T) {
	f := newWorkflowFixture(t)
	req := validCreateRequest()
	req.Title = "  "

	resp, err := f.eventSvc.Create(context.Background(), tutorActor, req)
	require.NoError(t, err)
	assert.Equal(t, defaultEventTitle, resp.Title)
	require.NotNil(t, resp.Tutor)
	assert.Equal(t, tutorActor.ID, *resp.Tutor)
}

func TestEventServiceCreateStripsMarkup(t *testing.T) {
	f := newWorkflowFixture(t)
	req := validCreateRequest()
	req.Title = `<script>alert(1)</script>Q&A <b>session</b>`

	resp, err := f.eventSvc.Create(context.Background(), adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, "Q&A session", resp.Title)
}

func TestCleanTitleDecodesEntitiesBeforeStripping(t *testing.T) {
	cases := map[string]string{
		"&lt;script&gt;alert(1)&lt;/script&gt; Lab": "Lab",
		"&amp;lt;b&amp;gt;Exam&amp;lt;/b&amp;gt;":   "Exam",
		"&lt;img src=x onerror=alert(1)&gt;Lecture": "Lecture",
		"Tom &amp; Jerry":                           "Tom & Jerry",
		"a < b":                                     "a < b",
		"<p>Midterm</p>":                            "Midterm",
	}
	for raw, want := range cases {
		got := cleanTitle(raw)
		assert.Equal(t, want, got, raw)
		assert.NotContains(t, got, "<script")
		assert.NotContains(t, got, "<img")
	}

	f := newWorkflowFixture(t)
	req := validCreateRequest()
	req.Title = "&lt;script&gt;alert(1)&lt;/script&gt; Lab"
	resp, err := f.eventSvc.Create(context.Background(), adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, "Lab", resp.Title)
}

func TestEventServiceCreateRejections(t *testing.T) {
	cases := []struct {
		name   string
		actor  models.Actor
		mutate func(*dto.CreateEventRequest)
		want   *appErrors.Error
	}{
		{name: "student", actor: studentActor, mutate: func(*dto.CreateEventRequest) {}, want: appErrors.ErrForbidden},
		{name: "missing date", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.Date = "" }, want: appErrors.ErrValidation},
		{name: "bad date", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.Date = "03/02/2025" }, want: appErrors.ErrValidation},
		{name: "bad time", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.StartTime = "25:99" }, want: appErrors.ErrValidation},
		{name: "end before start", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.EndTime = "09:00" }, want: appErrors.ErrValidation},
		{name: "unknown type", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.EventType = "seminar" }, want: appErrors.ErrValidation},
		{name: "unknown course", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.Course = "nope" }, want: appErrors.ErrValidation},
		{name: "unknown room", actor: adminActor, mutate: func(r *dto.CreateEventRequest) { r.Room = "nope" }, want: appErrors.ErrValidation},
		{name: "tutor for someone else", actor: tutorActor, mutate: func(r *dto.CreateEventRequest) { r.Tutor = refPtr("tutor-2") }, want: appErrors.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWorkflowFixture(t)
			req := validCreateRequest()
			tc.mutate(&req)

			_, err := f.eventSvc.Create(context.Background(), tc.actor, req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
			assert.Empty(t, f.events.snapshot())
			assert.Empty(t, f.auditActions())
		})
	}
}

func TestEventServiceCreateStorageFailure(t *testing.T) {
	f := newWorkflowFixture(t)
	f.events.createErr = errors.New("connection reset")

	_, err := f.eventSvc.Create(context.Background(), adminActor, validCreateRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageFailure))
	assert.Empty(t, f.auditActions())
	assert.Empty(t, f.notifications.items)
}

func TestSubmitEditForksApprovedEventForTutor(t *testing.T) {
	parent := sampleEvent(t, "parent-1", models.EventStatusApproved)
	f := newWorkflowFixture(t, parent)
	before := f.events.get(t, parent.ID)

	result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, parent.ID, dto.EditEventRequest{
		Title:     strPtr("Changed Title"),
		Date:      strPtr("2025-01-02"),
		StartTime: strPtr("12:00"),
	})
	require.NoError(t, err)
	assert.True(t, result.Created())
	assert.Equal(t, dto.EditOutcomeForked, result.Outcome)
	assert.NotEqual(t, parent.ID, result.EventID)

	assert.Equal(t, before, f.events.get(t, parent.ID))

	child := f.events.get(t, result.EventID)
	assert.Equal(t, models.EventStatusRequestChange, child.Status)
	require.NotNil(t, child.RelatedEventID)
	assert.Equal(t, parent.ID, *child.RelatedEventID)
	assert.Equal(t, "Changed Title", child.Title)
	assert.Equal(t, mustDate(t, "2025-01-02"), child.Date)
	assert.Equal(t, mustClock(t, "12:00"), child.StartTime)
	assert.Equal(t, parent.EndTime, child.EndTime)
	assert.Equal(t, parent.CourseID, child.CourseID)

	entry := f.lastAudit(t)
	assert.Equal(t, models.AuditActionEditEvent, entry.Action)
	assert.Equal(t, parent.ID, entry.EventID)
	assert.Contains(t, entry.Details.String(), result.EventID)

	inbox := f.notifications.forUser("student-1")
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "Changed Title")
	assert.Contains(t, inbox[0].Message, "created")
	f.events.assertLinkInvariants(t)
}

func TestSubmitEditSecondForkConflicts(t *testing.T) {
	parent := sampleEvent(t, "parent-1", models.EventStatusApproved)
	f := newWorkflowFixture(t, parent, changeRequestFor(t, "child-1", parent))

	_, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, parent.ID, dto.EditEventRequest{Title: strPtr("Another")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, f.events.snapshot(), 2)
	assert.Empty(t, f.auditActions())
}

func TestSubmitEditMutatesInPlace(t *testing.T) {
	t.Run("administrator edits approved event", func(t *testing.T) {
		event := sampleEvent(t, "event-1", models.EventStatusApproved)
		f := newWorkflowFixture(t, event)

		result, err := f.eventSvc.SubmitEdit(context.Background(), adminActor, event.ID, dto.EditEventRequest{
			Room:  refPtr("room-2"),
			Tutor: refPtr("tutor-9"),
		})
		require.NoError(t, err)
		assert.False(t, result.Created())
		assert.Equal(t, event.ID, result.EventID)

		stored := f.events.get(t, event.ID)
		assert.Equal(t, "room-2", stored.RoomID)
		assert.Equal(t, "tutor-9", *stored.TutorID)
		assert.Equal(t, models.EventStatusApproved, stored.Status)
		assert.Len(t, f.events.snapshot(), 1)
	})

	t.Run("tutor edits pending event", func(t *testing.T) {
		event := sampleEvent(t, "event-1", models.EventStatusPending)
		f := newWorkflowFixture(t, event)

		result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, event.ID, dto.EditEventRequest{
			EndTime:   strPtr("12:30"),
			EventType: strPtr("exam"),
		})
		require.NoError(t, err)
		assert.Equal(t, dto.EditOutcomeMutated, result.Outcome)

		stored := f.events.get(t, event.ID)
		assert.Equal(t, mustClock(t, "12:30"), stored.EndTime)
		assert.Equal(t, models.EventTypeExam, stored.EventType)
		assert.Equal(t, models.EventStatusPending, stored.Status)

		assert.Equal(t, []models.AuditAction{models.AuditActionEditEvent}, f.auditActions())
		inbox := f.notifications.forUser("student-2")
		require.Len(t, inbox, 1)
		assert.Contains(t, inbox[0].Message, "updated")
	})

	t.Run("tutor revises open change request", func(t *testing.T) {
		parent := sampleEvent(t, "parent-1", models.EventStatusApproved)
		f := newWorkflowFixture(t, parent, changeRequestFor(t, "child-1", parent))

		result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, "child-1", dto.EditEventRequest{Title: strPtr("Revised")})
		require.NoError(t, err)
		assert.Equal(t, "child-1", result.EventID)

		child := f.events.get(t, "child-1")
		assert.Equal(t, "Revised", child.Title)
		assert.Equal(t, models.EventStatusRequestChange, child.Status)
		f.events.assertLinkInvariants(t)
	})
}

func TestSubmitEditCancel(t *testing.T) {
	t.Run("pending event", func(t *testing.T) {
		event := sampleEvent(t, "event-1", models.EventStatusPending)
		f := newWorkflowFixture(t, event)

		result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, event.ID, dto.EditEventRequest{Action: "cancel"})
		require.NoError(t, err)
		assert.False(t, result.Created())
		assert.Equal(t, models.AuditActionCancelEvent, result.Action)
		assert.Equal(t, models.EventStatusCancelled, f.events.get(t, event.ID).Status)

		assert.Equal(t, []models.AuditAction{models.AuditActionCancelEvent}, f.auditActions())
		inbox := f.notifications.forUser("student-1")
		require.Len(t, inbox, 1)
		assert.Contains(t, inbox[0].Message, "cancelled")
	})

	t.Run("approved event by tutor discards open change request", func(t *testing.T) {
		parent := sampleEvent(t, "parent-1", models.EventStatusApproved)
		f := newWorkflowFixture(t, parent, changeRequestFor(t, "child-1", parent))

		result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, parent.ID, dto.EditEventRequest{Action: "CANCEL"})
		require.NoError(t, err)
		assert.Equal(t, parent.ID, result.EventID)
		assert.Equal(t, models.EventStatusCancelled, f.events.get(t, parent.ID).Status)
		assert.False(t, f.events.exists("child-1"))
		assert.Contains(t, f.lastAudit(t).Details.String(), "child-1")
		f.events.assertLinkInvariants(t)
	})

	t.Run("change request cannot be cancelled", func(t *testing.T) {
		parent := sampleEvent(t, "parent-1", models.EventStatusApproved)
		f := newWorkflowFixture(t, parent, changeRequestFor(t, "child-1", parent))

		_, err := f.eventSvc.SubmitEdit(context.Background(), adminActor, "child-1", dto.EditEventRequest{Action: "cancel"})
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	})

	t.Run("already cancelled", func(t *testing.T) {
		event := sampleEvent(t, "event-1", models.EventStatusCancelled)
		f := newWorkflowFixture(t, event)

		_, err := f.eventSvc.SubmitEdit(context.Background(), adminActor, event.ID, dto.EditEventRequest{Action: "cancel"})
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	})
}

func TestSubmitEditRejections(t *testing.T) {
	cases := []struct {
		name   string
		status models.EventStatus
		actor  models.Actor
		id     string
		req    dto.EditEventRequest
		want   *appErrors.Error
	}{
		{name: "unknown event", status: models.EventStatusPending, actor: tutorActor, id: "missing", req: dto.EditEventRequest{Title: strPtr("x")}, want: appErrors.ErrNotFound},
		{name: "student", status: models.EventStatusPending, actor: studentActor, req: dto.EditEventRequest{Title: strPtr("x")}, want: appErrors.ErrForbidden},
		{name: "tutor assigns another tutor", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{Tutor: refPtr("tutor-2")}, want: appErrors.ErrForbidden},
		{name: "empty patch", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{}, want: appErrors.ErrValidation},
		{name: "malformed date", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{Date: strPtr("2025-13-45")}, want: appErrors.ErrValidation},
		{name: "malformed time", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{StartTime: strPtr("noon")}, want: appErrors.ErrValidation},
		{name: "markup only title", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{Title: strPtr("<b></b>")}, want: appErrors.ErrValidation},
		{name: "unknown action", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{Action: "archive"}, want: appErrors.ErrValidation},
		{name: "unknown room", status: models.EventStatusPending, actor: tutorActor, req: dto.EditEventRequest{Room: refPtr("room-404")}, want: appErrors.ErrValidation},
		{name: "rejected event", status: models.EventStatusRejected, actor: adminActor, req: dto.EditEventRequest{Title: strPtr("x")}, want: appErrors.ErrConflict},
		{name: "cancelled event", status: models.EventStatusCancelled, actor: tutorActor, req: dto.EditEventRequest{Title: strPtr("x")}, want: appErrors.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := sampleEvent(t, "event-1", tc.status)
			f := newWorkflowFixture(t, event)
			before := f.events.snapshot()
			id := tc.id
			if id == "" {
				id = event.ID
			}

			_, err := f.eventSvc.SubmitEdit(context.Background(), tc.actor, id, tc.req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, before, f.events.snapshot())
			assert.Empty(t, f.auditActions())
			assert.Empty(t, f.notifications.items)
		})
	}
}

func TestSubmitEditCommitFailureFiresNoSideEffects(t *testing.T) {
	event := sampleEvent(t, "event-1", models.EventStatusPending)
	f := newWorkflowFixture(t, event)
	f.events.commitErr = errors.New("could not serialize access")

	_, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, event.ID, dto.EditEventRequest{Title: strPtr("x")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageFailure))
	assert.Equal(t, "Original Title", f.events.get(t, event.ID).Title)
	assert.Empty(t, f.auditActions())
	assert.Empty(t, f.notifications.items)
}

func TestSubmitEditSurvivesSideEffectFailures(t *testing.T) {
	event := sampleEvent(t, "event-1", models.EventStatusPending)
	f := newWorkflowFixture(t, event)
	f.auditStore.createErr = errors.New("audit table locked")
	f.notifications.createErr = errors.New("notifications down")

	result, err := f.eventSvc.SubmitEdit(context.Background(), tutorActor, event.ID, dto.EditEventRequest{Title: strPtr("Still saved")})
	require.NoError(t, err)
	assert.Equal(t, event.ID, result.EventID)
	assert.Equal(t, "Still saved", f.events.get(t, event.ID).Title)
}

func TestEventServiceGetAndList(t *testing.T) {
	approved := sampleEvent(t, "a-approved", models.EventStatusApproved)
	pending := sampleEvent(t, "b-pending", models.EventStatusPending)
	cancelled := sampleEvent(t, "c-cancelled", models.EventStatusCancelled)
	child := changeRequestFor(t, "d-child", approved)
	f := newWorkflowFixture(t, approved, pending, cancelled, child)
	ctx := context.Background()

	resp, err := f.eventSvc.Get(ctx, tutorActor, approved.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.OpenChangeRequest)
	assert.Equal(t, child.ID, *resp.OpenChangeRequest)

	resp, err = f.eventSvc.Get(ctx, studentActor, approved.ID)
	require.NoError(t, err)
	assert.Nil(t, resp.OpenChangeRequest)

	_, err = f.eventSvc.Get(ctx, studentActor, pending.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	items, page, err := f.eventSvc.List(ctx, studentActor, dto.EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{approved.ID, cancelled.ID}, ids)

	items, _, err = f.eventSvc.List(ctx, studentActor, dto.EventQuery{Statuses: []models.EventStatus{models.EventStatusPending}})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, page, err = f.eventSvc.List(ctx, adminActor, dto.EventQuery{Statuses: []models.EventStatus{models.EventStatusRequestChange}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, child.ID, items[0].ID)
	assert.Equal(t, 1, page.Page)

	_, _, err = f.eventSvc.List(ctx, adminActor, dto.EventQuery{DateFrom: "yesterday"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, _, err = f.eventSvc.List(ctx, adminActor, dto.EventQuery{Statuses: []models.EventStatus{"draft"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBuildMessage(t *testing.T) {
	event := sampleEvent(t, "event-1", models.EventStatusApproved)
	for _, kind := range []models.NotificationKind{
		models.NotificationCreated,
		models.NotificationUpdated,
		models.NotificationCancelled,
		models.NotificationRejected,
		models.NotificationApproved,
	} {
		msg := BuildMessage(event, kind)
		assert.Contains(t, msg, "Original Title")
		assert.Contains(t, msg, string(kind))
		assert.True(t, strings.HasPrefix(msg, "Lecture"), msg)
	}

	child := changeRequestFor(t, "child-1", event)
	child.Title = "Moved"
	msg := BuildMessage(child, models.NotificationRejected)
	assert.Equal(t, `Change request for lecture "Moved" on 2025-01-01 10:00-11:00 has been rejected`, msg)
}
