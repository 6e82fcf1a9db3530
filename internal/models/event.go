package models

import "time"

// EventType enumerates the kinds of academic events that can be scheduled.
type EventType string

const (
	EventTypeLecture EventType = "lecture"
	EventTypeLabwork EventType = "labwork"
	EventTypeExam    EventType = "exam"
)

// IsValid checks if the type is one of the allowed values.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeLecture, EventTypeLabwork, EventTypeExam:
		return true
	default:
		return false
	}
}

// Label returns the human readable name used in notifications.
func (t EventType) Label() string {
	switch t {
	case EventTypeLecture:
		return "Lecture"
	case EventTypeLabwork:
		return "Labwork"
	case EventTypeExam:
		return "Exam"
	default:
		return "Event"
	}
}

// EventStatus represents the lifecycle state of a scheduled event.
type EventStatus string

const (
	EventStatusPending       EventStatus = "pending"
	EventStatusApproved      EventStatus = "approved"
	EventStatusRejected      EventStatus = "rejected"
	EventStatusRequestChange EventStatus = "request_change"
	EventStatusCancelled     EventStatus = "cancelled"
)

// IsValid checks if the status is one of the allowed values.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusRejected,
		EventStatusRequestChange, EventStatusCancelled:
		return true
	default:
		return false
	}
}

// Transition names an operation applied to a single event record.
type Transition string

const (
	// TransitionEdit changes schedule fields in place.
	TransitionEdit Transition = "edit"
	// TransitionFork stages an edit of an approved event as a change request.
	TransitionFork Transition = "fork"
	// TransitionMerge copies an approved change request into its parent.
	TransitionMerge   Transition = "merge"
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionCancel  Transition = "cancel"
)

// eventTransitions is the event state machine. A change request never changes
// status: approving or rejecting it removes the record, which the table
// expresses as an empty next status.
var eventTransitions = map[EventStatus]map[Transition]EventStatus{
	EventStatusPending: {
		TransitionEdit:    EventStatusPending,
		TransitionApprove: EventStatusApproved,
		TransitionReject:  EventStatusRejected,
		TransitionCancel:  EventStatusCancelled,
	},
	EventStatusApproved: {
		TransitionEdit:   EventStatusApproved,
		TransitionFork:   EventStatusApproved,
		TransitionMerge:  EventStatusApproved,
		TransitionCancel: EventStatusCancelled,
	},
	EventStatusRequestChange: {
		TransitionEdit:    EventStatusRequestChange,
		TransitionApprove: "",
		TransitionReject:  "",
	},
	EventStatusRejected:  {},
	EventStatusCancelled: {},
}

// Next returns the status a record ends up in after t. ok is false when t is
// not allowed from s; an empty next status means the record is removed.
func (s EventStatus) Next(t Transition) (next EventStatus, ok bool) {
	next, ok = eventTransitions[s][t]
	return next, ok
}

// Allows reports whether t may be applied to a record in status s.
func (s EventStatus) Allows(t Transition) bool {
	_, ok := s.Next(t)
	return ok
}

// IsReviewable reports whether an administrator may approve or reject the record.
func (s EventStatus) IsReviewable() bool {
	return s.Allows(TransitionApprove) && s.Allows(TransitionReject)
}

// IsPublic reports whether students see records in this state.
func (s EventStatus) IsPublic() bool {
	return s == EventStatusApproved || s == EventStatusCancelled
}

// ScheduledEvent is a lecture, lab or exam slot tied to a course and room.
type ScheduledEvent struct {
	ID             string      `db:"id" json:"id"`
	Title          string      `db:"title" json:"title"`
	Date           time.Time   `db:"event_date" json:"date"`
	StartTime      time.Time   `db:"start_time" json:"start_time"`
	EndTime        time.Time   `db:"end_time" json:"end_time"`
	CourseID       string      `db:"course_id" json:"course"`
	RoomID         string      `db:"room_id" json:"room"`
	TutorID        *string     `db:"tutor_id" json:"tutor,omitempty"`
	EventType      EventType   `db:"event_type" json:"event_type"`
	Status         EventStatus `db:"status" json:"status"`
	RelatedEventID *string     `db:"related_event_id" json:"related_event,omitempty"`
	CreatedBy      string      `db:"created_by" json:"created_by"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// IsChangeRequest reports whether the record is a proposal against another event.
func (e *ScheduledEvent) IsChangeRequest() bool {
	return e.RelatedEventID != nil && *e.RelatedEventID != ""
}

// Clone returns a deep copy so callers can stage edits without touching the original.
func (e *ScheduledEvent) Clone() *ScheduledEvent {
	if e == nil {
		return nil
	}
	clone := *e
	if e.TutorID != nil {
		tutor := *e.TutorID
		clone.TutorID = &tutor
	}
	if e.RelatedEventID != nil {
		related := *e.RelatedEventID
		clone.RelatedEventID = &related
	}
	return &clone
}

// CopyContentFrom overwrites the mutable schedule fields with those of src.
// Identity, course, status and linkage are left untouched.
func (e *ScheduledEvent) CopyContentFrom(src *ScheduledEvent) {
	e.Title = src.Title
	e.Date = src.Date
	e.StartTime = src.StartTime
	e.EndTime = src.EndTime
	e.RoomID = src.RoomID
	e.EventType = src.EventType
	if src.TutorID != nil {
		tutor := *src.TutorID
		e.TutorID = &tutor
	} else {
		e.TutorID = nil
	}
}

// EventFilter narrows down event listings.
type EventFilter struct {
	Statuses []EventStatus
	CourseID string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
