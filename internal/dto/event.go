package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
)

const (
	// DateLayout is the wire format for event dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format for start and end times.
	ClockLayout = "15:04"
	// EditActionCancel is the directive that cancels an event instead of editing it.
	EditActionCancel = "cancel"
)

// RefID references a course, room or user. Clients send it either as a JSON
// string or as a JSON integer.
type RefID string

// UnmarshalJSON accepts "42", 42 and "room-a". Fractions and other JSON types
// are rejected.
func (id *RefID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RefID(s)
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("reference id must be a string or an integer, got %s", data)
	}
	*id = RefID(data)
	return nil
}

// Ptr returns the id as a *string, or nil when id is nil.
func (id *RefID) Ptr() *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}

// CreateEventRequest is the payload of POST /calendar/create_event/.
type CreateEventRequest struct {
	Title     string `json:"title" validate:"max=255"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Course    RefID  `json:"course" validate:"required"`
	Room      RefID  `json:"room" validate:"required"`
	Tutor     *RefID `json:"tutor,omitempty"`
	EventType string `json:"event_type" validate:"required,oneof=lecture labwork exam"`
}

// EditEventRequest is the payload of PUT /calendar/edit_event/{id}/. Absent
// fields are left unchanged.
type EditEventRequest struct {
	Title     *string `json:"title,omitempty"`
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Room      *RefID  `json:"room,omitempty"`
	Tutor     *RefID  `json:"tutor,omitempty"`
	EventType *string `json:"event_type,omitempty"`
	Action    string  `json:"action,omitempty"`
}

// IsCancel reports whether the request carries the cancel directive.
func (r EditEventRequest) IsCancel() bool {
	return strings.EqualFold(strings.TrimSpace(r.Action), EditActionCancel)
}

// IsEmpty reports whether the request changes nothing.
func (r EditEventRequest) IsEmpty() bool {
	return r.Title == nil && r.Date == nil && r.StartTime == nil && r.EndTime == nil &&
		r.Room == nil && r.Tutor == nil && r.EventType == nil && strings.TrimSpace(r.Action) == ""
}

// EventQuery captures listing filters.
type EventQuery struct {
	Statuses []models.EventStatus
	CourseID string
	DateFrom string
	DateTo   string
	Page     int
	PageSize int
}

// EventResponse is the wire representation of a scheduled event.
type EventResponse struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Date              string             `json:"date"`
	StartTime         string             `json:"start_time"`
	EndTime           string             `json:"end_time"`
	Course            string             `json:"course"`
	Room              string             `json:"room"`
	Tutor             *string            `json:"tutor,omitempty"`
	EventType         models.EventType   `json:"event_type"`
	Status            models.EventStatus `json:"status"`
	RelatedEvent      *string            `json:"related_event,omitempty"`
	OpenChangeRequest *string            `json:"open_change_request,omitempty"`
}

// NewEventResponse formats an event for the wire.
func NewEventResponse(event *models.ScheduledEvent) *EventResponse {
	if event == nil {
		return nil
	}
	return &EventResponse{
		ID:           event.ID,
		Title:        event.Title,
		Date:         event.Date.Format(DateLayout),
		StartTime:    event.StartTime.Format(ClockLayout),
		EndTime:      event.EndTime.Format(ClockLayout),
		Course:       event.CourseID,
		Room:         event.RoomID,
		Tutor:        event.TutorID,
		EventType:    event.EventType,
		Status:       event.Status,
		RelatedEvent: event.RelatedEventID,
	}
}

// NewEventResponses formats a list of events.
func NewEventResponses(events []models.ScheduledEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, *NewEventResponse(&events[i]))
	}
	return out
}

// EditOutcome distinguishes a staged proposal from an in-place change.
type EditOutcome string

const (
	EditOutcomeForked  EditOutcome = "forked"
	EditOutcomeMutated EditOutcome = "mutated"
)

// EditResult is returned by the change request engine.
type EditResult struct {
	Outcome EditOutcome        `json:"outcome"`
	EventID string             `json:"event_id"`
	Action  models.AuditAction `json:"action"`
	Event   *EventResponse     `json:"event"`
}

// Created reports whether the edit produced a new resource.
func (r *EditResult) Created() bool {
	return r != nil && r.Outcome == EditOutcomeForked
}

// ApprovalOutcome distinguishes a merged change request from a direct approval.
type ApprovalOutcome string

const (
	ApprovalOutcomeMerged   ApprovalOutcome = "merged"
	ApprovalOutcomeApproved ApprovalOutcome = "approved"
)

// ApprovalResult is returned by approve. EventID is always the authoritative event.
type ApprovalResult struct {
	Outcome ApprovalOutcome `json:"outcome"`
	EventID string          `json:"event_id"`
	Event   *EventResponse  `json:"event"`
}

// RejectionOutcome distinguishes a discarded change request from a rejected event.
type RejectionOutcome string

const (
	RejectionOutcomeDiscarded RejectionOutcome = "discarded"
	RejectionOutcomeRejected  RejectionOutcome = "rejected"
)

// RejectionResult is returned by reject. For a discarded change request EventID
// names the untouched parent and DiscardedID the deleted proposal.
type RejectionResult struct {
	Outcome     RejectionOutcome `json:"outcome"`
	EventID     string           `json:"event_id"`
	DiscardedID string           `json:"discarded_id,omitempty"`
	Event       *EventResponse   `json:"event"`
}
