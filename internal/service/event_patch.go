package service

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
)

var titlePolicy = bluemonday.StrictPolicy()

const maxTitlePasses = 4

// cleanTitle strips markup from a user supplied title. Titles end up in
// notification messages and exported documents. Entities are decoded before
// sanitising, and the pass repeats until the text is stable so that encoded
// markup cannot survive as live tags.
func cleanTitle(raw string) string {
	title := raw
	for i := 0; i < maxTitlePasses; i++ {
		next := html.UnescapeString(titlePolicy.Sanitize(html.UnescapeString(title)))
		if next == title {
			return strings.TrimSpace(title)
		}
		title = next
	}
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(title))
}

// eventPatch is a validated partial update. Nil fields are left untouched.
type eventPatch struct {
	title     *string
	date      *time.Time
	startTime *time.Time
	endTime   *time.Time
	roomID    *string
	tutorSet  bool
	tutorID   *string
	eventType *models.EventType
	cancel    bool
}

func parseEventPatch(req dto.EditEventRequest) (*eventPatch, error) {
	if req.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes supplied")
	}
	if action := strings.TrimSpace(req.Action); action != "" {
		if !req.IsCancel() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported action: "+action)
		}
		return &eventPatch{cancel: true}, nil
	}

	patch := &eventPatch{}
	if req.Title != nil {
		title := cleanTitle(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		patch.title = &title
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		patch.date = &date
	}
	if req.StartTime != nil {
		start, err := parseClock("start_time", *req.StartTime)
		if err != nil {
			return nil, err
		}
		patch.startTime = &start
	}
	if req.EndTime != nil {
		end, err := parseClock("end_time", *req.EndTime)
		if err != nil {
			return nil, err
		}
		patch.endTime = &end
	}
	if req.Room != nil {
		room := strings.TrimSpace(string(*req.Room))
		if room == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room cannot be empty")
		}
		patch.roomID = &room
	}
	if req.Tutor != nil {
		patch.tutorSet = true
		if tutor := strings.TrimSpace(string(*req.Tutor)); tutor != "" {
			patch.tutorID = &tutor
		}
	}
	if req.EventType != nil {
		eventType := models.EventType(strings.ToLower(strings.TrimSpace(*req.EventType)))
		if !eventType.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "event_type must be one of lecture, labwork, exam")
		}
		patch.eventType = &eventType
	}
	return patch, nil
}

// applyTo overrides the target's fields with the patch.
func (p *eventPatch) applyTo(target *models.ScheduledEvent) {
	if p.title != nil {
		target.Title = *p.title
	}
	if p.date != nil {
		target.Date = *p.date
	}
	if p.startTime != nil {
		target.StartTime = *p.startTime
	}
	if p.endTime != nil {
		target.EndTime = *p.endTime
	}
	if p.roomID != nil {
		target.RoomID = *p.roomID
	}
	if p.tutorSet {
		if p.tutorID != nil {
			tutor := *p.tutorID
			target.TutorID = &tutor
		} else {
			target.TutorID = nil
		}
	}
	if p.eventType != nil {
		target.EventType = *p.eventType
	}
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(dto.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD format")
	}
	return date, nil
}

func parseClock(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{dto.ClockLayout, "15:04:05"} {
		if clock, err := time.Parse(layout, raw); err == nil {
			return clock, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, field+" must use the HH:MM format")
}
