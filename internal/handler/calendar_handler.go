package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	appErrors "github.com/khanhnq02905/Academic-Calendar/pkg/errors"
	"github.com/khanhnq02905/Academic-Calendar/pkg/response"
)

type eventWorkflow interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*dto.EventResponse, error)
	SubmitEdit(ctx context.Context, actor models.Actor, id string, req dto.EditEventRequest) (*dto.EditResult, error)
	Get(ctx context.Context, actor models.Actor, id string) (*dto.EventResponse, error)
	List(ctx context.Context, actor models.Actor, query dto.EventQuery) ([]dto.EventResponse, *models.Pagination, error)
}

type approvalWorkflow interface {
	Approve(ctx context.Context, actor models.Actor, id string) (*dto.ApprovalResult, error)
	Reject(ctx context.Context, actor models.Actor, id string) (*dto.RejectionResult, error)
}

// CalendarHandler exposes the event lifecycle endpoints.
type CalendarHandler struct {
	events    eventWorkflow
	approvals approvalWorkflow
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(events eventWorkflow, approvals approvalWorkflow) *CalendarHandler {
	return &CalendarHandler{events: events, approvals: approvals}
}

// Create godoc
// @Summary Create a pending event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /calendar/create_event/ [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Edit godoc
// @Summary Edit or cancel an event
// @Description Non-privileged edits of an approved event create a change request (201). Other edits and cancellation apply in place (200).
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.EditEventRequest true "Fields to change, or action=cancel"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendar/edit_event/{id}/ [put]
func (h *CalendarHandler) Edit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EditEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.events.SubmitEdit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created() {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}

// Approve godoc
// @Summary Approve an event or merge a change request
// @Tags Calendar
// @Produce json
// @Param id path string true "Event or change request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/approve/{id}/ [post]
func (h *CalendarHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.approvals.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject an event or discard a change request
// @Tags Calendar
// @Produce json
// @Param id path string true "Event or change request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/reject/{id}/ [post]
func (h *CalendarHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.approvals.Reject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List events
// @Tags Calendar
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param course query string false "Course ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/events/ [get]
func (h *CalendarHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.EventQuery{
		CourseID: c.Query("course"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Page:     page,
		PageSize: size,
	}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Statuses = append(query.Statuses, models.EventStatus(strings.ToLower(part)))
			}
		}
	}
	events, pagination, err := h.events.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get an event
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/events/{id}/ [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	event, err := h.events.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}
