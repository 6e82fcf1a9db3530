package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/khanhnq02905/Academic-Calendar/internal/dto"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/pkg/response"
)

type auditTrail interface {
	List(ctx context.Context, actor models.Actor, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error)
	Export(ctx context.Context, actor models.Actor, query dto.AuditLogQuery, format dto.ExportFormat) (*dto.ExportFile, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditTrail
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditTrail) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary List audit log entries
// @Tags Audit
// @Produce json
// @Param action query string false "Audit action"
// @Param event query string false "Event ID"
// @Param actor query string false "Actor ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /calendar/audit/logs/ [get]
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := auditQuery(c)
	query.Page, query.PageSize = page, size

	logs, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Export godoc
// @Summary Download the audit trail
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /calendar/audit/logs/export/ [get]
func (h *AuditHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportFormatCSV))))

	file, err := h.service.Export(c.Request.Context(), actor, auditQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

func auditQuery(c *gin.Context) dto.AuditLogQuery {
	return dto.AuditLogQuery{
		Action:  models.AuditAction(c.Query("action")),
		EventID: c.Query("event"),
		ActorID: c.Query("actor"),
	}
}
