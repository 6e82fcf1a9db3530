package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction is the closed set of workflow actions recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreateEvent  AuditAction = "createEvent"
	AuditActionEditEvent    AuditAction = "editEvent"
	AuditActionApproveEvent AuditAction = "approveEvent"
	AuditActionRejectEvent  AuditAction = "rejectEvent"
	AuditActionCancelEvent  AuditAction = "cancelEvent"
)

// IsValid checks if the action is one of the allowed values.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreateEvent, AuditActionEditEvent, AuditActionApproveEvent,
		AuditActionRejectEvent, AuditActionCancelEvent:
		return true
	default:
		return false
	}
}

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID        string         `db:"id" json:"id"`
	ActorID   string         `db:"actor_id" json:"user"`
	Action    AuditAction    `db:"action" json:"action"`
	EventID   string         `db:"event_id" json:"event"`
	Details   types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"timestamp"`
}

// AuditLogFilter narrows down audit trail queries.
type AuditLogFilter struct {
	Action   AuditAction
	EventID  string
	ActorID  string
	Page     int
	PageSize int
}
