package models

import "time"

// NotificationKind names the transition a notification describes.
type NotificationKind string

const (
	NotificationCreated   NotificationKind = "created"
	NotificationUpdated   NotificationKind = "updated"
	NotificationCancelled NotificationKind = "cancelled"
	NotificationRejected  NotificationKind = "rejected"
	NotificationApproved  NotificationKind = "approved"
)

// Notification is a message delivered to a single user's inbox.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user"`
	EventID   *string   `db:"event_id" json:"event,omitempty"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows down inbox listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
