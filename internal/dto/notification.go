package dto

// NotificationQuery captures inbox filters.
type NotificationQuery struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}
