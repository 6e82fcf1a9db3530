package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrEventNotFound is returned when an event id does not resolve.
	ErrEventNotFound = fmt.Errorf("scheduled event not found: %w", sql.ErrNoRows)
	// ErrNotificationNotFound is returned when a notification does not belong to the user.
	ErrNotificationNotFound = fmt.Errorf("notification not found: %w", sql.ErrNoRows)
	// ErrConflict signals that a concurrent transaction invalidated the operation.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrInvalidReference signals a dangling course, room or parent reference.
	ErrInvalidReference = errors.New("invalid reference")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqSerializationFail   = "40001"
	pqDeadlockDetected    = "40P01"
)

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqSerializationFail, pqDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Message)
		}
	}
	return err
}
