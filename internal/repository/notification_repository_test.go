package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
)

func TestNotificationRepositoryCreateBatchSingleStatement(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	eventID := "event-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications (id,user_id,event_id,message,is_read,created_at) VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	batch := []models.Notification{
		{UserID: "student-1", EventID: &eventID, Message: `Lecture "Intro to CS" has been created`},
		{UserID: "student-2", EventID: &eventID, Message: `Lecture "Intro to CS" has been created`},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), batch))
	assert.NotEmpty(t, batch[0].ID)
	assert.NotEqual(t, batch[0].ID, batch[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func notificationRows(n int) []models.Notification {
	eventID := "event-1"
	batch := make([]models.Notification, n)
	for i := range batch {
		batch[i] = models.Notification{UserID: fmt.Sprintf("student-%d", i), EventID: &eventID, Message: "Exam \"Finals\" has been created"}
	}
	return batch
}

func TestNotificationRepositoryCreateBatchChunksInTransaction(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	fullChunk := regexp.QuoteMeta("($5995,$5996,$5997,$5998,$5999,$6000)") + "$"
	mock.ExpectBegin()
	mock.ExpectExec(`^INSERT INTO notifications .*` + fullChunk).WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(`^INSERT INTO notifications .*` + fullChunk).WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6)") + "$").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batch := notificationRows(2*notificationBatchRows + 1)
	require.NoError(t, repo.CreateBatch(context.Background(), batch))
	assert.NotEmpty(t, batch[len(batch)-1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreateBatchRollsBackFailedChunk(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), notificationRows(notificationBatchRows+5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create notifications")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreateBatchEmpty(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUnread(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE is_read = $1 AND user_id = $2")).
		WithArgs(false, "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE is_read = $1 AND user_id = $2 ORDER BY created_at DESC")).
		WithArgs(false, "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event_id", "message", "is_read", "created_at"}).
			AddRow("n-1", "student-1", "event-1", "Exam \"Finals\" has been cancelled", false, time.Now()))

	list, total, err := repo.ListByUser(context.Background(), models.NotificationFilter{UserID: "student-1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = $1 WHERE id = $2 AND user_id = $3")).
		WithArgs(true, "n-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRead(context.Background(), "n-1", "student-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = $1")).
		WithArgs(true, "n-1", "student-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkRead(context.Background(), "n-1", "student-2")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
