package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"campus-queue/internal/models"
	"campus-queue/internal/queue"
	"campus-queue/internal/store"
)

var created = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

var tokenCols = []string{"id", "queue_id", "owner_id", "owner_email", "priority", "enqueued_at"}

func queueRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "server_email", "no_show_timeout_seconds", "created_at"}).
		AddRow("q1", "Fees", "cashier@mite.ac.in", 300, created)
}

func TestTxLocksQueueAndCommits(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(queryLockQueue).WithArgs("q1").WillReturnRows(queueRow())
	mock.ExpectQuery(queryNextToken).WithArgs("q1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "queue_id", "owner_id", "owner_email", "priority", "enqueued_at"}).
			AddRow("t1", "q1", "u1", "a@mite.ac.in", 1, created))
	mock.ExpectExec(queryDeleteToken).WithArgs("q1", "t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, "q1")
		require.NoError(t, err)
		require.Equal(t, "Fees", q.Name)

		next, err := tx.NextToken(ctx, "q1")
		require.NoError(t, err)
		require.Equal(t, "u1", next.OwnerID)
		require.Equal(t, created, next.EnqueuedAt)

		deleted, err := tx.DeleteToken(ctx, "q1", "t1")
		require.NoError(t, err)
		require.True(t, deleted)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollsBackOnDuplicateToken(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(queryInsertToken).
		WithArgs("t1", "q1", "u1", "a@mite.ac.in", 1, sqlmock.AnyArg()).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'q1-u1' for key 'uq_tokens_owner'"})
	mock.ExpectRollback()

	err := s.Tx(ctx, func(tx store.Tx) error {
		return tx.InsertToken(ctx, models.Token{ID: "t1", QueueID: "q1", OwnerID: "u1", OwnerEmail: "a@mite.ac.in", Priority: 1, EnqueuedAt: created})
	})
	require.ErrorIs(t, err, store.ErrDuplicateToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueDuplicateInsertMapsToAlreadyQueued(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)
	sched := queue.NewScheduler(s,
		queue.WithClock(func() time.Time { return created }),
		queue.WithIDGenerator(func() string { return "t1" }))

	// A concurrent booking commits between the owner check and the insert.
	mock.ExpectBegin()
	mock.ExpectQuery(queryLockQueue).WithArgs("q1").WillReturnRows(queueRow())
	mock.ExpectQuery(queryTokenByOwner).WithArgs("q1", "u1").WillReturnRows(sqlmock.NewRows(tokenCols))
	mock.ExpectQuery(queryGetCurrent).WithArgs("q1").WillReturnRows(sqlmock.NewRows([]string{"queue_id"}))
	mock.ExpectExec(queryInsertToken).
		WithArgs("t1", "q1", "u1", "a@mite.ac.in", 1, sqlmock.AnyArg()).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'q1-u1' for key 'uq_tokens_owner'"})
	mock.ExpectRollback()

	_, err := sched.Enqueue(ctx, "q1", "u1", "a@mite.ac.in", 1)
	require.ErrorIs(t, err, queue.ErrAlreadyQueued)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViewReadsWithoutLocking(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(queryGetQueue).WithArgs("q1").WillReturnRows(queueRow())
	mock.ExpectQuery(queryGetCurrent).WithArgs("q1").WillReturnRows(sqlmock.NewRows([]string{"queue_id"}))
	mock.ExpectQuery(queryListTokens).WithArgs("q1").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("t1", "q1", "u1", "a@mite.ac.in", 1, created))
	mock.ExpectCommit()

	snap, err := queue.NewScheduler(s).Snapshot(ctx, "q1")
	require.NoError(t, err)
	require.Equal(t, "Fees", snap.Queue.Name)
	require.Nil(t, snap.Current)
	require.Len(t, snap.Waiting, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestViewRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(queryGetQueue).WithArgs("q1").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetQueue(ctx, "q1")
		return err
	})
	require.ErrorContains(t, err, "get queue q1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingRowsAreNil(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(queryLockQueue).WithArgs("gone").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(queryGetCurrent).WithArgs("gone").WillReturnRows(sqlmock.NewRows([]string{"queue_id"}))
	mock.ExpectCommit()

	err := s.Tx(ctx, func(tx store.Tx) error {
		q, err := tx.LockQueue(ctx, "gone")
		require.NoError(t, err)
		require.Nil(t, q)
		cur, err := tx.GetCurrent(ctx, "gone")
		require.NoError(t, err)
		require.Nil(t, cur)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQueueCascades(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	for _, stmt := range cascadeDeletes {
		mock.ExpectExec(stmt).WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := s.Tx(ctx, func(tx store.Tx) error { return tx.DeleteQueue(ctx, "q1") })
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQueueFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(cascadeDeletes[0]).WithArgs("q1").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := s.Tx(ctx, func(tx store.Tx) error { return tx.DeleteQueue(ctx, "q1") })
	require.ErrorContains(t, err, "lock wait timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoShowCalledAtNullable(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	marked := created.Add(time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(queryListNoShows).WithArgs("q1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "queue_id", "owner_id", "owner_email", "called_at", "marked_at", "reason"}).
			AddRow("n1", "q1", "u1", "a@mite.ac.in", created, marked, "auto-processed by sweep").
			AddRow("n2", "q1", "u2", "b@mite.ac.in", nil, marked, "marked by cashier"))
	mock.ExpectCommit()

	err := s.Tx(ctx, func(tx store.Tx) error {
		records, err := tx.ListNoShows(ctx, "q1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.Equal(t, created, *records[0].CalledAt)
		require.Nil(t, records[1].CalledAt)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectQuery(queryGetRole).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"role"}))
	mock.ExpectExec(querySetRole).WithArgs("u1", "cashier").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(queryGetRole).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("cashier"))

	role, err := s.GetRole(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, role)
	require.NoError(t, s.SetRole(ctx, "u1", "cashier"))
	role, err = s.GetRole(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "cashier", role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsBlocked(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectQuery(queryIsBlocked).WithArgs("spam@mite.ac.in").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(queryIsBlocked).WithArgs("ok@mite.ac.in").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	blocked, err := s.IsBlocked(ctx, " Spam@MITE.ac.in")
	require.NoError(t, err)
	require.True(t, blocked)
	blocked, err = s.IsBlocked(ctx, "ok@mite.ac.in")
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}
