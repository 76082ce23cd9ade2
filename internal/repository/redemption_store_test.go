package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

func TestRedemptionCommitsRecordAndRedeemer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRedemptionStore(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM qr_sessions WHERE token = $1 FOR UPDATE")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow("tok", "2024-03-04", now.Add(time.Minute), "{}", true, "t1", now))
	mock.ExpectQuery("ON CONFLICT \\(student_id, day\\) DO NOTHING").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectExec(regexp.QuoteMeta("array_append(redeemed_by, $2)")).
		WithArgs("tok", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx RedemptionTx) error {
		session, err := tx.LockSession(context.Background(), "tok")
		if err != nil {
			return err
		}
		if err := tx.CreateRecord(context.Background(), &models.AttendanceRecord{StudentID: "s1", Day: session.IssueDate, Status: models.AttendanceStatusPresent}); err != nil {
			return err
		}
		return tx.AppendRedeemer(context.Background(), "tok", "s1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionDuplicateRecordRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRedemptionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx RedemptionTx) error {
		return tx.CreateRecord(context.Background(), &models.AttendanceRecord{StudentID: "s1", Day: "2024-03-04", Status: models.AttendanceStatusPresent})
	})
	assert.ErrorIs(t, err, ErrDuplicateRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionMissingStudentRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRedemptionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "attendance_records_student_id_fkey"})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx RedemptionTx) error {
		return tx.CreateRecord(context.Background(), &models.AttendanceRecord{StudentID: "gone", Day: "2024-03-04", Status: models.AttendanceStatusPresent})
	})
	assert.ErrorIs(t, err, ErrUnknownStudent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionCallbackErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRedemptionStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("rejected")
	err := store.WithinTx(context.Background(), func(RedemptionTx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
