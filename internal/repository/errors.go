package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateRecord is returned when a ledger row already exists for (student, day).
	ErrDuplicateRecord = errors.New("attendance record already exists for student and day")
	// ErrDuplicateEmail is returned when an account with the same email exists.
	ErrDuplicateEmail = errors.New("user email already exists")
	// ErrUnknownStudent is returned when a ledger row references a user that no longer exists.
	ErrUnknownStudent = errors.New("student does not exist")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
