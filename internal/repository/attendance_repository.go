package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const attendanceColumns = `id, student_id, to_char(day, 'YYYY-MM-DD') AS day, status, timestamp`

// AttendanceFilter narrows ledger range queries.
type AttendanceFilter struct {
	From      string
	To        string
	StudentID string
	Status    *models.AttendanceStatus
}

// AttendanceRepository persists the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByStudentAndDay returns the row for (student, day) or sql.ErrNoRows.
func (r *AttendanceRepository) FindByStudentAndDay(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error) {
	return findRecord(ctx, r.db, studentID, day)
}

// Upsert writes a teacher-set status, replacing any row already stored for (student, day).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (id, student_id, day, status, timestamp)
VALUES ($1, $2, $3::date, $4, $5)
ON CONFLICT (student_id, day) DO UPDATE SET status = EXCLUDED.status, timestamp = EXCLUDED.timestamp
RETURNING id`
	var id string
	if err := r.db.QueryRowxContext(ctx, query, record.ID, record.StudentID, record.Day, record.Status, record.Timestamp).Scan(&id); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	record.ID = id
	return nil
}

// List returns rows within the inclusive day range.
func (r *AttendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("day >= $%d::date", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("day <= $%d::date", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + attendanceColumns + ` FROM attendance_records`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY day, timestamp, id")

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// DeleteAll clears the ledger and returns the number of removed rows.
func (r *AttendanceRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records`)
	if err != nil {
		return 0, fmt.Errorf("delete attendance records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

func findRecord(ctx context.Context, q queryer, studentID, day string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE student_id = $1 AND day = $2::date LIMIT 1`
	var record models.AttendanceRecord
	if err := q.GetContext(ctx, &record, query, studentID, day); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

func insertRecord(ctx context.Context, q queryer, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (id, student_id, day, status, timestamp)
VALUES ($1, $2, $3::date, $4, $5)
ON CONFLICT (student_id, day) DO NOTHING
RETURNING id`
	var id string
	err := q.QueryRowxContext(ctx, query, record.ID, record.StudentID, record.Day, record.Status, record.Timestamp).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return ErrDuplicateRecord
	case isForeignKeyViolation(err):
		return ErrUnknownStudent
	case err != nil:
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}
