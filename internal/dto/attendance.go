package dto

import "github.com/noah-isme/qr-attendance-api/internal/models"

// AttendanceQuery captures query parameters for GET /attendance.
type AttendanceQuery struct {
	Date   string
	Status *models.AttendanceStatus
}

// TeacherAttendanceResponse is the teacher payload for GET /attendance.
type TeacherAttendanceResponse struct {
	Attendance  []models.DailyEntry        `json:"attendance"`
	Stats       models.DailyStats          `json:"stats"`
	Trends      *models.Trends             `json:"trends,omitempty"`
	Performance *models.PerformanceRanking `json:"performance,omitempty"`
	Date        string                     `json:"date"`
}

// StudentAttendanceResponse is the student payload for GET /attendance.
type StudentAttendanceResponse struct {
	Attendance []models.DailyEntry `json:"attendance"`
	Date       string              `json:"date"`
}

// MarkAttendanceRequest lets a teacher record a non-QR status (excused, sick) for a student.
type MarkAttendanceRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=hadir izin sakit alfa"`
}

// ResetResponse is returned by the ledger wipe.
type ResetResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	DeletedCount   int64  `json:"deletedCount"`
	SessionsPurged int64  `json:"sessionsPurged,omitempty"`
}
