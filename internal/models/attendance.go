package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "hadir"
	AttendanceStatusExcused AttendanceStatus = "izin"
	AttendanceStatusSick    AttendanceStatus = "sakit"
	AttendanceStatusAbsent  AttendanceStatus = "alfa"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusExcused, AttendanceStatusSick, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// AttendanceRecord is a stored ledger row; at most one exists per (student, day).
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Day       string           `db:"day" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Timestamp time.Time        `db:"timestamp" json:"timestamp"`
}

// StudentRef is the populated student reference in the daily view.
type StudentRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DailyEntry is one roster student's status for a day. Timestamp is nil for synthesized
// absent entries.
type DailyEntry struct {
	ID        string           `json:"_id,omitempty"`
	Student   StudentRef       `json:"student"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
	Timestamp *time.Time       `json:"timestamp"`
}

// Synthesized reports whether the entry has no stored row behind it.
func (e DailyEntry) Synthesized() bool { return e.Timestamp == nil }

// DailyStats summarises one day against the roster.
type DailyStats struct {
	Hadir          int    `json:"hadir"`
	Izin           int    `json:"izin"`
	Sakit          int    `json:"sakit"`
	Alfa           int    `json:"alfa"`
	Total          int    `json:"total"`
	AttendanceRate string `json:"attendanceRate"`
}

// TrendPoint is one day of the presence curve.
type TrendPoint struct {
	Date       string  `json:"date"`
	Day        string  `json:"day"`
	Present    int     `json:"present"`
	Percentage float64 `json:"percentage"`
}

// Trends is the rolling presence curve with its mean.
type Trends struct {
	Window        int          `json:"window"`
	Daily         []TrendPoint `json:"daily"`
	WeeklyAverage string       `json:"weeklyAverage"`
	TotalStudents int          `json:"totalStudents"`
}

// Performer is one student's standing in the ranking window.
type Performer struct {
	StudentID  string  `json:"_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PerformanceRanking lists the strongest and weakest attendance over the window.
type PerformanceRanking struct {
	Window           int         `json:"window"`
	TopPerformers    []Performer `json:"topPerformers"`
	BottomPerformers []Performer `json:"bottomPerformers"`
}
