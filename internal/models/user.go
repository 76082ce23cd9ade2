package models

import "time"

// UserRole represents the two roles known to the cohort roster.
type UserRole string

const (
	RoleTeacher UserRole = "guru"
	RoleStudent UserRole = "siswa"
)

// Valid returns true when the role is supported.
func (r UserRole) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User represents a roster entry stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Cohort       string    `db:"cohort" json:"class"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RosterStudent is the minimal projection the aggregation engine needs.
type RosterStudent struct {
	ID    string `db:"id" json:"_id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// ImportRow is one parsed row of a roster CSV upload.
type ImportRow struct {
	Line   int
	Name   string
	Email  string
	Role   UserRole
	Cohort string
}
