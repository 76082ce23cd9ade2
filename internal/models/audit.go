package models

import "time"

// AuditAction constants represent privileged actions worth keeping a trail of.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionUserCreate      = "USER_CREATE"
	AuditActionUserDelete      = "USER_DELETE"
	AuditActionUserImport      = "USER_IMPORT"
	AuditActionAttendanceReset = "ATTENDANCE_RESET"
	AuditActionQRIssue         = "QR_ISSUE"
	AuditActionSetup           = "SETUP"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
