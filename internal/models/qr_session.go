package models

import (
	"time"

	"github.com/lib/pq"
)

// QRSession is a teacher-issued, single-day, time-boxed attendance token.
type QRSession struct {
	Token      string         `db:"token" json:"token"`
	IssueDate  string         `db:"issue_date" json:"date"`
	ExpiresAt  time.Time      `db:"expires_at" json:"expiresAt"`
	RedeemedBy pq.StringArray `db:"redeemed_by" json:"usedBy"`
	Active     bool           `db:"active" json:"isActive"`
	IssuedBy   string         `db:"issued_by" json:"issuedBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// RedeemedByStudent reports whether the student already used this token.
func (s *QRSession) RedeemedByStudent(studentID string) bool {
	for _, id := range s.RedeemedBy {
		if id == studentID {
			return true
		}
	}
	return false
}

// QRPayload is the JSON document embedded in the rendered code.
type QRPayload struct {
	Token   string `json:"token"`
	Date    string `json:"date"`
	Expires string `json:"expires"`
}
