package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const qrSessionColumns = `token, to_char(issue_date, 'YYYY-MM-DD') AS issue_date, expires_at, redeemed_by, active, COALESCE(issued_by::text, '') AS issued_by, created_at`

// QRSessionRepository persists issued QR sessions.
type QRSessionRepository struct {
	db *sqlx.DB
}

// NewQRSessionRepository constructs the repository.
func NewQRSessionRepository(db *sqlx.DB) *QRSessionRepository {
	return &QRSessionRepository{db: db}
}

// Create stores a freshly issued session.
func (r *QRSessionRepository) Create(ctx context.Context, session *models.QRSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.RedeemedBy == nil {
		session.RedeemedBy = []string{}
	}
	const query = `INSERT INTO qr_sessions (token, issue_date, expires_at, redeemed_by, active, issued_by, created_at)
VALUES ($1, $2::date, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		session.Token, session.IssueDate, session.ExpiresAt, session.RedeemedBy, session.Active, session.IssuedBy, session.CreatedAt,
	); err != nil {
		return fmt.Errorf("create qr session: %w", err)
	}
	return nil
}

// FindByToken returns the session or sql.ErrNoRows.
func (r *QRSessionRepository) FindByToken(ctx context.Context, token string) (*models.QRSession, error) {
	return findSession(ctx, r.db, token, false)
}

// Deactivate flips active to false. It is idempotent.
func (r *QRSessionRepository) Deactivate(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET active = FALSE WHERE token = $1 AND active`, token); err != nil {
		return fmt.Errorf("deactivate qr session: %w", err)
	}
	return nil
}

// DeactivateExpired flips every session whose expiry has passed and returns how many changed.
func (r *QRSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET active = FALSE WHERE active AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired qr sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteAll purges every session and returns the number of removed rows.
func (r *QRSessionRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete qr sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type execQueryer interface {
	queryer
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func findSession(ctx context.Context, q queryer, token string, forUpdate bool) (*models.QRSession, error) {
	query := `SELECT ` + qrSessionColumns + ` FROM qr_sessions WHERE token = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var session models.QRSession
	if err := q.GetContext(ctx, &session, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find qr session: %w", err)
	}
	return &session, nil
}

func appendRedeemer(ctx context.Context, q execQueryer, token, studentID string) error {
	const query = `UPDATE qr_sessions SET redeemed_by = array_append(redeemed_by, $2)
WHERE token = $1 AND NOT ($2 = ANY(redeemed_by))`
	if _, err := q.ExecContext(ctx, query, token, studentID); err != nil {
		return fmt.Errorf("append qr redeemer: %w", err)
	}
	return nil
}
