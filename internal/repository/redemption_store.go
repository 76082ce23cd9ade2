package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// RedemptionTx is the unit of work for a single QR redemption. The session row stays
// locked until the surrounding transaction ends, so concurrent scans of one token
// are serialised and the (student, day) constraint settles racing tokens.
type RedemptionTx interface {
	LockSession(ctx context.Context, token string) (*models.QRSession, error)
	FindRecord(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error)
	CreateRecord(ctx context.Context, record *models.AttendanceRecord) error
	AppendRedeemer(ctx context.Context, token, studentID string) error
}

// RedemptionStore runs redemptions inside a database transaction.
type RedemptionStore struct {
	db *sqlx.DB
}

// NewRedemptionStore constructs the store.
func NewRedemptionStore(db *sqlx.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s *RedemptionStore) WithinTx(ctx context.Context, fn func(RedemptionTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redemption: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&redemptionTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redemption: %w", err)
	}
	commit = true
	return nil
}

type redemptionTx struct {
	tx *sqlx.Tx
}

func (t *redemptionTx) LockSession(ctx context.Context, token string) (*models.QRSession, error) {
	return findSession(ctx, t.tx, token, true)
}

func (t *redemptionTx) FindRecord(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error) {
	return findRecord(ctx, t.tx, studentID, day)
}

func (t *redemptionTx) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	return insertRecord(ctx, t.tx, record)
}

func (t *redemptionTx) AppendRedeemer(ctx context.Context, token, studentID string) error {
	return appendRedeemer(ctx, t.tx, token, studentID)
}
