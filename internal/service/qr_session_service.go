package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type qrSessionRepository interface {
	Create(ctx context.Context, session *models.QRSession) error
	FindByToken(ctx context.Context, token string) (*models.QRSession, error)
	Deactivate(ctx context.Context, token string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type qrRenderer interface {
	DataURI(payload string) (string, error)
}

// QRSessionService issues and validates attendance QR sessions.
type QRSessionService struct {
	repo     qrSessionRepository
	renderer qrRenderer
	policy   *clock.Policy
	ttl      time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewQRSessionService constructs the service. A non-positive ttl uses 15 minutes.
func NewQRSessionService(repo qrSessionRepository, renderer qrRenderer, policy *clock.Policy, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *QRSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &QRSessionService{repo: repo, renderer: renderer, policy: policy, ttl: ttl, metrics: metrics, logger: logger}
}

// Issue creates a fresh session bound to the current cohort-local day.
func (s *QRSessionService) Issue(ctx context.Context, claims *models.JWTClaims) (*dto.QRIssueResponse, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only teachers can generate QR codes")
	}

	now := s.policy.Now()
	session := &models.QRSession{
		Token:      uuid.NewString(),
		IssueDate:  s.policy.DayString(now),
		ExpiresAt:  now.Add(s.ttl),
		RedeemedBy: []string{},
		Active:     true,
		IssuedBy:   claims.UserID,
		CreatedAt:  now,
	}

	payload, err := json.Marshal(models.QRPayload{
		Token:   session.Token,
		Date:    session.IssueDate,
		Expires: session.ExpiresAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode QR payload")
	}
	image, err := s.renderer.DataURI(string(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code")
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Storage(err, "failed to store QR session")
	}
	s.metrics.RecordQRIssued()
	s.logger.Info("qr session issued",
		zap.String("token", session.Token),
		zap.String("date", session.IssueDate),
		zap.Time("expires_at", session.ExpiresAt),
		zap.String("issued_by", claims.UserID),
	)

	return &dto.QRIssueResponse{
		QRCode:    image,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// SessionLoader fetches a session by token, returning sql.ErrNoRows when it is absent.
type SessionLoader func(ctx context.Context, token string) (*models.QRSession, error)

// Validate loads the session and checks it is usable now. An expired session is
// deactivated as a side effect.
func (s *QRSessionService) Validate(ctx context.Context, token string) (*models.QRSession, error) {
	session, expired, err := s.Check(ctx, token, s.repo.FindByToken)
	if expired {
		s.Expire(ctx, session)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Check loads the session through load and applies CheckUsable. expired reports that the
// session must be deactivated; the caller persists that outside any transaction load
// ran in, so the flip survives a rolled back redemption.
func (s *QRSessionService) Check(ctx context.Context, token string, load SessionLoader) (*models.QRSession, bool, error) {
	session, err := load(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.ErrQRNotFound
		}
		return nil, false, appErrors.Storage(err, "failed to load QR session")
	}
	if err := s.CheckUsable(session); err != nil {
		return session, errors.Is(err, appErrors.ErrQRExpired), err
	}
	return session, false, nil
}

// CheckUsable applies the expiry, activity and day checks in that order.
func (s *QRSessionService) CheckUsable(session *models.QRSession) error {
	switch {
	case s.policy.Expired(session.ExpiresAt):
		return appErrors.ErrQRExpired
	case !session.Active:
		return appErrors.ErrQRInactive
	case session.IssueDate != s.policy.TodayString():
		return appErrors.ErrQRWrongDay
	}
	return nil
}

// Expire persists the lazy deactivation of an expired session. Failures are logged only;
// the session is rejected on expiry regardless of the stored flag.
func (s *QRSessionService) Expire(ctx context.Context, session *models.QRSession) {
	if !session.Active {
		return
	}
	if err := s.repo.Deactivate(ctx, session.Token); err != nil {
		s.logger.Warn("failed to deactivate expired qr session", zap.String("token", session.Token), zap.Error(err))
		return
	}
	session.Active = false
}

// SweepExpired deactivates every session past its expiry.
func (s *QRSessionService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.policy.Now())
	if err != nil {
		return 0, appErrors.Storage(err, "failed to deactivate expired QR sessions")
	}
	return n, nil
}
