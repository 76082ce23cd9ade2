package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// Reset triggers.
const (
	ResetTriggerManual    = "manual"
	ResetTriggerScheduled = "scheduled"
)

const redeemSuccessMessage = "Attendance marked successfully"

type redemptionStore interface {
	WithinTx(ctx context.Context, fn func(repository.RedemptionTx) error) error
}

type attendanceLedger interface {
	FindByStudentAndDay(ctx context.Context, studentID, day string) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	DeleteAll(ctx context.Context) (int64, error)
}

type sessionPurger interface {
	DeleteAll(ctx context.Context) (int64, error)
}

type attendanceUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AttendanceServiceParams groups constructor dependencies.
type AttendanceServiceParams struct {
	Store       redemptionStore
	Ledger      attendanceLedger
	Sessions    sessionPurger
	Users       attendanceUserLookup
	QR          *QRSessionService
	Aggregation *AggregationService
	Policy      *clock.Policy
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// AttendanceService implements QR redemption, attendance queries and ledger maintenance.
type AttendanceService struct {
	store       redemptionStore
	ledger      attendanceLedger
	sessions    sessionPurger
	users       attendanceUserLookup
	qr          *QRSessionService
	aggregation *AggregationService
	policy      *clock.Policy
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(params AttendanceServiceParams) *AttendanceService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		store:       params.Store,
		ledger:      params.Ledger,
		sessions:    params.Sessions,
		users:       params.Users,
		qr:          params.QR,
		aggregation: params.Aggregation,
		policy:      params.Policy,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Redeem records the calling student as present today using a scanned QR token. Session
// validation, the duplicate checks and both writes run in one transaction; any failure
// leaves neither the ledger row nor the redeemer entry behind.
func (s *AttendanceService) Redeem(ctx context.Context, claims *models.JWTClaims, req dto.QRScanRequest) (*dto.QRScanResponse, error) {
	if !claims.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized - Student only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "No QR data provided")
	}
	payload, err := parseQRData(req.QRData)
	if err != nil {
		return nil, err
	}

	studentID := claims.UserID
	today := s.policy.TodayString()
	var expired *models.QRSession

	// Unlocked pre-check: unusable tokens are rejected without opening a transaction.
	if _, err := s.qr.Validate(ctx, payload.Token); err != nil {
		return nil, s.rejectRedemption(studentID, err)
	}

	err = s.store.WithinTx(ctx, func(tx repository.RedemptionTx) error {
		session, flip, err := s.qr.Check(ctx, payload.Token, tx.LockSession)
		if flip {
			expired = session
		}
		if err != nil {
			return err
		}
		if payload.Date != "" && payload.Date != session.IssueDate {
			return appErrors.ErrQRWrongDay
		}
		if session.RedeemedByStudent(studentID) {
			return appErrors.ErrAlreadyRedeemed
		}

		if _, err := tx.FindRecord(ctx, studentID, today); err == nil {
			return appErrors.ErrAlreadyMarked
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Storage(err, "failed to check attendance")
		}

		record := &models.AttendanceRecord{
			StudentID: studentID,
			Day:       today,
			Status:    models.AttendanceStatusPresent,
			Timestamp: s.policy.Now(),
		}
		if err := tx.CreateRecord(ctx, record); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicateRecord):
				return appErrors.ErrAlreadyMarked
			case errors.Is(err, repository.ErrUnknownStudent):
				return appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized - account no longer exists")
			}
			return appErrors.Storage(err, "failed to record attendance")
		}
		if err := tx.AppendRedeemer(ctx, session.Token, studentID); err != nil {
			return appErrors.Storage(err, "failed to update QR session")
		}
		return nil
	})

	if expired != nil {
		s.qr.Expire(ctx, expired)
	}
	if err != nil {
		return nil, s.rejectRedemption(studentID, err)
	}

	s.metrics.RecordRedemption(OutcomeAccepted, "")
	s.aggregation.Invalidate(ctx)
	s.logger.Info("attendance recorded",
		zap.String("student_id", studentID),
		zap.String("token", payload.Token),
		zap.String("date", today),
	)
	return &dto.QRScanResponse{Success: true, Message: redeemSuccessMessage}, nil
}

func (s *AttendanceService) rejectRedemption(studentID string, err error) *appErrors.Error {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		appErr = appErrors.Storage(err, "failed to process attendance")
	}
	s.metrics.RecordRedemption(OutcomeRejected, appErr.Code)
	if appErr.Status >= 500 {
		s.logger.Error("redemption failed", zap.String("student_id", studentID), zap.Error(err))
	} else {
		s.logger.Debug("redemption rejected", zap.String("student_id", studentID), zap.String("code", appErr.Code))
	}
	return appErr
}

// parseQRData accepts either the bare token or the JSON payload rendered into the code.
func parseQRData(raw string) (models.QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.QRPayload{}, appErrors.Clone(appErrors.ErrValidation, "No QR data provided")
	}
	if !strings.HasPrefix(raw, "{") {
		return models.QRPayload{Token: raw}, nil
	}
	var payload models.QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.QRPayload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid QR data")
	}
	payload.Token = strings.TrimSpace(payload.Token)
	if payload.Token == "" {
		return models.QRPayload{}, appErrors.Clone(appErrors.ErrValidation, "Invalid QR data")
	}
	return payload, nil
}

// StudentView returns the caller's own entry for the requested day, synthesizing an
// absent entry when nothing is stored.
func (s *AttendanceService) StudentView(ctx context.Context, claims *models.JWTClaims, q dto.AttendanceQuery) (*dto.StudentAttendanceResponse, error) {
	if !claims.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized")
	}
	day, err := s.resolveDay(q.Date)
	if err != nil {
		return nil, err
	}

	entry := models.DailyEntry{
		Student: models.StudentRef{ID: claims.UserID, Name: claims.Name, Email: claims.Email},
		Date:    day,
		Status:  models.AttendanceStatusAbsent,
	}
	record, err := s.ledger.FindByStudentAndDay(ctx, claims.UserID, day)
	switch {
	case err == nil:
		ts := record.Timestamp
		entry.ID = record.ID
		entry.Status = record.Status
		entry.Timestamp = &ts
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Storage(err, "Failed to fetch attendance")
	}

	entries := []models.DailyEntry{}
	if q.Status == nil || *q.Status == entry.Status {
		entries = append(entries, entry)
	}
	return &dto.StudentAttendanceResponse{Attendance: entries, Date: day}, nil
}

// TeacherView returns the roster view for the day with its stats, plus trends and ranking
// relative to today. The status filter narrows the list only.
func (s *AttendanceService) TeacherView(ctx context.Context, claims *models.JWTClaims, q dto.AttendanceQuery) (*dto.TeacherAttendanceResponse, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized")
	}
	day, err := s.resolveDay(q.Date)
	if err != nil {
		return nil, err
	}

	entries, stats, err := s.aggregation.Daily(ctx, day)
	if err != nil {
		return nil, err
	}
	if q.Status != nil {
		filtered := make([]models.DailyEntry, 0, len(entries))
		for _, e := range entries {
			if e.Status == *q.Status {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	trends, err := s.aggregation.Trends(ctx, 0)
	if err != nil {
		return nil, err
	}
	ranking, err := s.aggregation.PerformanceRanking(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &dto.TeacherAttendanceResponse{
		Attendance:  entries,
		Stats:       stats,
		Trends:      trends,
		Performance: ranking,
		Date:        day,
	}, nil
}

// Mark lets a teacher set a student's status for a day, overwriting any stored status.
func (s *AttendanceService) Mark(ctx context.Context, claims *models.JWTClaims, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	day, err := s.resolveDay(req.Date)
	if err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Storage(err, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance can only be recorded for students")
	}
	if student.Cohort != s.aggregation.Cohort() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
	}

	record := &models.AttendanceRecord{
		StudentID: student.ID,
		Day:       day,
		Status:    models.AttendanceStatus(req.Status),
		Timestamp: s.policy.Now(),
	}
	if err := s.ledger.Upsert(ctx, record); err != nil {
		return nil, appErrors.Storage(err, "failed to record attendance")
	}
	s.aggregation.Invalidate(ctx)
	s.logger.Info("attendance marked by teacher",
		zap.String("teacher_id", claims.UserID),
		zap.String("student_id", student.ID),
		zap.String("date", day),
		zap.String("status", req.Status),
	)
	return record, nil
}

// ResetRequest describes a ledger wipe. Actor is nil for scheduled resets.
type ResetRequest struct {
	Actor           *models.JWTClaims
	IncludeSessions bool
	Trigger         string
	IP              string
	UserAgent       string
}

// Reset deletes every ledger row, and optionally every QR session. It is idempotent.
func (s *AttendanceService) Reset(ctx context.Context, req ResetRequest) (*dto.ResetResponse, error) {
	if req.Trigger == "" {
		req.Trigger = ResetTriggerManual
	}
	if req.Trigger == ResetTriggerManual && !req.Actor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized")
	}

	removed, err := s.ledger.DeleteAll(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "Failed to reset attendance")
	}
	var purged int64
	if req.IncludeSessions {
		purged, err = s.sessions.DeleteAll(ctx)
		if err != nil {
			return nil, appErrors.Storage(err, "Failed to purge QR sessions")
		}
	}

	s.metrics.RecordReset(req.Trigger, removed)
	s.aggregation.Invalidate(ctx)

	var actorID *string
	if req.Actor != nil {
		id := req.Actor.UserID
		actorID = &id
	}
	auditPayload, _ := json.Marshal(map[string]interface{}{
		"trigger":        req.Trigger,
		"deletedCount":   removed,
		"sessionsPurged": purged,
		"at":             s.policy.Now().Format(time.RFC3339),
	})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    actorID,
		Action:    models.AuditActionAttendanceReset,
		Resource:  "attendance",
		Payload:   auditPayload,
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record reset audit log", zap.Error(err))
	}

	s.logger.Info("attendance reset",
		zap.String("trigger", req.Trigger),
		zap.Int64("deleted", removed),
		zap.Int64("sessions_purged", purged),
	)
	return &dto.ResetResponse{
		Success:        true,
		Message:        "Attendance reset successfully",
		DeletedCount:   removed,
		SessionsPurged: purged,
	}, nil
}

func (s *AttendanceService) resolveDay(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.policy.TodayString(), nil
	}
	day, err := s.policy.ParseDay(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use YYYY-MM-DD")
	}
	return day.Format(clock.DateLayout), nil
}
