package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FirstByRole(ctx context.Context, role models.UserRole) (*models.User, error)
	ListByCohort(ctx context.Context, cohort string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	DeleteWithAttendance(ctx context.Context, id string) (int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type aggregateInvalidator interface {
	Invalidate(ctx context.Context)
}

// UserServiceConfig carries roster defaults.
type UserServiceConfig struct {
	Cohort          string
	DefaultPassword string
	AdminName       string
	AdminEmail      string
	AdminPassword   string
}

// RequestMeta describes the caller's connection for audit logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UserService manages the cohort roster.
type UserService struct {
	repo       userRepository
	aggregates aggregateInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        UserServiceConfig
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, aggregates aggregateInvalidator, validate *validator.Validate, logger *zap.Logger, cfg UserServiceConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, aggregates: aggregates, validator: validate, logger: logger, cfg: cfg}
}

// List returns every account of the cohort.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListByCohort(ctx, s.cfg.Cohort)
	if err != nil {
		return nil, appErrors.Storage(err, "Failed to fetch users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Create adds a student account to the cohort.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Name, email, password and role are required")
	}
	if req.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Only student accounts can be created")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Cohort:       s.cfg.Cohort,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
		}
		return nil, appErrors.Storage(err, "Failed to create user")
	}

	s.audit(ctx, actorID, models.AuditActionUserCreate, &user.ID, map[string]interface{}{"email": user.Email, "role": user.Role}, meta)
	s.aggregates.Invalidate(ctx)
	return user, nil
}

// Delete removes an account and its attendance history. Callers cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id, actorID string, meta RequestMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrValidation, "Cannot delete your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Storage(err, "Failed to delete user")
	}

	removed, err := s.repo.DeleteWithAttendance(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Storage(err, "Failed to delete user")
	}

	s.audit(ctx, actorID, models.AuditActionUserDelete, &user.ID, map[string]interface{}{
		"email":             user.Email,
		"attendanceRemoved": removed,
	}, meta)
	s.aggregates.Invalidate(ctx)
	return nil
}

// Import upserts roster rows by email. New accounts get the default password; rows that
// fail are reported and do not stop the import.
func (s *UserService) Import(ctx context.Context, rows []models.ImportRow, actorID string, meta RequestMeta) (*dto.ImportResult, error) {
	result := &dto.ImportResult{Total: len(rows), Details: []string{}}
	for _, row := range rows {
		if err := s.importRow(ctx, row); err != nil {
			result.Errors++
			result.Details = append(result.Details, fmt.Sprintf("row %d: %s", row.Line, appErrors.FromError(err).Message))
			continue
		}
		result.Success++
	}
	result.Message = fmt.Sprintf("Import completed: %d successful, %d errors. Default password for new users: %s",
		result.Success, result.Errors, s.cfg.DefaultPassword)

	s.audit(ctx, actorID, models.AuditActionUserImport, nil, map[string]interface{}{
		"total":   result.Total,
		"success": result.Success,
		"errors":  result.Errors,
	}, meta)
	if result.Success > 0 {
		s.aggregates.Invalidate(ctx)
	}
	return result, nil
}

func (s *UserService) importRow(ctx context.Context, row models.ImportRow) error {
	name := strings.TrimSpace(row.Name)
	email := strings.ToLower(strings.TrimSpace(row.Email))
	if name == "" || email == "" {
		return appErrors.Clone(appErrors.ErrValidation, "missing name or email")
	}
	if err := s.validator.Var(email, "email"); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid email %q", email))
	}
	role := row.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid role %q", role))
	}
	cohort := strings.TrimSpace(row.Cohort)
	if cohort == "" {
		cohort = s.cfg.Cohort
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		existing.Name = name
		existing.Role = role
		existing.Cohort = cohort
		if err := s.repo.UpdateProfile(ctx, existing); err != nil {
			return appErrors.Storage(err, "failed to update user")
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return appErrors.Storage(err, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Cohort:       cohort,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return appErrors.Storage(err, "failed to create user")
	}
	return nil
}

// Setup creates the bootstrap teacher account when no teacher exists yet.
func (s *UserService) Setup(ctx context.Context, meta RequestMeta) (*dto.SetupResponse, error) {
	existing, err := s.repo.FirstByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Storage(err, "Failed to create admin user")
	}
	if existing != nil {
		return &dto.SetupResponse{
			Message: "Admin user already exists!",
			Admin:   userInfo(existing),
		}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	admin := &models.User{
		Name:         s.cfg.AdminName,
		Email:        strings.ToLower(s.cfg.AdminEmail),
		PasswordHash: string(hash),
		Role:         models.RoleTeacher,
		Cohort:       s.cfg.Cohort,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, appErrors.Storage(err, "Failed to create admin user")
	}

	s.audit(ctx, admin.ID, models.AuditActionSetup, &admin.ID, map[string]interface{}{"email": admin.Email}, meta)
	s.logger.Info("bootstrap teacher account created", zap.String("email", admin.Email))
	return &dto.SetupResponse{
		Message: "Admin user created successfully!",
		Admin:   userInfo(admin),
		Created: true,
	}, nil
}

func (s *UserService) audit(ctx context.Context, actorID, action string, resourceID *string, payload map[string]interface{}, meta RequestMeta) {
	body, _ := json.Marshal(payload)
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   "users",
		ResourceID: resourceID,
		Payload:    body,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func userInfo(u *models.User) models.UserInfo {
	return models.UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Cohort: u.Cohort}
}
