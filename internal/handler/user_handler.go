package handler

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

const maxImportSize = 2 << 20

type userService interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, req dto.CreateUserRequest, actorID string, meta service.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, id, actorID string, meta service.RequestMeta) error
	Import(ctx context.Context, rows []models.ImportRow, actorID string, meta service.RequestMeta) (*dto.ImportResult, error)
	Setup(ctx context.Context, meta service.RequestMeta) (*dto.SetupResponse, error)
}

type rosterExporter interface {
	Roster(ctx context.Context) (*service.ExportResult, error)
	ParseRoster(r io.Reader) ([]models.ImportRow, error)
}

// UserHandler manages roster endpoints.
type UserHandler struct {
	service  userService
	exporter rosterExporter
}

// NewUserHandler constructs the handler.
func NewUserHandler(svc userService, exporter rosterExporter) *UserHandler {
	return &UserHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List roster
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 401 {object} response.ErrorBody
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users)
}

// Create godoc
// @Summary Create student account
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateUserRequest true "Student account"
// @Success 201 {object} models.User
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Delete godoc
// @Summary Delete account
// @Description Removes the account and its attendance history
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// Import godoc
// @Summary Import roster CSV
// @Description Upserts accounts by email from a CSV with name, email, role and class columns
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param csvfile formData file true "Roster CSV"
// @Success 200 {object} dto.ImportResult
// @Failure 400 {object} response.ErrorBody
// @Router /users/import [post]
func (h *UserHandler) Import(c *gin.Context) {
	file, err := c.FormFile("csvfile")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Please upload a valid CSV file"))
		return
	}
	if file.Size > maxImportSize || !isCSVUpload(file.Filename, file.Header.Get("Content-Type")) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Please upload a valid CSV file"))
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Please upload a valid CSV file"))
		return
	}
	defer src.Close()

	rows, err := h.exporter.ParseRoster(src)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Import(c.Request.Context(), rows, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Export roster CSV
// @Tags Users
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /users/export [get]
func (h *UserHandler) Export(c *gin.Context) {
	res, err := h.exporter.Roster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, res.Filename, res.ContentType, res.Body)
}

// Setup godoc
// @Summary Bootstrap teacher account
// @Description Creates the default teacher account when none exists
// @Tags Setup
// @Produce json
// @Success 200 {object} dto.SetupResponse
// @Router /setup [post]
func (h *UserHandler) Setup(c *gin.Context) {
	res, err := h.service.Setup(c.Request.Context(), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

func isCSVUpload(filename, contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(contentType, "text/csv"), contentType == "application/vnd.ms-excel":
		return true
	case contentType == "" || contentType == "application/octet-stream":
		return strings.EqualFold(filepath.Ext(filename), ".csv")
	}
	return false
}
