package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type attendanceService interface {
	StudentView(ctx context.Context, claims *models.JWTClaims, q dto.AttendanceQuery) (*dto.StudentAttendanceResponse, error)
	TeacherView(ctx context.Context, claims *models.JWTClaims, q dto.AttendanceQuery) (*dto.TeacherAttendanceResponse, error)
	Mark(ctx context.Context, claims *models.JWTClaims, req dto.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	Reset(ctx context.Context, req service.ResetRequest) (*dto.ResetResponse, error)
}

type dailyExporter interface {
	Daily(ctx context.Context, day, format string) (*service.ExportResult, error)
}

// AttendanceHandler serves attendance queries and ledger maintenance.
type AttendanceHandler struct {
	service  attendanceService
	exporter dailyExporter
	today    func() string
}

// NewAttendanceHandler constructs the handler. today supplies the default export day.
func NewAttendanceHandler(svc attendanceService, exporter dailyExporter, today func() string) *AttendanceHandler {
	return &AttendanceHandler{service: svc, exporter: exporter, today: today}
}

// List godoc
// @Summary Query attendance
// @Description Students receive their own entry; teachers receive the roster view with stats, trends and ranking
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Param status query string false "hadir, izin, sakit or alfa"
// @Success 200 {object} dto.TeacherAttendanceResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	query, err := parseAttendanceQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if claims.IsTeacher() {
		res, err := h.service.TeacherView(c.Request.Context(), claims, query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, res)
		return
	}
	res, err := h.service.StudentView(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Mark godoc
// @Summary Set a student's status
// @Description Teacher records hadir, izin, sakit or alfa for a student and day
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MarkAttendanceRequest true "Attendance status"
// @Success 200 {object} models.AttendanceRecord
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /attendance [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	record, err := h.service.Mark(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Reset godoc
// @Summary Reset attendance
// @Description Deletes every attendance record; optionally purges QR sessions
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param includeSessions query bool false "Also purge QR sessions"
// @Success 200 {object} dto.ResetResponse
// @Failure 401 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /attendance/reset [post]
func (h *AttendanceHandler) Reset(c *gin.Context) {
	meta := requestMeta(c)
	res, err := h.service.Reset(c.Request.Context(), service.ResetRequest{
		Actor:           claimsFromContext(c),
		IncludeSessions: parseQueryBool(c, "includeSessions"),
		Trigger:         service.ResetTriggerManual,
		IP:              meta.IP,
		UserAgent:       meta.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Export godoc
// @Summary Export daily attendance
// @Description Renders the roster view of a day as CSV or PDF
// @Tags Attendance
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	day := strings.TrimSpace(c.Query("date"))
	if day == "" {
		day = h.today()
	} else if _, err := parseDateParam(day); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD"))
		return
	}
	res, err := h.exporter.Daily(c.Request.Context(), day, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, res.Filename, res.ContentType, res.Body)
}

func parseAttendanceQuery(c *gin.Context) (dto.AttendanceQuery, error) {
	q := dto.AttendanceQuery{Date: strings.TrimSpace(c.Query("date"))}
	if q.Date != "" {
		if _, err := parseDateParam(q.Date); err != nil {
			return q, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
		}
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.AttendanceStatus(strings.ToLower(raw))
		if !status.Valid() {
			return q, appErrors.Clone(appErrors.ErrValidation, "status must be one of hadir, izin, sakit, alfa")
		}
		q.Status = &status
	}
	return q, nil
}
