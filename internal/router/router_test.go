package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestEngine(metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, Handlers{
		Auth:       handler.NewAuthHandler(nil),
		QR:         handler.NewQRHandler(nil, nil),
		Attendance: handler.NewAttendanceHandler(nil, nil, nil),
		Users:      handler.NewUserHandler(nil, nil),
		Metrics:    handler.NewMetricsHandler(metrics, nil),
	}, Options{
		Prefix: "/api",
		Tokens: staticTokens{
			"teacher": {UserID: "t1", Role: models.RoleTeacher},
			"student": {UserID: "s1", Role: models.RoleStudent},
		},
		MetricsSvc: metrics,
	})
	return r
}

func TestRoleGuardsRejectBeforeHandlers(t *testing.T) {
	r := newTestEngine(service.NewMetricsService())

	cases := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodPost, "/api/qr/generate", ""},
		{http.MethodPost, "/api/qr/generate", "student"},
		{http.MethodPost, "/api/qr/scan", "teacher"},
		{http.MethodPut, "/api/attendance", "student"},
		{http.MethodPost, "/api/attendance/reset", "student"},
		{http.MethodGet, "/api/attendance/export", "student"},
		{http.MethodGet, "/api/users", "student"},
		{http.MethodDelete, "/api/users/s2", "student"},
		{http.MethodGet, "/api/attendance", "forged"},
		{http.MethodGet, "/api/auth/me", ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" as "+tc.token, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestPublicRoutes(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newTestEngine(metrics)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/health"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
