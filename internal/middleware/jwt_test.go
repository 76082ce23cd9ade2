package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type stubValidator struct {
	tokens map[string]*models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newSecuredEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	validator := stubValidator{tokens: map[string]*models.JWTClaims{
		"teacher-token": {UserID: "t1", Role: models.RoleTeacher},
		"student-token": {UserID: "s1", Role: models.RoleStudent},
	}}
	chain := append([]gin.HandlerFunc{JWT(validator)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"user": value.(*models.JWTClaims).UserID})
	})
	r.GET("/secured", chain...)
	return r
}

func TestJWTMiddleware(t *testing.T) {
	r := newSecuredEngine()

	cases := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic teacher-token", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer teacher-token", "", http.StatusOK},
		{"cookie", "", "student-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secured", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRoleGuards(t *testing.T) {
	teacherOnly := newSecuredEngine(TeacherOnly())
	studentOnly := newSecuredEngine(StudentOnly())

	do := func(r *gin.Engine, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/secured", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(teacherOnly, "teacher-token").Code)
	assert.Equal(t, http.StatusOK, do(studentOnly, "student-token").Code)

	rec := do(teacherOnly, "student-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","code":"UNAUTHORIZED"}`, rec.Body.String())

	rec = do(studentOnly, "teacher-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized - Student only")
}

func TestRequireRoleWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", RequireRole(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &recordingAudit{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
		c.Next()
	})
	r.POST("/qr/generate", Audit(audit, nil, models.AuditActionQRIssue, "qr_sessions"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/qr/generate", nil))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionQRIssue, audit.logs[0].Action)
	assert.Equal(t, "qr_sessions", audit.logs[0].Resource)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "t1", *audit.logs[0].UserID)
	assert.Contains(t, string(audit.logs[0].Payload), `"path":"/qr/generate"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/qr/generate?fail=1", nil))
	assert.Len(t, audit.logs, 1)
}

func TestMetricsMiddlewareToleratesNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, svc := range []*service.MetricsService{nil, service.NewMetricsService()} {
		r := gin.New()
		r.Use(Metrics(svc))
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
