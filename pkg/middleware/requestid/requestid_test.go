package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareAssignsAndEchoesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/health", func(c *gin.Context) {
		logger.Info("handled", Field(c))
		c.String(http.StatusOK, Value(c))
	})

	cases := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"missing", "", false},
		{"forwarded", "edge-7f3a", true},
		{"oversized", strings.Repeat("a", 65), false},
		{"control characters", "abc\ninjected", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tc.inbound != "" {
				req.Header.Set(Header, tc.inbound)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			id := rec.Header().Get(Header)
			assert.Equal(t, id, rec.Body.String())
			if tc.keep {
				assert.Equal(t, tc.inbound, id)
			} else {
				_, err := uuid.Parse(id)
				assert.NoError(t, err)
			}

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			assert.Equal(t, id, entries[0].ContextMap()["request_id"])
		})
	}
}

func TestFieldWithoutMiddlewareIsSkipped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, zap.Skip(), Field(c))
}
