package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/qr-attendance-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	c, rec := newTestContext(http.MethodGet, "/ready", "", nil)
	NewMetricsHandler(nil, map[string]Pinger{"postgres": up}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"up"}}`, rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/ready", "", nil)
	NewMetricsHandler(nil, map[string]Pinger{"postgres": up, "redis": down}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"up","redis":"down"}}`, rec.Body.String())
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/qr/scan", http.StatusOK, 20*time.Millisecond)

	c, rec := newTestContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(metrics, nil).Prometheus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))

	c, rec = newTestContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, c.IsAborted())
	assert.Empty(t, rec.Body.String())
}

func TestAuthHandlerMe(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/api/auth/me", "", student)
	NewAuthHandler(nil).Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"s1","email":"","name":"Ayu","role":"siswa","class":""}`, rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/api/auth/me", "", nil)
	NewAuthHandler(nil).Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
