// Package router mounts the HTTP API onto a gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
)

// Handlers bundles every HTTP handler served by the API.
type Handlers struct {
	Auth       *handler.AuthHandler
	QR         *handler.QRHandler
	Attendance *handler.AttendanceHandler
	Users      *handler.UserHandler
	Metrics    *handler.MetricsHandler
}

// Options controls optional routes and shared middleware dependencies.
type Options struct {
	Prefix     string
	EnableDocs bool
	Tokens     middleware.TokenValidator
	Audit      middleware.AuditRecorder
	MetricsSvc *service.MetricsService
	Logger     *zap.Logger
}

// Register attaches all routes to r.
func Register(r *gin.Engine, h Handlers, opts Options) {
	r.Use(middleware.Metrics(opts.MetricsSvc))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.Prefix)
	api.POST("/setup", h.Users.Setup)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", middleware.JWT(opts.Tokens), h.Auth.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	qr := secured.Group("/qr")
	qr.POST("/generate",
		middleware.TeacherOnly(),
		middleware.Audit(opts.Audit, opts.Logger, models.AuditActionQRIssue, "qr_sessions"),
		h.QR.Generate,
	)
	qr.POST("/scan", middleware.StudentOnly(), h.QR.Scan)

	attendance := secured.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.PUT("", middleware.TeacherOnly(), h.Attendance.Mark)
	attendance.GET("/export", middleware.TeacherOnly(), h.Attendance.Export)
	attendance.POST("/reset", middleware.TeacherOnly(), h.Attendance.Reset)

	users := secured.Group("/users")
	users.Use(middleware.TeacherOnly())
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.DELETE("/:id", h.Users.Delete)
	users.POST("/import", h.Users.Import)
	users.GET("/export", h.Users.Export)
}
