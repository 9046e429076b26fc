package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/handler"
	"github.com/noah-isme/smart-report-api/internal/middleware"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/service"
	"github.com/noah-isme/smart-report-api/pkg/config"
	"github.com/noah-isme/smart-report-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/smart-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smart-report-api/pkg/middleware/requestid"
)

type routerHandlers struct {
	auth      *handler.AuthHandler
	reports   *handler.ReportHandler
	admin     *handler.AdminHandler
	dashboard *handler.DashboardHandler
	classes   *handler.ClassHandler
	items     *handler.ItemHandler
	students  *handler.StudentHandler
	exports   *handler.ExportHandler
	realtime  *handler.RealtimeHandler
	metrics   *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routerHandlers, tokens middleware.TokenValidator, identities middleware.PrincipalResolver) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/register", h.auth.Register)
	api.GET("/exports/:token", h.exports.Download)
	api.GET("/ws", h.realtime.Connect)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens, identities))
	secured.GET("/auth/me", h.auth.Me)
	secured.POST("/auth/change-password", h.auth.ChangePassword)

	dashboard := secured.Group("/dashboard")
	dashboard.Use(middleware.RequireRoles(models.RoleStudent))
	dashboard.GET("", h.dashboard.Student)
	dashboard.GET("/profile", h.dashboard.Profile)

	reports := secured.Group("/reports")
	reports.GET("", h.reports.List)
	reports.POST("", h.reports.Submit)
	reports.GET("/approval", h.reports.Approval)
	reports.GET("/:id", h.reports.Get)
	reports.GET("/:id/download", h.reports.Download)
	reports.POST("/:id/approve", h.reports.Approve)
	reports.POST("/:id/deny", h.reports.Deny)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/dashboard", h.admin.Dashboard)
	admin.GET("/reports", h.admin.Reports)
	admin.GET("/reports/today", h.admin.Today)
	admin.GET("/reports/weekly", h.admin.Weekly)
	admin.GET("/reports/weekly/export", h.admin.WeeklyExport)
	admin.GET("/reports/organized", h.admin.Organized)
	admin.GET("/reports/week", h.admin.Week)
	admin.POST("/reports/:id/review", h.reports.Review)
	admin.GET("/representatives", h.admin.Representatives)

	admin.GET("/items/usage", h.admin.ItemUsage)
	admin.GET("/items/:id/details", h.admin.ItemDetails)
	admin.GET("/items/:id/trends", h.admin.ItemTrends)
	admin.GET("/items", h.items.List)
	admin.POST("/items", h.items.Create)
	admin.GET("/items/:id", h.items.Get)
	admin.PUT("/items/:id", h.items.Update)
	admin.DELETE("/items/:id", h.items.Delete)

	admin.GET("/classes", h.classes.List)
	admin.POST("/classes", h.classes.Create)
	admin.GET("/classes/:id", h.classes.Get)
	admin.PUT("/classes/:id", h.classes.Update)
	admin.DELETE("/classes/:id", h.classes.Delete)

	admin.POST("/users", h.auth.CreateAdmin)
	admin.PATCH("/students/:userId", h.students.Assign)

	return r
}
