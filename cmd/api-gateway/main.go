package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/smart-report-api/api/swagger"
	"github.com/noah-isme/smart-report-api/internal/handler"
	"github.com/noah-isme/smart-report-api/internal/realtime"
	"github.com/noah-isme/smart-report-api/internal/repository"
	"github.com/noah-isme/smart-report-api/internal/service"
	"github.com/noah-isme/smart-report-api/pkg/cache"
	"github.com/noah-isme/smart-report-api/pkg/config"
	"github.com/noah-isme/smart-report-api/pkg/database"
	"github.com/noah-isme/smart-report-api/pkg/logger"
	"github.com/noah-isme/smart-report-api/pkg/mailer"
	"github.com/noah-isme/smart-report-api/pkg/response"
	"github.com/noah-isme/smart-report-api/pkg/storage"
)

// @title Smart Report API
// @version 1.0.0
// @description Classroom inspection reports with peer approval, administrative review and statistics.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	response.ExposeErrorDetails(cfg.Env == config.EnvDevelopment)

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and with in-process events", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc := cfg.Location()
	validate := validator.New()
	metrics := service.NewMetricsService()

	reportRepo := repository.NewReportRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	itemRepo := repository.NewItemRepository(db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient),
		metrics,
		cfg.Aggregation.CacheTTL,
		logr,
		cfg.Aggregation.CacheEnabled && redisClient != nil,
	)

	var channel realtime.Channel = realtime.NewLocalChannel()
	if redisClient != nil {
		channel = realtime.NewRedisChannel(redisClient, cfg.Realtime.Channel, logr)
	}
	hub := realtime.NewHub(channel, logr, metrics.SetRealtimeClients)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start realtime hub: %w", err)
	}

	notifier := service.NewNotificationService(mailer.New(cfg.Mail, logr), metrics, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		BufferSize: cfg.Notifications.BufferSize,
		BaseURL:    cfg.Mail.BaseURL,
	}, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return err
	}

	authSvc := service.NewAuthService(service.AuthServiceParams{
		Users:     userRepo,
		Classes:   classRepo,
		Events:    hub,
		Notifier:  notifier,
		Validator: validate,
		Logger:    logr,
		Config: service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		},
	})
	identitySvc := service.NewIdentityService(userRepo, studentRepo, logr)
	reportSvc := service.NewReportService(service.ReportServiceParams{
		Reports:   reportRepo,
		Items:     itemRepo,
		Events:    hub,
		Notifier:  notifier,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Location:  loc,
	})
	aggregationSvc := service.NewAggregationService(service.AggregationServiceParams{
		Reports:         reportRepo,
		Items:           itemRepo,
		Representatives: studentRepo,
		Students:        userRepo,
		Classes:         classRepo,
		Cache:           cacheSvc,
		Metrics:         metrics,
		Logger:          logr,
		Location:        loc,
		Config:          service.AggregationConfig{OrganizedLookbackDays: cfg.Aggregation.OrganizedLookbackDays},
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Digests:  aggregationSvc,
		Storage:  exportStore,
		Signer:   storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Logger:   logr,
		Location: loc,
		Config:   service.ExportConfig{APIPrefix: cfg.APIPrefix, CleanupInterval: cfg.Exports.CleanupInterval},
	})
	go exportSvc.RunCleanup(ctx)

	classSvc := service.NewClassService(service.ClassServiceParams{
		Classes:   classRepo,
		Students:  studentRepo,
		Reports:   reportRepo,
		Cache:     cacheSvc,
		Validator: validate,
		Logger:    logr,
		Location:  loc,
	})
	itemSvc := service.NewItemService(itemRepo, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(userRepo, studentRepo, cacheSvc, validate, logr)

	router := newRouter(cfg, logr, metrics, routerHandlers{
		auth:      handler.NewAuthHandler(authSvc),
		reports:   handler.NewReportHandler(reportSvc),
		admin:     handler.NewAdminHandler(aggregationSvc, exportSvc, loc),
		dashboard: handler.NewDashboardHandler(aggregationSvc),
		classes:   handler.NewClassHandler(classSvc),
		items:     handler.NewItemHandler(itemSvc),
		students:  handler.NewStudentHandler(studentSvc),
		exports:   handler.NewExportHandler(exportSvc),
		realtime:  handler.NewRealtimeHandler(hub, authSvc, identitySvc, cfg.Realtime.AllowedOrigins, logr),
		metrics:   handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"redis":    func(ctx context.Context) error { return cache.Ping(ctx, redisClient) },
		}),
	}, authSvc, identitySvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
