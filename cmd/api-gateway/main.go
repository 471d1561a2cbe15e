package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timesheet-api/api/swagger"
	"github.com/noah-isme/timesheet-api/internal/handler"
	"github.com/noah-isme/timesheet-api/internal/repository"
	"github.com/noah-isme/timesheet-api/internal/service"
	"github.com/noah-isme/timesheet-api/pkg/cache"
	"github.com/noah-isme/timesheet-api/pkg/clock"
	"github.com/noah-isme/timesheet-api/pkg/config"
	"github.com/noah-isme/timesheet-api/pkg/database"
	"github.com/noah-isme/timesheet-api/pkg/jobs"
	"github.com/noah-isme/timesheet-api/pkg/logger"
)

// @title Timesheet API
// @version 1.0.0
// @description Weekly time sheets with supervisor approval.
// @BasePath /api/v1
// @schemes http
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	var statusCache *service.StatusCache
	if cfg.Timesheets.StatusCacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, status cache disabled", zap.Error(err))
		} else {
			statusRepo := repository.NewStatusCacheRepository(client, cfg.Redis.Prefix)
			defer statusRepo.Close() //nolint:errcheck
			statusCache = service.NewStatusCache(statusRepo, metrics, cfg.Timesheets.StatusCacheTTL, logr.Named("status-cache"))
		}
	}

	collaboratorRepo := repository.NewCollaboratorRepository(db)
	supervisorRepo := repository.NewSupervisorRepository(db)
	timesheetRepo := repository.NewTimeSheetRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	audit := service.NewAuditService(auditRepo, metrics, jobs.QueueConfig{
		Workers:    cfg.Timesheets.AuditWorkers,
		BufferSize: cfg.Timesheets.AuditBuffer,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logr.Named("audit"),
	})
	audit.Start(context.Background())
	defer audit.Stop()

	identity := service.NewIdentityService(collaboratorRepo, logr)
	authorizer := service.NewApprovalAuthorizer(identity, supervisorRepo, timesheetRepo, logr)
	timesheets := service.NewTimesheetService(db, timesheetRepo, entryRepo, supervisorRepo, identity, authorizer, logr,
		service.WithTimesheetClock(clock.NewSystem(cfg.Timesheets.Location())),
		service.WithTimesheetCache(statusCache),
		service.WithTimesheetAudit(audit),
		service.WithTimesheetMetrics(metrics),
		service.WithTimesheetRules(service.TimesheetRules{
			DailyHourCap:  cfg.Timesheets.DailyHourCap,
			MaxEntryHours: cfg.Timesheets.MaxEntryHours,
		}),
	)
	supervisors := service.NewSupervisorService(supervisorRepo, audit, logr)

	audience := ""
	if len(cfg.JWT.Audience) > 0 {
		audience = cfg.JWT.Audience[0]
	}
	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: audience,
	})

	r := newRouter(cfg, logr, routerDeps{
		tokens:      tokens,
		metrics:     metrics,
		metricsH:    handler.NewMetricsHandler(metrics, db),
		timesheets:  handler.NewTimesheetHandler(timesheets),
		supervisors: handler.NewSupervisorHandler(supervisors),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", cfg.Timesheets.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
