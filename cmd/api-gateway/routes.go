package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timesheet-api/internal/middleware"
	"github.com/noah-isme/timesheet-api/internal/service"
	"github.com/noah-isme/timesheet-api/pkg/config"
	"github.com/noah-isme/timesheet-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timesheet-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timesheet-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens      *service.TokenService
	metrics     *service.MetricsService
	metricsH    *handler.MetricsHandler
	timesheets  *handler.TimesheetHandler
	supervisors *handler.SupervisorHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", cfg.Metrics.Path))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(deps.metrics, cfg.Metrics.Path, "/health"))

	r.GET("/health", deps.metricsH.Health)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, deps.metricsH.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, internalmiddleware.WithResponseMeta(), internalmiddleware.JWT(deps.tokens))

	// :ref is an ISO week key under /entries and a sheet id on every other route.
	sheets := api.Group("/timesheets")
	sheets.GET("", deps.timesheets.List)
	sheets.POST("/:ref/entries", deps.timesheets.UpsertEntry)
	sheets.PUT("/:ref/entries", deps.timesheets.SaveWeek)
	sheets.DELETE("/:ref/entries/:entryId", deps.timesheets.DeleteEntry)
	sheets.POST("/:ref/save", deps.timesheets.Save)
	sheets.POST("/:ref/submit", deps.timesheets.Submit)
	sheets.POST("/:ref/approve", deps.timesheets.Approve)
	sheets.POST("/:ref/reject", deps.timesheets.Reject)
	sheets.GET("/:ref/status", deps.timesheets.Status)
	sheets.GET("/:ref", deps.timesheets.Get)
	sheets.DELETE("/:ref", internalmiddleware.RequireAdministrative(), deps.timesheets.Delete)

	api.GET("/approvals/pending", deps.timesheets.PendingApprovals)

	admin := api.Group("/supervisors", internalmiddleware.RequireAdministrative())
	admin.GET("", deps.supervisors.List)
	admin.POST("", deps.supervisors.Add)
	admin.DELETE("/:collaboratorId/:supervisorId", deps.supervisors.Remove)

	return r
}
