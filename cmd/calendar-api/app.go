package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/khanhnq02905/Academic-Calendar/api/swagger"
	"github.com/khanhnq02905/Academic-Calendar/internal/handler"
	internalmiddleware "github.com/khanhnq02905/Academic-Calendar/internal/middleware"
	"github.com/khanhnq02905/Academic-Calendar/internal/models"
	"github.com/khanhnq02905/Academic-Calendar/internal/repository"
	"github.com/khanhnq02905/Academic-Calendar/internal/service"
	"github.com/khanhnq02905/Academic-Calendar/pkg/cache"
	"github.com/khanhnq02905/Academic-Calendar/pkg/config"
	"github.com/khanhnq02905/Academic-Calendar/pkg/database"
	"github.com/khanhnq02905/Academic-Calendar/pkg/jobs"
	"github.com/khanhnq02905/Academic-Calendar/pkg/logger"
	corsmiddleware "github.com/khanhnq02905/Academic-Calendar/pkg/middleware/cors"
	reqidmiddleware "github.com/khanhnq02905/Academic-Calendar/pkg/middleware/requestid"
)

type application struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
	queue  *jobs.Queue

	metrics       *service.MetricsService
	auth          *service.AuthService
	calendar      *handler.CalendarHandler
	audit         *handler.AuditHandler
	notifications *handler.NotificationHandler
	operations    *handler.MetricsHandler
}

func newApplication(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*application, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db, logr); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, audience cache disabled", zap.Error(err))
		redisClient = nil
	}

	app := &application{cfg: cfg, logger: logr, db: db, redis: redisClient}

	eventRepo := repository.NewEventRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "calendar:")

	app.metrics = service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, logr.Named("audit"))
	dispatcher := service.NewNotificationService(notificationRepo, referenceRepo, cacheRepo, app.metrics, logr.Named("notifications"),
		service.NotificationServiceConfig{AudienceCacheTTL: cfg.Notifications.AudienceCacheTTL})

	if cfg.Notifications.Async {
		app.queue = jobs.NewQueue(service.NotificationJobType, dispatcher.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		app.queue.Start(context.WithoutCancel(ctx))
		dispatcher.UseQueue(app.queue)
	}

	eventSvc := service.NewEventService(eventRepo, referenceRepo, auditSvc, dispatcher, logr.Named("events"),
		service.WithEventMetrics(app.metrics),
		service.WithEventValidator(validator.New()))
	approvalSvc := service.NewApprovalService(eventRepo, auditSvc, dispatcher, logr.Named("approvals"),
		service.WithApprovalMetrics(app.metrics))

	app.auth = service.NewAuthService(logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	app.calendar = handler.NewCalendarHandler(eventSvc, approvalSvc)
	app.audit = handler.NewAuditHandler(auditSvc)
	app.notifications = handler.NewNotificationHandler(dispatcher)
	app.operations = handler.NewMetricsHandler(app.metrics, db)

	return app, nil
}

func (a *application) router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(a.metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", a.operations.Health)
	r.GET("/ready", a.operations.Ready)
	r.GET("/metrics", a.operations.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(a.cfg.APIPrefix)
	calendar := api.Group("/calendar", internalmiddleware.JWT(a.auth))
	{
		calendar.POST("/create_event/", a.calendar.Create)
		calendar.PUT("/edit_event/:id/", a.calendar.Edit)
		calendar.POST("/approve/:id/", a.calendar.Approve)
		calendar.POST("/reject/:id/", a.calendar.Reject)
		calendar.GET("/events/", a.calendar.List)
		calendar.GET("/events/:id/", a.calendar.Get)

		calendar.GET("/notifications/", a.notifications.List)
		calendar.POST("/notifications/:id/read/", a.notifications.MarkRead)

		audit := calendar.Group("/audit", internalmiddleware.RequireRoles(models.RoleAdministrator))
		audit.GET("/logs/", a.audit.List)
		audit.GET("/logs/export/", a.audit.Export)
	}

	return r
}

// Close stops background work before releasing connections.
func (a *application) Close() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
}
