package main

import (
	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/internal/handlers"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/navigation"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/internal/utils"
	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the initialized services and handlers.
type appServices struct {
	allowedOrigins []string

	db          *gorm.DB
	hub         *services.SSEHub
	taskQueue   services.TaskQueue
	worker      *services.Worker
	maintenance *services.MaintenanceService

	authHandler         *handlers.AuthHandler
	adviseeHandler      *handlers.AdviseeHandler
	userHandler         *handlers.UserHandler
	profileHandler      *handlers.ProfileHandler
	announcementHandler *handlers.AnnouncementHandler
	configHandler       *handlers.SystemConfigHandler
	systemLogHandler    *handlers.SystemLogHandler
	navigationHandler   *handlers.NavigationHandler
	sseHandler          *handlers.SSEHandler
	healthHandler       *handlers.HealthHandler
}

// bootstrap opens the database and wires services, queue and schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)
	handlers.RegisterValidators()

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	services.InitSystemLogger(db)

	nav, err := navigation.Load(cfg.Navigation.Path)
	if err != nil {
		logger.Fatalf("Failed to load navigation from %s: %v", cfg.Navigation.Path, err)
	}

	notificationService := services.NewNotificationService(db, services.NewEmailService(db))

	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start notification worker")
			}
		}
	}

	maintenance := services.NewMaintenanceService(db)
	if err := maintenance.StartScheduler(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	}

	var google services.GoogleVerifier
	if cfg.Google.ClientID != "" {
		google = services.NewGoogleVerifier(cfg.Google.ClientID)
	}
	authService := services.NewAuthService(db, cfg, google)
	if err := authService.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	hub := services.GetSSEHub()
	configService := services.NewSystemConfigService(db)

	return &appServices{
		allowedOrigins: cfg.Server.AllowedOrigins,

		db:          db,
		hub:         hub,
		taskQueue:   taskQueue,
		worker:      worker,
		maintenance: maintenance,

		authHandler:         handlers.NewAuthHandler(authService, cfg.Google.ClientID),
		adviseeHandler:      handlers.NewAdviseeHandler(services.NewAdviseeService(db, hub, taskQueue)),
		userHandler:         handlers.NewUserHandler(services.NewUserService(db, hub)),
		profileHandler:      handlers.NewProfileHandler(services.NewProfileService(db, hub)),
		announcementHandler: handlers.NewAnnouncementHandler(services.NewAnnouncementService(db, hub)),
		configHandler:       handlers.NewSystemConfigHandler(configService),
		systemLogHandler:    handlers.NewSystemLogHandler(services.NewSystemLogService(db)),
		navigationHandler:   handlers.NewNavigationHandler(nav),
		sseHandler:          handlers.NewSSEHandler(hub),
		healthHandler:       handlers.NewHealthHandler(db),
	}
}

// shutdown stops schedulers, the worker and the queue.
func (s *appServices) shutdown() {
	s.maintenance.StopScheduler()
	logger.Info().Msg("Schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
