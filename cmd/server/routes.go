package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/handlers"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
)

var (
	advisers       = []models.Role{models.RoleFaculty, models.RoleStaff, models.RoleAdmin}
	announcers     = []models.Role{models.RoleStaff, models.RoleAdmin}
	studentReaders = []models.Role{models.RoleFaculty, models.RoleStaff, models.RoleAdmin}
)

// registerRoutes sets up all HTTP routes on r.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.allowedOrigins...))

	loginLimiter := middleware.NewRateLimiter(1, 10)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.db))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", loginLimiter.Middleware(), svc.authHandler.Login)
			auth.POST("/google", loginLimiter.Middleware(), svc.authHandler.Google)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.POST("/logout", svc.authHandler.Logout)
			auth.GET("/config", svc.authHandler.Config)
		}

		// EventSource cannot send headers; the handler checks ?token= itself.
		api.GET("/events", svc.sseHandler.StreamChanges)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			protected.GET("/auth/session", svc.authHandler.Session)
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			protected.GET("/navigation", svc.navigationHandler.Get)

			protected.GET("/profile", svc.profileHandler.Get)
			protected.PUT("/profile", svc.profileHandler.Update)

			protected.GET("/announcements", svc.announcementHandler.List)
			protected.GET("/announcements/:id", svc.announcementHandler.Get)
		}

		announcements := api.Group("/announcements")
		announcements.Use(middleware.AuthRequired(), middleware.RoleRequired(announcers...), middleware.AuditLog())
		{
			announcements.POST("", svc.announcementHandler.Create)
			announcements.PUT("/:id", svc.announcementHandler.Update)
			announcements.DELETE("/:id", svc.announcementHandler.Delete)
		}

		advisees := api.Group("/advisees")
		advisees.Use(middleware.AuthRequired(), middleware.RoleRequired(advisers...), middleware.AuditLog())
		{
			advisees.GET("", svc.adviseeHandler.List)
			advisees.GET("/students", svc.adviseeHandler.SearchStudents)
			advisees.GET("/faculty", svc.adviseeHandler.ListFaculty)
			advisees.GET("/:id", svc.adviseeHandler.Get)
			advisees.POST("", svc.adviseeHandler.Create)
			advisees.PUT("/:id", svc.adviseeHandler.Update)
			advisees.PATCH("/:id/status", svc.adviseeHandler.UpdateStatus)
			advisees.DELETE("/:id", svc.adviseeHandler.Delete)
		}

		students := api.Group("/students")
		students.Use(middleware.AuthRequired(), middleware.RoleRequired(studentReaders...))
		{
			students.GET("", svc.userHandler.Students)
		}

		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin), middleware.AuditLog())
		{
			admin.GET("/users", svc.userHandler.List)
			admin.GET("/users/export", svc.userHandler.Export)
			admin.GET("/users/:id", svc.userHandler.Get)
			admin.POST("/users", svc.userHandler.Create)
			admin.PUT("/users/:id", svc.userHandler.Update)
			admin.DELETE("/users/:id", svc.userHandler.Delete)

			admin.GET("/system-config/ldap", svc.configHandler.GetLDAPConfig)
			admin.PUT("/system-config/ldap", svc.configHandler.UpdateLDAPConfig)
			admin.GET("/system-config/email", svc.configHandler.GetEmailConfig)
			admin.PUT("/system-config/email", svc.configHandler.UpdateEmailConfig)

			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
		}
	}
}
