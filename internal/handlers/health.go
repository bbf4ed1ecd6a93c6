package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and event stream.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// CheckHealth answers 200 when the database responds and 503 otherwise.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		logger.Error().Err(err).Msg("health check: database unreachable")
		dbStatus = "error"
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = 503
	}

	queueMode := "sync"
	if q := services.GetTaskQueue(); q != nil && q.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pending int64
	if dbStatus == "ok" {
		h.db.Model(&models.Advisee{}).Where("status = ?", models.AdviseePending).Count(&pending)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "thesisdesk",
		"components": gin.H{
			"database":         dbStatus,
			"queue_mode":       queueMode,
			"sse_clients":      services.GetSSEHub().ClientCount(),
			"pending_advisees": pending,
		},
	})
}
