package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/services"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(svc *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: svc}
}

// GET /api/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	p, ok := bindList(c)
	if !ok {
		return
	}
	page, err := h.systemLogService.List(c.Request.Context(), p)
	if err != nil {
		fetchFailed(c, "system logs", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/system-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		fetchFailed(c, "log modules", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}
