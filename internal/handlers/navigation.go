package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/navigation"
)

type NavigationHandler struct {
	nav *navigation.Config
}

func NewNavigationHandler(nav *navigation.Config) *NavigationHandler {
	return &NavigationHandler{nav: nav}
}

// Get returns the dashboard sections visible to the caller.
// GET /api/navigation
func (h *NavigationHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sections": h.nav.ForRole(middleware.GetRole(c))})
}
