package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

type AnnouncementHandler struct {
	announcementService *services.AnnouncementService
}

func NewAnnouncementHandler(svc *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: svc}
}

// GET /api/announcements?creatorId=
func (h *AnnouncementHandler) List(c *gin.Context) {
	p, ok := bindList(c)
	if !ok {
		return
	}
	page, err := h.announcementService.List(c.Request.Context(), c.Query("creatorId"), p)
	if err != nil {
		fetchFailed(c, "announcements", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/announcements/:id
func (h *AnnouncementHandler) Get(c *gin.Context) {
	a, err := h.announcementService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, services.MsgAnnouncementNotFound)
			return
		}
		fetchFailed(c, "announcement", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// POST /api/announcements
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req services.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	res, err := h.announcementService.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusCreated)
}

// PUT /api/announcements/:id
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req services.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	res, err := h.announcementService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgAnnouncementNotFound)
}

// DELETE /api/announcements/:id
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	res, err := h.announcementService.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgAnnouncementNotFound)
}
