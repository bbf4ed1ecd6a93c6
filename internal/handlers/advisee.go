package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

type AdviseeHandler struct {
	adviseeService *services.AdviseeService
}

func NewAdviseeHandler(svc *services.AdviseeService) *AdviseeHandler {
	return &AdviseeHandler{adviseeService: svc}
}

type UpdateStatusRequest struct {
	Status models.AdviseeStatus `json:"status" binding:"required,advisee_status"`
}

// List returns the caller's advisees.
// GET /api/advisees
func (h *AdviseeHandler) List(c *gin.Context) {
	p, ok := bindList(c)
	if !ok {
		return
	}
	page, err := h.adviseeService.List(c.Request.Context(), middleware.GetUserID(c), p)
	if err != nil {
		fetchFailed(c, "advisees", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// authorize lets staff and admins manage every advisee and faculty only the
// ones they advise. It answers the request itself when access is refused; a
// missing record is left to the action to report.
func (h *AdviseeHandler) authorize(c *gin.Context, id string) bool {
	session := middleware.GetSession(c)
	if session == nil {
		failAction(c, services.ErrNotAuthorized)
		return false
	}
	if session.Role != models.RoleFaculty {
		return true
	}
	advisee, err := h.adviseeService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true
		}
		fetchFailed(c, "advisee", err)
		return false
	}
	if advisee.AdviserID != session.UserID {
		failAction(c, services.ErrNotAuthorized)
		return false
	}
	return true
}

// assignAdviser refuses faculty naming an adviser other than themselves. A
// blank adviser is left for the service to reject.
func assignAdviser(c *gin.Context, adviserID string) bool {
	session := middleware.GetSession(c)
	if session == nil {
		failAction(c, services.ErrNotAuthorized)
		return false
	}
	adviserID = strings.TrimSpace(adviserID)
	if session.Role == models.RoleFaculty && adviserID != "" && adviserID != session.UserID {
		failAction(c, services.ErrNotAuthorized)
		return false
	}
	return true
}

// GET /api/advisees/:id
func (h *AdviseeHandler) Get(c *gin.Context) {
	if !h.authorize(c, c.Param("id")) {
		return
	}
	advisee, err := h.adviseeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, services.MsgAdviseeNotFound)
			return
		}
		fetchFailed(c, "advisee", err)
		return
	}
	c.JSON(http.StatusOK, advisee)
}

// POST /api/advisees
func (h *AdviseeHandler) Create(c *gin.Context) {
	var req services.AddAdviseeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	if !assignAdviser(c, req.AdviserID) {
		return
	}
	res, err := h.adviseeService.AddAdvisee(c.Request.Context(), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusCreated, services.MsgStudentNotFound)
}

// PUT /api/advisees/:id
func (h *AdviseeHandler) Update(c *gin.Context) {
	var req services.UpdateAdviseeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	if !h.authorize(c, c.Param("id")) || !assignAdviser(c, req.AdviserID) {
		return
	}
	res, err := h.adviseeService.UpdateAdvisee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgAdviseeNotFound)
}

// PATCH /api/advisees/:id/status
func (h *AdviseeHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	if !h.authorize(c, c.Param("id")) {
		return
	}
	res, err := h.adviseeService.UpdateAdviseeStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgAdviseeNotFound)
}

// DELETE /api/advisees/:id
func (h *AdviseeHandler) Delete(c *gin.Context) {
	if !h.authorize(c, c.Param("id")) {
		return
	}
	res, err := h.adviseeService.DeleteAdvisee(c.Request.Context(), c.Param("id"))
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgAdviseeNotFound)
}

// SearchStudents feeds the student picker.
// GET /api/advisees/students?q=&limit=
func (h *AdviseeHandler) SearchStudents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	options, err := h.adviseeService.SearchStudents(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		fetchFailed(c, "students", err)
		return
	}
	c.JSON(http.StatusOK, options)
}

// ListFaculty feeds the adviser and member pickers.
// GET /api/advisees/faculty
func (h *AdviseeHandler) ListFaculty(c *gin.Context) {
	options, err := h.adviseeService.ListFaculty(c.Request.Context())
	if err != nil {
		fetchFailed(c, "faculty", err)
		return
	}
	c.JSON(http.StatusOK, options)
}
