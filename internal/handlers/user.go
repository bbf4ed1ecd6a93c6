package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{userService: svc}
}

// List pages through users; ?role= restricts to one role.
// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	p, ok := bindList(c)
	if !ok {
		return
	}
	var roles []models.Role
	if raw := c.Query("role"); raw != "" {
		role, valid := models.ParseRole(raw)
		if !valid {
			response.BadRequest(c, "invalid role")
			return
		}
		roles = append(roles, role)
	}

	page, err := h.userService.List(c.Request.Context(), p, roles...)
	if err != nil {
		fetchFailed(c, "users", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Students is the student directory for pickers and staff screens.
// GET /api/students
func (h *UserHandler) Students(c *gin.Context) {
	p, ok := bindList(c)
	if !ok {
		return
	}
	page, err := h.userService.List(c.Request.Context(), p, models.RoleStudent)
	if err != nil {
		fetchFailed(c, "students", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, services.MsgUserNotFound)
			return
		}
		fetchFailed(c, "user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	res, err := h.userService.Create(c.Request.Context(), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusCreated)
}

// PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	res, err := h.userService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgUserNotFound)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	res, err := h.userService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		failAction(c, err)
		return
	}
	writeAction(c, res, http.StatusOK, services.MsgUserNotFound)
}

// Export downloads users as an xlsx workbook.
// GET /api/users/export?role=
func (h *UserHandler) Export(c *gin.Context) {
	var role models.Role
	if raw := c.Query("role"); raw != "" {
		parsed, valid := models.ParseRole(raw)
		if !valid {
			response.BadRequest(c, "invalid role")
			return
		}
		role = parsed
	}

	sheet, err := h.userService.ExportUsers(c.Request.Context(), role)
	if err != nil {
		logger.Error().Err(err).Str("role", string(role)).Msg("export users failed")
		response.ServerError(c, "Failed to export users.")
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, sheet.Name))
	c.Status(http.StatusOK)
	if err := services.WriteWorkbook(c.Writer, *sheet); err != nil {
		logger.Error().Err(err).Msg("write workbook failed")
	}
}
