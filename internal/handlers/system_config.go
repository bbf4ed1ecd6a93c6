package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(svc *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: svc}
}

// GET /api/system-config/ldap
func (h *SystemConfigHandler) GetLDAPConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.configService.GetLDAPConfig())
}

// PUT /api/system-config/ldap
func (h *SystemConfigHandler) UpdateLDAPConfig(c *gin.Context) {
	var req services.UpdateLDAPConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}
	if err := h.configService.UpdateLDAPConfig(&req); err != nil {
		logger.Error().Err(err).Msg("update ldap config failed")
		response.ServerError(c, "failed to save ldap settings")
		return
	}
	c.JSON(http.StatusOK, h.configService.GetLDAPConfig())
}

type emailConfigResponse struct {
	*services.EmailSettings
	PasswordSet bool `json:"passwordSet"`
}

func (h *SystemConfigHandler) emailConfig() emailConfigResponse {
	settings := h.configService.GetEmailSettings()
	return emailConfigResponse{EmailSettings: settings, PasswordSet: settings.Password != ""}
}

// GET /api/system-config/email
func (h *SystemConfigHandler) GetEmailConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.emailConfig())
}

// PUT /api/system-config/email
func (h *SystemConfigHandler) UpdateEmailConfig(c *gin.Context) {
	var req services.UpdateEmailConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}
	if err := h.configService.UpdateEmailConfig(&req); err != nil {
		logger.Error().Err(err).Msg("update email config failed")
		response.ServerError(c, "failed to save email settings")
		return
	}
	c.JSON(http.StatusOK, h.emailConfig())
}
