package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/middleware"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/huangang/thesisdesk/pkg/response"
)

type AuthHandler struct {
	authService    *services.AuthService
	googleClientID string
}

func NewAuthHandler(authService *services.AuthService, googleClientID string) *AuthHandler {
	return &AuthHandler{authService: authService, googleClientID: googleClientID}
}

type tokenResponse struct {
	AccessToken      string       `json:"accessToken"`
	ExpiresAt        time.Time    `json:"expiresAt"`
	RefreshToken     string       `json:"refreshToken"`
	RefreshExpiresAt time.Time    `json:"refreshExpiresAt"`
	User             *models.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func newTokenResponse(r *services.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:      r.AccessToken,
		ExpiresAt:        r.AccessExpireAt,
		RefreshToken:     r.RefreshToken,
		RefreshExpiresAt: r.RefreshExpireAt,
		User:             r.User,
	}
}

// Login signs in with e-mail and password, locally or against LDAP.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.authFailed(c, "login", req.Email, err)
		return
	}

	uid := res.User.ID
	services.LogInfo("auth", "login", "User signed in", &uid, c.ClientIP(), c.Request.UserAgent(), map[string]string{"authType": res.User.AuthType})
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Google signs in with a Google ID token.
// POST /api/auth/google
func (h *AuthHandler) Google(c *gin.Context) {
	var req services.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	res, err := h.authService.LoginGoogle(c.Request.Context(), req.IDToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.authFailed(c, "google", "", err)
		return
	}

	uid := res.User.ID
	services.LogInfo("auth", "login", "User signed in with Google", &uid, c.ClientIP(), c.Request.UserAgent(), nil)
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Refresh exchanges a refresh token for a new token pair.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	res, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.authFailed(c, "refresh", "", err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Logout revokes the refresh token; the access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.authService.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		logger.Warn().Err(err).Msg("revoke refresh token failed")
	}
	response.Success(c, nil)
}

// Session returns the signed-in user.
// GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.GetSession(c)})
}

// Me returns the full user record of the caller.
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		fetchFailed(c, "user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Config tells the sign-in page which providers are available.
// GET /api/auth/config
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ldapEnabled":    h.authService.IsLDAPEnabled(),
		"googleEnabled":  h.googleClientID != "",
		"googleClientId": h.googleClientID,
	})
}

// ChangePassword updates the caller's local password.
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), middleware.GetUserID(c), &req)
	switch {
	case err == nil:
		response.Success(c, nil)
	case errors.Is(err, services.ErrWrongPassword), errors.Is(err, services.ErrExternalAccount):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		response.NotFound(c, err.Error())
	default:
		logger.Error().Err(err).Str("user_id", middleware.GetUserID(c)).Msg("change password failed")
		response.ServerError(c, "failed to change password")
	}
}

func (h *AuthHandler) authFailed(c *gin.Context, action, email string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAuthType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidGoogleToken),
		errors.Is(err, services.ErrInvalidRefreshToken),
		errors.Is(err, services.ErrRefreshRevoked),
		errors.Is(err, services.ErrRefreshExpired),
		errors.Is(err, services.ErrUserNotFound):
		services.LogWarning("auth", action, "Sign-in rejected: "+err.Error(), nil, c.ClientIP(), c.Request.UserAgent(), map[string]string{"email": email})
		response.Unauthorized(c, err.Error())
	default:
		logger.Error().Err(err).Str("action", action).Msg("authentication failed")
		response.ServerError(c, "authentication failed")
	}
}
