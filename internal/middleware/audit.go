package middleware

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/thesisdesk/internal/services"
)

const maxAuditBody = 2000

var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|oldPassword|newPassword|bindPassword|token|idToken|refreshToken|secret)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// AuditLog records write requests (POST, PUT, PATCH, DELETE) in system_logs
// after the handler ran.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			body = maskSensitiveFields(string(raw))
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		var (
			uid   *string
			actor = "anonymous"
		)
		if s := GetSession(c); s != nil {
			id := s.UserID
			uid = &id
			actor = s.Email
		}
		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		services.LogInfo(module, action, formatAuditMessage(actor, method, c.Request.URL.Path, status), uid,
			c.ClientIP(), c.Request.UserAgent(), map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   body,
				"audit":  true,
			})
	}
}

// parseRouteInfo maps "/api/advisees/:id/status" + PATCH to ("advisees", "update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	module, _, _ = strings.Cut(path, "/")
	if module == "" {
		module = "unknown"
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

func formatAuditMessage(actor, method, path string, status int) string {
	outcome := "ok"
	if status < 200 || status >= 300 {
		outcome = "failed"
	}
	return "[audit] " + actor + " " + method + " " + path + " -> " + outcome
}

func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllString(body, `$1"***"`)
}
