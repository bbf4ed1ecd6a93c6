package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified API response format.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Error responses share the envelope; Code mirrors the HTTP status.

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: 400, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Code: 401, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: 404, Message: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: 500, Message: msg})
}

// --- Action results ---

// Result is the outcome of a mutating action. Domain failures are reported
// with Success false and a Message (rule violations) or Error (lookups and
// store failures) instead of an error return.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// Ok builds a successful result.
func Ok[T any](data T, msg string) Result[T] {
	return Result[T]{Success: true, Message: msg, Data: data}
}

// Fail builds a failed result carrying a user-facing message.
func Fail[T any](msg string) Result[T] {
	return Result[T]{Success: false, Message: msg}
}

// FailError builds a failed result reported through the error field.
func FailError[T any](msg string) Result[T] {
	return Result[T]{Success: false, Error: msg}
}

// Action writes r as-is. Successful results use okStatus, failed ones failStatus.
func Action[T any](c *gin.Context, r Result[T], okStatus, failStatus int) {
	if r.Success {
		c.JSON(okStatus, r)
		return
	}
	c.JSON(failStatus, r)
}
