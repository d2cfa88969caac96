// Package httpx holds the JSON envelope and error mapping shared by all gin
// handlers.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
)

// Envelope is the body returned by mutations and by every error response.
// Status is 0 on success and the HTTP status code otherwise.
type Envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Page is the body returned by paginated listings.
type Page[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind errx.Kind) int {
	switch kind {
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Unauthorized:
		return http.StatusUnauthorized
	case errx.Forbidden:
		return http.StatusForbidden
	case errx.Timeout:
		return http.StatusGatewayTimeout
	case errx.Transport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// OK writes a success envelope.
func OK(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Envelope{Status: 0, Message: message, Data: data})
}

// Fail writes an error envelope with an explicit status.
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: code, Message: message})
}

// AbortFail writes an error envelope and stops the middleware chain.
func AbortFail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{Status: code, Message: message})
}

// Error maps err onto a status code and writes the error envelope. Errors
// without a known kind are logged and answered with a generic message.
func Error(c *gin.Context, err error) {
	kind := errx.KindOf(err)
	code := StatusFor(kind)

	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(code, Envelope{Status: code, Message: "Internal server error"})
		return
	}

	body := Envelope{Status: code, Message: errx.Message(err)}
	if fields := FieldsOf(err); len(fields) > 0 {
		body.Fields = fields
		body.Message = "Validation failed"
	}
	c.JSON(code, body)
}
