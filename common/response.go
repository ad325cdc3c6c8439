package common

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every successful JSON response.
type Envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ErrorBody is the body of every failed JSON response.
type ErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Success writes data (and optional meta) wrapped in the success envelope.
func Success(c *gin.Context, status int, data interface{}, meta interface{}) {
	c.JSON(status, Envelope{Status: "success", Data: data, Meta: meta})
}

// Fail records err on the context and stops the handler chain. ErrorResponder
// renders it.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorResponder renders the last error attached to the context as the error
// envelope. Internal details of database errors are hidden when hideInternal
// is set.
func ErrorResponder(logger *slog.Logger, hideInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		kind := KindOf(err)

		body := ErrorBody{Status: "error", Message: err.Error(), Code: string(KindDatabase)}
		var domainErr *Error
		if errors.As(err, &domainErr) {
			body.Message = domainErr.Message
			body.Code = domainErr.Code
		}

		if kind == KindDatabase {
			logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"request_id", c.GetString(RequestIDKey),
				"error", err)
			if hideInternal {
				body.Message = "Internal server error"
			} else {
				body.Message = err.Error()
			}
		}

		c.JSON(kind.HTTPStatus(), body)
	}
}
