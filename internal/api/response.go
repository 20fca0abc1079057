package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Result is the standard JSON envelope for every response this service
// returns.
type Result struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GinSuccess sends a standardized success response using gin.Context.
func GinSuccess(c *gin.Context, data interface{}) {
	result := &Result{
		Code:    0,
		Message: "success",
		Data:    data,
	}
	c.JSON(http.StatusOK, result)
}

// GinError sends a standardized error response using gin.Context.
func GinError(c *gin.Context, code int, err error, statusCode int, messages ...string) {
	msg := "operation failed"
	if len(messages) > 0 {
		msg = messages[0]
	}

	result := &Result{
		Code:    code,
		Message: msg,
	}
	if err != nil {
		result.Error = err.Error()
	}
	c.JSON(statusCode, result)
}

// GinBadRequest sends a 400 Bad Request response.
func GinBadRequest(c *gin.Context, err error, message ...string) {
	msg := "Bad request"
	if len(message) > 0 {
		msg = message[0]
	}
	GinError(c, http.StatusBadRequest, err, http.StatusBadRequest, msg)
}

// GinNotFound sends a 404 Not Found response.
func GinNotFound(c *gin.Context, err error, message ...string) {
	msg := "Resource not found"
	if len(message) > 0 {
		msg = message[0]
	}
	GinError(c, http.StatusNotFound, err, http.StatusNotFound, msg)
}

// GinInternalError sends a 500 Internal Server Error response.
func GinInternalError(c *gin.Context, err error, message ...string) {
	msg := "Internal server error"
	if len(message) > 0 {
		msg = message[0]
	}
	GinError(c, http.StatusInternalServerError, err, http.StatusInternalServerError, msg)
}
