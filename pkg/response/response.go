package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/internal/apperr"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Body is the API response envelope, the same shape the store API uses.
type Body struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Status: statusSuccess, Data: data})
}

// OKMessage sends a 200 JSON response with a confirmation message.
func OKMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Status: statusSuccess, Message: msg, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Status: statusSuccess, Data: data})
}

// Accepted sends 202 for work handed to the worker.
func Accepted(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Status: statusSuccess, Message: msg, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Status: statusError, Message: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Status: statusError, Message: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Status: statusError, Message: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Status: statusError, Message: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Status: statusError, Message: err})
}

// Error maps err through apperr and sends it. Validation failures carry the
// offending fields as data.
func Error(c *gin.Context, err error) {
	body := Body{Status: statusError, Message: apperr.PublicMessage(err)}
	if ve, ok := apperr.AsValidation(err); ok && len(ve.Fields) > 0 {
		body.Data = gin.H{"fields": ve.Fields}
	}
	c.JSON(apperr.HTTPStatus(err), body)
}
