package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"revintel/internal/apperr"
)

type apiResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    "ok",
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

// Fail maps the engine's error taxonomy onto HTTP statuses and always emits
// the stable machine code alongside the message.
func Fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeDataUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeComputation:
		status = http.StatusInternalServerError
	default:
		code = apperr.CodeComputation
	}
	c.JSON(status, apiResponse{
		Code:    string(code),
		Message: err.Error(),
	})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, apiResponse{
		Code:    string(apperr.CodeValidation),
		Message: message,
	})
}
