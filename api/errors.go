package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/univision/camera-relay/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

// AbortWithError - aborts the request with a json error body
func AbortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, errorResponse{Error: message})
}

// abortWithModelError maps domain errors to status codes
func abortWithModelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrCameraNotFound):
		AbortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrMissingInputParameters),
		errors.Is(err, models.ErrInvalidRotation),
		errors.Is(err, models.ErrInvalidPort),
		errors.Is(err, models.ErrNoRebroadcastTarget),
		errors.Is(err, models.ErrInvalidRebroadcast):
		AbortWithError(c, http.StatusBadRequest, err.Error())
	default:
		AbortWithError(c, http.StatusInternalServerError, err.Error())
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, http.StatusBadRequest, "invalid camera id")
		return 0, false
	}
	return id, true
}
