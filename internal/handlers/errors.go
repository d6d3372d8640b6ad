package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"smile-preview-backend/internal/camera"
	"smile-preview-backend/internal/leads"
	"smile-preview-backend/internal/models"
	"smile-preview-backend/internal/photo"
	"smile-preview-backend/internal/wizard"
)

// respondError maps funnel errors onto status codes. Anything unexpected is
// a 500 with the message hidden.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *leads.ValidationError
		decodeErr     *photo.DecodeError
		canvasErr     *photo.CanvasError
	)

	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
	case errors.Is(err, wizard.ErrNoPhoto):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no photo", Message: err.Error()})
	case errors.Is(err, wizard.ErrGateLocked):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "result locked", Message: err.Error()})
	case errors.Is(err, wizard.ErrInvalidTransition),
		errors.Is(err, wizard.ErrCaptureActive),
		errors.Is(err, wizard.ErrNoCapture),
		errors.Is(err, wizard.ErrLeadPending):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "invalid step", Message: err.Error()})
	case errors.Is(err, wizard.ErrUnknownOption):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown option", Message: err.Error()})
	case errors.Is(err, camera.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "camera unavailable", Message: err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "validation failed",
			Message: validationErr.Error(),
			Fields:  validationErr.Fields,
		})
	case errors.As(err, &decodeErr):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "unreadable image", Message: decodeErr.Error()})
	case errors.As(err, &canvasErr):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "image processing failed", Message: canvasErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}
