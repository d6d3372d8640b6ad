package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"smile-preview-backend/internal/middleware"
	"smile-preview-backend/internal/models"
	"smile-preview-backend/internal/wizard"
)

const maxPhotoBytes = 32 << 20

type SessionsHandler struct {
	manager       *wizard.Manager
	logger        zerolog.Logger
	maxPhotoBytes int64
}

func NewSessionsHandler(manager *wizard.Manager, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		manager:       manager,
		logger:        logger.With().Str("component", "sessions_handler").Logger(),
		maxPhotoBytes: maxPhotoBytes,
	}
}

// WithMaxPhotoBytes overrides the request size limit for photo uploads.
func (h *SessionsHandler) WithMaxPhotoBytes(n int64) *SessionsHandler {
	h.maxPhotoBytes = n
	return h
}

// Create godoc
// @Summary     Start a funnel session
// @Description Starts a wizard session (style, shade, photo, result) or a quick session that starts at the photo step with a preset natural style.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       request body models.CreateSessionRequest false "Flow selection"
// @Success     201 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /sessions [post]
func (h *SessionsHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid request body",
				Message: err.Error(),
			})
			return
		}
	}

	flow, ok := wizard.ParseFlow(req.Flow)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid flow",
			Message: fmt.Sprintf("flow must be %q or %q", wizard.FlowWizard, wizard.FlowQuick),
		})
		return
	}

	view := h.manager.Create(c.Request.Context(), middleware.GetVisitorID(c), flow)
	c.JSON(http.StatusCreated, toSessionResponse(view))
}

// Get godoc
// @Summary     Get session
// @Description Returns the session step, selection and job status. after_url is only present once the lead gate is open.
// @Tags        sessions
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id} [get]
func (h *SessionsHandler) Get(c *gin.Context) {
	view, err := h.manager.Get(c.Param("session_id"))
	h.respond(c, view, err)
}

// SelectStyle godoc
// @Summary     Choose tooth style
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Param       request body models.SelectStyleRequest true "Style"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/style [post]
func (h *SessionsHandler) SelectStyle(c *gin.Context) {
	var req models.SelectStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	view, err := h.manager.SelectStyle(c.Param("session_id"), req.StyleID)
	h.respond(c, view, err)
}

// SelectShade godoc
// @Summary     Choose tooth shade
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Param       request body models.SelectShadeRequest true "Shade"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/shade [post]
func (h *SessionsHandler) SelectShade(c *gin.Context) {
	var req models.SelectShadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	view, err := h.manager.SelectShade(c.Param("session_id"), req.ShadeID)
	h.respond(c, view, err)
}

// UploadPhoto godoc
// @Summary     Upload a face photo
// @Description Decodes the photo, fits it centered onto a white square canvas and stores it as the session's before image.
// @Tags        sessions
// @Accept      multipart/form-data
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Param       photo formData file true "Photo (JPEG, PNG, GIF or WebP)"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/photo [post]
func (h *SessionsHandler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhotoBytes)

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   "photo too large",
				Message: fmt.Sprintf("uploads are limited to %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing photo",
			Message: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to open file",
			Message: err.Error(),
		})
		return
	}
	defer file.Close()

	view, err := h.manager.UploadPhoto(c.Request.Context(), c.Param("session_id"), file)
	if err != nil {
		h.logger.Info().Err(err).Str("session_id", c.Param("session_id")).Str("filename", fileHeader.Filename).Msg("photo rejected")
	}
	h.respond(c, view, err)
}

// StartCamera godoc
// @Summary     Open the kiosk camera
// @Description Opens the front camera and waits for the operator to confirm or cancel the shot.
// @Tags        camera
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     202 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/camera [post]
func (h *SessionsHandler) StartCamera(c *gin.Context) {
	view, err := h.manager.StartCapture(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toSessionResponse(view))
}

// ConfirmCamera godoc
// @Summary     Take the camera shot
// @Tags        camera
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/camera/confirm [post]
func (h *SessionsHandler) ConfirmCamera(c *gin.Context) {
	view, err := h.manager.ConfirmCapture(c.Param("session_id"))
	h.respond(c, view, err)
}

// CancelCamera godoc
// @Summary     Abort the camera shot
// @Tags        camera
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/camera/cancel [post]
func (h *SessionsHandler) CancelCamera(c *gin.Context) {
	view, err := h.manager.CancelCapture(c.Param("session_id"))
	h.respond(c, view, err)
}

// Generate godoc
// @Summary     Start generation
// @Description Starts the smile edit when style, shade and photo are present. Calling it again while a job exists changes nothing.
// @Tags        sessions
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/generate [post]
func (h *SessionsHandler) Generate(c *gin.Context) {
	view, err := h.manager.Generate(c.Param("session_id"))
	h.respond(c, view, err)
}

// SubmitLead godoc
// @Summary     Submit the lead form
// @Description Validates the contact details, records the lead and unlocks the result image.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Param       request body models.LeadRequest true "Contact details"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/lead [post]
func (h *SessionsHandler) SubmitLead(c *gin.Context) {
	var req models.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	view, err := h.manager.SubmitLead(c.Request.Context(), c.Param("session_id"), wizard.LeadForm{
		Name:          req.Name,
		Phone:         req.Phone,
		CountryCode:   req.CountryCode,
		Email:         req.Email,
		FreeTreatment: req.FreeTreatment,
	})
	h.respond(c, view, err)
}

// Reset godoc
// @Summary     Start over
// @Description Drops the photo, selection and any running job and returns to the first step of the flow.
// @Tags        sessions
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} models.SessionResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/reset [post]
func (h *SessionsHandler) Reset(c *gin.Context) {
	view, err := h.manager.Reset(c.Param("session_id"))
	h.respond(c, view, err)
}

// BeforeImage godoc
// @Summary     Normalized photo
// @Description Serves the square before image used by the comparison slider.
// @Tags        sessions
// @Produce     png
// @Param       session_id path string true "Session ID"
// @Success     200 {file} binary
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/before.png [get]
func (h *SessionsHandler) BeforeImage(c *gin.Context) {
	asset, err := h.manager.BeforeImage(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, asset.ContentType, asset.Data)
}

// AfterImage godoc
// @Summary     Result image
// @Description Redirects to the generated image once the lead gate is open.
// @Tags        sessions
// @Param       session_id path string true "Session ID"
// @Success     302
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/after [get]
func (h *SessionsHandler) AfterImage(c *gin.Context) {
	url, err := h.manager.AfterURL(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *SessionsHandler) respond(c *gin.Context, view wizard.View, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

func toSessionResponse(v wizard.View) models.SessionResponse {
	resp := models.SessionResponse{
		SessionID: v.ID,
		Flow:      string(v.Flow),
		Step:      int(v.Step),
		State:     v.Step.String(),
		Style:     v.Selection.StyleID,
		Shade:     v.Selection.ShadeID,
		Capturing: v.Capturing,
		AfterURL:  v.AfterURL,
		Gated:     v.Gated,
		Fallback:  v.UsedFallback,
		LastError: v.LastError,
	}
	if v.HasPhoto {
		resp.BeforeURL = "/api/v1/sessions/" + v.ID + "/before.png"
	}
	if v.Job != nil {
		resp.Job = &models.JobResponse{
			ID:          v.Job.ID,
			Status:      string(v.Job.Status),
			SubmittedAt: v.Job.SubmittedAt,
			FinishedAt:  v.Job.FinishedAt,
			Error:       v.Job.Error,
		}
	}
	return resp
}
