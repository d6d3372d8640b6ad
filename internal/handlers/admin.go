package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"smile-preview-backend/internal/leads"
	"smile-preview-backend/internal/middleware"
	"smile-preview-backend/internal/models"
)

// LeadAdmin is the admin view of the lead store.
type LeadAdmin interface {
	List(ctx context.Context) ([]leads.Submission, error)
	Clear(ctx context.Context) error
}

type AdminCredentials struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

type AdminHandler struct {
	leads  LeadAdmin
	creds  AdminCredentials
	logger zerolog.Logger
	now    func() time.Time
}

func NewAdminHandler(leads LeadAdmin, creds AdminCredentials, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		leads:  leads,
		creds:  creds,
		logger: logger.With().Str("component", "admin_handler").Logger(),
		now:    time.Now,
	}
}

// Login godoc
// @Summary     Admin login
// @Description Exchanges the admin username and password for a bearer token.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Param       request body models.AdminLoginRequest true "Credentials"
// @Success     200 {object} models.AdminLoginResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	if h.creds.PasswordHash == "" || h.creds.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "admin login is not configured"})
		return
	}

	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.creds.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.creds.PasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		h.logger.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("admin login rejected")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, expiresAt, err := middleware.IssueAdminToken(h.creds.JWTSecret, req.Username, h.creds.TokenTTL, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to issue token", Message: err.Error()})
		return
	}

	h.logger.Info().Str("username", req.Username).Msg("admin logged in")
	c.JSON(http.StatusOK, models.AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// ListLeads godoc
// @Summary     List leads
// @Description Returns all lead submissions, newest first.
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.LeadListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/leads [get]
func (h *AdminHandler) ListLeads(c *gin.Context) {
	subs, err := h.leads.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list leads", Message: err.Error()})
		return
	}
	if subs == nil {
		subs = []leads.Submission{}
	}
	c.JSON(http.StatusOK, models.LeadListResponse{Leads: subs, Count: len(subs)})
}

// ExportLeads godoc
// @Summary     Export leads
// @Description Downloads all lead submissions as CSV or JSON.
// @Tags        admin
// @Produce     text/csv
// @Produce     json
// @Security    Bearer
// @Param       format query string false "csv (default) or json"
// @Success     200 {file} binary
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/leads/export [get]
func (h *AdminHandler) ExportLeads(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid format", Message: "format must be csv or json"})
		return
	}

	subs, err := h.leads.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list leads", Message: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+leads.ExportFileName(format, h.now())+`"`)
	if format == "json" {
		c.Header("Content-Type", "application/json")
		err = leads.WriteJSON(c.Writer, subs)
	} else {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		err = leads.WriteCSV(c.Writer, subs)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("format", format).Msg("lead export failed")
	}
}

// ClearLeads godoc
// @Summary     Delete all leads
// @Tags        admin
// @Security    Bearer
// @Success     204
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/leads [delete]
func (h *AdminHandler) ClearLeads(c *gin.Context) {
	if err := h.leads.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to clear leads", Message: err.Error()})
		return
	}
	h.logger.Warn().Str("admin", c.GetString(middleware.AdminKey)).Msg("leads cleared")
	c.Status(http.StatusNoContent)
}
