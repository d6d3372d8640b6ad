package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"smile-preview-backend/internal/geo"
	"smile-preview-backend/internal/middleware"
	"smile-preview-backend/internal/models"
	"smile-preview-backend/internal/session"
)

type VisitorHandler struct {
	locator *geo.Locator
	store   session.Store
}

func NewVisitorHandler(locator *geo.Locator, store session.Store) *VisitorHandler {
	return &VisitorHandler{
		locator: locator,
		store:   store,
	}
}

// GetGeo godoc
// @Summary     Visitor country
// @Description Resolves the caller's country from its IP and returns the matching dial code. Falls back to US/+1 on any lookup problem.
// @Tags        visitor
// @Produce     json
// @Success     200 {object} models.GeoResponse
// @Router      /geo [get]
func (h *VisitorHandler) GetGeo(c *gin.Context) {
	info := h.locator.Locate(c.Request.Context(), middleware.GetVisitorID(c), c.ClientIP())
	c.JSON(http.StatusOK, models.GeoResponse{
		CountryCode: info.CountryCode,
		DialCode:    info.DialCode,
	})
}

// GetVisitor godoc
// @Summary     Visitor state
// @Description Returns what is remembered about the visitor identified by the visitor_id cookie
// @Tags        visitor
// @Produce     json
// @Success     200 {object} models.VisitorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /visitor [get]
func (h *VisitorHandler) GetVisitor(c *gin.Context) {
	visitorID := middleware.GetVisitorID(c)
	st, err := h.store.Load(c.Request.Context(), visitorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load visitor",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.VisitorResponse{
		VisitorID:     visitorID,
		FormSubmitted: st.FormSubmitted,
		CountryCode:   st.CountryCode,
		DialCode:      st.DialCode,
	})
}
