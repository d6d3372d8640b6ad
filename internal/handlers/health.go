package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"smile-preview-backend/internal/catalog"
	"smile-preview-backend/internal/models"
)

// HealthHandler godoc
// @Summary     Health check
// @Description Returns the health status of the API
// @Tags        health
// @Accept      json
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func HealthHandler(c *gin.Context) {
	response := models.HealthResponse{
		Status: "ok",
	}
	c.JSON(http.StatusOK, response)
}

// CatalogHandler godoc
// @Summary     Funnel catalog
// @Description Returns the tooth styles, shades with their hex colors, and the dial codes offered by the lead form
// @Tags        catalog
// @Produce     json
// @Success     200 {object} models.CatalogResponse
// @Router      /catalog [get]
func CatalogHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.CatalogResponse{
		Styles:    catalog.Styles(),
		Shades:    catalog.Shades(),
		DialCodes: catalog.DialCodes(),
	})
}
