package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/services"
)

// RestConfigHandler handles requests for the /config REST endpoint.
type RestConfigHandler struct {
	configService services.IConfigService
}

// NewRestConfigHandler creates a new RestConfigHandler.
func NewRestConfigHandler(configService services.IConfigService) *RestConfigHandler {
	return &RestConfigHandler{configService: configService}
}

// GetPublicConfig returns the publicly accessible configuration parameters.
// Handles GET /v1/config
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	publicConfig, err := h.configService.GetAllPublic(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve configuration"})
		return
	}
	c.JSON(http.StatusOK, publicConfig)
}

type setConfigRequest struct {
	Key    string      `json:"key" binding:"required"`
	Value  interface{} `json:"value"`
	Public bool        `json:"public"`
}

// SetConfigValue stores a config entry and broadcasts the reload.
// Handles PUT /v1/admin/config
func (h *RestConfigHandler) SetConfigValue(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.configService.SetConfigValue(c.Request.Context(), req.Key, req.Value, req.Public); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store configuration"})
		return
	}
	c.Status(http.StatusNoContent)
}
