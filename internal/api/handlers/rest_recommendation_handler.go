package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/services"
)

// RestRecommendationHandler serves personalised listing recommendations.
type RestRecommendationHandler struct {
	recommendationService services.IRecommendationService
}

// NewRestRecommendationHandler creates a new RestRecommendationHandler.
func NewRestRecommendationHandler(recommendationService services.IRecommendationService) *RestRecommendationHandler {
	return &RestRecommendationHandler{recommendationService: recommendationService}
}

// GetRecommendations handles GET /v1/recommendations
func (h *RestRecommendationHandler) GetRecommendations(c *gin.Context) {
	guestID, ok := requireUserID(c)
	if !ok {
		return
	}
	recs, err := h.recommendationService.ForGuest(c.Request.Context(), guestID)
	if err != nil {
		respondError(c, err, "Failed to compute recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs})
}
