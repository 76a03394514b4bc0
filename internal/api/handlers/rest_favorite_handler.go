package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/services"
)

// RestFavoriteHandler manages a user's saved listings.
type RestFavoriteHandler struct {
	favoriteService services.IFavoriteService
}

// NewRestFavoriteHandler creates a new RestFavoriteHandler.
func NewRestFavoriteHandler(favoriteService services.IFavoriteService) *RestFavoriteHandler {
	return &RestFavoriteHandler{favoriteService: favoriteService}
}

// ListFavorites handles GET /v1/favorites
func (h *RestFavoriteHandler) ListFavorites(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	listings, err := h.favoriteService.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to list favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// AddFavorite handles PUT /v1/favorites/:listingId. Adding twice is a no-op.
func (h *RestFavoriteHandler) AddFavorite(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "listingId", "listing")
	if !ok {
		return
	}
	if err := h.favoriteService.AddFavorite(c.Request.Context(), userID, listingID); err != nil {
		respondError(c, err, "Failed to add favorite")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveFavorite handles DELETE /v1/favorites/:listingId
func (h *RestFavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "listingId", "listing")
	if !ok {
		return
	}
	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), userID, listingID); err != nil {
		respondError(c, err, "Failed to remove favorite")
		return
	}
	c.Status(http.StatusNoContent)
}
