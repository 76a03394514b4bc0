package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

// RestReviewHandler accepts guest reviews of completed stays.
type RestReviewHandler struct {
	reviewService services.IReviewService
}

// NewRestReviewHandler creates a new RestReviewHandler.
func NewRestReviewHandler(reviewService services.IReviewService) *RestReviewHandler {
	return &RestReviewHandler{reviewService: reviewService}
}

type reviewRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment" binding:"max=2000"`
}

// AddReview handles POST /v1/reviews
func (h *RestReviewHandler) AddReview(c *gin.Context) {
	guestID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_id is required"})
		return
	}
	bookingID, err := utils.ParseSixID(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID format"})
		return
	}

	review, err := h.reviewService.AddReview(c.Request.Context(), guestID, bookingID, req.Rating, req.Comment)
	if err != nil {
		respondError(c, err, "Failed to add review")
		return
	}
	c.JSON(http.StatusCreated, review)
}
