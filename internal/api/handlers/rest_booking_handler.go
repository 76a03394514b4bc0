package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"voyago/backend/internal/logger"
	"voyago/backend/internal/services"
	"voyago/backend/internal/tasks"
	"voyago/backend/internal/utils"
)

// RestBookingHandler handles REST requests for bookings.
type RestBookingHandler struct {
	bookingService services.IBookingService
	taskClient     IAsynqClient
}

// NewRestBookingHandler creates a new RestBookingHandler.
func NewRestBookingHandler(bookingService services.IBookingService, taskClient IAsynqClient) *RestBookingHandler {
	return &RestBookingHandler{bookingService: bookingService, taskClient: taskClient}
}

type createBookingRequest struct {
	ListingID string     `json:"listing_id" binding:"required"`
	CheckIn   *time.Time `json:"check_in"`
	CheckOut  *time.Time `json:"check_out"`
}

// CreateBooking handles POST /v1/bookings
func (h *RestBookingHandler) CreateBooking(c *gin.Context) {
	guestID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}
	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}
	if req.CheckIn != nil && req.CheckOut != nil && !req.CheckOut.After(*req.CheckIn) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_out must be after check_in"})
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), guestID, listingID, req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, err, "Failed to create booking")
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings handles GET /v1/bookings?role=guest|host
func (h *RestBookingHandler) ListBookings(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	role := services.BookingRole(c.Query("role"))
	switch role {
	case services.BookingRoleAny, services.BookingRoleGuest, services.BookingRoleHost:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be guest or host"})
		return
	}

	bookings, err := h.bookingService.ListBookingsForUser(c.Request.Context(), userID, role)
	if err != nil {
		respondError(c, err, "Failed to list bookings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bookings})
}

// ConfirmBooking handles POST /v1/host/bookings/:id/confirm. A confirmed
// booking counts as history, so the guest's recommendations are refreshed.
func (h *RestBookingHandler) ConfirmBooking(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id", "booking")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.bookingService.ConfirmBooking(ctx, bookingID, hostID); err != nil {
		respondError(c, err, "Failed to confirm booking")
		return
	}
	booking, err := h.bookingService.FindBookingByID(ctx, bookingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve booking")
		return
	}
	h.refreshRecommendations(c, booking.GuestID)
	c.JSON(http.StatusOK, booking)
}

// CompleteBooking handles POST /v1/host/bookings/:id/complete. The guest's
// recommendations are refreshed in the background.
func (h *RestBookingHandler) CompleteBooking(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id", "booking")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := h.bookingService.FindBookingByID(ctx, bookingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve booking")
		return
	}
	if existing.HostID != hostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the booking's host can complete it"})
		return
	}

	booking, err := h.bookingService.CompleteBooking(ctx, bookingID)
	if err != nil && booking == nil {
		respondError(c, err, "Failed to complete booking")
		return
	}
	if err != nil {
		// The status change stuck; only the earning is missing.
		logger.FromGin(c).Error("Booking completed without earning", zap.String("booking_id", bookingID.String()), zap.Error(err))
	}

	h.refreshRecommendations(c, booking.GuestID)
	c.JSON(http.StatusOK, booking)
}

// refreshRecommendations drops and recomputes the guest's cached
// recommendations in the background. Failing to enqueue only logs.
func (h *RestBookingHandler) refreshRecommendations(c *gin.Context, guestID utils.SixID) {
	payload, _ := json.Marshal(tasks.RecommendationRefreshPayload{GuestID: guestID.String()})
	task := asynq.NewTask(tasks.TypeRecommendationRefresh, payload)
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue(tasks.QueueDefault)); err != nil {
		logger.FromGin(c).Warn("Failed to enqueue recommendation refresh", zap.String("guest_id", guestID.String()), zap.Error(err))
	}
}
