package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
)

// RestHostHandler handles host onboarding and payout settings.
type RestHostHandler struct {
	userService services.IUserService
	storage     storage.IS3Storage
}

// NewRestHostHandler creates a new RestHostHandler.
func NewRestHostHandler(userService services.IUserService, storage storage.IS3Storage) *RestHostHandler {
	return &RestHostHandler{userService: userService, storage: storage}
}

type onboardingRequest struct {
	PropertyType   string `json:"property_type" binding:"required"`
	HostingGoal    string `json:"hosting_goal"`
	PhotoKey       string `json:"photo_key"`
	AgreedPolicies bool   `json:"agreed_policies"`
}

// CompleteOnboarding handles POST /v1/host/onboarding and grants the host role.
func (h *RestHostHandler) CompleteOnboarding(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property_type is required"})
		return
	}

	user, err := h.userService.CompleteHostOnboarding(c.Request.Context(), userID, services.OnboardingInput{
		PropertyType:   req.PropertyType,
		HostingGoal:    req.HostingGoal,
		PhotoKey:       req.PhotoKey,
		AgreedPolicies: req.AgreedPolicies,
	})
	if err != nil {
		respondError(c, err, "Failed to complete onboarding")
		return
	}
	c.JSON(http.StatusOK, user)
}

type payoutEmailRequest struct {
	PaypalEmail string `json:"paypal_email" binding:"required"`
}

// SetPayoutEmail handles PUT /v1/host/payout-email
func (h *RestHostHandler) SetPayoutEmail(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req payoutEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paypal_email is required"})
		return
	}
	if err := h.userService.SetPaypalEmail(c.Request.Context(), userID, req.PaypalEmail); err != nil {
		respondError(c, err, "Failed to update payout email")
		return
	}
	c.Status(http.StatusNoContent)
}

// PresignOnboardingPhoto handles POST /v1/host/onboarding/photo-url
func (h *RestHostHandler) PresignOnboardingPhoto(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_type is required"})
		return
	}
	upload, err := h.storage.PresignOnboardingPhoto(c.Request.Context(), userID.String(), req.ContentType)
	if err != nil {
		respondError(c, err, "Failed to create upload URL")
		return
	}
	c.JSON(http.StatusOK, upload)
}
