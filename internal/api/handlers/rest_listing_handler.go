package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
	reviewService  services.IReviewService
	storage        storage.IS3Storage
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService, reviewService services.IReviewService, storage storage.IS3Storage) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
		reviewService:  reviewService,
		storage:        storage,
	}
}

// SearchListings handles GET /v1/listings
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	category := c.Query("category")
	cursor := c.Query("cursor")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	listings, nextCursor, err := h.listingService.SearchActiveListings(c.Request.Context(), category, limit, cursor)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        listings,
		"next_cursor": nextCursor,
	})
}

// GetListingByID handles GET /v1/listings/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, ok := parseIDParam(c, "id", "listing")
	if !ok {
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetListingRating handles GET /v1/listings/:id/rating. A listing without
// reviews rates 0.
func (h *RestListingHandler) GetListingRating(c *gin.Context) {
	listingID, ok := parseIDParam(c, "id", "listing")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.reviewService.GetListingRating(c.Request.Context(), listingID))
}

type listingRequest struct {
	Title        string   `json:"title" binding:"required,max=200"`
	Description  string   `json:"description" binding:"max=5000"`
	Category     string   `json:"category" binding:"required"`
	Subcategory  string   `json:"subcategory"`
	PlaceType    string   `json:"place_type"`
	ServiceType  string   `json:"service_type"`
	ActivityType string   `json:"activity_type"`
	Price        float64  `json:"price" binding:"gte=0"`
	Location     string   `json:"location"`
	Amenities    []string `json:"amenities"`
	Services     []string `json:"services"`
	Images       []string `json:"images"`
	Publish      bool     `json:"publish"`
}

// CreateListing handles POST /v1/host/listings. Listings start as drafts
// unless publish is set.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing: " + err.Error()})
		return
	}

	status := models.ListingStatusDraft
	if req.Publish {
		status = models.ListingStatusActive
	}
	listing, err := h.listingService.CreateListing(c.Request.Context(), hostID, services.ListingInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		PlaceType:    req.PlaceType,
		ServiceType:  req.ServiceType,
		ActivityType: req.ActivityType,
		Price:        req.Price,
		Location:     req.Location,
		Amenities:    req.Amenities,
		Services:     req.Services,
		Images:       req.Images,
	}, status)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

type listingStatusRequest struct {
	Status models.ListingStatus `json:"status" binding:"required,oneof=active draft inactive"`
}

// SetListingStatus handles PUT /v1/host/listings/:id/status
func (h *RestListingHandler) SetListingStatus(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id", "listing")
	if !ok {
		return
	}
	var req listingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of active, draft, inactive"})
		return
	}

	if err := h.listingService.SetListingStatus(c.Request.Context(), listingID, hostID, req.Status); err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	c.Status(http.StatusNoContent)
}

type uploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// PresignListingImage handles POST /v1/host/listings/:id/image-url
func (h *RestListingHandler) PresignListingImage(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id", "listing")
	if !ok {
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_type is required"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	if listing.HostID != hostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the listing's host can upload images"})
		return
	}

	upload, err := h.storage.PresignListingImage(c.Request.Context(), hostID.String(), listingID.String(), req.ContentType)
	if err != nil {
		respondError(c, err, "Failed to create upload URL")
		return
	}
	c.JSON(http.StatusOK, upload)
}
