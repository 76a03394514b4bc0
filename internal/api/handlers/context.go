package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"voyago/backend/internal/api/middleware"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
	"voyago/backend/internal/utils"
)

// currentUserID returns the caller set by middleware.AuthMiddleware.
func currentUserID(c *gin.Context) (utils.SixID, bool) {
	v, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return utils.SixID{}, false
	}
	id, ok := v.(utils.SixID)
	return id, ok
}

// currentUser returns the stored user set by middleware.UserMiddleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(middleware.ContextKeyUser)
	if !exists {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// requireUserID aborts with 401 when the request is unauthenticated.
func requireUserID(c *gin.Context) (utils.SixID, bool) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return id, ok
}

// parseIDParam reads a SixID path parameter, answering 400 when malformed.
func parseIDParam(c *gin.Context, name, label string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID format"})
		return utils.SixID{}, false
	}
	return id, true
}

// parseIDList reads a comma separated list of SixIDs. Empty input gives nil.
func parseIDList(raw string) ([]utils.SixID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []utils.SixID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := utils.ParseSixID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// respondError maps service errors to a status and a generic body.
// Anything unrecognised is attached to the context and reported as 500.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrWithdrawalNotPending),
		errors.Is(err, services.ErrDuplicateCapture),
		errors.Is(err, services.ErrBookingState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrPaymentNotCaptured),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrPoliciesNotAccepted),
		errors.Is(err, services.ErrListingNotBookable),
		errors.Is(err, storage.ErrUnsupportedContentType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
