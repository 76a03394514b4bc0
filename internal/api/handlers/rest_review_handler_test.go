package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voyago/backend/internal/api/handlers"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

func TestRestReviewHandler_AddReview(t *testing.T) {
	reviews := new(MockReviewService)
	handler := handlers.NewRestReviewHandler(reviews)
	guest := testUser(models.RoleGuest)
	r := newTestRouter(guest)
	r.POST("/v1/reviews", handler.AddReview)

	completed := utils.NewSixID()
	pending := utils.NewSixID()
	reviews.On("AddReview", mock.Anything, guest.ID, completed, 5, "Lovely").
		Return(&models.Review{Base: models.Base{ID: utils.NewSixID()}, Rating: 5}, nil)
	reviews.On("AddReview", mock.Anything, guest.ID, completed, 9, "").Return(nil, services.ErrInvalidRating)
	reviews.On("AddReview", mock.Anything, guest.ID, pending, 4, "").Return(nil, services.ErrBookingState)

	assert.Equal(t, http.StatusCreated, doJSON(r, "POST", "/v1/reviews", map[string]interface{}{"booking_id": completed.String(), "rating": 5, "comment": "Lovely"}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/reviews", map[string]interface{}{"booking_id": completed.String(), "rating": 9}).Code)
	assert.Equal(t, http.StatusConflict, doJSON(r, "POST", "/v1/reviews", map[string]interface{}{"booking_id": pending.String(), "rating": 4}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, "POST", "/v1/reviews", map[string]interface{}{"rating": 4}).Code)
	reviews.AssertExpectations(t)
}
