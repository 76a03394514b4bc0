package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// IReviewService manages listing reviews.
type IReviewService interface {
	AddReview(ctx context.Context, guestID, bookingID utils.SixID, rating int, comment string) (*models.Review, error)
	GetListingRating(ctx context.Context, listingID utils.SixID) models.ListingRating
}

type reviewService struct {
	db         *mongo.Database
	bookingSvc IBookingService
	log        *zap.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(database *mongo.Database, bookingSvc IBookingService, log *zap.Logger) IReviewService {
	return &reviewService{db: database, bookingSvc: bookingSvc, log: log}
}

// AddReview lets the guest of a completed booking rate the listing.
func (s *reviewService) AddReview(ctx context.Context, guestID, bookingID utils.SixID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	booking, err := s.bookingSvc.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.GuestID != guestID {
		return nil, ErrNotParticipant
	}
	if booking.Status != models.BookingStatusCompleted {
		return nil, ErrBookingState
	}

	review, err := db.InsertOne(ctx, s.db.Collection(db.ReviewsCollection), &models.Review{
		ListingID: booking.ListingID,
		GuestID:   guestID,
		BookingID: bookingID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store review: %w", err)
	}
	return review, nil
}

// GetListingRating averages the listing's reviews. Any failure yields a
// zero rating.
func (s *reviewService) GetListingRating(ctx context.Context, listingID utils.SixID) models.ListingRating {
	out := models.ListingRating{ListingID: listingID}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"listing_id": listingID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.db.Collection(db.ReviewsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Warn("Rating unavailable", zap.String("listing_id", listingID.String()), zap.Error(err))
		return out
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil || len(rows) == 0 {
		return out
	}
	out.Average = math.Round(rows[0].Average*10) / 10
	out.Count = rows[0].Count
	return out
}
