package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// Favorite marks a listing saved by a user. One per (user, listing).
type Favorite struct {
	Base      `bson:",inline"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// Review is a guest's rating of a listing after a stay.
type Review struct {
	Base      `bson:",inline"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	GuestID   utils.SixID `bson:"guest_id" json:"guest_id"`
	BookingID utils.SixID `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	Rating    int         `bson:"rating" json:"rating"` // 1..5
	Comment   string      `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// ListingRating is the aggregate rating of a listing.
type ListingRating struct {
	ListingID utils.SixID `json:"listing_id"`
	Average   float64     `json:"average"`
	Count     int         `json:"count"`
}
