package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking links a guest, a host and a listing. Counterparty names and the
// listing title are denormalised at creation time.
type Booking struct {
	Base         `bson:",inline"`
	GuestID      utils.SixID   `bson:"guest_id" json:"guest_id"`
	HostID       utils.SixID   `bson:"host_id" json:"host_id"`
	ListingID    utils.SixID   `bson:"listing_id" json:"listing_id"`
	Status       BookingStatus `bson:"status" json:"status"`
	CheckIn      *time.Time    `bson:"check_in,omitempty" json:"check_in,omitempty"`
	CheckOut     *time.Time    `bson:"check_out,omitempty" json:"check_out,omitempty"`
	TotalPrice   float64       `bson:"total_price" json:"total_price"`
	GuestName    string        `bson:"guest_name,omitempty" json:"guest_name,omitempty"`
	HostName     string        `bson:"host_name,omitempty" json:"host_name,omitempty"`
	ListingTitle string        `bson:"listing_title,omitempty" json:"listing_title,omitempty"`
	CreatedAt    time.Time     `bson:"created_at" json:"created_at"`
}

// Counterparty returns the other participant of the booking from userID's side.
// ok is false when userID is neither guest nor host.
func (b *Booking) Counterparty(userID utils.SixID) (other utils.SixID, otherName string, ok bool) {
	switch userID {
	case b.GuestID:
		return b.HostID, b.HostName, true
	case b.HostID:
		return b.GuestID, b.GuestName, true
	}
	return utils.SixID{}, "", false
}
