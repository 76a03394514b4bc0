package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusDraft    ListingStatus = "draft"
	ListingStatusInactive ListingStatus = "inactive"
)

// Listing is a bookable place, service or activity offered by a host.
type Listing struct {
	ID           utils.SixID   `bson:"_id,omitempty" json:"id,omitempty"`
	HostID       utils.SixID   `bson:"host_id" json:"host_id"`
	Title        string        `bson:"title" json:"title"`
	Description  string        `bson:"description,omitempty" json:"description,omitempty"`
	Category     string        `bson:"category" json:"category"`
	Subcategory  string        `bson:"subcategory,omitempty" json:"subcategory,omitempty"`
	PlaceType    string        `bson:"place_type,omitempty" json:"place_type,omitempty"`
	ServiceType  string        `bson:"service_type,omitempty" json:"service_type,omitempty"`
	ActivityType string        `bson:"activity_type,omitempty" json:"activity_type,omitempty"`
	Price        float64       `bson:"price" json:"price"`
	Location     string        `bson:"location" json:"location"` // free text, comma separated
	Amenities    []string      `bson:"amenities,omitempty" json:"amenities,omitempty"`
	Services     []string      `bson:"services,omitempty" json:"services,omitempty"`
	Images       []string      `bson:"images,omitempty" json:"images,omitempty"` // S3 keys
	Status       ListingStatus `bson:"status" json:"status"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updated_at"`
	CreatedAt    time.Time     `bson:"created_at" json:"created_at"`
}

// GenID assigns a fresh random ID.
func (l *Listing) GenID() {
	l.ID = utils.NewSixID()
}
