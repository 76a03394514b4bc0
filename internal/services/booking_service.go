package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// BookingRole narrows which side of a booking a user is viewed from.
// The empty role means both sides.
type BookingRole string

const (
	BookingRoleAny   BookingRole = ""
	BookingRoleGuest BookingRole = "guest"
	BookingRoleHost  BookingRole = "host"
)

var (
	// ErrBookingState is returned when a booking is not in a state that allows the transition.
	ErrBookingState = errors.New("booking is not in a valid state for this operation")
	// ErrListingNotBookable covers inactive listings and hosts booking their own.
	ErrListingNotBookable = errors.New("listing cannot be booked by this user")
)

// IBookingService defines booking reads and the few transitions the backend owns.
type IBookingService interface {
	CreateBooking(ctx context.Context, guestID, listingID utils.SixID, checkIn, checkOut *time.Time) (*models.Booking, error)
	FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error)
	ListBookingsForUser(ctx context.Context, userID utils.SixID, role BookingRole) ([]models.Booking, error)
	ListQualifyingBookings(ctx context.Context, guestID utils.SixID) ([]models.Booking, error)
	ListCompletableBookings(ctx context.Context, checkedOutBefore time.Time, limit int) ([]models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID, hostID utils.SixID) error
	CompleteBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, error)
}

type bookingService struct {
	db         *mongo.Database
	listingSvc IListingService
	userSvc    IUserService
	walletSvc  IWalletService
	log        *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(database *mongo.Database, listingSvc IListingService, userSvc IUserService, walletSvc IWalletService, log *zap.Logger) IBookingService {
	return &bookingService{db: database, listingSvc: listingSvc, userSvc: userSvc, walletSvc: walletSvc, log: log}
}

// CreateBooking books an active listing. Guest and host names and the
// listing title are copied onto the booking.
func (s *bookingService) CreateBooking(ctx context.Context, guestID, listingID utils.SixID, checkIn, checkOut *time.Time) (*models.Booking, error) {
	listing, err := s.listingSvc.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("listing %s is %s: %w", listingID.String(), listing.Status, ErrListingNotBookable)
	}
	if listing.HostID == guestID {
		return nil, fmt.Errorf("hosts cannot book their own listing: %w", ErrListingNotBookable)
	}

	profiles, err := s.userSvc.FindProfiles(ctx, []utils.SixID{guestID, listing.HostID})
	if err != nil {
		s.log.Warn("Could not load profiles for booking", zap.Error(err))
	}

	booking, err := db.InsertOne(ctx, s.db.Collection(db.BookingsCollection), &models.Booking{
		GuestID:      guestID,
		HostID:       listing.HostID,
		ListingID:    listing.ID,
		Status:       models.BookingStatusPending,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		TotalPrice:   listing.Price,
		GuestName:    profiles[guestID].Name,
		HostName:     profiles[listing.HostID].Name,
		ListingTitle: listing.Title,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}
	return booking, nil
}

func (s *bookingService) FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.Collection(db.BookingsCollection).FindOne(ctx, bson.M{"_id": bookingID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding booking %s: %w", bookingID.String(), err)
	}
	return &booking, nil
}

// ListBookingsForUser returns the user's bookings on the requested side, newest first.
func (s *bookingService) ListBookingsForUser(ctx context.Context, userID utils.SixID, role BookingRole) ([]models.Booking, error) {
	var filter bson.M
	switch role {
	case BookingRoleGuest:
		filter = bson.M{"guest_id": userID}
	case BookingRoleHost:
		filter = bson.M{"host_id": userID}
	case BookingRoleAny:
		filter = bson.M{"$or": bson.A{bson.M{"guest_id": userID}, bson.M{"host_id": userID}}}
	default:
		return nil, fmt.Errorf("unknown booking role %q", role)
	}
	return s.find(ctx, filter)
}

// ListQualifyingBookings returns the guest's confirmed or completed bookings.
func (s *bookingService) ListQualifyingBookings(ctx context.Context, guestID utils.SixID) ([]models.Booking, error) {
	return s.find(ctx, bson.M{
		"guest_id": guestID,
		"status":   bson.M{"$in": bson.A{models.BookingStatusConfirmed, models.BookingStatusCompleted}},
	})
}

// ListCompletableBookings returns confirmed bookings whose check-out is
// before the given time, oldest check-out first.
func (s *bookingService) ListCompletableBookings(ctx context.Context, checkedOutBefore time.Time, limit int) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_out", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{
		"status":    models.BookingStatusConfirmed,
		"check_out": bson.M{"$lt": checkedOutBefore},
	}, opts)
}

func (s *bookingService) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Booking, error) {
	if len(opts) == 0 {
		opts = append(opts, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	}
	cursor, err := s.db.Collection(db.BookingsCollection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID, hostID utils.SixID) error {
	result, err := s.db.Collection(db.BookingsCollection).UpdateOne(ctx,
		bson.M{"_id": bookingID, "host_id": hostID, "status": models.BookingStatusPending},
		bson.M{"$set": bson.M{"status": models.BookingStatusConfirmed}},
	)
	if err != nil {
		return fmt.Errorf("db error confirming booking %s: %w", bookingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrBookingState
	}
	return nil
}

// CompleteBooking marks a confirmed booking completed, records what the
// platform owes the host and credits the host's wallet.
func (s *bookingService) CompleteBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.Collection(db.BookingsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": bookingID, "status": models.BookingStatusConfirmed},
		bson.M{"$set": bson.M{"status": models.BookingStatusCompleted}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookingState
		}
		return nil, fmt.Errorf("db error completing booking %s: %w", bookingID.String(), err)
	}

	if booking.TotalPrice > 0 {
		if err := s.walletSvc.RecordBookingEarning(ctx, &booking); err != nil {
			return &booking, fmt.Errorf("booking completed but earning not recorded: %w", err)
		}
	}
	return &booking, nil
}
