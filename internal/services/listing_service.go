package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// ListingInput carries the host-editable fields of a listing.
type ListingInput struct {
	Title        string
	Description  string
	Category     string
	Subcategory  string
	PlaceType    string
	ServiceType  string
	ActivityType string
	Price        float64
	Location     string
	Amenities    []string
	Services     []string
	Images       []string
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, hostID utils.SixID, in ListingInput, status models.ListingStatus) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	FindListingsByIDs(ctx context.Context, ids []utils.SixID) ([]models.Listing, error)
	FindActiveListings(ctx context.Context, limit int) ([]models.Listing, error)
	SearchActiveListings(ctx context.Context, category string, limit int, cursor string) ([]models.Listing, string, error)
	SetListingStatus(ctx context.Context, listingID, hostID utils.SixID, status models.ListingStatus) error
}

// maxCandidatePool bounds how many active listings the scorer considers.
const maxCandidatePool = 2000

type listingService struct {
	db  *mongo.Database
	cfg *config.Config
	log *zap.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, cfg *config.Config, log *zap.Logger) IListingService {
	return &listingService{db: database, cfg: cfg, log: log}
}

func (s *listingService) CreateListing(ctx context.Context, hostID utils.SixID, in ListingInput, status models.ListingStatus) (*models.Listing, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("listing title is required")
	}
	if in.Price < 0 {
		return nil, errors.New("listing price cannot be negative")
	}
	if status == "" {
		status = models.ListingStatusDraft
	}

	now := time.Now().UTC()
	listing, err := db.InsertOne(ctx, s.db.Collection(db.ListingsCollection), &models.Listing{
		HostID:       hostID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Category:     in.Category,
		Subcategory:  in.Subcategory,
		PlaceType:    in.PlaceType,
		ServiceType:  in.ServiceType,
		ActivityType: in.ActivityType,
		Price:        in.Price,
		Location:     in.Location,
		Amenities:    in.Amenities,
		Services:     in.Services,
		Images:       in.Images,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}
	return listing, nil
}

// FindListingByID returns mongo.ErrNoDocuments when the listing does not exist.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

func (s *listingService) FindListingsByIDs(ctx context.Context, ids []utils.SixID) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query listings by id: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, nil
}

// FindActiveListings returns active listings, newest first. A limit <= 0
// uses the candidate pool bound.
func (s *listingService) FindActiveListings(ctx context.Context, limit int) ([]models.Listing, error) {
	if limit <= 0 || limit > maxCandidatePool {
		limit = maxCandidatePool
	}
	coll := s.db.Collection(db.ListingsCollection)
	filter := bson.M{"status": models.ListingStatusActive}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		s.log.Warn("Ordered active listing query failed, falling back to unordered", zap.Error(err))
		return s.findActiveUnordered(ctx, limit)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode active listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) findActiveUnordered(ctx context.Context, limit int) ([]models.Listing, error) {
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, bson.M{"status": models.ListingStatusActive})
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode active listings: %w", err)
	}
	sortListingsNewestFirst(listings)
	if len(listings) > limit {
		listings = listings[:limit]
	}
	return listings, nil
}

// SearchActiveListings pages through active listings newest first. The
// cursor is "<unix nanos>_<id>" of the last listing of the previous page.
func (s *listingService) SearchActiveListings(ctx context.Context, category string, limit int, cursor string) ([]models.Listing, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	filter := bson.M{"status": models.ListingStatusActive}
	if category != "" {
		filter["category"] = category
	}

	if cursor != "" {
		parts := strings.SplitN(cursor, "_", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		nanos, tsErr := strconv.ParseInt(parts[0], 10, 64)
		lastID, idErr := utils.ParseSixID(parts[1])
		if tsErr != nil || idErr != nil {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		cursorTime := time.Unix(0, nanos).UTC()
		filter["$or"] = bson.A{
			bson.M{"created_at": cursorTime, "_id": bson.M{"$lt": lastID}},
			bson.M{"created_at": bson.M{"$lt": cursorTime}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit + 1))

	listCursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer listCursor.Close(ctx)

	results := []models.Listing{}
	if err = listCursor.All(ctx, &results); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing search results: %w", err)
	}

	nextCursor := ""
	if len(results) > limit {
		last := results[limit-1]
		nextCursor = fmt.Sprintf("%d_%s", last.CreatedAt.UnixNano(), last.ID.String())
		results = results[:limit]
	}
	return results, nextCursor, nil
}

func (s *listingService) SetListingStatus(ctx context.Context, listingID, hostID utils.SixID, status models.ListingStatus) error {
	switch status {
	case models.ListingStatusActive, models.ListingStatusDraft, models.ListingStatusInactive:
	default:
		return fmt.Errorf("unknown listing status %q", status)
	}
	result, err := s.db.Collection(db.ListingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID, "host_id": hostID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("db error updating listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
