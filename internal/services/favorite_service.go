package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// IFavoriteService manages saved listings.
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, listingID utils.SixID) error
	RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error
	ListFavorites(ctx context.Context, userID utils.SixID) ([]models.Listing, error)
}

type favoriteService struct {
	db         *mongo.Database
	listingSvc IListingService
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(database *mongo.Database, listingSvc IListingService) IFavoriteService {
	return &favoriteService{db: database, listingSvc: listingSvc}
}

// AddFavorite is idempotent.
func (s *favoriteService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	if _, err := s.listingSvc.FindListingByID(ctx, listingID); err != nil {
		return err
	}
	_, err := s.db.Collection(db.FavoritesCollection).UpdateOne(ctx,
		bson.M{"user_id": userID, "listing_id": listingID},
		bson.M{"$setOnInsert": bson.M{
			"_id":        utils.NewSixID(),
			"user_id":    userID,
			"listing_id": listingID,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !db.IsMongoDuplicateKeyError(err) {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite returns mongo.ErrNoDocuments when the listing was not saved.
func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	result, err := s.db.Collection(db.FavoritesCollection).DeleteOne(ctx, bson.M{"user_id": userID, "listing_id": listingID})
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListFavorites returns the saved listings, most recently saved first.
func (s *favoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.FavoritesCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer cursor.Close(ctx)
	var favorites []models.Favorite
	if err = cursor.All(ctx, &favorites); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}

	ids := make([]utils.SixID, len(favorites))
	for i, f := range favorites {
		ids[i] = f.ListingID
	}
	listings, err := s.listingSvc.FindListingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[utils.SixID]models.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	ordered := make([]models.Listing, 0, len(listings))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}
