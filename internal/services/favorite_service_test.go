package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"voyago/backend/internal/utils"
)

func TestFavoriteService(t *testing.T) {
	database := setupServiceDB(t, "testdb_favorite_service")
	listingSvc := NewListingService(database, newTestConfig(), zap.NewNop())
	svc := NewFavoriteService(database, listingSvc)
	ctx := context.Background()
	host := seedUser(t, database, "host")
	guest := seedUser(t, database, "guest")
	first := seedListing(t, listingSvc, host.ID, ListingInput{Title: "First"})
	second := seedListing(t, listingSvc, host.ID, ListingInput{Title: "Second"})

	require.NoError(t, svc.AddFavorite(ctx, guest.ID, first.ID))
	require.NoError(t, svc.AddFavorite(ctx, guest.ID, first.ID))
	require.NoError(t, svc.AddFavorite(ctx, guest.ID, second.ID))
	assert.ErrorIs(t, svc.AddFavorite(ctx, guest.ID, utils.NewSixID()), mongo.ErrNoDocuments)

	saved, err := svc.ListFavorites(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	require.NoError(t, svc.RemoveFavorite(ctx, guest.ID, first.ID))
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, guest.ID, first.ID), mongo.ErrNoDocuments)

	saved, err = svc.ListFavorites(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, second.ID, saved[0].ID)
}
